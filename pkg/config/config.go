package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Credits      CreditsConfig
	Generation   GenerationConfig
	Anthropic    AnthropicConfig
	Admission    AdmissionConfig
	Store        StoreConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Generation.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DRAFTFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"DRAFTFORGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DRAFTFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DRAFTFORGE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"DRAFTFORGE_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ConsoleLogs reports whether logs should be written for a terminal.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

type ServiceConfig struct {
	Kind string `envconfig:"DRAFTFORGE_SERVICE_KIND" default:"api"`
}

// HTTPConfig covers the public API surface: browser origins and request budgets.
type HTTPConfig struct {
	CORSAllowedOrigins []string      `envconfig:"DRAFTFORGE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	RateLimitWindow    time.Duration `envconfig:"DRAFTFORGE_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitRequests  int           `envconfig:"DRAFTFORGE_RATE_LIMIT_REQUESTS" default:"120"`
	GenerateRateLimit  int           `envconfig:"DRAFTFORGE_GENERATE_RATE_LIMIT" default:"10"`
	MetricsEnabled     bool          `envconfig:"DRAFTFORGE_METRICS_ENABLED" default:"true"`
}

type DBConfig struct {
	DSN    string `envconfig:"DRAFTFORGE_DB_DSN"`
	Driver string `envconfig:"DRAFTFORGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DRAFTFORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"DRAFTFORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DRAFTFORGE_DB_USER"`
	LegacyPassword string `envconfig:"DRAFTFORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"DRAFTFORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"DRAFTFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DRAFTFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DRAFTFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DRAFTFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DRAFTFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DRAFTFORGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DRAFTFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"DRAFTFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"DRAFTFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DRAFTFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DRAFTFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DRAFTFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DRAFTFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DRAFTFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DRAFTFORGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DRAFTFORGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DRAFTFORGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DRAFTFORGE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DRAFTFORGE_AUTO_MIGRATE" default:"false"`
}

// CreditsConfig prices every billable action in whole credits.
type CreditsConfig struct {
	PerDocumentCost     int64 `envconfig:"DRAFTFORGE_CREDITS_PER_DOCUMENT" default:"200"`
	PlanGenerationCost  int64 `envconfig:"DRAFTFORGE_CREDITS_PLAN_GENERATION" default:"100"`
	IdeaRefinementCost  int64 `envconfig:"DRAFTFORGE_CREDITS_IDEA_REFINEMENT" default:"25"`
	AIAnswerCost        int64 `envconfig:"DRAFTFORGE_CREDITS_AI_ANSWER" default:"10"`
	StartingBalance     int64 `envconfig:"DRAFTFORGE_CREDITS_STARTING_BALANCE" default:"1000"`
	DefaultProjectLimit int   `envconfig:"DRAFTFORGE_DEFAULT_PROJECT_LIMIT" default:"3"`
}

type GenerationConfig struct {
	MaxConcurrency int           `envconfig:"DRAFTFORGE_GENERATION_MAX_CONCURRENCY" default:"3"`
	Timeout        time.Duration `envconfig:"DRAFTFORGE_GENERATION_TIMEOUT" default:"120s"`
	Async          bool          `envconfig:"DRAFTFORGE_GENERATION_ASYNC" default:"false"`
	Provider       string        `envconfig:"DRAFTFORGE_GENERATION_PROVIDER" default:"lorem"`
	Model          string        `envconfig:"DRAFTFORGE_GENERATION_MODEL" default:"claude-sonnet-4-5"`
	MaxTokens      int64         `envconfig:"DRAFTFORGE_GENERATION_MAX_TOKENS" default:"8192"`
	StuckAfter     time.Duration `envconfig:"DRAFTFORGE_GENERATION_STUCK_AFTER" default:"30m"`
	LockTTL        time.Duration `envconfig:"DRAFTFORGE_GENERATION_LOCK_TTL" default:"30s"`
	LockWait       time.Duration `envconfig:"DRAFTFORGE_GENERATION_LOCK_WAIT" default:"5s"`
}

func (g GenerationConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(g.Provider)) {
	case ProviderAnthropic, ProviderLorem:
	default:
		return fmt.Errorf("%s must be one of %s, %s", EnvGenerationProvider, ProviderAnthropic, ProviderLorem)
	}
	if g.MaxConcurrency <= 0 {
		return fmt.Errorf("%s must be positive", EnvGenerationConcurrency)
	}
	return nil
}

type AnthropicConfig struct {
	APIKey string `envconfig:"DRAFTFORGE_ANTHROPIC_API_KEY"`
}

type AdmissionConfig struct {
	DraftReuseWindow time.Duration `envconfig:"DRAFTFORGE_ADMISSION_DRAFT_WINDOW" default:"5m"`
	LockTTL          time.Duration `envconfig:"DRAFTFORGE_ADMISSION_LOCK_TTL" default:"10s"`
	LockWait         time.Duration `envconfig:"DRAFTFORGE_ADMISSION_LOCK_WAIT" default:"3s"`
}

// StoreConfig bounds how often a failed record write is retried.
type StoreConfig struct {
	RetryMaxAttempts int           `envconfig:"DRAFTFORGE_STORE_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseBackoff time.Duration `envconfig:"DRAFTFORGE_STORE_RETRY_BASE_BACKOFF" default:"100ms"`
	RetryMaxBackoff  time.Duration `envconfig:"DRAFTFORGE_STORE_RETRY_MAX_BACKOFF" default:"2s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DRAFTFORGE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DRAFTFORGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DRAFTFORGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	GenerationTopic        string `envconfig:"DRAFTFORGE_PUBSUB_GENERATION_TOPIC" default:"df-generation-events"`
	GenerationSubscription string `envconfig:"DRAFTFORGE_PUBSUB_GENERATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DRAFTFORGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DRAFTFORGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DRAFTFORGE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig sets how often each maintenance job runs.
type CronConfig struct {
	Interval            time.Duration `envconfig:"DRAFTFORGE_CRON_INTERVAL" default:"10m"`
	RetentionInterval   time.Duration `envconfig:"DRAFTFORGE_CRON_RETENTION_INTERVAL" default:"24h"`
	OutboxRetentionDays int           `envconfig:"DRAFTFORGE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
