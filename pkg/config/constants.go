package config

const (
	EnvPrefix = "DRAFTFORGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	ProviderAnthropic = "anthropic"
	ProviderLorem     = "lorem"

	DefaultSQLiteDSN = "file:draftforge.db?cache=shared&_foreign_keys=on"
)

const (
	EnvAppEnv   = "DRAFTFORGE_APP_ENV"
	EnvPort     = "DRAFTFORGE_APP_PORT"
	EnvLogLevel = "DRAFTFORGE_LOG_LEVEL"

	EnvDBDSN  = "DRAFTFORGE_DB_DSN"
	EnvDBHost = "DRAFTFORGE_DB_HOST"
	EnvDBUser = "DRAFTFORGE_DB_USER"
	EnvDBName = "DRAFTFORGE_DB_NAME"

	EnvRedisURL = "DRAFTFORGE_REDIS_URL"

	EnvJWTSecret  = "DRAFTFORGE_JWT_SECRET"
	EnvJWTIssuer  = "DRAFTFORGE_JWT_ISSUER"
	EnvJWTExpMins = "DRAFTFORGE_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "DRAFTFORGE_USE_SQLITE"

	EnvCreditsPerDocument    = "DRAFTFORGE_CREDITS_PER_DOCUMENT"
	EnvCreditsStarting       = "DRAFTFORGE_CREDITS_STARTING_BALANCE"
	EnvGenerationProvider    = "DRAFTFORGE_GENERATION_PROVIDER"
	EnvGenerationConcurrency = "DRAFTFORGE_GENERATION_MAX_CONCURRENCY"
	EnvAdmissionDraftWindow  = "DRAFTFORGE_ADMISSION_DRAFT_WINDOW"
	EnvStoreRetryMaxAttempts = "DRAFTFORGE_STORE_RETRY_MAX_ATTEMPTS"

	EnvCORSAllowedOrigins = "DRAFTFORGE_CORS_ALLOWED_ORIGINS"

	EnvGCPProjectID          = "DRAFTFORGE_GCP_PROJECT_ID"
	EnvPubSubGenerationTopic = "DRAFTFORGE_PUBSUB_GENERATION_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
