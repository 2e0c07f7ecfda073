package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/db"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// env is what a command may need; commands that touch the database get a
// connected client, file-only commands never open one.
type env struct {
	cfg  *config.Config
	opts options
	db   *db.Client
}

type command struct {
	needsDB bool
	run     func(ctx context.Context, e env) (string, error)
}

var commands = map[string]command{
	"create": {run: func(_ context.Context, e env) (string, error) {
		if e.opts.name == "" {
			return "", errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(e.opts.dir, e.opts.name)
		if err != nil {
			return "", err
		}
		return "created migration: " + path, nil
	}},
	"validate": {run: func(_ context.Context, e env) (string, error) {
		if err := migrate.ValidateDir(e.opts.dir); err != nil {
			return "", err
		}
		return "migration validation passed", nil
	}},
	"sqlite": {needsDB: true, run: func(ctx context.Context, e env) (string, error) {
		if !e.cfg.FeatureFlags.UseSQLite {
			return "", fmt.Errorf("-cmd=sqlite requires %s=true", config.EnvUseSQLite)
		}
		if err := migrate.EnsureSQLiteSchema(ctx, e.db.DB()); err != nil {
			return "", err
		}
		return "sqlite schema ready", nil
	}},
	"up":     gooseCommand("up"),
	"down":   gooseCommand("down"),
	"status": gooseCommand("status"),
	"version": {needsDB: true, run: func(ctx context.Context, e env) (string, error) {
		if e.opts.version == "" {
			return "", errors.New("missing -version for version command")
		}
		return withSQL(ctx, e, func(sqlDB *sql.DB) error {
			return migrate.MigrateToVersion(ctx, sqlDB, e.opts.dir, e.opts.version)
		})
	}},
}

func gooseCommand(name string) command {
	return command{needsDB: true, run: func(ctx context.Context, e env) (string, error) {
		return withSQL(ctx, e, func(sqlDB *sql.DB) error {
			return migrate.Run(ctx, sqlDB, e.opts.dir, name)
		})
	}}
}

func withSQL(ctx context.Context, e env, fn func(*sql.DB) error) (string, error) {
	if e.db.Dialect() != migrate.Dialect {
		return "", fmt.Errorf("goose migrations target %s, connected to %s; use -cmd=sqlite", migrate.Dialect, e.db.Dialect())
	}
	sqlDB, err := e.db.DB().DB()
	if err != nil {
		return "", fmt.Errorf("sql handle: %w", err)
	}
	return "", fn(sqlDB)
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	_ = godotenv.Load()

	var opts options
	cmdName := flag.String("cmd", "up", "migration command: "+commandNames())
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cmd, ok := commands[*cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -cmd %q (want %s)\n", *cmdName, commandNames())
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "migrate"}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmdName,
		"dir": opts.dir,
	})

	e := env{cfg: cfg, opts: opts}
	if cmd.needsDB {
		e.db, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to connect to database", err)
			os.Exit(1)
		}
		defer e.db.Close()
	}

	out, err := cmd.run(ctx, e)
	if err != nil {
		logg.Error(ctx, "migrate command failed", err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", *cmdName, err)
		os.Exit(1)
	}
	if out != "" {
		fmt.Println(out)
	}
	logg.Info(ctx, "migrate command completed")
}
