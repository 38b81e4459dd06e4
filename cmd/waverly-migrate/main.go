// Package main is the entry point for the Waverly schema migration tool.
// It creates or upgrades the collection tables and indexes of the object
// store for both the SQLite and PostgreSQL engines.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/config"
	"github.com/prn-tf/waverly-store/internal/store"
	"github.com/prn-tf/waverly-store/internal/store/postgres"
	"github.com/prn-tf/waverly-store/internal/store/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "version":
		fmt.Printf("Waverly Store Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := run(*configPath, migrateUp); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := run(*configPath, migrateStatus); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func run(configPath string, fn func(ctx context.Context, cfg *config.Config) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return fn(context.Background(), cfg)
}

// migrateUp brings the schema of the configured engine up to the current
// version. The migration is idempotent; running it against an up-to-date
// store is a no-op.
func migrateUp(ctx context.Context, cfg *config.Config) error {
	schema := store.DefaultSchema()
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx, schema); err != nil {
			return err
		}

	case "postgres":
		db, err := postgres.NewDB(ctx, postgresConfig(cfg), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx, schema); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	fmt.Printf("Schema migrated to version %d (%s)\n", schema.Version, cfg.Database.Driver)
	return nil
}

// migrateStatus prints the stored schema version against the current one.
func migrateStatus(ctx context.Context, cfg *config.Config) error {
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	var version int

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
		if err := row.Scan(&version); err != nil {
			version = 0
		}

	case "postgres":
		db, err := postgres.NewDB(ctx, postgresConfig(cfg), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		row := db.Pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
		if err := row.Scan(&version); err != nil {
			version = 0
		}

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	current := store.DefaultSchema().Version
	fmt.Printf("Stored version:  %d\n", version)
	fmt.Printf("Current version: %d\n", current)
	if version < current {
		fmt.Println("Status:          migration pending (run 'waverly-migrate up')")
	} else {
		fmt.Println("Status:          up to date")
	}
	return nil
}

func postgresConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}
}

func printUsage() {
	fmt.Println(`Waverly Store Migration Tool

Usage:
  waverly-migrate [-config path] <command>

Commands:
  up          Create or upgrade the collection tables and indexes
  status      Show the stored schema version
  version     Print version information
  help        Show this help message

Examples:
  waverly-migrate up
  waverly-migrate -config ./configs/config.yaml status`)
}
