package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/micronest/micronest-api/internal/migration"
	"github.com/micronest/micronest-api/internal/server"
)

func main() {
	command := flag.String("command", "up", "migration command (up/down/status/version/reset/sync)")
	flag.Parse()

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", "development")
	}

	log, err := server.NewLogger(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Load config
	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	// Create migrator
	migrator, err := migration.NewMigrator(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer migrator.Close()

	ctx := context.Background()

	// Run migration command
	switch *command {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
		log.Info("Successfully ran migrations")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatal("Failed to rollback migrations", zap.Error(err))
		}
		log.Info("Successfully rolled back migrations")

	case "status":
		if err := migrator.Status(ctx); err != nil {
			log.Fatal("Failed to get migration status", zap.Error(err))
		}

	case "version":
		version, err := migrator.CurrentVersion(ctx)
		if err != nil {
			log.Fatal("Failed to get migration version", zap.Error(err))
		}
		log.Info("Current migration version", zap.Int64("version", version))

	case "reset":
		if err := migrator.Reset(ctx); err != nil {
			log.Fatal("Failed to reset migrations", zap.Error(err))
		}
		log.Info("Successfully reset migrations")

	case "sync":
		if err := migrator.Sync(ctx); err != nil {
			log.Fatal("Failed to sync migrations", zap.Error(err))
		}

	default:
		log.Fatal("Unknown command", zap.String("command", *command))
	}
}
