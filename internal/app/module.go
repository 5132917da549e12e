package app

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/micronest/micronest-api/internal/auth"
	"github.com/micronest/micronest-api/internal/database"
	"github.com/micronest/micronest-api/internal/email"
	"github.com/micronest/micronest-api/internal/migration"
	"github.com/micronest/micronest-api/internal/server"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		Core(),

		// Schema
		migration.Module(),

		// Email
		email.Module(),

		// Auth Module
		auth.NewModule(),
		auth.CleanupHooks(),

		// Server
		fx.Provide(server.NewServer),

		// Start the server
		fx.Invoke(registerHooks),
	)
}

// Core provides the logger, configuration and database. The maintenance CLI
// builds on it without starting the HTTP server.
func Core() fx.Option {
	return fx.Options(
		// Logger
		fx.Provide(newLogger),

		// Configuration
		fx.Provide(server.LoadConfig),

		// Database
		database.Module(),
	)
}

func newLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	return server.NewLogger(env)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	shutdowner fx.Shutdowner,
	srv *server.Server,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("failed to start server", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			return srv.Stop(ctx)
		},
	})
}
