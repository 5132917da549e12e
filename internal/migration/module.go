package migration

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/micronest/micronest-api/internal/config"
)

// Module provides migration-related dependencies
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig, logger *zap.Logger) (*Migrator, error) {
					return NewMigrator(&config.Database, logger)
				},
			),
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	migrator *Migrator,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return migrator.Sync(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return migrator.Close()
		},
	})
}
