package auth

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/micronest/micronest-api/internal/config"
	"github.com/micronest/micronest-api/internal/email"
	"github.com/micronest/micronest-api/internal/token"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			// Provide repository
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			// Provide token codec
			fx.Annotate(
				func(config *config.AppConfig) *token.Codec {
					return token.NewCodec(&config.Auth)
				},
			),
			// Provide service
			fx.Annotate(
				func(
					config *config.AppConfig,
					log *zap.Logger,
					repo Repository,
					tokens *token.Codec,
					notifier email.Notifier,
				) *Service {
					return NewService(&config.Auth, &config.OTP, log, repo, tokens, notifier)
				},
			),
			// Provide handler
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *Handler {
					return NewHandler(svc, log)
				},
			),
			// Provide middleware
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *AuthMiddleware {
					return NewAuthMiddleware(svc, log)
				},
			),
			// Provide background cleanup
			fx.Annotate(
				func(config *config.AppConfig, svc *Service, log *zap.Logger) *CleanupManager {
					return NewCleanupManager(svc, config.Cleanup.Interval, log)
				},
			),
		),
	)
}

// CleanupHooks runs the background sweep for the lifetime of the app.
func CleanupHooks() fx.Option {
	return fx.Invoke(func(lifecycle fx.Lifecycle, cm *CleanupManager) {
		lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				cm.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return cm.Stop(ctx)
			},
		})
	})
}
