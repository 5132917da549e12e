package email

import (
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/micronest/micronest-api/internal/config"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger) (Notifier, error) {
					return NewNotifier(&config.Email, os.Getenv("APP_ENV"), log)
				},
			),
		),
	)
}
