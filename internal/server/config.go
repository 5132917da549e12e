package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/micronest/micronest-api/internal/config"
)

const (
	EnvDevelopment = config.EnvDevelopment
	EnvProduction  = config.EnvProduction
	EnvTesting     = config.EnvTesting
)

const (
	envPrefix        = "MICRONEST"
	defaultConfigDir = "./config/server"
	minSecretLength  = 32
)

// LoadConfig reads config/server/config.toml (or the directory named by
// CONFIG_DIR), applies MICRONEST_* environment overrides and validates the
// result.
func LoadConfig() (*config.AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = defaultConfigDir
	}
	return LoadConfigFrom(dir)
}

func LoadConfigFrom(dir string) (*config.AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&cfg, os.Getenv("APP_ENV")); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "micronest")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "micronest-api")
	v.SetDefault("auth.access_token_duration", 15*time.Minute)
	v.SetDefault("auth.refresh_token_duration", 30*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.ttl", 10*time.Minute)
	v.SetDefault("otp.verification_window", 30*time.Minute)

	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.smtp_username", "")
	v.SetDefault("email.smtp_password", "")
	v.SetDefault("email.from_email", "noreply@micronest.com")
	v.SetDefault("email.from_name", "MicroNest")

	v.SetDefault("cleanup.interval", time.Hour)
}

func validateConfig(cfg *config.AppConfig, env string) error {
	if len(cfg.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("auth.jwt_secret must be set and at least %d bytes long", minSecretLength)
	}
	if cfg.Auth.AccessTokenDuration <= 0 || cfg.Auth.RefreshTokenDuration <= 0 {
		return errors.New("auth token durations must be positive")
	}
	if cfg.OTP.Length < 4 || cfg.OTP.Length > 9 {
		return fmt.Errorf("otp.length must be between 4 and 9, got %d", cfg.OTP.Length)
	}
	if cfg.OTP.TTL <= 0 || cfg.OTP.VerificationWindow <= 0 {
		return errors.New("otp durations must be positive")
	}
	if cfg.Email.SMTPHost == "" && !config.IsLocalEnv(env) {
		return fmt.Errorf("email.smtp_host is required when APP_ENV is %q", env)
	}
	if cfg.Cleanup.Interval < 0 {
		return errors.New("cleanup.interval must not be negative")
	}
	return nil
}
