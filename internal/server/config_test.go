package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "config-test-secret-at-least-32-bytes"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))
	return dir
}

func TestLoadConfigFrom(t *testing.T) {
	t.Setenv("APP_ENV", EnvTesting)

	t.Run("file values and defaults", func(t *testing.T) {
		t.Setenv("MICRONEST_AUTH_JWT_SECRET", testSecret)
		dir := writeConfig(t, `
[server]
port = "9090"

[auth]
access_token_duration = "5m"

[email]
smtp_host = "smtp.example.com"
`)

		cfg, err := LoadConfigFrom(dir)
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenDuration)
		assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTokenDuration)
		assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
		assert.Equal(t, 6, cfg.OTP.Length)
		assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
		assert.Equal(t, 30*time.Minute, cfg.OTP.VerificationWindow)
		assert.Equal(t, "smtp.example.com", cfg.Email.SMTPHost)
		assert.Equal(t, 587, cfg.Email.SMTPPort)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		t.Setenv("MICRONEST_AUTH_JWT_SECRET", testSecret)
		t.Setenv("MICRONEST_SERVER_PORT", "7070")
		t.Setenv("MICRONEST_OTP_TTL", "2m")
		dir := writeConfig(t, "[server]\nport = \"9090\"\n")

		cfg, err := LoadConfigFrom(dir)
		require.NoError(t, err)
		assert.Equal(t, "7070", cfg.Server.Port)
		assert.Equal(t, 2*time.Minute, cfg.OTP.TTL)
	})

	t.Run("production with smtp host", func(t *testing.T) {
		t.Setenv("APP_ENV", EnvProduction)
		t.Setenv("MICRONEST_AUTH_JWT_SECRET", testSecret)
		t.Setenv("MICRONEST_EMAIL_SMTP_HOST", "smtp.example.com")

		cfg, err := LoadConfigFrom(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "smtp.example.com", cfg.Email.SMTPHost)
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		t.Setenv("MICRONEST_AUTH_JWT_SECRET", testSecret)

		cfg, err := LoadConfigFrom(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Server.Port)
	})

	t.Run("invalid file", func(t *testing.T) {
		t.Setenv("MICRONEST_AUTH_JWT_SECRET", testSecret)
		dir := writeConfig(t, "[server\nport=")

		_, err := LoadConfigFrom(dir)
		assert.Error(t, err)
	})
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing secret",
			wantErr: "auth.jwt_secret",
		},
		{
			name:    "short secret",
			env:     map[string]string{"MICRONEST_AUTH_JWT_SECRET": "too-short"},
			wantErr: "auth.jwt_secret",
		},
		{
			name: "otp length out of range",
			env: map[string]string{
				"MICRONEST_AUTH_JWT_SECRET": testSecret,
				"MICRONEST_OTP_LENGTH":      "12",
			},
			wantErr: "otp.length",
		},
		{
			name: "production without smtp host",
			env: map[string]string{
				"APP_ENV":                   EnvProduction,
				"MICRONEST_AUTH_JWT_SECRET": testSecret,
			},
			wantErr: "email.smtp_host is required",
		},
		{
			name: "non positive token duration",
			env: map[string]string{
				"MICRONEST_AUTH_JWT_SECRET":            testSecret,
				"MICRONEST_AUTH_ACCESS_TOKEN_DURATION": "0s",
			},
			wantErr: "durations must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MICRONEST_AUTH_JWT_SECRET", "")
			t.Setenv("APP_ENV", EnvTesting)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfigFrom(t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{EnvDevelopment, EnvProduction, EnvTesting, ""} {
		log, err := NewLogger(env)
		require.NoError(t, err, env)
		require.NotNil(t, log)
	}

	log, err := NewLogger(EnvTesting)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.ErrorLevel))
}
