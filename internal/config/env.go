package config

// Values of APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// IsLocalEnv reports whether env may run without real external services.
// An unset APP_ENV counts as development.
func IsLocalEnv(env string) bool {
	switch env {
	case "", EnvDevelopment, EnvTesting:
		return true
	default:
		return false
	}
}
