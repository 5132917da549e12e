package api

// HTTP routes served by the auth service.
const (
	AuthGroup = "/auth"

	AuthSignup    = "/signup"
	AuthRegister  = "/register"
	AuthLogin     = "/login"
	AuthSendOTP   = "/send-otp"
	AuthVerifyOTP = "/verify-otp"
	AuthRefresh   = "/refresh"
	AuthLogout    = "/logout"

	Profile = "/profile"
	Health  = "/health"
)
