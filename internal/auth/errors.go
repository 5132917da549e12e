package auth

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrOTPInvalid         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPAlreadyUsed     = errors.New("otp already used")
	ErrSessionRevoked     = errors.New("refresh token not found or expired")
	ErrNotificationFailed = errors.New("failed to send notification")
	ErrStoreUnavailable   = errors.New("store unavailable")

	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrOTPNotFound  = errors.New("otp not found")
)
