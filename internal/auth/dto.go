package auth

import (
	"fmt"
	"strings"
	"time"
)

type SignupInput struct {
	FullName     string
	Email        string
	Username     string
	Password     string
	Phone        string
	Address      string
	ProfileImage string
}

func (in *SignupInput) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.ProfileImage = strings.TrimSpace(in.ProfileImage)
}

func (in *SignupInput) validate() error {
	required := []struct {
		field string
		value string
	}{
		{"full_name", in.FullName},
		{"email", in.Email},
		{"username", in.Username},
		{"password", in.Password},
		{"phone", in.Phone},
		{"address", in.Address},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: field '%s' is required", ErrValidation, r.field)
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	User         *UserResponse `json:"user"`
}

// UserResponse is the client-facing view of a user. Every field carries a
// concrete value; unset timestamps render as empty strings.
type UserResponse struct {
	ID              uint    `json:"id"`
	FullName        string  `json:"full_name"`
	Email           string  `json:"email"`
	Username        string  `json:"username"`
	Phone           string  `json:"phone"`
	Address         string  `json:"address"`
	ProfileImage    string  `json:"profile_image"`
	EmailVerified   bool    `json:"email_verified"`
	EmailVerifiedAt string  `json:"email_verified_at"`
	Status          string  `json:"status"`
	TrustScore      float64 `json:"trust_score"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func NewUserResponse(u *User) *UserResponse {
	resp := &UserResponse{
		ID:            u.ID,
		FullName:      u.FullName,
		Email:         u.Email,
		Username:      u.Username,
		Phone:         u.Phone,
		Address:       u.Address,
		EmailVerified: u.EmailVerified,
		Status:        string(u.Status),
		TrustScore:    u.TrustScore,
		CreatedAt:     formatTime(u.CreatedAt),
		UpdatedAt:     formatTime(u.UpdatedAt),
	}
	if u.ProfileImage != nil {
		resp.ProfileImage = *u.ProfileImage
	}
	if u.EmailVerifiedAt != nil {
		resp.EmailVerifiedAt = formatTime(*u.EmailVerifiedAt)
	}
	if resp.Status == "" {
		resp.Status = string(StatusActive)
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
