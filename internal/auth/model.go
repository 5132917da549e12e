package auth

import "time"

type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
)

type User struct {
	ID              uint       `gorm:"primaryKey"`
	FullName        string     `gorm:"not null"`
	Email           string     `gorm:"uniqueIndex;not null"`
	Username        string     `gorm:"uniqueIndex;not null"`
	PasswordHash    string     `gorm:"not null"`
	Phone           string     `gorm:"not null"`
	Address         string     `gorm:"not null"`
	ProfileImage    *string    `gorm:"size:255"`
	EmailVerified   bool       `gorm:"default:false"`
	EmailVerifiedAt *time.Time `gorm:"column:email_verified_at"`
	Status          UserStatus `gorm:"type:varchar(16);default:active"`
	TrustScore      float64    `gorm:"type:numeric(5,2);default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

type EmailOTP struct {
	ID        uint       `gorm:"primaryKey"`
	Email     string     `gorm:"index;not null"`
	OTP       string     `gorm:"column:otp;size:10;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	Used      bool       `gorm:"default:false"`
	UsedAt    *time.Time `gorm:"column:used_at"`

	CreatedAt time.Time
}

func (EmailOTP) TableName() string {
	return "email_otps"
}

// UserToken is the single refresh token currently honoured for a user. Only
// a SHA-256 digest of the token is stored.
type UserToken struct {
	ID               uint      `gorm:"primaryKey"`
	UserID           uint      `gorm:"uniqueIndex;not null"`
	RefreshTokenHash string    `gorm:"size:64;not null"`
	ExpiresAt        time.Time `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserToken) TableName() string {
	return "user_tokens"
}

type OTPStats struct {
	Total   int64
	Used    int64
	Expired int64
	Active  int64
}
