package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/micronest/micronest-api/internal/config"
	"github.com/micronest/micronest-api/internal/email"
	"github.com/micronest/micronest-api/internal/token"
)

type Service struct {
	config     *config.AuthConfig
	otpConfig  *config.OTPConfig
	log        *zap.Logger
	repository Repository
	tokens     *token.Codec
	notifier   email.Notifier
	now        func() time.Time
	dummyHash  string
}

func NewService(
	config *config.AuthConfig,
	otpConfig *config.OTPConfig,
	log *zap.Logger,
	repo Repository,
	tokens *token.Codec,
	notifier email.Notifier,
) *Service {
	s := &Service{
		config:     config,
		otpConfig:  otpConfig,
		log:        log,
		repository: repo,
		tokens:     tokens,
		notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
	}

	// Compared against when the user does not exist so that unknown emails
	// cost as much as wrong passwords.
	s.dummyHash, _ = s.HashPassword("micronest-dummy-password")
	return s
}

// WithClock replaces the service time source. The token codec keeps its own.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = func() time.Time { return now().UTC() }
	return s
}

func (s *Service) HashPassword(password string) (string, error) {
	cost := s.config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func (s *Service) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Signup creates an account for an email whose OTP was verified within the
// configured window and opens a session for it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*AuthResponse, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	if err := s.checkAvailability(ctx, in.Email, in.Username); err != nil {
		return nil, err
	}

	now := s.now()
	verified, err := s.repository.HasVerifiedOTPSince(ctx, in.Email, now.Add(-s.otpConfig.VerificationWindow))
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, ErrEmailNotVerified
	}

	hashedPassword, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		FullName:        in.FullName,
		Email:           in.Email,
		Username:        in.Username,
		PasswordHash:    hashedPassword,
		Phone:           in.Phone,
		Address:         in.Address,
		EmailVerified:   true,
		EmailVerifiedAt: &now,
		Status:          StatusActive,
	}
	if in.ProfileImage != "" {
		user.ProfileImage = &in.ProfileImage
	}

	var resp *AuthResponse
	err = s.repository.WithTx(ctx, func(repo Repository) error {
		if err := repo.CreateUser(ctx, user); err != nil {
			return err
		}
		var err error
		resp, err = s.issueSession(ctx, repo, user)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			// Lost a race with a concurrent signup; report which key clashed.
			if dupErr := s.checkAvailability(ctx, in.Email, in.Username); dupErr != nil {
				return nil, dupErr
			}
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	s.log.Info("user signed up",
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username))
	return resp, nil
}

func (s *Service) checkAvailability(ctx context.Context, email, username string) error {
	if _, err := s.repository.GetUserByEmail(ctx, email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	if _, err := s.repository.GetUserByUsername(ctx, username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	return nil
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (*AuthResponse, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.repository.GetUserByEmail(ctx, emailAddr)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if user == nil || !user.IsActive() {
		s.CheckPasswordHash(password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if !s.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	var resp *AuthResponse
	err = s.repository.WithTx(ctx, func(repo Repository) error {
		var err error
		resp, err = s.issueSession(ctx, repo, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in", zap.Uint("user_id", user.ID))
	return resp, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token must be the one currently stored for its user; the swap is a single
// guarded update, so a token can be redeemed at most once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.tokens.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.repository.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrInvalidCredentials
	}

	resp, record, err := s.newSession(user)
	if err != nil {
		return nil, err
	}
	if err := s.repository.RotateRefreshToken(ctx, user.ID, hashToken(refreshToken), record, s.now()); err != nil {
		return nil, err
	}
	return resp, nil
}

// Logout revokes the stored refresh token of the access token's owner.
// Access tokens already handed out stay valid until they expire.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.Verify(accessToken, token.TypeAccess)
	if err != nil {
		return err
	}

	if err := s.repository.DeleteRefreshToken(ctx, claims.UserID); err != nil {
		return err
	}

	s.log.Info("user logged out", zap.Uint("user_id", claims.UserID))
	return nil
}

func (s *Service) ValidateAccessToken(accessToken string) (*token.Claims, error) {
	return s.tokens.Verify(accessToken, token.TypeAccess)
}

func (s *Service) Profile(ctx context.Context, userID uint) (*UserResponse, error) {
	user, err := s.repository.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrUserNotFound
	}
	return NewUserResponse(user), nil
}

// SetUserStatus moves a user between active and inactive. Deactivation also
// revokes the user's refresh token.
func (s *Service) SetUserStatus(ctx context.Context, emailAddr string, status UserStatus) (*User, error) {
	switch status {
	case StatusActive, StatusInactive, StatusSuspended:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	var user *User
	err := s.repository.WithTx(ctx, func(repo Repository) error {
		var err error
		user, err = repo.SetUserStatus(ctx, normalizeEmail(emailAddr), status)
		if err != nil {
			return err
		}
		if status != StatusActive {
			return repo.DeleteRefreshToken(ctx, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user status changed",
		zap.Uint("user_id", user.ID),
		zap.String("status", string(status)))
	return user, nil
}

func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.repository.DeleteExpiredRefreshTokens(ctx, s.now())
}

// newSession mints a token pair for user along with the refresh record to
// store. Nothing is persisted.
func (s *Service) newSession(user *User) (*AuthResponse, *UserToken, error) {
	accessToken, _, err := s.tokens.Issue(user.ID, token.TypeAccess)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, refreshClaims, err := s.tokens.Issue(user.ID, token.TypeRefresh)
	if err != nil {
		return nil, nil, fmt.Errorf("issue refresh token: %w", err)
	}

	record := &UserToken{
		UserID:           user.ID,
		RefreshTokenHash: hashToken(refreshToken),
		ExpiresAt:        refreshClaims.ExpiresAt.Time.UTC(),
	}
	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.TTL(token.TypeAccess).Seconds()),
		User:         NewUserResponse(user),
	}, record, nil
}

// issueSession replaces whatever session user had with a new one.
func (s *Service) issueSession(ctx context.Context, repo Repository, user *User) (*AuthResponse, error) {
	resp, record, err := s.newSession(user)
	if err != nil {
		return nil, err
	}
	if err := repo.SaveRefreshToken(ctx, record); err != nil {
		return nil, err
	}
	return resp, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
