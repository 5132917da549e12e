package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/micronest/micronest-api/internal/email"
)

const fallbackRecipientName = "User"

// generateOTP returns a uniformly random numeric code of the given length,
// left padded with zeros.
func generateOTP(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// SendOTP issues a fresh code for emailAddr and mails it. Any code issued
// earlier for the same address stops being valid. If the email cannot be
// sent nothing is changed in the store.
func (s *Service) SendOTP(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	name := fallbackRecipientName
	user, err := s.repository.GetUserByEmail(ctx, emailAddr)
	switch {
	case err == nil:
		name = user.FullName
	case errors.Is(err, ErrUserNotFound):
	default:
		return err
	}

	code, err := generateOTP(s.otpConfig.Length)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	now := s.now()
	record := &EmailOTP{
		Email:     emailAddr,
		OTP:       code,
		ExpiresAt: now.Add(s.otpConfig.TTL),
		CreatedAt: now,
	}

	msg, err := email.NewOTPMessage(emailAddr, name, code, s.otpConfig.TTL)
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}

	err = s.repository.WithTx(ctx, func(repo Repository) error {
		if err := repo.ReplaceOTP(ctx, record); err != nil {
			return err
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.log.Error("failed to send otp email",
				zap.String("email", emailAddr),
				zap.Error(err))
			return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("otp sent", zap.String("email", emailAddr))
	return nil
}

// VerifyOTP consumes an active code for emailAddr. On success the matching
// user, if one exists yet, is marked as email verified.
func (s *Service) VerifyOTP(ctx context.Context, emailAddr, code string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || code == "" {
		return fmt.Errorf("%w: email and otp are required", ErrValidation)
	}

	now := s.now()
	record, err := s.repository.FindActiveOTP(ctx, emailAddr, code, now)
	if err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			return s.diagnoseOTP(ctx, emailAddr, code, now)
		}
		return err
	}

	err = s.repository.WithTx(ctx, func(repo Repository) error {
		if err := repo.MarkOTPUsed(ctx, record.ID, now); err != nil {
			return err
		}
		if err := repo.VerifyEmail(ctx, emailAddr, now); err != nil && !errors.Is(err, ErrUserNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("otp verified", zap.String("email", emailAddr))
	return nil
}

// diagnoseOTP explains why no active code matched.
func (s *Service) diagnoseOTP(ctx context.Context, emailAddr, code string, now time.Time) error {
	record, err := s.repository.FindOTP(ctx, emailAddr, code)
	if err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			return ErrOTPInvalid
		}
		return err
	}

	switch {
	case record.Used:
		return ErrOTPAlreadyUsed
	case !record.ExpiresAt.After(now):
		return ErrOTPExpired
	default:
		return ErrOTPInvalid
	}
}

func (s *Service) PurgeExpiredOTPs(ctx context.Context) (int64, error) {
	return s.repository.DeleteExpiredOTPs(ctx, s.now())
}

func (s *Service) OTPStats(ctx context.Context) (*OTPStats, error) {
	return s.repository.OTPStats(ctx, s.now())
}
