package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/micronest/micronest-api/internal/config"
	"github.com/micronest/micronest-api/internal/email"
	"github.com/micronest/micronest-api/internal/token"
)

const testSecret = "test-secret-key-that-is-at-least-32-bytes"

func newTestLogger(t *testing.T) *zap.Logger {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return logger
}

func newTestConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:            testSecret,
		Issuer:               "micronest-api",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 30 * 24 * time.Hour,
		BcryptCost:           bcrypt.MinCost,
	}
}

func newTestOTPConfig() *config.OTPConfig {
	return &config.OTPConfig{
		Length:             6,
		TTL:                10 * time.Minute,
		VerificationWindow: 30 * time.Minute,
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier keeps every message it is asked to send and fails when
// err is set.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []*email.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg *email.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages() []*email.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*email.Message(nil), n.sent...)
}

type testEnv struct {
	svc      *Service
	repo     *mockRepository
	notifier *recordingNotifier
	clock    *testClock
	tokens   *token.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	clock := newTestClock()
	repo := newMockRepository()
	notifier := &recordingNotifier{}
	tokens := token.NewCodec(newTestConfig()).WithClock(clock.Now)

	svc := NewService(
		newTestConfig(),
		newTestOTPConfig(),
		newTestLogger(t),
		repo,
		tokens,
		notifier,
	).WithClock(clock.Now)

	return &testEnv{
		svc:      svc,
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		tokens:   tokens,
	}
}

func newTestService(t *testing.T) *Service {
	return newTestEnv(t).svc
}

// verifyEmail runs the OTP round trip for addr.
func (e *testEnv) verifyEmail(t *testing.T, addr string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.svc.SendOTP(ctx, addr))
	otp := e.repo.otpFor(normalizeEmail(addr))
	require.NotNil(t, otp)
	require.NoError(t, e.svc.VerifyOTP(ctx, addr, otp.OTP))
}

func testSignupInput(addr, username string) SignupInput {
	return SignupInput{
		FullName: "Ada Lovelace",
		Email:    addr,
		Username: username,
		Password: "secret123",
		Phone:    "+2348000000000",
		Address:  "12 Savings Lane",
	}
}

// signUp creates a verified, active user and returns the signup response.
func (e *testEnv) signUp(t *testing.T, addr, username string) *AuthResponse {
	t.Helper()
	e.verifyEmail(t, addr)
	resp, err := e.svc.Signup(context.Background(), testSignupInput(addr, username))
	require.NoError(t, err)
	return resp
}
