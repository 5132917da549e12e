package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// mockRepository is an in-memory Repository. WithTx snapshots the whole
// store and restores it when the callback fails.
type mockRepository struct {
	mu     sync.Mutex
	users  map[uint]*User
	otps   map[uint]*EmailOTP
	tokens map[uint]*UserToken
	nextID uint

	// errs makes the named method fail with the given error.
	errs map[string]error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:  make(map[uint]*User),
		otps:   make(map[uint]*EmailOTP),
		tokens: make(map[uint]*UserToken),
		errs:   make(map[string]error),
	}
}

func (r *mockRepository) failOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[method] = err
}

func (r *mockRepository) injected(method string) error {
	return r.errs[method]
}

func (r *mockRepository) id() uint {
	r.nextID++
	return r.nextID
}

type mockSnapshot struct {
	users  map[uint]User
	otps   map[uint]EmailOTP
	tokens map[uint]UserToken
}

func (r *mockRepository) snapshot() mockSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := mockSnapshot{
		users:  make(map[uint]User, len(r.users)),
		otps:   make(map[uint]EmailOTP, len(r.otps)),
		tokens: make(map[uint]UserToken, len(r.tokens)),
	}
	for k, v := range r.users {
		s.users[k] = *v
	}
	for k, v := range r.otps {
		s.otps[k] = *v
	}
	for k, v := range r.tokens {
		s.tokens[k] = *v
	}
	return s
}

func (r *mockRepository) restore(s mockSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[uint]*User, len(s.users))
	for k, v := range s.users {
		v := v
		r.users[k] = &v
	}
	r.otps = make(map[uint]*EmailOTP, len(s.otps))
	for k, v := range s.otps {
		v := v
		r.otps[k] = &v
	}
	r.tokens = make(map[uint]*UserToken, len(s.tokens))
	for k, v := range s.tokens {
		v := v
		r.tokens[k] = &v
	}
}

func (r *mockRepository) WithTx(ctx context.Context, fn func(repo Repository) error) error {
	snap := r.snapshot()
	if err := fn(r); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *mockRepository) CreateUser(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("CreateUser"); err != nil {
		return err
	}
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return ErrUserExists
		}
	}

	now := time.Now().UTC()
	user.ID = r.id()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = StatusActive
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *mockRepository) findUser(method string, match func(*User) bool) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected(method); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if match(u) {
			found := *u
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *mockRepository) GetUserByID(ctx context.Context, id uint) (*User, error) {
	return r.findUser("GetUserByID", func(u *User) bool { return u.ID == id })
}

func (r *mockRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.findUser("GetUserByUsername", func(u *User) bool { return u.Username == username })
}

func (r *mockRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.findUser("GetUserByEmail", func(u *User) bool { return u.Email == email })
}

func (r *mockRepository) VerifyEmail(ctx context.Context, email string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("VerifyEmail"); err != nil {
		return err
	}
	for _, u := range r.users {
		if u.Email == email {
			u.EmailVerified = true
			u.EmailVerifiedAt = &at
			return nil
		}
	}
	return ErrUserNotFound
}

func (r *mockRepository) SetUserStatus(ctx context.Context, email string, status UserStatus) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("SetUserStatus"); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if u.Email == email {
			u.Status = status
			found := *u
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *mockRepository) ReplaceOTP(ctx context.Context, otp *EmailOTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("ReplaceOTP"); err != nil {
		return err
	}
	for id, o := range r.otps {
		if o.Email == otp.Email {
			delete(r.otps, id)
		}
	}
	otp.ID = r.id()
	stored := *otp
	r.otps[otp.ID] = &stored
	return nil
}

func (r *mockRepository) FindActiveOTP(ctx context.Context, email, code string, now time.Time) (*EmailOTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("FindActiveOTP"); err != nil {
		return nil, err
	}
	for _, o := range r.otps {
		if o.Email == email && o.OTP == code && !o.Used && o.ExpiresAt.After(now) {
			found := *o
			return &found, nil
		}
	}
	return nil, ErrOTPNotFound
}

func (r *mockRepository) FindOTP(ctx context.Context, email, code string) (*EmailOTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*EmailOTP
	for _, o := range r.otps {
		if o.Email == email && o.OTP == code {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return nil, ErrOTPNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID > matches[j].ID })
	found := *matches[0]
	return &found, nil
}

func (r *mockRepository) MarkOTPUsed(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("MarkOTPUsed"); err != nil {
		return err
	}
	o, ok := r.otps[id]
	if !ok || o.Used {
		return ErrOTPAlreadyUsed
	}
	o.Used = true
	o.UsedAt = &at
	return nil
}

func (r *mockRepository) HasVerifiedOTPSince(ctx context.Context, email string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("HasVerifiedOTPSince"); err != nil {
		return false, err
	}
	for _, o := range r.otps {
		if o.Email == email && o.Used && o.UsedAt != nil && o.UsedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockRepository) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("DeleteExpiredOTPs"); err != nil {
		return 0, err
	}

	var n int64
	for id, o := range r.otps {
		if !o.Used && o.ExpiresAt.Before(now) {
			delete(r.otps, id)
			n++
		}
	}
	return n, nil
}

func (r *mockRepository) OTPStats(ctx context.Context, now time.Time) (*OTPStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("OTPStats"); err != nil {
		return nil, err
	}

	stats := &OTPStats{Total: int64(len(r.otps))}
	for _, o := range r.otps {
		switch {
		case o.Used:
			stats.Used++
		case !o.ExpiresAt.After(now):
			stats.Expired++
		default:
			stats.Active++
		}
	}
	return stats, nil
}

func (r *mockRepository) SaveRefreshToken(ctx context.Context, token *UserToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("SaveRefreshToken"); err != nil {
		return err
	}
	now := time.Now().UTC()
	if existing, ok := r.tokens[token.UserID]; ok {
		existing.RefreshTokenHash = token.RefreshTokenHash
		existing.ExpiresAt = token.ExpiresAt
		existing.UpdatedAt = now
		return nil
	}
	token.ID = r.id()
	token.CreatedAt = now
	token.UpdatedAt = now
	stored := *token
	r.tokens[token.UserID] = &stored
	return nil
}

func (r *mockRepository) RotateRefreshToken(ctx context.Context, userID uint, oldHash string, next *UserToken, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("RotateRefreshToken"); err != nil {
		return err
	}
	t, ok := r.tokens[userID]
	if !ok || t.RefreshTokenHash != oldHash || !t.ExpiresAt.After(now) {
		return ErrSessionRevoked
	}
	t.RefreshTokenHash = next.RefreshTokenHash
	t.ExpiresAt = next.ExpiresAt
	t.UpdatedAt = now
	return nil
}

// refreshTokenFor returns the stored refresh record for userID, or nil.
func (r *mockRepository) refreshTokenFor(userID uint) *UserToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[userID]
	if !ok {
		return nil
	}
	found := *t
	return &found
}

func (r *mockRepository) DeleteRefreshToken(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("DeleteRefreshToken"); err != nil {
		return err
	}
	delete(r.tokens, userID)
	return nil
}

func (r *mockRepository) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.injected("DeleteExpiredRefreshTokens"); err != nil {
		return 0, err
	}

	var n int64
	for userID, t := range r.tokens {
		if t.ExpiresAt.Before(now) {
			delete(r.tokens, userID)
			n++
		}
	}
	return n, nil
}

// otpFor returns the stored code row for email, or nil.
func (r *mockRepository) otpFor(email string) *EmailOTP {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.otps {
		if o.Email == email {
			found := *o
			return &found
		}
	}
	return nil
}

func (r *mockRepository) otpCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.otps)
}
