package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// WithTx runs fn against a repository bound to a single transaction.
	// The transaction is rolled back when fn returns an error.
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	VerifyEmail(ctx context.Context, email string, at time.Time) error
	SetUserStatus(ctx context.Context, email string, status UserStatus) (*User, error)

	ReplaceOTP(ctx context.Context, otp *EmailOTP) error
	FindActiveOTP(ctx context.Context, email, code string, now time.Time) (*EmailOTP, error)
	FindOTP(ctx context.Context, email, code string) (*EmailOTP, error)
	MarkOTPUsed(ctx context.Context, id uint, at time.Time) error
	HasVerifiedOTPSince(ctx context.Context, email string, since time.Time) (bool, error)
	DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
	OTPStats(ctx context.Context, now time.Time) (*OTPStats, error)

	SaveRefreshToken(ctx context.Context, token *UserToken) error
	RotateRefreshToken(ctx context.Context, userID uint, oldHash string, next *UserToken, now time.Time) error
	DeleteRefreshToken(ctx context.Context, userID uint) error
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func (r *repository) WithTx(ctx context.Context, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) CreateUser(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return storeError("create user", err)
	}
	return nil
}

func (r *repository) findUser(ctx context.Context, query string, arg interface{}) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError("find user", err)
	}
	return &user, nil
}

func (r *repository) GetUserByID(ctx context.Context, id uint) (*User, error) {
	return r.findUser(ctx, "id = ?", id)
}

func (r *repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.findUser(ctx, "username = ?", username)
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.findUser(ctx, "email = ?", email)
}

func (r *repository) VerifyEmail(ctx context.Context, email string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"email_verified":    true,
			"email_verified_at": at,
		})
	if result.Error != nil {
		return storeError("verify email", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repository) SetUserStatus(ctx context.Context, email string, status UserStatus) (*User, error) {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("email = ?", email).
		Update("status", status)
	if result.Error != nil {
		return nil, storeError("set user status", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return r.GetUserByEmail(ctx, email)
}

func (r *repository) ReplaceOTP(ctx context.Context, otp *EmailOTP) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", otp.Email).Delete(&EmailOTP{}).Error; err != nil {
			return err
		}
		return tx.Create(otp).Error
	})
	if err != nil {
		return storeError("replace otp", err)
	}
	return nil
}

func (r *repository) FindActiveOTP(ctx context.Context, email, code string, now time.Time) (*EmailOTP, error) {
	var otp EmailOTP
	err := r.db.WithContext(ctx).
		Where("email = ? AND otp = ? AND used = ? AND expires_at > ?", email, code, false, now).
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPNotFound
		}
		return nil, storeError("find active otp", err)
	}
	return &otp, nil
}

func (r *repository) FindOTP(ctx context.Context, email, code string) (*EmailOTP, error) {
	var otp EmailOTP
	err := r.db.WithContext(ctx).
		Where("email = ? AND otp = ?", email, code).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOTPNotFound
		}
		return nil, storeError("find otp", err)
	}
	return &otp, nil
}

// MarkOTPUsed flips used exactly once. A row that is already used yields
// ErrOTPAlreadyUsed so concurrent verifications cannot both succeed.
func (r *repository) MarkOTPUsed(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&EmailOTP{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]interface{}{
			"used":    true,
			"used_at": at,
		})
	if result.Error != nil {
		return storeError("mark otp used", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOTPAlreadyUsed
	}
	return nil
}

func (r *repository) HasVerifiedOTPSince(ctx context.Context, email string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&EmailOTP{}).
		Where("email = ? AND used = ? AND used_at > ?", email, true, since).
		Count(&count).Error
	if err != nil {
		return false, storeError("check verified otp", err)
	}
	return count > 0, nil
}

func (r *repository) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ? AND used = ?", now, false).
		Delete(&EmailOTP{})
	if result.Error != nil {
		return 0, storeError("delete expired otps", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) OTPStats(ctx context.Context, now time.Time) (*OTPStats, error) {
	var stats OTPStats
	db := r.db.WithContext(ctx).Model(&EmailOTP{})

	if err := db.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, storeError("count otps", err)
	}
	if err := db.Session(&gorm.Session{}).Where("used = ?", true).Count(&stats.Used).Error; err != nil {
		return nil, storeError("count used otps", err)
	}
	if err := db.Session(&gorm.Session{}).Where("used = ? AND expires_at <= ?", false, now).Count(&stats.Expired).Error; err != nil {
		return nil, storeError("count expired otps", err)
	}
	if err := db.Session(&gorm.Session{}).Where("used = ? AND expires_at > ?", false, now).Count(&stats.Active).Error; err != nil {
		return nil, storeError("count active otps", err)
	}
	return &stats, nil
}

// SaveRefreshToken stores token as the only refresh token for its user,
// replacing whatever was stored before.
func (r *repository) SaveRefreshToken(ctx context.Context, token *UserToken) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"refresh_token_hash", "expires_at", "updated_at"}),
	}).Create(token).Error
	if err != nil {
		return storeError("save refresh token", err)
	}
	return nil
}

// RotateRefreshToken swaps the stored token for next, but only while the
// stored hash is still oldHash and unexpired. Otherwise ErrSessionRevoked.
func (r *repository) RotateRefreshToken(ctx context.Context, userID uint, oldHash string, next *UserToken, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&UserToken{}).
		Where("user_id = ? AND refresh_token_hash = ? AND expires_at > ?", userID, oldHash, now).
		Updates(map[string]interface{}{
			"refresh_token_hash": next.RefreshTokenHash,
			"expires_at":         next.ExpiresAt,
			"updated_at":         now,
		})
	if result.Error != nil {
		return storeError("rotate refresh token", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionRevoked
	}
	return nil
}

func (r *repository) DeleteRefreshToken(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserToken{}).Error; err != nil {
		return storeError("delete refresh token", err)
	}
	return nil
}

func (r *repository) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&UserToken{})
	if result.Error != nil {
		return 0, storeError("delete expired refresh tokens", result.Error)
	}
	return result.RowsAffected, nil
}
