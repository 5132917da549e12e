package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CleanupManager periodically deletes expired OTPs and refresh tokens.
type CleanupManager struct {
	service  *Service
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewCleanupManager(service *Service, interval time.Duration, logger *zap.Logger) *CleanupManager {
	return &CleanupManager{
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// RunOnce performs a single sweep. Both purges are attempted even when the
// first one fails.
func (cm *CleanupManager) RunOnce(ctx context.Context) error {
	otps, otpErr := cm.service.PurgeExpiredOTPs(ctx)
	if otpErr != nil {
		cm.logger.Error("failed to delete expired otps", zap.Error(otpErr))
	}

	sessions, sessionErr := cm.service.PurgeExpiredSessions(ctx)
	if sessionErr != nil {
		cm.logger.Error("failed to delete expired refresh tokens", zap.Error(sessionErr))
	}

	if otpErr == nil && sessionErr == nil && otps+sessions > 0 {
		cm.logger.Info("expired auth records deleted",
			zap.Int64("otps", otps),
			zap.Int64("refresh_tokens", sessions))
	}

	if otpErr != nil {
		return otpErr
	}
	return sessionErr
}

// Start launches the sweep loop. It is a no-op when the interval is zero.
func (cm *CleanupManager) Start() {
	if cm.interval <= 0 {
		cm.logger.Info("background cleanup disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cm.cancel = cancel
	cm.done = make(chan struct{})

	go func() {
		defer close(cm.done)
		ticker := time.NewTicker(cm.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = cm.RunOnce(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep, or for ctx.
func (cm *CleanupManager) Stop(ctx context.Context) error {
	if cm.cancel == nil {
		return nil
	}
	cm.once.Do(cm.cancel)

	select {
	case <-cm.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
