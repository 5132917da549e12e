// Command maintenance runs one-off housekeeping jobs against the database:
// purging stale OTPs and sessions, reporting OTP counts, and switching
// accounts between active and inactive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/micronest/micronest-api/internal/app"
	"github.com/micronest/micronest-api/internal/auth"
	"github.com/micronest/micronest-api/internal/email"
)

const usage = `usage: maintenance <command> [flags]

commands:
  cleanup-otps            delete unused OTPs that have expired
  cleanup-tokens          delete expired refresh tokens
  otp-stats               print OTP counts
  deactivate -email addr  deactivate an account and revoke its session
  reactivate -email addr  reactivate an account
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", "development")
	}

	command := os.Args[1]
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	emailAddr := flags.String("email", "", "account email")
	timeout := flags.Duration("timeout", 30*time.Second, "overall timeout")
	_ = flags.Parse(os.Args[2:])

	var (
		svc *auth.Service
		log *zap.Logger
	)
	fxApp := fx.New(
		app.Core(),
		email.Module(),
		auth.NewModule(),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log}
			l.UseLogLevel(zap.DebugLevel)
			return l
		}),
		fx.Populate(&svc, &log),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := fxApp.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	err := run(ctx, svc, log, command, *emailAddr)

	if stopErr := fxApp.Stop(context.Background()); stopErr != nil {
		log.Warn("failed to stop cleanly", zap.Error(stopErr))
	}
	if err != nil {
		log.Error("maintenance command failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *auth.Service, log *zap.Logger, command, emailAddr string) error {
	log = log.With(zap.String("command", command))

	switch command {
	case "cleanup-otps":
		n, err := svc.PurgeExpiredOTPs(ctx)
		if err != nil {
			return err
		}
		log.Info("expired otps deleted", zap.Int64("deleted", n))

	case "cleanup-tokens":
		n, err := svc.PurgeExpiredSessions(ctx)
		if err != nil {
			return err
		}
		log.Info("expired refresh tokens deleted", zap.Int64("deleted", n))

	case "otp-stats":
		stats, err := svc.OTPStats(ctx)
		if err != nil {
			return err
		}
		log.Info("otp stats",
			zap.Int64("total", stats.Total),
			zap.Int64("used", stats.Used),
			zap.Int64("expired", stats.Expired),
			zap.Int64("active", stats.Active))

	case "deactivate", "reactivate":
		if emailAddr == "" {
			return errors.New("-email is required")
		}
		status := auth.StatusInactive
		if command == "reactivate" {
			status = auth.StatusActive
		}
		user, err := svc.SetUserStatus(ctx, emailAddr, status)
		if err != nil {
			return err
		}
		log.Info("account status changed",
			zap.Uint("user_id", user.ID),
			zap.String("email", user.Email),
			zap.String("status", string(user.Status)))

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
