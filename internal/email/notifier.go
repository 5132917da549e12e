package email

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/micronest/micronest-api/internal/config"
)

var ErrNoRecipient = errors.New("no recipient specified")

type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Notifier delivers a single email. Any returned error means the message was
// not accepted for delivery.
type Notifier interface {
	Send(ctx context.Context, msg *Message) error
}

var ErrSMTPNotConfigured = errors.New("smtp host not configured")

// NewNotifier returns an SMTP notifier. Without an SMTP host, development and
// testing get a notifier that only logs; any other environment is an error.
func NewNotifier(cfg *config.EmailConfig, env string, log *zap.Logger) (Notifier, error) {
	if cfg.SMTPHost == "" {
		if !config.IsLocalEnv(env) {
			return nil, fmt.Errorf("%w (APP_ENV=%q)", ErrSMTPNotConfigured, env)
		}
		log.Warn("smtp host not configured, emails will be logged instead of sent",
			zap.String("environment", env))
		return NewLogNotifier(log), nil
	}
	return NewSMTPNotifier(cfg, log), nil
}

type SMTPNotifier struct {
	config *config.EmailConfig
	dialer *gomail.Dialer
	log    *zap.Logger
}

func NewSMTPNotifier(cfg *config.EmailConfig, log *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		config: cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		log:    log,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, msg *Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.config.FromEmail, n.config.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}

	n.log.Info("email sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, msg *Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	n.log.Debug("email not sent (smtp disabled)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.TextBody))
	return nil
}
