package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	mail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
	"github.com/arklim/medportal-api/internal/infra/config"
	"github.com/arklim/medportal-api/internal/infra/logger"
)

const defaultSendTimeout = 15 * time.Second

// ErrSenderNotConfigured is returned when SMTP credentials are missing.
var ErrSenderNotConfigured = errors.New("mailer: smtp sender not configured")

type smtpClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender delivers one message per authenticated SMTP session.
type SMTPSender struct {
	client  smtpClient
	from    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewSMTPSender builds a STARTTLS sender from configuration.
func NewSMTPSender(cfg config.SMTPSettings, log *zap.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Username == "" {
		return nil, ErrSenderNotConfigured
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return newSMTPSender(client, from, timeout, log), nil
}

func newSMTPSender(client smtpClient, from string, timeout time.Duration, log *zap.Logger) *SMTPSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPSender{
		client:  client,
		from:    from,
		timeout: timeout,
		logger:  log,
	}
}

// Send renders the message headers and delivers it.
func (s *SMTPSender) Send(ctx context.Context, message domain.EmailMessage) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("set sender address: %w", err)
	}
	if err := msg.To(message.Recipient); err != nil {
		return fmt.Errorf("set recipient address: %w", err)
	}
	msg.Subject(message.Subject)
	msg.SetBodyString(mail.TypeTextHTML, message.HTMLBody)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		logger.WithContext(ctx, s.logger).Warn("email delivery failed",
			zap.String("recipient", logger.MaskEmail(message.Recipient)),
			zap.String("subject", message.Subject),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

var _ port.EmailSender = (*SMTPSender)(nil)
