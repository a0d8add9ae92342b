package port

import (
	"context"
	"time"

	"github.com/arklim/medportal-api/internal/core/domain"
)

// EmailSender delivers a single message over the outbound mail transport.
type EmailSender interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// AccountNotifier renders and sends the account lifecycle emails.
type AccountNotifier interface {
	SendVerification(ctx context.Context, account domain.Account, token string) error
	SendPasswordReset(ctx context.Context, account domain.Account, token string, validFor time.Duration) error
}
