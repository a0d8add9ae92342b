package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
)

const (
	VerificationSubject  = "Verify your email"
	PasswordResetSubject = "Reset your password"
)

//go:embed templates/*.html
var templateFS embed.FS

// Notifier renders account emails and hands them to an EmailSender.
type Notifier struct {
	sender    port.EmailSender
	publicURL string
	resetURL  *url.URL
	templates *template.Template
}

// NewNotifier parses the embedded templates. publicURL is the API base for verification links;
// resetURL is the page that receives the reset token as a query parameter.
func NewNotifier(sender port.EmailSender, publicURL, resetURL string) (*Notifier, error) {
	reset, err := url.Parse(resetURL)
	if err != nil || reset.Host == "" {
		return nil, fmt.Errorf("invalid reset url %q", resetURL)
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	return &Notifier{
		sender:    sender,
		publicURL: strings.TrimRight(publicURL, "/"),
		resetURL:  reset,
		templates: tmpl,
	}, nil
}

type verificationView struct {
	Name string
	Link string
}

type resetView struct {
	Name         string
	Link         string
	ValidMinutes int
}

// SendVerification emails the link that redeems token.
func (n *Notifier) SendVerification(ctx context.Context, account domain.Account, token string) error {
	body, err := n.render("verification.html", verificationView{
		Name: displayName(account),
		Link: n.VerificationLink(token),
	})
	if err != nil {
		return err
	}

	return n.sender.Send(ctx, domain.EmailMessage{
		Subject:   VerificationSubject,
		Recipient: account.Email,
		HTMLBody:  body,
	})
}

// SendPasswordReset emails the reset link for token.
func (n *Notifier) SendPasswordReset(ctx context.Context, account domain.Account, token string, validFor time.Duration) error {
	body, err := n.render("password_reset.html", resetView{
		Name:         displayName(account),
		Link:         n.PasswordResetLink(token),
		ValidMinutes: int(math.Ceil(validFor.Minutes())),
	})
	if err != nil {
		return err
	}

	return n.sender.Send(ctx, domain.EmailMessage{
		Subject:   PasswordResetSubject,
		Recipient: account.Email,
		HTMLBody:  body,
	})
}

// VerificationLink builds {public_url}/users/verify/{token}.
func (n *Notifier) VerificationLink(token string) string {
	return n.publicURL + "/users/verify/" + url.PathEscape(token)
}

// PasswordResetLink adds token to the query of the configured reset url.
func (n *Notifier) PasswordResetLink(token string) string {
	link := *n.resetURL
	query := link.Query()
	query.Set("token", token)
	link.RawQuery = query.Encode()
	return link.String()
}

func (n *Notifier) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := n.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func displayName(account domain.Account) string {
	if account.Name != "" {
		return account.Name
	}
	return account.Username
}

var _ port.AccountNotifier = (*Notifier)(nil)
