// Package mailer sends account emails over SMTP
package mailer

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/studymaterials/backend/internal/config"
	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"
)

const dialTimeout = 10 * time.Second

// Sender delivers a single HTML email
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// dialer is the part of mail.Dialer the sender uses
type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPSender sends email through an SMTP server
type SMTPSender struct {
	dialer dialer
	from   string
}

// NewSMTPSender creates a sender for the configured SMTP server
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = dialTimeout
	return &SMTPSender{dialer: d, from: cfg.From}
}

// Send sends an email using gopkg.in/mail.v2
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// PasswordResetMailer writes and sends password reset emails
type PasswordResetMailer struct {
	sender   Sender
	resetURL string
	logger   *zap.Logger
}

// NewPasswordResetMailer creates a password reset mailer.
// With an empty resetURL the email carries the bare token instead of a link.
func NewPasswordResetMailer(sender Sender, resetURL string, logger *zap.Logger) *PasswordResetMailer {
	return &PasswordResetMailer{
		sender:   sender,
		resetURL: resetURL,
		logger:   logger,
	}
}

// SendPasswordReset emails the reset token to the account owner
func (m *PasswordResetMailer) SendPasswordReset(ctx context.Context, to, token string, expiresAt time.Time) error {
	body := m.resetBody(token, expiresAt)
	if err := m.sender.Send(ctx, to, "Reset your password", body); err != nil {
		m.logger.Error("failed to send password reset email", zap.Error(err))
		return err
	}
	return nil
}

func (m *PasswordResetMailer) resetBody(token string, expiresAt time.Time) string {
	expires := expiresAt.UTC().Format("2006-01-02 15:04 MST")

	if m.resetURL == "" {
		return fmt.Sprintf(
			"<p>We received a request to reset your password.</p>"+
				"<p>Your reset code:</p><p><code>%s</code></p>"+
				"<p>The code expires at %s. If you did not ask for a reset, ignore this email.</p>",
			html.EscapeString(token), expires,
		)
	}

	link := resetLink(m.resetURL, token)
	return fmt.Sprintf(
		"<p>We received a request to reset your password.</p>"+
			"<p><a href=\"%s\">Choose a new password</a></p>"+
			"<p>The link expires at %s. If you did not ask for a reset, ignore this email.</p>",
		html.EscapeString(link), expires,
	)
}

// resetLink appends the token to the reset page URL, keeping any query it already has
func resetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	query := u.Query()
	query.Set("token", token)
	u.RawQuery = query.Encode()
	return u.String()
}
