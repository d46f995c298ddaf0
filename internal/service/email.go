package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/iliyamo/microwire-quality/internal/config"
)

// EmailSender delivers one HTML message to one recipient.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

var ErrNoRecipient = errors.New("email recipient required")

// SMTPSender sends mail through an SMTP relay.  A new connection is dialled
// per message.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send returns when the relay accepted the message or ctx is done,
// whichever comes first.  gomail has no context support, so after a
// cancellation the SMTP exchange finishes or fails in the background and
// its result is discarded.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", to, ctx.Err())
	}
}

// LogSender stands in for SMTP when no relay is configured: it logs the
// message metadata and drops the body.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender { return &LogSender{log: log} }

func (s *LogSender) Send(_ context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return ErrNoRecipient
	}
	s.log.Info("email not sent, smtp disabled", "to", to, "subject", subject, "bytes", len(htmlBody))
	return nil
}
