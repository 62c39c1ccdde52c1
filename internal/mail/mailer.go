// Package mail sends transactional email. The server only needs plain-text
// messages (password reset links), so the interface stays small.
package mail

import (
	"context"
	"fmt"
	"sync"

	gomail "gopkg.in/gomail.v2"

	"inkwell/internal/config"
	"inkwell/internal/observability"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds a mailer from the SMTP settings in the config.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.MailFrom,
	}
}

// Send delivers the message, honoring context cancellation. gomail dials
// synchronously, so the dial runs in a goroutine and the context can abandon
// the wait.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(gm)
	}()

	select {
	case <-ctx.Done():
		observability.MailDispatchTotal.WithLabelValues("canceled").Inc()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			observability.MailDispatchTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
		}
		observability.MailDispatchTotal.WithLabelValues("success").Inc()
		return nil
	}
}

// Recorder is an in-memory Mailer for tests.
type Recorder struct {
	mu   sync.Mutex
	Sent []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, msg)
	return nil
}

// Last returns the most recently recorded message, or false when none exist.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Sent) == 0 {
		return Message{}, false
	}
	return r.Sent[len(r.Sent)-1], true
}
