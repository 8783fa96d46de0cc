package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail"

	"github.com/shelfmail/shelfmail/internal/model"
)

// implicitTLSPort is the submission port that uses TLS from the first byte.
const implicitTLSPort = 465

// SMTPTransport implements SMTPSender with go-mail. Each call dials its own
// connection; nothing is shared between sends.
type SMTPTransport struct {
	// Timeout bounds dialing and each network operation; zero keeps go-mail's default.
	Timeout time.Duration
}

var _ SMTPSender = (*SMTPTransport)(nil)

// NewSMTPTransport creates an SMTPTransport.
func NewSMTPTransport(timeout time.Duration) *SMTPTransport {
	return &SMTPTransport{Timeout: timeout}
}

// Send delivers msg through the server described by creds.
func (s *SMTPTransport) Send(ctx context.Context, creds model.SMTPSettings, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d := s.dialer(creds)
	if err := d.DialAndSend(buildMessage(creds, msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Verify connects, negotiates TLS and authenticates, then closes the session
// without sending anything.
func (s *SMTPTransport) Verify(ctx context.Context, creds model.SMTPSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := s.dialer(creds).Dial()
	if err != nil {
		return fmt.Errorf("smtp verify: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("smtp verify: close: %w", err)
	}
	return nil
}

func (s *SMTPTransport) dialer(creds model.SMTPSettings) *mail.Dialer {
	port := creds.EffectivePort()

	d := mail.NewDialer(creds.Host, port, creds.Username, creds.Password)
	d.TLSConfig = &tls.Config{ServerName: creds.Host}
	// Implicit TLS only on 465; every other port negotiates STARTTLS when offered.
	d.SSL = port == implicitTLSPort
	d.StartTLSPolicy = mail.OpportunisticStartTLS
	if s.Timeout > 0 {
		d.Timeout = s.Timeout
	}
	return d
}

func buildMessage(creds model.SMTPSettings, msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", creds.EffectiveFrom())
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)
	return m
}
