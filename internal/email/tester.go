package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shelfmail/shelfmail/internal/logger"
	"github.com/shelfmail/shelfmail/internal/model"
	"github.com/shelfmail/shelfmail/internal/render"
)

// Connection test errors
var (
	ErrInvalidRecipient = errors.New("recipient address is invalid")
	ErrAPIIncomplete    = errors.New("client id, client secret, refresh token and sender address are required")
	ErrSMTPIncomplete   = errors.New("smtp host and user are required")
)

// TestOverrides customises the message sent by a connection test.
type TestOverrides struct {
	Subject  string `json:"subject,omitempty"`
	HTMLBody string `json:"htmlBody,omitempty"`
	// From replaces the SMTP sender address for this test only
	From string `json:"from,omitempty"`
}

// TestResult is the structured outcome of a connection test.
type TestResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ConnectionTester validates a candidate configuration before it is saved.
// It reports failures as structured results and never touches loan state.
type ConnectionTester struct {
	api     APISender
	smtp    SMTPSender
	appName string
	log     *logger.Logger
}

// NewConnectionTester creates a ConnectionTester.
func NewConnectionTester(api APISender, smtp SMTPSender, appName string, log *logger.Logger) *ConnectionTester {
	return &ConnectionTester{
		api:     api,
		smtp:    smtp,
		appName: appName,
		log:     log.WithComponent("email_connection_test"),
	}
}

// TestDelivery sends one test message to recipient using candidate. For SMTP
// the credentials are verified before sending.
func (t *ConnectionTester) TestDelivery(ctx context.Context, candidate model.TenantMailSettings, recipient string, overrides *TestOverrides) TestResult {
	if err := t.testDelivery(ctx, candidate, recipient, overrides); err != nil {
		t.log.Warn().Err(err).
			Str("provider", string(candidate.EffectiveProvider())).
			Str("to", recipient).
			Msg("connection test failed")
		return TestResult{Success: false, Error: err.Error()}
	}
	t.log.Info().
		Str("provider", string(candidate.EffectiveProvider())).
		Str("to", recipient).
		Msg("connection test succeeded")
	return TestResult{Success: true}
}

func (t *ConnectionTester) testDelivery(ctx context.Context, candidate model.TenantMailSettings, recipient string, overrides *TestOverrides) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(recipient))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}

	msg := t.testMessage(addr.Address, overrides)

	if candidate.EffectiveProvider() == model.ProviderAPI {
		if !candidate.APIConfigured() {
			return ErrAPIIncomplete
		}
		if err := t.api.Send(ctx, candidate.API, msg); err != nil {
			return fmt.Errorf("send failed (%s): %w", Diagnose(err).Class, err)
		}
		return nil
	}

	if !candidate.SMTPConfigured() {
		return ErrSMTPIncomplete
	}
	creds := candidate.SMTP
	if overrides != nil && strings.TrimSpace(overrides.From) != "" {
		creds.From = overrides.From
	}
	if err := t.smtp.Verify(ctx, creds); err != nil {
		return fmt.Errorf("verification failed (%s): %w", Diagnose(err).Class, err)
	}
	if err := t.smtp.Send(ctx, creds, msg); err != nil {
		return fmt.Errorf("send failed (%s): %w", Diagnose(err).Class, err)
	}
	return nil
}

func (t *ConnectionTester) testMessage(to string, overrides *TestOverrides) Message {
	vars := render.TestVars(t.appName)
	msg := Message{
		To:       to,
		Subject:  render.Render(render.TestSubject, vars),
		HTMLBody: render.Render(render.TestBody, vars),
	}
	if overrides != nil {
		if strings.TrimSpace(overrides.Subject) != "" {
			msg.Subject = overrides.Subject
		}
		if strings.TrimSpace(overrides.HTMLBody) != "" {
			msg.HTMLBody = overrides.HTMLBody
		}
	}
	return msg
}
