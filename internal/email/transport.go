package email

import (
	"context"

	"github.com/google/uuid"

	"github.com/shelfmail/shelfmail/internal/model"
)

// Message is one rendered outbound email. It is passed by value, so a
// message handed to a transport cannot be changed by the caller afterwards.
type Message struct {
	To       string // recipient email address
	Subject  string // email subject
	HTMLBody string // HTML email body
}

// APISender delivers a message through the OAuth-authenticated mail API.
type APISender interface {
	Send(ctx context.Context, creds model.APISettings, msg Message) error
}

// SMTPSender delivers a message over SMTP and can check credentials without sending.
type SMTPSender interface {
	Send(ctx context.Context, creds model.SMTPSettings, msg Message) error
	Verify(ctx context.Context, creds model.SMTPSettings) error
}

// SettingsResolver loads a tenant's delivery configuration. It returns
// (nil, nil) when the tenant has no settings.
type SettingsResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID) (*model.TenantMailSettings, error)
}
