package email

import (
	"context"

	"github.com/google/uuid"

	"github.com/shelfmail/shelfmail/internal/model"
)

type fakeResolver struct {
	settings map[uuid.UUID]*model.TenantMailSettings
	err      error
}

func (f *fakeResolver) Resolve(ctx context.Context, tenantID uuid.UUID) (*model.TenantMailSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.settings[tenantID], nil
}

type fakeAPI struct {
	calls   int
	lastMsg Message
	err     error
	panics  bool
}

func (f *fakeAPI) Send(ctx context.Context, creds model.APISettings, msg Message) error {
	f.calls++
	f.lastMsg = msg
	if f.panics {
		panic("boom")
	}
	return f.err
}

type fakeSMTP struct {
	sends     int
	verifies  int
	lastCreds model.SMTPSettings
	lastMsg   Message
	sendErr   error
	verifyErr error
}

func (f *fakeSMTP) Send(ctx context.Context, creds model.SMTPSettings, msg Message) error {
	f.sends++
	f.lastCreds = creds
	f.lastMsg = msg
	return f.sendErr
}

func (f *fakeSMTP) Verify(ctx context.Context, creds model.SMTPSettings) error {
	f.verifies++
	f.lastCreds = creds
	return f.verifyErr
}

func smtpSettings(tenantID uuid.UUID) *model.TenantMailSettings {
	return &model.TenantMailSettings{
		TenantID: tenantID,
		Provider: model.ProviderSMTP,
		SMTP: model.SMTPSettings{
			Host:     "smtp.example.com",
			Port:     587,
			Username: "library@example.com",
			Password: "secret",
		},
	}
}

func apiSettings(tenantID uuid.UUID) *model.TenantMailSettings {
	return &model.TenantMailSettings{
		TenantID: tenantID,
		Provider: model.ProviderAPI,
		API: model.APISettings{
			ClientID:      "client-id",
			ClientSecret:  "client-secret",
			RefreshToken:  "refresh-token",
			SenderAddress: "library@example.com",
		},
	}
}
