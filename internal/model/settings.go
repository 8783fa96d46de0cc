package model

import (
	"strings"

	"github.com/google/uuid"
)

// Provider identifies the delivery transport a tenant uses
type Provider string

const (
	ProviderAPI  Provider = "api"
	ProviderSMTP Provider = "smtp"
)

// DefaultSMTPPort is used when a tenant leaves the port unset
const DefaultSMTPPort = 587

// TenantMailSettings is one tenant's delivery configuration
type TenantMailSettings struct {
	TenantID         uuid.UUID         `json:"tenantId"`
	Provider         Provider          `json:"provider"`
	SMTP             SMTPSettings      `json:"smtp"`
	API              APISettings       `json:"api"`
	ReminderTemplate *ReminderTemplate `json:"reminderTemplate,omitempty"`
}

// SMTPSettings holds SMTP credentials
type SMTPSettings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
	// From overrides the envelope sender; Username is used when empty
	From string `json:"from,omitempty"`
}

// APISettings holds OAuth credentials for the mail API
type APISettings struct {
	ClientID      string `json:"clientId"`
	ClientSecret  string `json:"-"`
	RefreshToken  string `json:"-"`
	SenderAddress string `json:"senderAddress"`
	SenderName    string `json:"senderName,omitempty"`
}

// ReminderTemplate is a tenant's custom overdue reminder
type ReminderTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// IsHTML marks Body as markup; plain bodies get their line breaks converted
	IsHTML bool `json:"isHtml"`
}

// EffectiveProvider returns the declared provider, defaulting to SMTP when unset
func (s *TenantMailSettings) EffectiveProvider() Provider {
	if Provider(strings.ToLower(string(s.Provider))) == ProviderAPI {
		return ProviderAPI
	}
	return ProviderSMTP
}

// SMTPConfigured reports whether host and username are both set
func (s *TenantMailSettings) SMTPConfigured() bool {
	return s.SMTP.Configured()
}

// APIConfigured reports whether every OAuth field required to send is set
func (s *TenantMailSettings) APIConfigured() bool {
	return s.API.Configured()
}

// Configured reports whether host and username are both set
func (c SMTPSettings) Configured() bool {
	return notBlank(c.Host) && notBlank(c.Username)
}

// EffectivePort returns Port, or DefaultSMTPPort when unset
func (c SMTPSettings) EffectivePort() int {
	if c.Port <= 0 {
		return DefaultSMTPPort
	}
	return c.Port
}

// EffectiveFrom returns the From override, falling back to the username
func (c SMTPSettings) EffectiveFrom() string {
	if notBlank(c.From) {
		return c.From
	}
	return c.Username
}

// Configured reports whether client id, secret, refresh token and sender are set
func (c APISettings) Configured() bool {
	return notBlank(c.ClientID) &&
		notBlank(c.ClientSecret) &&
		notBlank(c.RefreshToken) &&
		notBlank(c.SenderAddress)
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
