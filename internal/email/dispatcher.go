package email

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmail/shelfmail/internal/logger"
	"github.com/shelfmail/shelfmail/internal/metrics"
	"github.com/shelfmail/shelfmail/internal/model"
)

// Dispatch results used for metrics.
const (
	resultSent          = "sent"
	resultNotConfigured = "not_configured"
	resultFailed        = "failed"
)

// Dispatcher picks the transport declared in a tenant's settings and sends
// one message through it. Send never returns an error: missing configuration
// and transport failures are logged and reported as false.
type Dispatcher struct {
	settings SettingsResolver
	api      APISender
	smtp     SMTPSender
	log      *logger.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(settings SettingsResolver, api APISender, smtp SMTPSender, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		settings: settings,
		api:      api,
		smtp:     smtp,
		log:      log.WithComponent("email_dispatcher"),
	}
}

// Send makes exactly one delivery attempt for msg on behalf of tenantID and
// reports whether the provider accepted it.
func (d *Dispatcher) Send(ctx context.Context, tenantID uuid.UUID, msg Message) bool {
	log := d.log.WithTenantID(tenantID.String())

	settings, err := d.settings.Resolve(ctx, tenantID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load mail settings")
		metrics.IncDispatch("", resultFailed)
		return false
	}
	if settings == nil {
		log.Warn().Msg("email not configured for tenant, skipping send")
		metrics.IncDispatch("", resultNotConfigured)
		return false
	}

	provider := settings.EffectiveProvider()
	switch provider {
	case model.ProviderAPI:
		if !settings.APIConfigured() {
			log.Warn().Str("provider", string(provider)).
				Msg("api provider selected but client id, client secret, refresh token or sender address is missing")
			metrics.IncDispatch(string(provider), resultNotConfigured)
			return false
		}
	default:
		if !settings.SMTPConfigured() {
			log.Warn().Str("provider", string(provider)).
				Msg("smtp host or user is missing")
			metrics.IncDispatch(string(provider), resultNotConfigured)
			return false
		}
	}

	start := time.Now()
	err = d.deliver(ctx, settings, provider, msg)
	log.Delivery(string(provider), msg.To, err == nil, time.Since(start))

	if err != nil {
		diag := Diagnose(err)
		log.Error().Err(err).
			Str("provider", string(provider)).
			Str("error_class", diag.Class).
			Bool("temporary", diag.Temporary).
			Msg("email delivery failed")
		metrics.IncDispatch(string(provider), resultFailed)
		metrics.IncDispatchError(string(provider), diag.Class)
		return false
	}

	metrics.IncDispatch(string(provider), resultSent)
	return true
}

// deliver calls the transport, turning a panic into an error so nothing
// escapes to the caller.
func (d *Dispatcher) deliver(ctx context.Context, settings *model.TenantMailSettings, provider model.Provider, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s transport panic: %v", provider, r)
		}
	}()

	if provider == model.ProviderAPI {
		return d.api.Send(ctx, settings.API, msg)
	}
	return d.smtp.Send(ctx, settings.SMTP, msg)
}
