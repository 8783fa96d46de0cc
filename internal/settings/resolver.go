// Package settings resolves per-tenant delivery configuration from the store.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shelfmail/shelfmail/internal/logger"
	"github.com/shelfmail/shelfmail/internal/model"
	"github.com/shelfmail/shelfmail/internal/repository"
	"github.com/shelfmail/shelfmail/internal/secret"
)

// Store is the read side of the settings table.
type Store interface {
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*repository.MailSettingsRecord, error)
}

// Resolver loads TenantMailSettings and opens sealed secrets. Nothing is
// cached: every call reads the store again.
type Resolver struct {
	store Store
	box   *secret.Box
	log   *logger.Logger
}

// NewResolver creates a Resolver. box may be nil when no master key is configured.
func NewResolver(store Store, box *secret.Box, log *logger.Logger) *Resolver {
	return &Resolver{
		store: store,
		box:   box,
		log:   log.WithComponent("settings_resolver"),
	}
}

// Resolve returns the tenant's settings, or (nil, nil) when none exist.
//
// A sealed secret that cannot be opened is left blank and logged; the
// dispatcher then sees the provider as not configured.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID) (*model.TenantMailSettings, error) {
	rec, err := r.store.GetByTenantID(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve mail settings for tenant %s: %w", tenantID, err)
	}

	s := rec.Settings
	s.TenantID = tenantID
	s.SMTP.Password = r.open(tenantID, "smtp_password", s.SMTP.Password, rec.SMTPPasswordEnc)
	s.API.ClientSecret = r.open(tenantID, "api_client_secret", s.API.ClientSecret, rec.APIClientSecretEnc)
	s.API.RefreshToken = r.open(tenantID, "api_refresh_token", s.API.RefreshToken, rec.APIRefreshTokenEnc)
	return &s, nil
}

// open prefers the plaintext value and falls back to the sealed one.
func (r *Resolver) open(tenantID uuid.UUID, field, plain, sealed string) string {
	if plain != "" || sealed == "" {
		return plain
	}
	value, err := r.box.Open(sealed)
	if err != nil {
		r.log.Warn().Err(err).
			Str("tenant_id", tenantID.String()).
			Str("field", field).
			Msg("failed to open sealed secret")
		return ""
	}
	return value
}
