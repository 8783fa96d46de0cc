package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shelfmail/shelfmail/internal/database"
	"github.com/shelfmail/shelfmail/internal/model"
)

// MailSettingsRecord is a stored settings row. Secrets may be kept either in
// plaintext on Settings or sealed in the *Enc fields.
type MailSettingsRecord struct {
	Settings           model.TenantMailSettings
	SMTPPasswordEnc    string
	APIClientSecretEnc string
	APIRefreshTokenEnc string
}

// SettingsRepository reads tenant mail settings
type SettingsRepository struct {
	db *database.Postgres
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *database.Postgres) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetByTenantID returns the settings row for a tenant, or ErrNotFound
func (r *SettingsRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*MailSettingsRecord, error) {
	query := `
		SELECT tenant_id, COALESCE(provider, ''),
		       COALESCE(smtp_host, ''), COALESCE(smtp_port, 0), COALESCE(smtp_username, ''),
		       COALESCE(smtp_password, ''), COALESCE(smtp_password_enc, ''), COALESCE(smtp_from, ''),
		       COALESCE(api_client_id, ''), COALESCE(api_client_secret, ''), COALESCE(api_client_secret_enc, ''),
		       COALESCE(api_refresh_token, ''), COALESCE(api_refresh_token_enc, ''),
		       COALESCE(api_sender_address, ''), COALESCE(api_sender_name, ''),
		       reminder_subject, reminder_body, COALESCE(reminder_is_html, false)
		FROM tenant_mail_settings
		WHERE tenant_id = $1
	`
	var (
		rec             MailSettingsRecord
		provider        string
		reminderSubject sql.NullString
		reminderBody    sql.NullString
		reminderIsHTML  bool
	)
	s := &rec.Settings
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&s.TenantID,
		&provider,
		&s.SMTP.Host,
		&s.SMTP.Port,
		&s.SMTP.Username,
		&s.SMTP.Password,
		&rec.SMTPPasswordEnc,
		&s.SMTP.From,
		&s.API.ClientID,
		&s.API.ClientSecret,
		&rec.APIClientSecretEnc,
		&s.API.RefreshToken,
		&rec.APIRefreshTokenEnc,
		&s.API.SenderAddress,
		&s.API.SenderName,
		&reminderSubject,
		&reminderBody,
		&reminderIsHTML,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant mail settings: %w", err)
	}

	s.Provider = model.Provider(provider)
	if reminderSubject.Valid || reminderBody.Valid {
		s.ReminderTemplate = &model.ReminderTemplate{
			Subject: reminderSubject.String,
			Body:    reminderBody.String,
			IsHTML:  reminderIsHTML,
		}
	}
	return &rec, nil
}
