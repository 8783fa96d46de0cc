package main

import (
	"fmt"

	"github.com/shelfmail/shelfmail/internal/config"
	"github.com/shelfmail/shelfmail/internal/database"
	"github.com/shelfmail/shelfmail/internal/email"
	"github.com/shelfmail/shelfmail/internal/logger"
	"github.com/shelfmail/shelfmail/internal/repository"
	"github.com/shelfmail/shelfmail/internal/secret"
	"github.com/shelfmail/shelfmail/internal/service"
	"github.com/shelfmail/shelfmail/internal/settings"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.Postgres
	resolver  *settings.Resolver
	tester    *email.ConnectionTester
	reminders *service.ReminderService
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	box, err := secret.NewBox(cfg.Security.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}
	if !box.Ready() {
		log.Warn().Msg("no master key configured, sealed tenant secrets cannot be opened")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Msg("connected to PostgreSQL")

	loanRepo := repository.NewLoanRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	resolver := settings.NewResolver(settingsRepo, box, log)
	gmailTransport := email.NewGmailTransport(cfg.Gmail.TokenURL, cfg.Gmail.Endpoint)
	smtpTransport := email.NewSMTPTransport(cfg.SMTP.DialTimeout)

	dispatcher := email.NewDispatcher(resolver, gmailTransport, smtpTransport, log)
	tester := email.NewConnectionTester(gmailTransport, smtpTransport, cfg.Reminder.AppName, log)
	reminders := service.NewReminderService(loanRepo, resolver, dispatcher, cfg.Reminder.ThrottleWindow, log)

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		resolver:  resolver,
		tester:    tester,
		reminders: reminders,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close database")
	}
}
