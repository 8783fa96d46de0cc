package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmail/shelfmail/internal/email"
	"github.com/shelfmail/shelfmail/internal/logger"
	"github.com/shelfmail/shelfmail/internal/metrics"
	"github.com/shelfmail/shelfmail/internal/model"
	"github.com/shelfmail/shelfmail/internal/render"
)

// DefaultThrottleWindow is the minimum gap between two reminders for one loan.
const DefaultThrottleWindow = 24 * time.Hour

// LoanStore is the part of the store the scanner reads and writes.
type LoanStore interface {
	FindDue(ctx context.Context, now time.Time) ([]*model.Loan, error)
	UpdateReminderState(ctx context.Context, loanID uuid.UUID, sentAt time.Time) error
}

// Dispatcher sends one message for a tenant and reports acceptance.
type Dispatcher interface {
	Send(ctx context.Context, tenantID uuid.UUID, msg email.Message) bool
}

// ScanResult summarises one scan.
type ScanResult struct {
	Due       int `json:"due"`
	Throttled int `json:"throttled"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ReminderService finds overdue loans and emails a reminder for each one,
// at most once per throttle window. It keeps no state between scans.
type ReminderService struct {
	loans      LoanStore
	settings   email.SettingsResolver
	dispatcher Dispatcher
	throttle   time.Duration
	now        func() time.Time
	log        *logger.Logger
}

// NewReminderService creates a ReminderService. A non-positive throttle uses
// DefaultThrottleWindow.
func NewReminderService(
	loans LoanStore,
	settings email.SettingsResolver,
	dispatcher Dispatcher,
	throttle time.Duration,
	log *logger.Logger,
) *ReminderService {
	if throttle <= 0 {
		throttle = DefaultThrottleWindow
	}
	return &ReminderService{
		loans:      loans,
		settings:   settings,
		dispatcher: dispatcher,
		throttle:   throttle,
		now:        time.Now,
		log:        log.WithComponent("overdue_scanner"),
	}
}

// WithClock replaces the time source, for tests.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	s.now = now
	return s
}

// Scan runs one pass over overdue loans. Loans are handled one at a time and
// a loan's reminder state changes only after its dispatch succeeded. The
// returned error covers only the initial query; per-loan failures are counted.
func (s *ReminderService) Scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	now := s.now().UTC()

	var result ScanResult
	loans, err := s.loans.FindDue(ctx, now)
	if err != nil {
		return result, fmt.Errorf("find due loans: %w", err)
	}
	result.Due = len(loans)

	templates := make(map[uuid.UUID]*model.ReminderTemplate)

	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			s.log.Warn().Err(err).Msg("scan interrupted, remaining loans left for the next run")
			break
		}

		switch s.process(ctx, loan, now, templates) {
		case outcomeThrottled:
			result.Throttled++
		case outcomeSent:
			result.Sent++
		case outcomeFailed:
			result.Failed++
		case outcomeSkipped:
			result.Skipped++
		}
	}

	metrics.AddReminders("sent", result.Sent)
	metrics.AddReminders("throttled", result.Throttled)
	metrics.AddReminders("failed", result.Failed)
	metrics.AddReminders("skipped", result.Skipped)
	metrics.ObserveScan(time.Since(start).Seconds())

	s.log.Info().
		Int("due", result.Due).
		Int("throttled", result.Throttled).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Dur("duration", time.Since(start)).
		Msg("overdue scan finished")

	return result, nil
}

type outcome int

const (
	outcomeThrottled outcome = iota
	outcomeSent
	outcomeFailed
	outcomeSkipped
)

func (s *ReminderService) process(ctx context.Context, loan *model.Loan, now time.Time, templates map[uuid.UUID]*model.ReminderTemplate) outcome {
	log := s.log.WithLoanID(loan.ID.String())

	if !loan.IsOverdue(now) {
		return outcomeSkipped
	}
	if loan.RemindedWithin(now, s.throttle) {
		return outcomeThrottled
	}
	if loan.User == nil || strings.TrimSpace(loan.User.Email) == "" {
		log.Warn().Msg("loan has no recipient address, skipping")
		return outcomeSkipped
	}

	tpl := s.template(ctx, loan.LibraryID, templates)
	subject, body := render.Reminder(tpl, render.OverdueVars(loan, now))

	msg := email.Message{
		To:       loan.User.Email,
		Subject:  subject,
		HTMLBody: body,
	}
	if !s.dispatcher.Send(ctx, loan.LibraryID, msg) {
		return outcomeFailed
	}

	// The mail is out; a failed write only means the loan may be reminded
	// again on the next run.
	if err := s.loans.UpdateReminderState(ctx, loan.ID, now); err != nil {
		log.Error().Err(err).Msg("reminder sent but loan state not updated")
		return outcomeSent
	}

	log.Info().
		Str("tenant_id", loan.LibraryID.String()).
		Int("reminder_stage", loan.ReminderStage+1).
		Msg("overdue reminder sent")
	return outcomeSent
}

// template resolves a tenant's reminder template once per scan.
func (s *ReminderService) template(ctx context.Context, tenantID uuid.UUID, memo map[uuid.UUID]*model.ReminderTemplate) *model.ReminderTemplate {
	if tpl, ok := memo[tenantID]; ok {
		return tpl
	}

	var tpl *model.ReminderTemplate
	settings, err := s.settings.Resolve(ctx, tenantID)
	if err != nil {
		s.log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("failed to load reminder template, using default")
	} else if settings != nil {
		tpl = settings.ReminderTemplate
	}

	memo[tenantID] = tpl
	return tpl
}
