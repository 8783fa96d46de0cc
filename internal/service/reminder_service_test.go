package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmail/shelfmail/internal/email"
	"github.com/shelfmail/shelfmail/internal/logger"
	"github.com/shelfmail/shelfmail/internal/model"
)

// memLoans mimics the SQL store: FindDue filters, UpdateReminderState mutates.
type memLoans struct {
	loans     []*model.Loan
	findErr   error
	updateErr error
	updates   int
}

func (m *memLoans) FindDue(ctx context.Context, now time.Time) ([]*model.Loan, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*model.Loan
	for _, l := range m.loans {
		if l.ReturnedAt == nil && !l.DueAt.After(now) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLoans) UpdateReminderState(ctx context.Context, loanID uuid.UUID, sentAt time.Time) error {
	m.updates++
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, l := range m.loans {
		if l.ID == loanID {
			t := sentAt
			l.LastReminderSentAt = &t
			l.ReminderStage++
			return nil
		}
	}
	return errors.New("not found")
}

type mapResolver map[uuid.UUID]*model.TenantMailSettings

func (m mapResolver) Resolve(ctx context.Context, tenantID uuid.UUID) (*model.TenantMailSettings, error) {
	return m[tenantID], nil
}

type recordingSMTP struct {
	msgs []email.Message
	err  error
}

func (r *recordingSMTP) Send(ctx context.Context, creds model.SMTPSettings, msg email.Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingSMTP) Verify(ctx context.Context, creds model.SMTPSettings) error { return nil }

type noAPI struct{}

func (noAPI) Send(ctx context.Context, creds model.APISettings, msg email.Message) error {
	return errors.New("api transport should not be used")
}

type stubDispatcher struct {
	ok    bool
	calls int
}

func (s *stubDispatcher) Send(ctx context.Context, tenantID uuid.UUID, msg email.Message) bool {
	s.calls++
	return s.ok
}

var scanTime = time.Date(2026, 4, 14, 8, 0, 0, 0, time.UTC)

func overdueLoan(tenant uuid.UUID) *model.Loan {
	userID, bookID := uuid.New(), uuid.New()
	return &model.Loan{
		ID:         uuid.New(),
		LibraryID:  tenant,
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: scanTime.Add(-15 * 24 * time.Hour),
		DueAt:      scanTime.Add(-24 * time.Hour),
		User:       &model.User{ID: userID, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"},
		Book:       &model.Book{ID: bookID, Title: "Moby Dick", Author: "Herman Melville", Publisher: "Harper"},
	}
}

func configuredSMTP(tenant uuid.UUID) *model.TenantMailSettings {
	return &model.TenantMailSettings{
		TenantID: tenant,
		Provider: model.ProviderSMTP,
		SMTP:     model.SMTPSettings{Host: "smtp.example.com", Port: 587, Username: "library@example.com", Password: "pw"},
	}
}

func newScanner(loans LoanStore, settings email.SettingsResolver, d Dispatcher, at time.Time) *ReminderService {
	return NewReminderService(loans, settings, d, 24*time.Hour, logger.Nop()).
		WithClock(func() time.Time { return at })
}

func TestScan_ThrottleSkipsRecentReminder(t *testing.T) {
	tenant := uuid.New()
	loan := overdueLoan(tenant)
	sent := scanTime.Add(-time.Hour)
	loan.LastReminderSentAt = &sent
	loan.ReminderStage = 1
	store := &memLoans{loans: []*model.Loan{loan}}
	d := &stubDispatcher{ok: true}

	res, err := newScanner(store, mapResolver{}, d, scanTime).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ScanResult{Due: 1, Throttled: 1}, res)
	assert.Zero(t, d.calls)
	assert.Zero(t, store.updates)
	assert.Equal(t, 1, loan.ReminderStage)
}

func TestScan_ThrottleWindowElapsed(t *testing.T) {
	for name, lastSent := range map[string]*time.Time{
		"25h ago": ptr(scanTime.Add(-25 * time.Hour)),
		"never":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			loan := overdueLoan(uuid.New())
			loan.LastReminderSentAt = lastSent
			store := &memLoans{loans: []*model.Loan{loan}}
			d := &stubDispatcher{ok: true}

			res, err := newScanner(store, mapResolver{}, d, scanTime).Scan(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 1, d.calls)
			assert.Equal(t, 1, res.Sent)
		})
	}
}

func TestScan_EndToEndSMTPSuccess(t *testing.T) {
	tenant := uuid.New()
	loan := overdueLoan(tenant)
	store := &memLoans{loans: []*model.Loan{loan}}
	settings := mapResolver{tenant: configuredSMTP(tenant)}
	smtp := &recordingSMTP{}
	dispatcher := email.NewDispatcher(settings, noAPI{}, smtp, logger.Nop())

	res, err := newScanner(store, settings, dispatcher, scanTime).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ScanResult{Due: 1, Sent: 1}, res)
	require.Len(t, smtp.msgs, 1)
	assert.Equal(t, "ada@example.com", smtp.msgs[0].To)
	assert.Equal(t, "Overdue Book Reminder: Moby Dick", smtp.msgs[0].Subject)
	assert.Contains(t, smtp.msgs[0].HTMLBody, "Dear Ada Lovelace,<br>")
	assert.Contains(t, smtp.msgs[0].HTMLBody, "1 day(s) overdue")

	assert.Equal(t, 1, loan.ReminderStage)
	require.NotNil(t, loan.LastReminderSentAt)
	assert.True(t, loan.LastReminderSentAt.Equal(scanTime))
}

func TestScan_EndToEndSMTPFailureThenRetry(t *testing.T) {
	tenant := uuid.New()
	loan := overdueLoan(tenant)
	store := &memLoans{loans: []*model.Loan{loan}}
	settings := mapResolver{tenant: configuredSMTP(tenant)}
	smtp := &recordingSMTP{err: errors.New("dial tcp 192.0.2.1:587: connect: connection refused")}
	dispatcher := email.NewDispatcher(settings, noAPI{}, smtp, logger.Nop())

	res, err := newScanner(store, settings, dispatcher, scanTime).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ScanResult{Due: 1, Failed: 1}, res)
	assert.Zero(t, loan.ReminderStage)
	assert.Nil(t, loan.LastReminderSentAt)
	assert.Zero(t, store.updates)

	smtp.err = nil
	later := scanTime.Add(25 * time.Hour)
	res, err = newScanner(store, settings, dispatcher, later).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Sent)
	assert.Len(t, smtp.msgs, 2)
	assert.Equal(t, 1, loan.ReminderStage)
	require.NotNil(t, loan.LastReminderSentAt)
	assert.True(t, loan.LastReminderSentAt.Equal(later))
}

func TestScan_RepeatedTicksSendOncePerWindow(t *testing.T) {
	tenant := uuid.New()
	loan := overdueLoan(tenant)
	store := &memLoans{loans: []*model.Loan{loan}}
	d := &stubDispatcher{ok: true}

	for _, at := range []time.Time{scanTime, scanTime.Add(time.Hour), scanTime.Add(23 * time.Hour), scanTime.Add(24 * time.Hour)} {
		_, err := newScanner(store, mapResolver{}, d, at).Scan(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 2, d.calls)
	assert.Equal(t, 2, loan.ReminderStage)
}

func TestScan_CustomTemplate(t *testing.T) {
	tenant := uuid.New()
	loan := overdueLoan(tenant)
	loan.DueAt = scanTime.Add(-(3*24 + 2) * time.Hour)
	store := &memLoans{loans: []*model.Loan{loan}}

	settings := configuredSMTP(tenant)
	settings.ReminderTemplate = &model.ReminderTemplate{
		Subject: "{book} is {days_late} days late",
		Body:    "<p>Hi {user}, {book} by {author} was due {date}.</p>",
		IsHTML:  true,
	}
	resolver := mapResolver{tenant: settings}
	smtp := &recordingSMTP{}
	dispatcher := email.NewDispatcher(resolver, noAPI{}, smtp, logger.Nop())

	_, err := newScanner(store, resolver, dispatcher, scanTime).Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, smtp.msgs, 1)
	assert.Equal(t, "Moby Dick is 4 days late", smtp.msgs[0].Subject)
	assert.Equal(t, "<p>Hi Ada Lovelace, Moby Dick by Herman Melville was due 2026-04-11.</p>", smtp.msgs[0].HTMLBody)
}

func TestScan_ReturnedAndFutureLoansIgnored(t *testing.T) {
	tenant := uuid.New()
	returned := overdueLoan(tenant)
	returned.ReturnedAt = ptr(scanTime.Add(-time.Hour))
	future := overdueLoan(tenant)
	future.DueAt = scanTime.Add(time.Hour)
	store := &memLoans{loans: []*model.Loan{returned, future}}
	d := &stubDispatcher{ok: true}

	res, err := newScanner(store, mapResolver{}, d, scanTime).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ScanResult{}, res)
	assert.Zero(t, d.calls)
}

func TestScan_MissingRecipientSkipped(t *testing.T) {
	loan := overdueLoan(uuid.New())
	loan.User.Email = ""
	store := &memLoans{loans: []*model.Loan{loan}}
	d := &stubDispatcher{ok: true}

	res, err := newScanner(store, mapResolver{}, d, scanTime).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ScanResult{Due: 1, Skipped: 1}, res)
	assert.Zero(t, d.calls)
}

func TestScan_UnconfiguredTenantLeavesLoanUntouched(t *testing.T) {
	tenant := uuid.New()
	loan := overdueLoan(tenant)
	store := &memLoans{loans: []*model.Loan{loan}}
	resolver := mapResolver{}
	smtp := &recordingSMTP{}
	dispatcher := email.NewDispatcher(resolver, noAPI{}, smtp, logger.Nop())

	res, err := newScanner(store, resolver, dispatcher, scanTime).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, smtp.msgs)
	assert.Zero(t, store.updates)
}

func TestScan_FindError(t *testing.T) {
	store := &memLoans{findErr: errors.New("db down")}

	_, err := newScanner(store, mapResolver{}, &stubDispatcher{}, scanTime).Scan(context.Background())
	assert.Error(t, err)
}

func TestScan_UpdateErrorStillCountsSent(t *testing.T) {
	loan := overdueLoan(uuid.New())
	store := &memLoans{loans: []*model.Loan{loan}, updateErr: errors.New("deadlock")}
	d := &stubDispatcher{ok: true}

	res, err := newScanner(store, mapResolver{}, d, scanTime).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, store.updates)
}

func TestScan_StopsOnCancelledContext(t *testing.T) {
	store := &memLoans{loans: []*model.Loan{overdueLoan(uuid.New()), overdueLoan(uuid.New())}}
	d := &stubDispatcher{ok: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newScanner(store, mapResolver{}, d, scanTime).Scan(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Due)
	assert.Zero(t, d.calls)
}

func ptr(t time.Time) *time.Time { return &t }
