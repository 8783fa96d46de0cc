package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmail/shelfmail/internal/database"
	"github.com/shelfmail/shelfmail/internal/model"
)

// LoanRepository reads open loans and records reminder delivery
type LoanRepository struct {
	db *database.Postgres
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(db *database.Postgres) *LoanRepository {
	return &LoanRepository{db: db}
}

// FindDue returns open loans due at or before now, with user and book loaded
func (r *LoanRepository) FindDue(ctx context.Context, now time.Time) ([]*model.Loan, error) {
	query := `
		SELECT l.id, l.library_id, l.user_id, l.book_id, l.borrowed_at, l.due_at,
		       l.returned_at, l.last_reminder_sent_at, l.reminder_stage,
		       u.email, u.first_name, COALESCE(u.last_name, ''),
		       b.title, COALESCE(b.author, ''), COALESCE(b.publisher, '')
		FROM loans l
		JOIN users u ON u.id = l.user_id
		JOIN books b ON b.id = l.book_id
		WHERE l.returned_at IS NULL AND l.due_at <= $1
		ORDER BY l.due_at ASC, l.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due loans: %w", err)
	}
	defer rows.Close()

	var loans []*model.Loan
	for rows.Next() {
		loan := &model.Loan{User: &model.User{}, Book: &model.Book{}}
		if err := rows.Scan(
			&loan.ID,
			&loan.LibraryID,
			&loan.UserID,
			&loan.BookID,
			&loan.BorrowedAt,
			&loan.DueAt,
			&loan.ReturnedAt,
			&loan.LastReminderSentAt,
			&loan.ReminderStage,
			&loan.User.Email,
			&loan.User.FirstName,
			&loan.User.LastName,
			&loan.Book.Title,
			&loan.Book.Author,
			&loan.Book.Publisher,
		); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loan.User.ID = loan.UserID
		loan.Book.ID = loan.BookID
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due loans: %w", err)
	}
	return loans, nil
}

// UpdateReminderState stamps the reminder time and increments the stage by one
func (r *LoanRepository) UpdateReminderState(ctx context.Context, loanID uuid.UUID, sentAt time.Time) error {
	if loanID == uuid.Nil {
		return ErrInvalidInput
	}
	query := `
		UPDATE loans
		SET last_reminder_sent_at = $1, reminder_stage = reminder_stage + 1, updated_at = $1
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, sentAt, loanID)
	if err != nil {
		return fmt.Errorf("failed to update loan reminder state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update loan reminder state: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
