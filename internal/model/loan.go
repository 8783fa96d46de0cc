package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Loan represents a borrowed book; LibraryID is the owning tenant
type Loan struct {
	ID                 uuid.UUID  `json:"id"`
	LibraryID          uuid.UUID  `json:"libraryId"`
	UserID             uuid.UUID  `json:"userId"`
	BookID             uuid.UUID  `json:"bookId"`
	BorrowedAt         time.Time  `json:"borrowedAt"`
	DueAt              time.Time  `json:"dueAt"`
	ReturnedAt         *time.Time `json:"returnedAt,omitempty"`
	LastReminderSentAt *time.Time `json:"lastReminderSentAt,omitempty"`
	ReminderStage      int        `json:"reminderStage"`

	// Eager-loaded alongside the loan by the store
	User *User `json:"user,omitempty"`
	Book *Book `json:"book,omitempty"`
}

// IsReturned reports whether the loan is closed
func (l *Loan) IsReturned() bool {
	return l.ReturnedAt != nil
}

// IsOverdue reports whether the loan is open and due at or before now
func (l *Loan) IsOverdue(now time.Time) bool {
	return !l.IsReturned() && !l.DueAt.After(now)
}

// RemindedWithin reports whether a reminder was sent less than window ago
func (l *Loan) RemindedWithin(now time.Time, window time.Duration) bool {
	if l.LastReminderSentAt == nil {
		return false
	}
	return now.Sub(*l.LastReminderSentAt) < window
}

// User is a library member
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName,omitempty"`
}

// FullName joins first and last name, dropping the surname cleanly when absent
func (u *User) FullName() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	if last == "" {
		return first
	}
	return strings.TrimSpace(first + " " + last)
}

// Book is a catalogue entry
type Book struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Publisher string    `json:"publisher"`
}
