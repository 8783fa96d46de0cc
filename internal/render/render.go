// Package render substitutes {placeholder} variables into reminder templates.
package render

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shelfmail/shelfmail/internal/model"
)

// DateLayout is the locale-independent calendar format used for {date} and {borrow_date}
const DateLayout = "2006-01-02"

// Placeholder names recognised by overdue reminders
const (
	VarUser       = "user"
	VarBook       = "book"
	VarAuthor     = "author"
	VarPublisher  = "publisher"
	VarDate       = "date"
	VarBorrowDate = "borrow_date"
	VarDaysLate   = "days_late"
)

// Render replaces every "{name}" in tpl with vars[name]. Placeholders missing
// from vars are left as literal text. Substitution is a single pass, so values
// containing braces are never expanded again.
func Render(tpl string, vars map[string]string) string {
	if tpl == "" || len(vars) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// TextToHTML converts line breaks in a plain-text body into <br> tags
func TextToHTML(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	return strings.ReplaceAll(body, "\n", "<br>")
}

// DaysLate returns the number of started days between due and now, at least 1
func DaysLate(due, now time.Time) int {
	elapsed := now.Sub(due)
	days := int(math.Ceil(elapsed.Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// OverdueVars builds the placeholder map for one overdue loan
func OverdueVars(loan *model.Loan, now time.Time) map[string]string {
	vars := map[string]string{
		VarDate:       loan.DueAt.UTC().Format(DateLayout),
		VarBorrowDate: loan.BorrowedAt.UTC().Format(DateLayout),
		VarDaysLate:   strconv.Itoa(DaysLate(loan.DueAt, now)),
		VarUser:       "",
		VarBook:       "",
		VarAuthor:     "",
		VarPublisher:  "",
	}
	if loan.User != nil {
		vars[VarUser] = loan.User.FullName()
	}
	if loan.Book != nil {
		vars[VarBook] = loan.Book.Title
		vars[VarAuthor] = loan.Book.Author
		vars[VarPublisher] = loan.Book.Publisher
	}
	return vars
}

// Reminder renders the subject and HTML body for an overdue loan. A nil
// template, or a blank field within it, falls back to the built-in default.
func Reminder(tpl *model.ReminderTemplate, vars map[string]string) (subject, htmlBody string) {
	subjectTpl := DefaultSubject
	bodyTpl := DefaultBody
	isHTML := false

	if tpl != nil {
		if strings.TrimSpace(tpl.Subject) != "" {
			subjectTpl = tpl.Subject
		}
		if strings.TrimSpace(tpl.Body) != "" {
			bodyTpl = tpl.Body
			isHTML = tpl.IsHTML
		}
	}

	subject = Render(subjectTpl, vars)
	htmlBody = Render(bodyTpl, vars)
	if !isHTML {
		htmlBody = TextToHTML(htmlBody)
	}
	return subject, htmlBody
}
