package render

// DefaultSubject is used when a tenant has no custom reminder subject.
const DefaultSubject = "Overdue Book Reminder: {book}"

// DefaultBody is the plain-text reminder used when a tenant has no custom body.
const DefaultBody = `Dear {user},

This is a reminder that the book "{book}" by {author}, borrowed on {borrow_date}, was due on {date}.
It is now {days_late} day(s) overdue.

Please return it to the library as soon as possible.

Thank you.`

// TestSubject and TestBody are sent by a connection test when no override is given.
const (
	TestSubject = "Test email from {app}"
	TestBody    = `<p>This is a test message from <strong>{app}</strong>.</p>
<p>If you received it, your email delivery settings are working.</p>`
)

// TestVars returns the placeholder map for a connection-test message
func TestVars(appName string) map[string]string {
	if appName == "" {
		appName = "Library"
	}
	return map[string]string{"app": appName}
}
