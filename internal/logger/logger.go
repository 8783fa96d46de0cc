package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with application-specific methods
type Logger struct {
	zerolog.Logger
}

// New creates a new Logger instance writing to stdout
func New(level string, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a Logger writing to w
func NewWithWriter(w io.Writer, level string, format string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "text" || format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	return &Logger{Logger: zerolog.New(w).With().Timestamp().Caller().Logger()}
}

// Nop returns a logger that discards everything, for tests
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithComponent returns a new logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
	}
}

// WithTenantID returns a new logger with the tenant ID attached
func (l *Logger) WithTenantID(tenantID string) *Logger {
	return &Logger{
		Logger: l.With().Str("tenant_id", tenantID).Logger(),
	}
}

// WithLoanID returns a new logger with the loan ID attached
func (l *Logger) WithLoanID(loanID string) *Logger {
	return &Logger{
		Logger: l.With().Str("loan_id", loanID).Logger(),
	}
}

// Delivery logs the outcome of one dispatch attempt
func (l *Logger) Delivery(provider, to string, ok bool, duration time.Duration) {
	event := l.Info()
	if !ok {
		event = l.Warn()
	}
	event.
		Str("provider", provider).
		Str("to", to).
		Bool("delivered", ok).
		Dur("duration", duration).
		Msg("email dispatch")
}

// HTTPRequest logs a request served by the ops endpoint
func (l *Logger) HTTPRequest(method, path string, statusCode int, duration time.Duration, requestID string) {
	l.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", statusCode).
		Dur("duration", duration).
		Str("request_id", requestID).
		Msg("HTTP request")
}
