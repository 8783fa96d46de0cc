package email

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// Error classes reported by Diagnose.
const (
	ErrClassAuth             = "auth"
	ErrClassTLS              = "tls"
	ErrClassDial             = "dial"
	ErrClassTimeout          = "timeout"
	ErrClassRateLimited      = "rate_limited"
	ErrClassInvalidRecipient = "invalid_recipient"
	ErrClassRejected         = "rejected"
	ErrClassUnknown          = "unknown"
)

// Diagnosis describes a delivery failure for logs and metrics.
type Diagnosis struct {
	Class     string
	Temporary bool
}

// Diagnose classifies an SMTP or mail API error.
func Diagnose(err error) Diagnosis {
	if err == nil {
		return Diagnosis{Class: ErrClassUnknown}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Diagnosis{Class: ErrClassTimeout, Temporary: true}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Diagnosis{Class: ErrClassTimeout, Temporary: true}
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return Diagnosis{Class: ErrClassAuth}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return Diagnosis{Class: ErrClassAuth}
		case gerr.Code == http.StatusTooManyRequests:
			return Diagnosis{Class: ErrClassRateLimited, Temporary: true}
		case gerr.Code >= 500:
			return Diagnosis{Class: ErrClassRejected, Temporary: true}
		default:
			return Diagnosis{Class: ErrClassRejected}
		}
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"):
		return Diagnosis{Class: ErrClassTimeout, Temporary: true}
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "dial tcp"):
		return Diagnosis{Class: ErrClassDial, Temporary: true}
	case strings.Contains(s, "x509:"),
		strings.Contains(s, "tls") && (strings.Contains(s, "handshake") || strings.Contains(s, "certificate")):
		return Diagnosis{Class: ErrClassTLS}
	case strings.Contains(s, "535"),
		strings.Contains(s, "5.7.8"),
		strings.Contains(s, "username and password not accepted"),
		strings.Contains(s, "auth") && strings.Contains(s, "failed"):
		return Diagnosis{Class: ErrClassAuth}
	case strings.Contains(s, "4.7.0"),
		strings.Contains(s, "rate limit"),
		strings.Contains(s, "try again later"),
		strings.Contains(s, "421"),
		strings.Contains(s, "451"):
		return Diagnosis{Class: ErrClassRateLimited, Temporary: true}
	case strings.Contains(s, "5.1.1"),
		strings.Contains(s, "user unknown"),
		strings.Contains(s, "mailbox not found"):
		return Diagnosis{Class: ErrClassInvalidRecipient}
	case strings.Contains(s, "5.7.1"),
		strings.Contains(s, "rejected"),
		strings.Contains(s, "policy"):
		return Diagnosis{Class: ErrClassRejected}
	}
	return Diagnosis{Class: ErrClassUnknown}
}
