package email

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// BuildMIME assembles a single-part HTML envelope. Header lines and body are
// joined with "\n".
func BuildMIME(from string, msg Message) string {
	return strings.Join([]string{
		"To: " + msg.To,
		"From: " + from,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		msg.HTMLBody,
	}, "\n")
}

// EncodeRaw base64url-encodes a MIME envelope without padding, the form the
// Gmail API expects in Message.Raw.
func EncodeRaw(mime string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(mime))
}

// formatAddress renders "Name <addr>" or the bare address when name is empty.
func formatAddress(name, addr string) string {
	if strings.TrimSpace(name) == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
