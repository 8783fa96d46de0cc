package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmail/shelfmail/internal/model"
)

type gmailStub struct {
	tokenCalls   int
	refreshToken string
	authHeader   string
	raw          string
	sendStatus   int
}

func (s *gmailStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls++
		require.NoError(t, r.ParseForm())
		s.refreshToken = r.PostForm.Get("refresh_token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		s.authHeader = r.Header.Get("Authorization")
		var body struct {
			Raw string `json:"raw"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.raw = body.Raw

		w.Header().Set("Content-Type", "application/json")
		if s.sendStatus != 0 {
			w.WriteHeader(s.sendStatus)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"insufficient permissions"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"msg-1","threadId":"thread-1"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testAPICreds() model.APISettings {
	return model.APISettings{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		RefreshToken:  "refresh-abc",
		SenderAddress: "library@example.com",
		SenderName:    "City Library",
	}
}

func TestGmailTransport_Send(t *testing.T) {
	stub := &gmailStub{}
	srv := stub.server(t)
	g := NewGmailTransport(srv.URL+"/token", srv.URL+"/")

	err := g.Send(context.Background(), testAPICreds(), Message{
		To:       "reader@example.com",
		Subject:  "Overdue Book Reminder: Dune",
		HTMLBody: "<p>Please return Dune</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stub.tokenCalls)
	assert.Equal(t, "refresh-abc", stub.refreshToken)
	assert.Equal(t, "Bearer access-123", stub.authHeader)

	assert.NotContains(t, stub.raw, "=")
	decoded, err := base64.RawURLEncoding.DecodeString(stub.raw)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "To: reader@example.com\n")
	assert.Contains(t, string(decoded), "From: City Library <library@example.com>\n")
	assert.Contains(t, string(decoded), "Content-Type: text/html; charset=utf-8\n\n<p>Please return Dune</p>")
}

func TestGmailTransport_ProviderRejection(t *testing.T) {
	stub := &gmailStub{sendStatus: http.StatusForbidden}
	srv := stub.server(t)
	g := NewGmailTransport(srv.URL+"/token", srv.URL+"/")

	err := g.Send(context.Background(), testAPICreds(), Message{To: "reader@example.com"})
	require.Error(t, err)
	assert.Equal(t, ErrClassAuth, Diagnose(err).Class)
}

func TestGmailTransport_RequiresSender(t *testing.T) {
	g := NewGmailTransport("", "")
	creds := testAPICreds()
	creds.SenderAddress = ""

	assert.Error(t, g.Send(context.Background(), creds, Message{To: "reader@example.com"}))
}
