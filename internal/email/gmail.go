package email

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/shelfmail/shelfmail/internal/model"
)

// GmailTransport implements APISender using the Gmail API with an OAuth2
// refresh token. A new authenticated client is built for every send.
type GmailTransport struct {
	// TokenURL overrides google.Endpoint.TokenURL when set.
	TokenURL string
	// Endpoint overrides the Gmail API base URL when set.
	Endpoint string
	// HTTPClient is the base client used for the token exchange; nil means http.DefaultClient.
	HTTPClient *http.Client
}

var _ APISender = (*GmailTransport)(nil)

// NewGmailTransport creates a GmailTransport. Empty arguments keep Google's defaults.
func NewGmailTransport(tokenURL, endpoint string) *GmailTransport {
	return &GmailTransport{TokenURL: tokenURL, Endpoint: endpoint}
}

// Send exchanges the refresh token for an access token and submits msg as a
// raw MIME message from the authenticated user's own mailbox.
func (g *GmailTransport) Send(ctx context.Context, creds model.APISettings, msg Message) error {
	if creds.SenderAddress == "" {
		return fmt.Errorf("gmail: sender address is required")
	}

	svc, err := g.service(ctx, creds)
	if err != nil {
		return err
	}

	raw := EncodeRaw(BuildMIME(formatAddress(creds.SenderName, creds.SenderAddress), msg))

	_, err = svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail: failed to send email: %w", err)
	}

	return nil
}

func (g *GmailTransport) service(ctx context.Context, creds model.APISettings) (*gmail.Service, error) {
	endpoint := google.Endpoint
	if g.TokenURL != "" {
		endpoint.TokenURL = g.TokenURL
	}

	oauthCfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}

	if g.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
	}
	client := oauthCfg.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if g.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}
	return svc, nil
}
