package creds

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TwitchTokenURL is the Helix client-credentials endpoint.
const TwitchTokenURL = "https://id.twitch.tv/oauth2/token"

// ClientCredentialsSource fetches app tokens via the OAuth2
// client-credentials grant. Each Token call is a fresh exchange.
type ClientCredentialsSource struct {
	cfg    clientcredentials.Config
	client *http.Client
}

type SourceOption func(*ClientCredentialsSource)

// WithTokenURL overrides the token endpoint (tests).
func WithTokenURL(url string) SourceOption {
	return func(s *ClientCredentialsSource) { s.cfg.TokenURL = url }
}

// WithHTTPClient overrides the HTTP client used for the exchange.
func WithHTTPClient(c *http.Client) SourceOption {
	return func(s *ClientCredentialsSource) { s.client = c }
}

// NewTwitchSource builds a token source for the Twitch auth endpoint.
// Twitch expects the client id/secret in the POST body, not basic auth.
func NewTwitchSource(clientID, clientSecret string, opts ...SourceOption) *ClientCredentialsSource {
	s := &ClientCredentialsSource{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     TwitchTokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *ClientCredentialsSource) Token(ctx context.Context) (string, time.Time, error) {
	if s.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	}
	tok, err := s.cfg.Token(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	if tok.AccessToken == "" {
		return "", time.Time{}, errors.New("token response missing access_token")
	}
	return tok.AccessToken, tok.Expiry, nil
}
