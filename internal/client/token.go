package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/apperr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenClient obtains access tokens from a partner's Authenticate endpoint
// with the client credentials grant. Every call performs a fresh exchange.
type TokenClient struct {
	HTTPClient *http.Client
}

// NewTokenClient returns a token client using httpClient, or the default
// client when nil.
func NewTokenClient(httpClient *http.Client) *TokenClient {
	return &TokenClient{HTTPClient: httpClient}
}

// Token exchanges username and password for an access token at endpoint.
func (c *TokenClient) Token(ctx context.Context, endpoint, username, password string) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     username,
		ClientSecret: password,
		TokenURL:     endpoint,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	hc := http.Client{}
	if c.HTTPClient != nil {
		hc = *c.HTTPClient
	}
	hc.Transport = requireOK{next: hc.Transport}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &hc)

	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.KindState, err, "failed to obtain access token from %s", endpoint)
	}
	if tok.AccessToken == "" {
		return "", apperr.State("no access token returned by %s", endpoint)
	}

	log.Ctx(ctx).Debug().Str("endpoint", endpoint).Msg("Obtained access token")
	return tok.AccessToken, nil
}

// requireOK fails every response other than 200. The oauth2 package accepts
// any 2xx from a token endpoint.
type requireOK struct {
	next http.RoundTripper
}

func (t requireOK) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("token endpoint returned %s", resp.Status)
	}
	return resp, nil
}
