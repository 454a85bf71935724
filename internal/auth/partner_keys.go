package auth

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// JWKSPath is where every node publishes its key set.
const JWKSPath = "/.well-known/jwks.json"

// PartnerKeys resolves the signing key of the authenticated caller. It first
// checks keys recorded for the caller's organization and its data sources,
// then the key sets published by the caller's nodes. The HTTP client is
// expected to cache key sets.
type PartnerKeys struct {
	store      store.Store
	httpClient *http.Client
}

// NewPartnerKeys returns a key resolver for httpsig verification.
func NewPartnerKeys(s store.Store, httpClient *http.Client) *PartnerKeys {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PartnerKeys{store: s, httpClient: httpClient}
}

// ResolveKey finds the key with keyID for the identity in ctx.
func (p *PartnerKeys) ResolveKey(ctx context.Context, keyID string) (*ecdsa.PublicKey, error) {
	id := IdentityFromContext(ctx)
	if id == nil {
		return nil, fmt.Errorf("no caller identity to resolve key %s", keyID)
	}

	org, err := p.store.GetOrganization(ctx, id.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if key := matchPEM(org.PublicKey, keyID); key != nil {
		return key, nil
	}

	sources, err := p.store.ListDataSourcesByOrganization(ctx, org.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	for _, ds := range sources {
		if key := matchPEM(ds.PublicKey, keyID); key != nil {
			return key, nil
		}
	}

	for _, ds := range sources {
		jwksURL, ok := jwksURLFor(ds)
		if !ok {
			continue
		}
		key, err := p.fetchKey(ctx, jwksURL, keyID)
		if err != nil {
			log.Ctx(ctx).Debug().Err(err).Str("jwks_url", jwksURL).Msg("Key not found in partner key set")
			continue
		}
		return key, nil
	}

	return nil, fmt.Errorf("kid not found for organization %s: %s", org.OrgID, keyID)
}

func (p *PartnerKeys) fetchKey(ctx context.Context, jwksURL, keyID string) (*ecdsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS request failed: %s", resp.Status)
	}

	var jwks JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	for _, jwk := range jwks.Keys {
		if jwk.Kid != keyID {
			continue
		}
		return jwk.PublicKey()
	}
	return nil, fmt.Errorf("kid not found in JWKS: %s", keyID)
}

func matchPEM(pemStr, keyID string) *ecdsa.PublicKey {
	if pemStr == "" {
		return nil
	}
	key, err := ParsePublicKeyPEM(pemStr)
	if err != nil {
		return nil
	}
	if kid, err := Fingerprint(key); err != nil || kid != keyID {
		return nil
	}
	return key
}

// jwksURLFor derives the key set location from the origin of the data
// source's Authenticate endpoint.
func jwksURLFor(ds *models.DataSource) (string, bool) {
	endpoint, ok := ds.Endpoint(models.EndpointAuthenticate)
	if !ok {
		return "", false
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: JWKSPath}).String(), true
}
