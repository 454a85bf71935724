package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// NewPartnerClient creates credentials for orgID. The returned secret is
// shown once; only its bcrypt hash is stored.
func NewPartnerClient(orgID uuid.UUID) (*models.PartnerClient, string, error) {
	clientID, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate client ID: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("failed to generate client secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash client secret: %w", err)
	}

	return &models.PartnerClient{
		ClientID:   clientID.String(),
		OrgID:      orgID,
		SecretHash: hash,
		CreatedAt:  time.Now().UTC(),
	}, secret, nil
}

// compared against when the client is unknown so both paths cost a bcrypt
// comparison
var unknownClientHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-client"), bcrypt.DefaultCost)

// TokenEndpoint implements the client credentials grant for partner clients.
type TokenEndpoint struct {
	clients    store.PartnerClientStore
	authorizer *JWTAuthorizer
	ttl        time.Duration
}

// NewTokenEndpoint returns the handler for POST /auth/token.
func NewTokenEndpoint(clients store.PartnerClientStore, authorizer *JWTAuthorizer, ttl time.Duration) *TokenEndpoint {
	return &TokenEndpoint{clients: clients, authorizer: authorizer, ttl: ttl}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (e *TokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeOAuth(w, http.StatusMethodNotAllowed, oauthError{Error: "invalid_request"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuth(w, http.StatusBadRequest, oauthError{Error: "invalid_request", ErrorDescription: "malformed form body"})
		return
	}
	if grant := r.PostForm.Get("grant_type"); grant != "client_credentials" {
		writeOAuth(w, http.StatusBadRequest, oauthError{Error: "unsupported_grant_type"})
		return
	}

	clientID, secret, ok := r.BasicAuth()
	if !ok {
		clientID, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}

	client, err := e.clients.GetPartnerClient(ctx, clientID)
	switch {
	case errors.Is(err, store.ErrPartnerClientNotFound):
		_ = bcrypt.CompareHashAndPassword(unknownClientHash, []byte(secret))
		e.rejectClient(w, r, clientID)
		return
	case err != nil:
		log.Ctx(ctx).Error().Err(err).Msg("Failed to load partner client")
		writeOAuth(w, http.StatusInternalServerError, oauthError{Error: "server_error"})
		return
	}
	if err := bcrypt.CompareHashAndPassword(client.SecretHash, []byte(secret)); err != nil {
		e.rejectClient(w, r, clientID)
		return
	}

	token, err := e.authorizer.IssueToken(client.ClientID, client.OrgID, []string{RolePartner}, e.ttl)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to issue token")
		writeOAuth(w, http.StatusInternalServerError, oauthError{Error: "server_error"})
		return
	}

	log.Ctx(ctx).Info().Str("client_id", client.ClientID).Str("org_id", client.OrgID.String()).Msg("Issued partner token")
	writeOAuth(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(e.ttl.Seconds()),
	})
}

func (e *TokenEndpoint) rejectClient(w http.ResponseWriter, r *http.Request, clientID string) {
	log.Ctx(r.Context()).Warn().Str("client_id", clientID).Msg("Rejected partner credentials")
	w.Header().Set("WWW-Authenticate", `Basic realm="pcfhub"`)
	writeOAuth(w, http.StatusUnauthorized, oauthError{Error: "invalid_client"})
}

func writeOAuth(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
