package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/apperr"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID         string // token subject: operator user or partner client ID
	OrganizationID uuid.UUID
	Roles          []string
}

type contextKey int

const identityContextKey contextKey = iota

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity stored by the middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

// Authorizer resolves the caller of a request.
type Authorizer interface {
	Authorize(r *http.Request) (*Identity, error)
}

// Claims are the claims of access tokens issued by this node.
type Claims struct {
	jwt.RegisteredClaims
	Org   string   `json:"org"`
	Roles []string `json:"roles"`
}

// JWTAuthorizer verifies bearer tokens signed by this node's key.
type JWTAuthorizer struct {
	keys   *KeyManager
	issuer string
}

// NewJWTAuthorizer returns an authorizer accepting tokens from issuer.
func NewJWTAuthorizer(keys *KeyManager, issuer string) *JWTAuthorizer {
	return &JWTAuthorizer{keys: keys, issuer: issuer}
}

// IssueToken creates a signed access token.
func (a *JWTAuthorizer) IssueToken(subject string, orgID uuid.UUID, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	return a.keys.SignJWT(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Org:   orgID.String(),
		Roles: roles,
	})
}

// Authorize verifies the bearer token of r.
func (a *JWTAuthorizer) Authorize(r *http.Request) (*Identity, error) {
	tokenString := extractBearerToken(r)
	if tokenString == "" {
		return nil, apperr.Authorization("missing bearer token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != a.keys.Kid() {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return a.keys.PublicKey(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("JWT verification failed")
		return nil, apperr.Authorization("invalid token")
	}

	orgID, err := uuid.Parse(claims.Org)
	if err != nil {
		return nil, apperr.Authorization("invalid org claim")
	}

	return &Identity{
		UserID:         claims.Subject,
		OrganizationID: orgID,
		Roles:          claims.Roles,
	}, nil
}

// Middleware authorizes every request and stores the identity in the
// context. Failures are passed to onError.
func Middleware(a Authorizer, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authorize(r)
			if err != nil {
				if !apperr.Is(err, apperr.KindAuthorization) {
					err = apperr.Wrap(apperr.KindAuthorization, err, "authorization failed")
				}
				onError(w, r, err)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			log.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("org_id", id.OrganizationID.String()).Str("subject", id.UserID)
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
