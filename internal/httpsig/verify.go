package httpsig

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/apperr"
)

// KeyResolver finds the public key a partner signs with.
type KeyResolver interface {
	ResolveKey(ctx context.Context, keyID string) (*ecdsa.PublicKey, error)
}

// KeyResolverFunc adapts a function to KeyResolver.
type KeyResolverFunc func(ctx context.Context, keyID string) (*ecdsa.PublicKey, error)

func (f KeyResolverFunc) ResolveKey(ctx context.Context, keyID string) (*ecdsa.PublicKey, error) {
	return f(ctx, keyID)
}

// Verifier checks inbound signatures.
//
// Requests without any signature header are accepted so unsigned partners
// keep working. Once either header is present the full check applies and
// every failure is an AuthorizationError.
type Verifier struct {
	Keys   KeyResolver
	MaxAge time.Duration // zero disables the created timestamp check
	Now    func() time.Time
}

// NewVerifier returns a verifier resolving keys through keys.
func NewVerifier(keys KeyResolver, maxAge time.Duration) *Verifier {
	return &Verifier{Keys: keys, MaxAge: maxAge, Now: time.Now}
}

// Verify checks req against body, the exact bytes received.
func (v *Verifier) Verify(ctx context.Context, req *http.Request, body []byte) error {
	input := req.Header.Get(HeaderSignatureInput)
	signature := req.Header.Get(HeaderSignature)
	if input == "" && signature == "" {
		log.Ctx(ctx).Debug().Str("path", req.URL.Path).Msg("Accepting unsigned request")
		return nil
	}
	if input == "" || signature == "" {
		return apperr.Authorization("incomplete signature headers")
	}

	meta, err := parseSignatureInput(input)
	if err != nil {
		return err
	}
	if meta.alg != "" && meta.alg != Algorithm {
		return apperr.Authorization("unsupported signature algorithm %q", meta.alg)
	}
	if meta.keyID == "" {
		return apperr.Authorization("signature keyid is missing")
	}
	if v.MaxAge > 0 {
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		if age := now().Sub(time.Unix(meta.created, 0)); age > v.MaxAge || age < -v.MaxAge {
			return apperr.Authorization("signature created time is outside the accepted window")
		}
	}

	digest := req.Header.Get(HeaderContentDigest)
	if len(body) > 0 || digest != "" {
		if !slices.Contains(meta.components, "content-digest") {
			return apperr.Authorization("signature does not cover the content digest")
		}
		if subtle.ConstantTimeCompare([]byte(digest), []byte(ContentDigest(body))) != 1 {
			return apperr.Authorization("content digest does not match body")
		}
	}

	sig, err := parseSignature(signature, meta.label)
	if err != nil {
		return err
	}

	key, err := v.Keys.ResolveKey(ctx, meta.keyID)
	if err != nil {
		return apperr.Wrap(apperr.KindAuthorization, err, "unknown signing key %q", meta.keyID)
	}

	base := signatureBase(req, meta.components, meta.params)
	hash := sha256.Sum256([]byte(base))
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if !ecdsa.Verify(key, hash[:], r, s) {
		return apperr.Authorization("signature verification failed")
	}
	return nil
}

type signatureMeta struct {
	label      string
	params     string // raw inner list and parameters, as signed
	components []string
	created    int64
	keyID      string
	alg        string
}

// parseSignatureInput reads the first member of a Signature-Input header.
func parseSignatureInput(header string) (*signatureMeta, error) {
	name, value, ok := strings.Cut(strings.TrimSpace(firstMember(header)), "=")
	if !ok || !strings.HasPrefix(value, "(") {
		return nil, apperr.Authorization("malformed signature-input")
	}
	closing := strings.IndexByte(value, ')')
	if closing < 0 {
		return nil, apperr.Authorization("malformed signature-input")
	}

	meta := &signatureMeta{label: name, params: value}
	for _, c := range strings.Fields(value[1:closing]) {
		unq, err := strconv.Unquote(c)
		if err != nil {
			return nil, apperr.Authorization("malformed signature component %s", c)
		}
		meta.components = append(meta.components, unq)
	}

	for _, p := range strings.Split(value[closing+1:], ";") {
		k, val, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok {
			continue
		}
		switch k {
		case "created":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, apperr.Authorization("malformed signature created parameter")
			}
			meta.created = n
		case "keyid":
			meta.keyID = strings.Trim(val, `"`)
		case "alg":
			meta.alg = strings.Trim(val, `"`)
		}
	}
	return meta, nil
}

// firstMember returns the dictionary member before the first comma that is
// not inside a quoted string.
func firstMember(header string) string {
	quoted := false
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				return header[:i]
			}
		}
	}
	return header
}

// parseSignature returns the raw r||s bytes for label.
func parseSignature(header, label string) ([]byte, error) {
	for _, member := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(member), "=")
		if !ok || name != label {
			continue
		}
		value = strings.TrimSuffix(strings.TrimPrefix(value, ":"), ":")
		raw, err := base64.StdEncoding.DecodeString(value)
		if err != nil || len(raw) != 64 {
			return nil, apperr.Authorization("malformed signature value")
		}
		return raw, nil
	}
	return nil, apperr.Authorization("no signature for %q", label)
}
