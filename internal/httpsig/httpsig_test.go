package httpsig

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pcfhub/internal/apperr"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func staticKeys(keyID string, pub *ecdsa.PublicKey) KeyResolver {
	return KeyResolverFunc(func(_ context.Context, id string) (*ecdsa.PublicKey, error) {
		if id != keyID {
			return nil, errors.New("unknown key")
		}
		return pub, nil
	})
}

func signedRequest(t *testing.T, signer *Signer, method, target string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, signer.Sign(req, body))
	return req
}

func TestSignAndVerify(t *testing.T) {
	key := newKey(t)
	signer := NewSigner(key, "kid-1")
	verifier := NewVerifier(staticKeys("kid-1", &key.PublicKey), 5*time.Minute)

	t.Run("with body", func(t *testing.T) {
		body := []byte(`{"type":"org.wbcsd.pathfinder.ProductFootprint.Published.v1"}`)
		req := signedRequest(t, signer, http.MethodPost, "https://node.example.com/2/events", body)

		require.Equal(t, ContentDigest(body), req.Header.Get(HeaderContentDigest))
		require.Contains(t, req.Header.Get(HeaderSignatureInput), `"content-digest"`)
		require.Contains(t, req.Header.Get(HeaderSignatureInput), `alg="ecdsa-p256-sha256"`)
		require.True(t, strings.HasPrefix(req.Header.Get(HeaderSignature), "sig1=:"))

		require.NoError(t, verifier.Verify(context.Background(), req, body))
	})

	t.Run("without body", func(t *testing.T) {
		req := signedRequest(t, signer, http.MethodGet, "https://node.example.com/2/footprints", nil)

		require.Empty(t, req.Header.Get(HeaderContentDigest))
		require.NotContains(t, req.Header.Get(HeaderSignatureInput), "content-digest")
		require.NoError(t, verifier.Verify(context.Background(), req, nil))
	})
}

func TestVerifyRejects(t *testing.T) {
	key := newKey(t)
	signer := NewSigner(key, "kid-1")
	verifier := NewVerifier(staticKeys("kid-1", &key.PublicKey), 5*time.Minute)
	body := []byte(`{"specversion":"1.0"}`)

	tests := []struct {
		name   string
		mutate func(req *http.Request) []byte
	}{
		{
			name: "tampered body",
			mutate: func(req *http.Request) []byte {
				return []byte(`{"specversion":"2.0"}`)
			},
		},
		{
			name: "tampered digest and body",
			mutate: func(req *http.Request) []byte {
				tampered := []byte(`{"specversion":"2.0"}`)
				req.Header.Set(HeaderContentDigest, ContentDigest(tampered))
				return tampered
			},
		},
		{
			name: "different path",
			mutate: func(req *http.Request) []byte {
				req.URL.Path = "/2/other"
				return body
			},
		},
		{
			name: "different method",
			mutate: func(req *http.Request) []byte {
				req.Method = http.MethodPut
				return body
			},
		},
		{
			name: "unknown key",
			mutate: func(req *http.Request) []byte {
				req.Header.Set(HeaderSignatureInput, strings.Replace(req.Header.Get(HeaderSignatureInput), "kid-1", "kid-2", 1))
				return body
			},
		},
		{
			name: "missing signature",
			mutate: func(req *http.Request) []byte {
				req.Header.Del(HeaderSignature)
				return body
			},
		},
		{
			name: "garbage signature",
			mutate: func(req *http.Request) []byte {
				req.Header.Set(HeaderSignature, "sig1=:bm90IGEgc2lnbmF0dXJl:")
				return body
			},
		},
		{
			name: "malformed input",
			mutate: func(req *http.Request) []byte {
				req.Header.Set(HeaderSignatureInput, "sig1")
				return body
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := signedRequest(t, signer, http.MethodPost, "https://node.example.com/2/events", body)
			received := tt.mutate(req)

			err := verifier.Verify(context.Background(), req, received)
			require.Error(t, err)
			require.True(t, apperr.Is(err, apperr.KindAuthorization), "got %v", err)
		})
	}
}

func TestVerifyWrongKey(t *testing.T) {
	signer := NewSigner(newKey(t), "kid-1")
	other := newKey(t)
	verifier := NewVerifier(staticKeys("kid-1", &other.PublicKey), 0)

	req := signedRequest(t, signer, http.MethodPost, "https://node.example.com/2/events", []byte("{}"))
	err := verifier.Verify(context.Background(), req, []byte("{}"))
	require.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestVerifyUnsignedAccepted(t *testing.T) {
	verifier := NewVerifier(KeyResolverFunc(func(context.Context, string) (*ecdsa.PublicKey, error) {
		t.Fatal("resolver must not be called for unsigned requests")
		return nil, nil
	}), time.Minute)

	req := httptest.NewRequest(http.MethodPost, "https://node.example.com/2/events", strings.NewReader("{}"))
	require.NoError(t, verifier.Verify(context.Background(), req, []byte("{}")))
}

func TestVerifyExpired(t *testing.T) {
	key := newKey(t)
	signer := NewSigner(key, "kid-1")
	signer.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	verifier := NewVerifier(staticKeys("kid-1", &key.PublicKey), 5*time.Minute)

	req := signedRequest(t, signer, http.MethodGet, "https://node.example.com/2/footprints", nil)
	err := verifier.Verify(context.Background(), req, nil)
	require.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestVerifySkipsUnknownComponents(t *testing.T) {
	key := newKey(t)
	verifier := NewVerifier(staticKeys("kid-1", &key.PublicKey), 0)

	req := httptest.NewRequest(http.MethodGet, "https://node.example.com/2/footprints", nil)
	components := []string{"@method", "@target-uri", "@path"}
	params := signatureParams(components, time.Now().Unix(), "kid-1")
	sig, err := signP256(key, []byte(signatureBase(req, components, params)))
	require.NoError(t, err)

	req.Header.Set(HeaderSignatureInput, "sig1="+params)
	req.Header.Set(HeaderSignature, "sig1=:"+encode(sig)+":")
	require.NoError(t, verifier.Verify(context.Background(), req, nil))
}
