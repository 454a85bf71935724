package httpsig

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"
)

// Signer adds signature headers to outbound requests.
type Signer struct {
	Key   *ecdsa.PrivateKey
	KeyID string
	Now   func() time.Time // defaults to time.Now
}

// NewSigner returns a signer for key, advertised under keyID.
func NewSigner(key *ecdsa.PrivateKey, keyID string) *Signer {
	return &Signer{Key: key, KeyID: keyID, Now: time.Now}
}

// Sign binds method, authority, path and, when body is not empty, its digest.
// body must be the exact bytes that will be sent.
func (s *Signer) Sign(req *http.Request, body []byte) error {
	components := []string{"@method", "@authority", "@path"}
	if len(body) > 0 {
		req.Header.Set(HeaderContentDigest, ContentDigest(body))
		components = append(components, "content-digest")
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	params := signatureParams(components, now().Unix(), s.KeyID)
	base := signatureBase(req, components, params)

	sig, err := signP256(s.Key, []byte(base))
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	req.Header.Set(HeaderSignatureInput, label+"="+params)
	req.Header.Set(HeaderSignature, label+"=:"+encode(sig)+":")
	return nil
}

// signP256 returns the fixed size r||s encoding.
func signP256(key *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	r, sv, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	sv.FillBytes(out[32:])
	return out, nil
}
