package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// KeyManager holds the node's ECDSA P-256 key. The same key signs access
// tokens, signs outbound requests and opens credential bundles sealed for
// this node.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey
	kid        string
}

// NewKeyManager wraps an existing private key.
func NewKeyManager(privateKey *ecdsa.PrivateKey) (*KeyManager, error) {
	kid, err := Fingerprint(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}
	return &KeyManager{privateKey: privateKey, kid: kid}, nil
}

// GenerateKeyManager creates a KeyManager with a fresh key.
func GenerateKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return NewKeyManager(privateKey)
}

// LoadKeyManager reads a PEM encoded private key from path. When path is
// empty and generate is set, an ephemeral key is created instead.
func LoadKeyManager(path string, generate bool) (*KeyManager, error) {
	if path == "" {
		if !generate {
			return nil, errors.New("no node key configured")
		}
		log.Warn().Msg("No node key configured, generating an ephemeral key")
		return GenerateKeyManager()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read node key: %w", err)
	}
	privateKey, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse node key: %w", err)
	}
	return NewKeyManager(privateKey)
}

// Kid returns the key ID (fingerprint) of the node key.
func (km *KeyManager) Kid() string {
	return km.kid
}

// PrivateKey returns the node's private key.
func (km *KeyManager) PrivateKey() *ecdsa.PrivateKey {
	return km.privateKey
}

// PublicKey returns the node's public key.
func (km *KeyManager) PublicKey() *ecdsa.PublicKey {
	return &km.privateKey.PublicKey
}

// PublicKeyPEM returns the PKIX PEM encoding of the public key.
func (km *KeyManager) PublicKeyPEM() (string, error) {
	return EncodePublicKeyPEM(km.PublicKey())
}

// SignJWT signs claims with the node key, setting kid in the header.
func (km *KeyManager) SignJWT(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = km.kid

	tokenString, err := token.SignedString(km.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, nil
}

// Fingerprint computes the key ID of pub: base58 of the SHA-256 of its DER.
func Fingerprint(pub *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	hash := sha256.Sum256(der)
	return base58.Encode(hash[:]), nil
}

// EncodePublicKeyPEM returns the PKIX PEM encoding of pub.
func EncodePublicKeyPEM(pub *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// EncodePrivateKeyPEM returns the SEC 1 PEM encoding of key.
func EncodePrivateKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// ParsePublicKeyPEM parses a PEM-encoded ECDSA public key.
func ParsePublicKeyPEM(pemStr string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok || ecdsaPub.Curve != elliptic.P256() {
		return nil, errors.New("not an ECDSA P-256 public key")
	}

	return ecdsaPub, nil
}
