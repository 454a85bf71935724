// Package vault encrypts partner credentials at rest and seals credential
// bundles for a single recipient during contract negotiation.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the minimum application secret size in bytes.
const MinSecretLength = 32

// ErrDecrypt is returned when a ciphertext cannot be authenticated with the
// given key or salt. No partial plaintext is ever returned with it.
var ErrDecrypt = errors.New("vault: decryption failed")

var atRestInfo = []byte("pcfhub/vault/at-rest/v1")

// Vault encrypts secrets with keys derived from the application secret and a
// per-organization salt, so the same password yields unrelated ciphertexts
// for different organizations.
type Vault struct {
	secret []byte
}

// New returns a Vault keyed by secret.
func New(secret []byte) (*Vault, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("vault secret must be at least %d bytes", MinSecretLength)
	}
	return &Vault{secret: append([]byte(nil), secret...)}, nil
}

// Encrypt returns base64(nonce || AES-256-GCM ciphertext) of plaintext.
func (v *Vault) Encrypt(plaintext string, salt []byte) (string, error) {
	aead, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong salt or secret fails with ErrDecrypt.
func (v *Vault) Decrypt(ciphertext string, salt []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecrypt)
	}

	aead, err := v.aead(salt)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, body := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("vault salt is required")
	}
	return deriveAEAD(v.secret, salt, atRestInfo)
}

func deriveAEAD(secret, salt, info []byte) (cipher.AEAD, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
