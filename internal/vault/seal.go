package vault

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

var sealInfo = []byte("pcfhub/vault/seal/v1")

// p256PointSize is the length of an uncompressed P-256 public key.
const p256PointSize = 65

// SealFor encrypts plaintext so only the holder of pub's private key can read
// it. The result is base64(ephemeral public key || nonce || ciphertext).
func SealFor(pub *ecdsa.PublicKey, plaintext []byte) (string, error) {
	recipient, err := pub.ECDH()
	if err != nil {
		return "", fmt.Errorf("failed to convert recipient key: %w", err)
	}

	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return "", fmt.Errorf("failed to agree key: %w", err)
	}

	ephemeralPub := ephemeral.PublicKey().Bytes()
	aead, err := deriveAEAD(shared, ephemeralPub, sealInfo)
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, len(ephemeralPub)+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out = append(out, ephemeralPub...)
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, ephemeralPub)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by SealFor. Any other key fails with ErrDecrypt.
func Open(priv *ecdsa.PrivateKey, sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encoding", ErrDecrypt)
	}
	if len(raw) < p256PointSize {
		return nil, fmt.Errorf("%w: sealed value too short", ErrDecrypt)
	}

	own, err := priv.ECDH()
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}
	ephemeralPub := raw[:p256PointSize]
	peer, err := ecdh.P256().NewPublicKey(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ephemeral key", ErrDecrypt)
	}
	shared, err := own.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: key agreement failed", ErrDecrypt)
	}

	aead, err := deriveAEAD(shared, ephemeralPub, sealInfo)
	if err != nil {
		return nil, err
	}
	rest := raw[p256PointSize:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: sealed value too short", ErrDecrypt)
	}

	plain, err := aead.Open(nil, rest[:aead.NonceSize()], rest[aead.NonceSize():], ephemeralPub)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
