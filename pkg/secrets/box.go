// pkg/secrets/box.go
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// Box encrypts and decrypts secret strings (OAuth tokens) with a key
// derived from the operator-supplied master secret. Ciphertext format is
// versioned: byte 0x01, then the GCM nonce, then the sealed payload, the
// whole blob base64url-encoded. Tampering with any byte fails decryption.
//
// A keyless Box (explicit insecure mode, local development only) stores
// values with a "v0:" prefix so plaintext blobs are always recognizable
// and never mistaken for ciphertext.

var (
	// ErrDecrypt is returned for malformed, forged or key-mismatched
	// blobs. Callers treat the credential as absent.
	ErrDecrypt = errors.New("secrets: cannot decrypt blob")
	// ErrNoKey is returned when encrypting with an unconfigured Box.
	ErrNoKey = errors.New("secrets: encryption key not configured")
)

const insecurePrefix = "v0:"

type Box struct {
	aead cipher.AEAD
}

// NewBox derives a 256-bit AES key from masterKey via SHA-256. The
// derivation is deterministic so restarts can decrypt stored blobs.
func NewBox(masterKey string) (*Box, error) {
	if masterKey == "" {
		return nil, ErrNoKey
	}
	h := sha256.Sum256([]byte(masterKey))
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// NewInsecureBox returns a no-op box for keyless local development.
func NewInsecureBox() *Box { return &Box{} }

// Insecure reports whether the box stores plaintext.
func (b *Box) Insecure() bool { return b.aead == nil }

func (b *Box) Encrypt(plaintext string) (string, error) {
	if b.aead == nil {
		return insecurePrefix + plaintext, nil
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ct := b.aead.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = 0x01
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (b *Box) Decrypt(blob string) (string, error) {
	if b.aead == nil {
		if !strings.HasPrefix(blob, insecurePrefix) {
			return "", ErrDecrypt
		}
		return strings.TrimPrefix(blob, insecurePrefix), nil
	}
	if strings.HasPrefix(blob, insecurePrefix) {
		// A keyed box never accepts plaintext blobs.
		return "", ErrDecrypt
	}
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < 1+b.aead.NonceSize()+b.aead.Overhead() || raw[0] != 0x01 {
		return "", ErrDecrypt
	}
	nonce := raw[1 : 1+b.aead.NonceSize()]
	ct := raw[1+b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
