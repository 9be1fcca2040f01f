// Package vault encrypts long-lived mailbox credentials at rest using
// AES-256-GCM. Payloads are self-describing strings of the form
// hex(nonce):hex(tag):hex(ciphertext), so tampering is detected on decrypt
// rather than silently accepted.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

// Errors.
var (
	ErrMissingKey     = errors.New("vault: encryption key required")
	ErrInvalidKey     = errors.New("vault: key must be 32 bytes, hex or base64 encoded")
	ErrCorruptPayload = errors.New("vault: corrupt encrypted payload")
)

const (
	nonceSize = 12 // 96-bit nonce, fresh per encryption
	tagSize   = 16 // 128-bit authentication tag
)

// Vault performs authenticated encryption with a fixed 256-bit key.
// The zero value is not usable; construct with New.
type Vault struct {
	key []byte
}

// New creates a Vault from key material. The key may be given as 64 hex
// characters or as base64, and must decode to exactly 32 bytes.
func New(secret string) (*Vault, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingKey
	}

	key, err := decodeKey(secret)
	if err != nil {
		return nil, err
	}

	return &Vault{key: key}, nil
}

func decodeKey(secret string) ([]byte, error) {
	if len(secret) == 64 {
		key, err := hex.DecodeString(secret)
		if err == nil {
			return key, nil
		}
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// Encrypt seals plaintext and returns the opaque payload string.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := v.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a payload produced by Encrypt. An empty payload decrypts to
// an empty string. Returns ErrCorruptPayload if the payload does not parse
// into its three components or fails authentication.
func (v *Vault) Decrypt(payload string) (string, error) {
	if payload == "" {
		return "", nil
	}

	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return "", ErrCorruptPayload
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrCorruptPayload
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrCorruptPayload
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrCorruptPayload
	}

	aead, err := v.aead()
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrCorruptPayload
	}

	return string(plaintext), nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
