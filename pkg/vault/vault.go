// Package vault seals and opens sensitive values (prompts, responses and
// provider keys) with a single AES-256-GCM master key.
//
// Each sealed value is a triple of independently base64-encoded
// ciphertext, 96-bit nonce and 128-bit authentication tag. The Vault holds
// no state beyond the key and is safe for concurrent use.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/pario-ai/promptgate/pkg/models"
)

// KeySize is the master key length in bytes.
const KeySize = 32

const (
	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrMissingSecret means no master key was provided. It is fatal.
	ErrMissingSecret = errors.New("vault: master key missing")
	// ErrDecryptionFailed means a sealed value did not authenticate.
	ErrDecryptionFailed = errors.New("vault: decryption failed")
)

// Vault seals and opens values under one master key.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault from a raw 32-byte key.
func New(masterKey []byte) (*Vault, error) {
	if len(masterKey) == 0 {
		return nil, ErrMissingSecret
	}
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("vault: master key must be %d bytes, got %d", KeySize, len(masterKey))
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// NewFromBase64 creates a Vault from a standard base64-encoded key, the form
// in which the key is provided through the environment.
func NewFromBase64(encoded string) (*Vault, error) {
	if encoded == "" {
		return nil, ErrMissingSecret
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("vault: decode master key: %w", err)
	}
	return New(key)
}

// GenerateKey returns a new random master key in base64.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("vault: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (v *Vault) Seal(plaintext []byte) (models.Sealed, error) {
	if v == nil {
		return models.Sealed{}, ErrMissingSecret
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return models.Sealed{}, fmt.Errorf("vault: read nonce: %w", err)
	}
	out := v.aead.Seal(nil, nonce, plaintext, nil)
	split := len(out) - tagSize
	return models.Sealed{
		Ciphertext: base64.StdEncoding.EncodeToString(out[:split]),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		AuthTag:    base64.StdEncoding.EncodeToString(out[split:]),
	}, nil
}

// SealString is Seal for UTF-8 text.
func (v *Vault) SealString(plaintext string) (models.Sealed, error) {
	return v.Seal([]byte(plaintext))
}

// Open authenticates and decrypts a sealed value. Every failure, including
// malformed encodings, is reported as ErrDecryptionFailed.
func (v *Vault) Open(s models.Sealed) ([]byte, error) {
	if v == nil {
		return nil, ErrMissingSecret
	}
	ciphertext, err := base64.StdEncoding.DecodeString(s.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext encoding", ErrDecryptionFailed)
	}
	nonce, err := base64.StdEncoding.DecodeString(s.IV)
	if err != nil || len(nonce) != nonceSize {
		return nil, fmt.Errorf("%w: invalid nonce", ErrDecryptionFailed)
	}
	tag, err := base64.StdEncoding.DecodeString(s.AuthTag)
	if err != nil || len(tag) != tagSize {
		return nil, fmt.Errorf("%w: invalid tag", ErrDecryptionFailed)
	}

	buf := make([]byte, 0, len(ciphertext)+tagSize)
	buf = append(buf, ciphertext...)
	buf = append(buf, tag...)
	plaintext, err := v.aead.Open(nil, nonce, buf, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// OpenString is Open returning text.
func (v *Vault) OpenString(s models.Sealed) (string, error) {
	b, err := v.Open(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
