// Package cryptox encrypts connection credentials at rest.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const envelopePrefix = "v1:"

var (
	ErrInvalidKeyLength = errors.New("cryptox: key must decode to 32 bytes (AES-256)")
	ErrMalformedEnvelope = errors.New("cryptox: malformed ciphertext envelope")
)

// Cipher encrypts and decrypts secrets with AES-256-GCM. Unlike a cache- or
// file-backed key, the key is supplied once at construction from
// configuration and is never generated or rotated silently: a bad key
// fails the process at startup instead of corrupting stored ciphertext.
type Cipher struct {
	gcm cipher.AEAD
}

// New builds a Cipher from a base64-encoded 32-byte key, typically sourced
// from the ENCRYPTION_KEY environment variable.
func New(base64Key string) (*Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decode key: %w", err)
	}
	if len(raw) != 32 {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new gcm: %w", err)
	}
	return &Cipher{gcm: gcm}, nil
}

// Encrypt seals plaintext into a versioned, base64-encoded envelope:
// "v1:" + nonce + ciphertext, all base64-standard-encoded together.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cryptox: read nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return envelopePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	if len(envelope) < len(envelopePrefix) || envelope[:len(envelopePrefix)] != envelopePrefix {
		return "", ErrMalformedEnvelope
	}
	raw, err := base64.StdEncoding.DecodeString(envelope[len(envelopePrefix):])
	if err != nil {
		return "", fmt.Errorf("cryptox: decode envelope: %w", err)
	}
	ns := c.gcm.NonceSize()
	if len(raw) < ns {
		return "", ErrMalformedEnvelope
	}
	nonce, ct := raw[:ns], raw[ns:]
	pt, err := c.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("cryptox: open: %w", err)
	}
	return string(pt), nil
}
