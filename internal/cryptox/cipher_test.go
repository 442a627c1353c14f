package cryptox

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte("01234567890123456789012345678901"))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	env, err := c.Encrypt("s3cret-password")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !strings.HasPrefix(env, "v1:") {
		t.Fatalf("expected v1: prefix, got %q", env)
	}

	got, err := c.Decrypt(env)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "s3cret-password" {
		t.Fatalf("got %q, want s3cret-password", got)
	}
}

func TestEncryptIsNondeterministic(t *testing.T) {
	c, _ := New(testKey())
	a, _ := c.Encrypt("same-input")
	b, _ := c.Encrypt("same-input")
	if a == b {
		t.Fatal("expected distinct envelopes due to random nonce")
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	shortKey := base64.StdEncoding.EncodeToString([]byte("too-short"))
	if _, err := New(shortKey); err != ErrInvalidKeyLength {
		t.Fatalf("got %v, want ErrInvalidKeyLength", err)
	}
}

func TestDecryptRejectsMalformedEnvelope(t *testing.T) {
	c, _ := New(testKey())
	if _, err := c.Decrypt("not-an-envelope"); err != ErrMalformedEnvelope {
		t.Fatalf("got %v, want ErrMalformedEnvelope", err)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	c, _ := New(testKey())
	env, _ := c.Encrypt("payload")
	tampered := env[:len(env)-2] + "xx"
	if _, err := c.Decrypt(tampered); err == nil {
		t.Fatal("expected error decrypting tampered envelope")
	}
}
