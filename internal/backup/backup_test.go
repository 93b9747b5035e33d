package backup

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("sqlite snapshot bytes")

	encrypted, err := Encrypt(plaintext, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	decrypted, err := Decrypt(encrypted, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("round trip mismatch: got %q", decrypted)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := Encrypt([]byte("secret"), "right")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(encrypted, "wrong"); err == nil {
		t.Error("Decrypt with wrong passphrase should fail")
	}
}

func TestDecryptTruncated(t *testing.T) {
	if _, err := Decrypt([]byte("short"), "x"); err == nil {
		t.Error("Decrypt of truncated data should fail")
	}
}

func TestEncryptUniqueSalts(t *testing.T) {
	a, err := Encrypt([]byte("data"), "pass")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := Encrypt([]byte("data"), "pass")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("salt should differ between calls")
	}
}

func TestManagerDisabledWithoutConfig(t *testing.T) {
	m := NewManager(Config{}, nil, slog.New(slog.DiscardHandler))

	if m.Enabled() {
		t.Error("manager without credentials should be disabled")
	}
	if _, err := m.RunNow(context.Background()); err == nil {
		t.Error("RunNow on disabled manager should fail")
	}

	// Start on a disabled manager must not spin up a loop.
	m.Start(context.Background())
	m.Stop()
}

func TestObjectKeyRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)
	key := objectKey(at)

	ts, ok := parseObjectKey(key)
	if !ok {
		t.Fatalf("parseObjectKey(%q) failed", key)
	}
	if !ts.Equal(at) {
		t.Errorf("parsed %v, want %v", ts, at)
	}
}

func TestParseObjectKeyForeign(t *testing.T) {
	if _, ok := parseObjectKey("backups/unrelated.txt"); ok {
		t.Error("foreign key should not parse")
	}
}
