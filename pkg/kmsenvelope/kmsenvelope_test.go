package kmsenvelope

import (
	"context"
	"log/slog"
	"strings"
	"testing"
)

func testLocalKey() []byte {
	return []byte("01234567890123456789012345678901")
}

func TestLocalOnlyFallbackWhenNoProjectConfigured(t *testing.T) {
	svc := New(context.Background(), Config{}, testLocalKey(), slog.Default())
	if svc.Active() {
		t.Fatal("Active() should be false with no project configured")
	}

	blob, err := svc.Encrypt(context.Background(), []byte("hunter2"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if got := strings.Count(blob, ":"); got != 2 {
		t.Fatalf("local blob has %d colons, want 2 (3 segments)", got)
	}

	out, err := svc.Decrypt(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if string(out) != "hunter2" {
		t.Errorf("Decrypt() = %q, want %q", out, "hunter2")
	}
}

func TestDecryptRejectsUnknownSegmentCount(t *testing.T) {
	svc := New(context.Background(), Config{}, testLocalKey(), slog.Default())
	if _, err := svc.Decrypt(context.Background(), "a:b"); err == nil {
		t.Fatal("Decrypt() with 2 segments should fail")
	}
}

func TestDecryptEnvelopeWithoutActiveKMSFails(t *testing.T) {
	svc := New(context.Background(), Config{}, testLocalKey(), slog.Default())
	// A well-formed four-part blob, but KMS is not active in this service.
	fourPart := "aa:bb:cc:dd"
	if _, err := svc.Decrypt(context.Background(), fourPart); err == nil {
		t.Fatal("Decrypt() of envelope blob without active KMS should fail")
	}
}
