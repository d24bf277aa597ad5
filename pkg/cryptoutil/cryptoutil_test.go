package cryptoutil

import (
	"strings"
	"testing"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901")[:KeySize]
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()
	plaintexts := []string{"", "hello world", strings.Repeat("x", 1000)}

	for _, pt := range plaintexts {
		blob, err := Encrypt(key, []byte(pt))
		if err != nil {
			t.Fatalf("Encrypt(%q) error: %v", pt, err)
		}
		if got := strings.Count(blob, ":"); got != 2 {
			t.Fatalf("Encrypt(%q) blob has %d colons, want 2", pt, got)
		}

		out, err := Decrypt(key, blob)
		if err != nil {
			t.Fatalf("Decrypt() error: %v", err)
		}
		if string(out) != pt {
			t.Errorf("Decrypt() = %q, want %q", out, pt)
		}
	}
}

func TestDecryptRejectsTamperedTag(t *testing.T) {
	key := testKey()
	blob, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	parts := strings.Split(blob, ":")
	// Flip the last hex character of the auth tag.
	tag := []byte(parts[1])
	if tag[len(tag)-1] == '0' {
		tag[len(tag)-1] = '1'
	} else {
		tag[len(tag)-1] = '0'
	}
	parts[1] = string(tag)
	tampered := strings.Join(parts, ":")

	if _, err := Decrypt(key, tampered); err == nil {
		t.Fatal("Decrypt() with tampered tag should fail")
	}
}

func TestDecryptRejectsWrongSegmentCount(t *testing.T) {
	key := testKey()
	if _, err := Decrypt(key, "only:two"); err == nil {
		t.Fatal("Decrypt() with 2 segments should fail")
	}
	if _, err := Decrypt(key, "a:b:c:d"); err == nil {
		t.Fatal("Decrypt() with 4 segments should fail (envelope format, not local)")
	}
}

func TestNormalizeKeyPadsAndTruncates(t *testing.T) {
	short := NormalizeKey([]byte("short"))
	if len(short) != KeySize {
		t.Fatalf("NormalizeKey(short) length = %d, want %d", len(short), KeySize)
	}

	long := NormalizeKey([]byte(strings.Repeat("x", 64)))
	if len(long) != KeySize {
		t.Fatalf("NormalizeKey(long) length = %d, want %d", len(long), KeySize)
	}
}

func TestStrictKeyRejectsWrongLength(t *testing.T) {
	if _, err := StrictKey([]byte("short")); err == nil {
		t.Fatal("StrictKey(short) should fail")
	}
	if _, err := StrictKey(testKey()); err != nil {
		t.Fatalf("StrictKey(32 bytes) error: %v", err)
	}
}

func TestHMACSHA256Deterministic(t *testing.T) {
	key := testKey()
	a := HMACSHA256Hex(key, []byte("payload"))
	b := HMACSHA256Hex(key, []byte("payload"))
	if a != b {
		t.Error("HMACSHA256Hex should be deterministic")
	}
	c := HMACSHA256Hex(key, []byte("different"))
	if a == c {
		t.Error("HMACSHA256Hex should differ for different inputs")
	}
}
