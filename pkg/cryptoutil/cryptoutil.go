// Package cryptoutil provides the AES-256-GCM and HMAC-SHA256 primitives
// shared by the license parser and the credential vault.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// KeySize is the required AES-256 key length in bytes.
const KeySize = 32

// ErrCipherIntegrity indicates a malformed or tampered ciphertext blob:
// wrong segment count, bad hex, or a GCM tag mismatch.
var ErrCipherIntegrity = errors.New("cryptoutil: cipher integrity check failed")

// ErrKeyLength indicates a key that is not exactly KeySize bytes, when
// strict validation was requested.
var ErrKeyLength = errors.New("cryptoutil: key must be exactly 32 bytes")

// NormalizeKey right-pads a short key with NUL bytes to 32 bytes, or
// truncates a long one, logging a warning when coercion happens. This
// matches the component's documented contract; callers that want to refuse
// non-conforming keys outright should use StrictKey instead.
func NormalizeKey(raw []byte) []byte {
	if len(raw) == KeySize {
		return raw
	}
	key := make([]byte, KeySize)
	if len(raw) < KeySize {
		copy(key, raw)
		slog.Warn("cryptoutil: key shorter than 32 bytes, right-padding with NUL",
			"got_length", len(raw))
	} else {
		copy(key, raw[:KeySize])
		slog.Warn("cryptoutil: key longer than 32 bytes, truncating",
			"got_length", len(raw))
	}
	return key
}

// StrictKey returns raw unchanged if it is exactly 32 bytes, or
// ErrKeyLength otherwise. Used when REQUIRE_EXACT_KEY_LENGTH is set.
func StrictKey(raw []byte) ([]byte, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeyLength, len(raw))
	}
	return raw, nil
}

// GenerateRandomBytes returns n cryptographically random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("cryptoutil: generating random bytes: %w", err)
	}
	return b, nil
}

// Zero overwrites b with zero bytes in place, best-effort defense against
// leaving a raw DEK resident in memory longer than necessary.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Encrypt seals plaintext under key with AES-256-GCM and returns the local
// three-part blob "hex(iv):hex(authTag):hex(ciphertext)".
func Encrypt(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("cryptoutil: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cryptoutil: building gcm: %w", err)
	}

	iv, err := GenerateRandomBytes(gcm.NonceSize())
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt reverses Encrypt. blob must be exactly the three-part local
// format; four-part envelope blobs are handled by pkg/kmsenvelope, which
// calls DecryptWithKey for the inner local-format decryption step.
func Decrypt(key []byte, blob string) ([]byte, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrCipherIntegrity, len(parts))
	}
	return DecryptWithKey(key, parts[0], parts[1], parts[2])
}

// DecryptWithKey decrypts the given hex-encoded iv/tag/ciphertext segments
// under key. Exposed separately so pkg/kmsenvelope can reuse the local
// decryption step after unwrapping an envelope DEK.
func DecryptWithKey(key []byte, ivHex, tagHex, ctHex string) ([]byte, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv hex", ErrCipherIntegrity)
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad tag hex", ErrCipherIntegrity)
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext hex", ErrCipherIntegrity)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: building gcm: %w", err)
	}
	if len(iv) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad iv length", ErrCipherIntegrity)
	}

	sealed := append(append([]byte{}, ct...), tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCipherIntegrity, err)
	}
	return plaintext, nil
}

// HMACSHA256 returns the raw HMAC-SHA256 of data under key.
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// HMACSHA256Hex is HMACSHA256 with a lowercase hex result.
func HMACSHA256Hex(key, data []byte) string {
	return hex.EncodeToString(HMACSHA256(key, data))
}

// Sha256Hex returns the lowercase hex SHA-256 digest of data, used for
// machine-id hashing and JWT-hash correlation.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
