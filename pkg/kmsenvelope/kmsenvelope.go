// Package kmsenvelope implements envelope encryption for credential
// secrets: a per-record Data Encryption Key (DEK) is generated, used to
// encrypt the payload locally with AES-256-GCM, and wrapped by a cloud KMS
// master key. When KMS is unavailable the service falls back to the local
// key path (pkg/cryptoutil) and never persists a credential unencrypted.
package kmsenvelope

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"

	"github.com/snowflow/licensed/pkg/cryptoutil"
)

// ErrKMSUnavailable indicates the KMS client could not be constructed or
// reached at startup; the service downgrades to local-only.
var ErrKMSUnavailable = errors.New("kmsenvelope: kms unavailable")

// ErrKMSTransient indicates a wrap/unwrap call failed transiently; the
// caller may retry.
var ErrKMSTransient = errors.New("kmsenvelope: kms transient failure")

// ErrKMSDecryptFailed indicates a stored four-part envelope blob could not
// be unwrapped; this is fatal to that specific record.
var ErrKMSDecryptFailed = errors.New("kmsenvelope: kms decrypt failed")

// OpTimeout bounds every wrap/unwrap KMS round trip.
const OpTimeout = 500 * time.Millisecond

// Config identifies the KMS master key used to wrap/unwrap DEKs.
type Config struct {
	ProjectID string
	Location  string
	KeyRing   string
	KeyName   string
}

// keyName returns the fully qualified Cloud KMS CryptoKey resource name.
func (c Config) keyName() string {
	return fmt.Sprintf("projects/%s/locations/%s/keyRings/%s/cryptoKeys/%s",
		c.ProjectID, c.Location, c.KeyRing, c.KeyName)
}

// Service performs envelope encryption, falling back to a purely local key
// when the cloud client is unavailable.
type Service struct {
	cfg       Config
	localKey  []byte
	client    *kms.KeyManagementClient
	kmsActive bool
	logger    *slog.Logger
}

// New probes for KMS availability (client construction + a trivial
// GetCryptoKey call) and returns a Service that uses it when reachable,
// otherwise falls back to localKey for both paths. localKey is always
// required: it backs the local-only fallback and the local step wrapped
// inside every envelope blob.
func New(ctx context.Context, cfg Config, localKey []byte, logger *slog.Logger) *Service {
	s := &Service{cfg: cfg, localKey: localKey, logger: logger}

	if cfg.ProjectID == "" {
		logger.Info("kmsenvelope: no project configured, using local-only encryption")
		return s
	}

	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		logger.Warn("kmsenvelope: failed to construct KMS client, falling back to local key", "error", err)
		return s
	}

	probeCtx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	if _, err := client.GetCryptoKey(probeCtx, &kmspb.GetCryptoKeyRequest{Name: cfg.keyName()}); err != nil {
		logger.Warn("kmsenvelope: KMS probe failed, falling back to local key", "error", err)
		_ = client.Close()
		return s
	}

	s.client = client
	s.kmsActive = true
	logger.Info("kmsenvelope: KMS available, envelope encryption enabled", "key", cfg.keyName())
	return s
}

// Close releases the underlying KMS client, if any.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Encrypt seals plaintext. When KMS is active it produces the four-part
// envelope blob "hex(wrappedDek):hex(iv):hex(authTag):hex(ciphertext)";
// otherwise it produces the three-part local blob from pkg/cryptoutil.
func (s *Service) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	if !s.kmsActive {
		return cryptoutil.Encrypt(s.localKey, plaintext)
	}

	dek, err := cryptoutil.GenerateRandomBytes(cryptoutil.KeySize)
	if err != nil {
		return "", err
	}
	defer cryptoutil.Zero(dek)

	wrapCtx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	resp, err := s.client.Encrypt(wrapCtx, &kmspb.EncryptRequest{
		Name:      s.cfg.keyName(),
		Plaintext: dek,
	})
	if err != nil {
		s.logger.Warn("kmsenvelope: wrap failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrKMSTransient, err)
	}

	local, err := cryptoutil.Encrypt(dek, plaintext)
	if err != nil {
		return "", err
	}

	parts := strings.Split(local, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("kmsenvelope: unexpected local blob shape")
	}

	return strings.Join([]string{
		hex.EncodeToString(resp.Ciphertext),
		parts[0], parts[1], parts[2],
	}, ":"), nil
}

// Decrypt reverses Encrypt. It dispatches on segment count: three parts is
// local format (decrypted directly under the local key), four parts is
// envelope format (the DEK is unwrapped via KMS first).
func (s *Service) Decrypt(ctx context.Context, blob string) ([]byte, error) {
	parts := strings.Split(blob, ":")
	switch len(parts) {
	case 3:
		return cryptoutil.Decrypt(s.localKey, blob)
	case 4:
		return s.decryptEnvelope(ctx, parts)
	default:
		return nil, cryptoutil.ErrCipherIntegrity
	}
}

func (s *Service) decryptEnvelope(ctx context.Context, parts []string) ([]byte, error) {
	if !s.kmsActive {
		return nil, fmt.Errorf("%w: envelope blob present but KMS not active", ErrKMSDecryptFailed)
	}

	wrappedDek, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad wrapped dek hex", cryptoutil.ErrCipherIntegrity)
	}

	unwrapCtx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	resp, err := s.client.Decrypt(unwrapCtx, &kmspb.DecryptRequest{
		Name:       s.cfg.keyName(),
		Ciphertext: wrappedDek,
	})
	if err != nil {
		s.logger.Error("kmsenvelope: unwrap failed, record unreadable", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrKMSDecryptFailed, err)
	}
	dek := resp.Plaintext
	defer cryptoutil.Zero(dek)

	plaintext, err := cryptoutil.DecryptWithKey(dek, parts[1], parts[2], parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKMSDecryptFailed, err)
	}
	return plaintext, nil
}

// Active reports whether cloud KMS is currently in use (as opposed to the
// local-only fallback).
func (s *Service) Active() bool {
	return s.kmsActive
}
