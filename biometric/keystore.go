// Package biometric handles device key enrollment and signature-based login.
//
// Private keys never leave the [KeyStore]. The package only sees public keys
// and signatures, both base64 text.
package biometric

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
)

var (
	// ErrCancelled means the user dismissed the platform prompt. Callers treat
	// it as a silent abort.
	ErrCancelled = errors.New("biometric: prompt cancelled")
	// ErrNoKeyPair means Sign was called with no key pair on the device.
	ErrNoKeyPair = errors.New("biometric: no key pair")
	// ErrUnavailable means the device has no usable biometric sensor.
	ErrUnavailable = errors.New("biometric: sensor unavailable")
)

// Sensor describes the platform biometric capability.
type Sensor struct {
	Available bool
	// Kind is the platform name, such as "face", "fingerprint" or "software".
	Kind string
}

// KeyStore is the platform key capability.
type KeyStore interface {
	CreateKeyPair(ctx context.Context) (publicKey string, err error)
	DeleteKeyPair(ctx context.Context) error
	KeyExists(ctx context.Context) (bool, error)
	// Sign shows the platform prompt with message, then signs payload.
	Sign(ctx context.Context, payload, prompt string) (signature string, err error)
	Sensor(ctx context.Context) (Sensor, error)
}

// SoftwareKeyStore keeps an ed25519 key in memory. It serves hosts without a
// secure enclave (CLI, desktop, tests). Prompt, when set, gates every Sign.
type SoftwareKeyStore struct {
	Prompt func(ctx context.Context, message string) error

	mu   sync.Mutex
	priv ed25519.PrivateKey
}

func NewSoftwareKeyStore() *SoftwareKeyStore {
	return &SoftwareKeyStore{}
}

func (s *SoftwareKeyStore) CreateKeyPair(context.Context) (string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.priv = priv
	s.mu.Unlock()
	return base64.StdEncoding.EncodeToString(pub), nil
}

func (s *SoftwareKeyStore) DeleteKeyPair(context.Context) error {
	s.mu.Lock()
	s.priv = nil
	s.mu.Unlock()
	return nil
}

func (s *SoftwareKeyStore) KeyExists(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priv != nil, nil
}

func (s *SoftwareKeyStore) Sign(ctx context.Context, payload, prompt string) (string, error) {
	if s.Prompt != nil {
		if err := s.Prompt(ctx, prompt); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	priv := s.priv
	s.mu.Unlock()
	if priv == nil {
		return "", ErrNoKeyPair
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, []byte(payload))), nil
}

func (s *SoftwareKeyStore) Sensor(context.Context) (Sensor, error) {
	return Sensor{Available: true, Kind: "software"}, nil
}

// Verify checks a signature produced by a SoftwareKeyStore against a public
// key returned from CreateKeyPair.
func Verify(publicKey, payload, signature string) bool {
	pub, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(payload), sig)
}
