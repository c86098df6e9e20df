package storage

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const encryptedFormatV1 = 1

// ErrDecrypt is returned when a stored value fails authentication.
var ErrDecrypt = errors.New("storage: value failed authentication")

// Encrypted seals values with XChaCha20-Poly1305 before handing them to the
// wrapped KV. The key name is bound as additional data so a value cannot be
// moved to another key.
type Encrypted struct {
	next KV
	aead cipher.AEAD
}

// NewEncrypted derives a 256-bit key from secret with HKDF-SHA256 and salt.
func NewEncrypted(next KV, secret, salt []byte) (*Encrypted, error) {
	if next == nil {
		return nil, errors.New("storage: nil backing store")
	}
	if len(secret) < 16 {
		return nil, errors.New("storage: encryption secret must be at least 16 bytes")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte("goAuthClient storage v1")), key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Encrypted{next: next, aead: aead}, nil
}

func (e *Encrypted) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	ns := e.aead.NonceSize()
	if len(sealed) < 1+ns+e.aead.Overhead() || sealed[0] != encryptedFormatV1 {
		return nil, ErrDecrypt
	}
	nonce := sealed[1 : 1+ns]
	plain, err := e.aead.Open(nil, nonce, sealed[1+ns:], []byte(key))
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

func (e *Encrypted) Set(ctx context.Context, key string, value []byte) error {
	ns := e.aead.NonceSize()
	out := make([]byte, 1+ns, 1+ns+len(value)+e.aead.Overhead())
	out[0] = encryptedFormatV1
	if _, err := rand.Read(out[1:]); err != nil {
		return err
	}
	out = e.aead.Seal(out, out[1:1+ns], value, []byte(key))
	return e.next.Set(ctx, key, out)
}

func (e *Encrypted) Remove(ctx context.Context, key string) error {
	return e.next.Remove(ctx, key)
}
