package biometric

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goAuthClient/storage"
	"github.com/MrEthical07/goAuthClient/transport"
)

// ErrNotEnrolled means the phone has no biometric registration on this device.
var ErrNotEnrolled = errors.New("biometric: not enrolled")

const (
	// enrollmentKey holds the phone that owns the device key pair. The device
	// has one key pair, so at most one phone is enrolled at a time.
	enrollmentKey = "biometric:enrolled"
	DefaultPrompt = "Confirm your identity"
)

// Backend is the subset of the transport used for enrollment.
type Backend interface {
	EnrollBiometric(ctx context.Context, accessToken, publicKey, password string) error
}

// Enrollment is the per (phone, device) biometric status.
type Enrollment struct {
	HasKeyPair          bool
	PublicKeyRegistered bool
	BiometryKind        string
	Available           bool
}

// Manager ties the key store to the backend. Enrollment belongs to one
// canonical phone, so status must be re-read whenever the phone changes.
type Manager struct {
	KeyStore KeyStore
	Store    storage.KV
	Backend  Backend
	Prompt   string
	Now      func() time.Time
	Warn     func(string, ...any)
}

func (m *Manager) Status(ctx context.Context, phone string) (Enrollment, error) {
	sensor, err := m.KeyStore.Sensor(ctx)
	if err != nil {
		return Enrollment{}, err
	}
	has, err := m.KeyStore.KeyExists(ctx)
	if err != nil {
		return Enrollment{}, err
	}
	registered, err := m.registered(ctx, phone)
	if err != nil {
		return Enrollment{}, err
	}
	return Enrollment{
		HasKeyPair:          has,
		PublicKeyRegistered: registered && has,
		BiometryKind:        sensor.Kind,
		Available:           sensor.Available,
	}, nil
}

// Enroll rotates the device key pair and registers the new public key. The
// password proves intent and is sent only to the backend.
func (m *Manager) Enroll(ctx context.Context, phone, accessToken, password string) error {
	sensor, err := m.KeyStore.Sensor(ctx)
	if err != nil {
		return err
	}
	if !sensor.Available {
		return ErrUnavailable
	}

	if err := m.KeyStore.DeleteKeyPair(ctx); err != nil {
		return fmt.Errorf("biometric: delete previous key pair: %w", err)
	}
	if err := m.Store.Remove(ctx, enrollmentKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("biometric: clear previous enrollment: %w", err)
	}
	pub, err := m.KeyStore.CreateKeyPair(ctx)
	if err != nil {
		return fmt.Errorf("biometric: create key pair: %w", err)
	}

	if err := m.Backend.EnrollBiometric(ctx, accessToken, pub, password); err != nil {
		if delErr := m.KeyStore.DeleteKeyPair(ctx); delErr != nil {
			m.warn("goAuthClient: deleting unregistered key pair failed", "error", delErr)
		}
		return err
	}

	if err := m.Store.Set(ctx, enrollmentKey, []byte(phone)); err != nil {
		return fmt.Errorf("biometric: record enrollment: %w", err)
	}
	return nil
}

// Remove deletes the key pair and the enrollment record of phone. Removing an
// absent enrollment succeeds and leaves another phone's enrollment intact.
func (m *Manager) Remove(ctx context.Context, phone string) error {
	owner, err := m.owner(ctx)
	if err != nil {
		return err
	}
	if owner != "" && owner != phone {
		return nil
	}

	var errs []error
	if err := m.KeyStore.DeleteKeyPair(ctx); err != nil && !errors.Is(err, ErrNoKeyPair) {
		errs = append(errs, err)
	}
	if err := m.Store.Remove(ctx, enrollmentKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SignLogin builds and signs the login payload "<nonce>.<unix>.<phone>".
// ErrCancelled from the prompt is returned unchanged.
func (m *Manager) SignLogin(ctx context.Context, phone, accountKind string) (transport.BiometricLoginRequest, error) {
	registered, err := m.registered(ctx, phone)
	if err != nil {
		return transport.BiometricLoginRequest{}, err
	}
	if !registered {
		return transport.BiometricLoginRequest{}, ErrNotEnrolled
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	payload := strings.Join([]string{
		uuid.NewString(),
		strconv.FormatInt(now().Unix(), 10),
		phone,
	}, ".")

	prompt := m.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	sig, err := m.KeyStore.Sign(ctx, payload, prompt)
	if err != nil {
		if errors.Is(err, ErrNoKeyPair) {
			return transport.BiometricLoginRequest{}, ErrNotEnrolled
		}
		return transport.BiometricLoginRequest{}, err
	}
	return transport.BiometricLoginRequest{
		Phone:       phone,
		Payload:     payload,
		Signature:   sig,
		AccountKind: accountKind,
	}, nil
}

func (m *Manager) registered(ctx context.Context, phone string) (bool, error) {
	if phone == "" {
		return false, nil
	}
	owner, err := m.owner(ctx)
	if err != nil {
		return false, err
	}
	return owner == phone, nil
}

func (m *Manager) owner(ctx context.Context) (string, error) {
	data, err := m.Store.Get(ctx, enrollmentKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func (m *Manager) warn(msg string, args ...any) {
	if m.Warn != nil {
		m.Warn(msg, args...)
	}
}
