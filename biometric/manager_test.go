package biometric

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/storage"
)

type recordingBackend struct {
	err       error
	publicKey string
	password  string
	token     string
	calls     int
}

func (b *recordingBackend) EnrollBiometric(_ context.Context, accessToken, publicKey, password string) error {
	b.calls++
	b.token, b.publicKey, b.password = accessToken, publicKey, password
	return b.err
}

func newTestManager(t *testing.T, backend *recordingBackend) (*Manager, *SoftwareKeyStore) {
	t.Helper()
	ks := NewSoftwareKeyStore()
	return &Manager{
		KeyStore: ks,
		Store:    storage.NewMemory(),
		Backend:  backend,
		Now:      func() time.Time { return time.Unix(1_700_000_000, 0) },
	}, ks
}

func TestEnrollSendsPublicKeyAndRecordsPhone(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{}
	m, _ := newTestManager(t, backend)

	if err := m.Enroll(ctx, "84987654321", "access", "P@ssw0rd"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if backend.publicKey == "" || backend.password != "P@ssw0rd" || backend.token != "access" {
		t.Fatalf("unexpected backend call %+v", backend)
	}

	st, err := m.Status(ctx, "84987654321")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.HasKeyPair || !st.PublicKeyRegistered || !st.Available || st.BiometryKind != "software" {
		t.Fatalf("unexpected status %+v", st)
	}

	other, err := m.Status(ctx, "84900000000")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if other.PublicKeyRegistered {
		t.Fatal("enrollment must be scoped to the enrolled phone")
	}
}

func TestEnrollRotatesKeyPair(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{}
	m, _ := newTestManager(t, backend)

	_ = m.Enroll(ctx, "84987654321", "access", "P@ssw0rd")
	first := backend.publicKey
	_ = m.Enroll(ctx, "84987654321", "access", "P@ssw0rd")
	if backend.publicKey == first {
		t.Fatal("re-enrollment must generate a fresh key pair")
	}

	req, err := m.SignLogin(ctx, "84987654321", "personal")
	if err != nil {
		t.Fatalf("SignLogin: %v", err)
	}
	if Verify(first, req.Payload, req.Signature) {
		t.Fatal("old key must no longer verify")
	}
	if !Verify(backend.publicKey, req.Payload, req.Signature) {
		t.Fatal("new key must verify the signature")
	}
}

func TestEnrollBackendFailureDeletesFreshPair(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{err: errors.New("wrong password")}
	m, ks := newTestManager(t, backend)

	if err := m.Enroll(ctx, "84987654321", "access", "bad"); err == nil {
		t.Fatal("expected backend error")
	}
	if ok, _ := ks.KeyExists(ctx); ok {
		t.Fatal("unregistered key pair must be deleted")
	}
	if st, _ := m.Status(ctx, "84987654321"); st.PublicKeyRegistered {
		t.Fatal("failed enrollment must not be recorded")
	}
}

func TestEnrollRequiresSensor(t *testing.T) {
	m := &Manager{KeyStore: noSensor{NewSoftwareKeyStore()}, Store: storage.NewMemory(), Backend: &recordingBackend{}}
	if err := m.Enroll(context.Background(), "84987654321", "a", "p"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

type noSensor struct{ *SoftwareKeyStore }

func (noSensor) Sensor(context.Context) (Sensor, error) { return Sensor{}, nil }

func TestSignLoginPayloadShape(t *testing.T) {
	ctx := context.Background()
	backend := &recordingBackend{}
	m, _ := newTestManager(t, backend)
	_ = m.Enroll(ctx, "84987654321", "access", "P@ssw0rd")

	req, err := m.SignLogin(ctx, "84987654321", "business")
	if err != nil {
		t.Fatalf("SignLogin: %v", err)
	}
	parts := strings.Split(req.Payload, ".")
	if len(parts) != 3 || parts[1] != "1700000000" || parts[2] != "84987654321" || len(parts[0]) != 36 {
		t.Fatalf("unexpected payload %q", req.Payload)
	}
	if req.Phone != "84987654321" || req.AccountKind != "business" {
		t.Fatalf("unexpected request %+v", req)
	}

	again, _ := m.SignLogin(ctx, "84987654321", "business")
	if again.Payload == req.Payload {
		t.Fatal("each payload must carry a fresh nonce")
	}
}

func TestSignLoginNotEnrolled(t *testing.T) {
	m, _ := newTestManager(t, &recordingBackend{})
	if _, err := m.SignLogin(context.Background(), "84987654321", ""); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}
}

func TestSignLoginCancelledPrompt(t *testing.T) {
	ctx := context.Background()
	m, ks := newTestManager(t, &recordingBackend{})
	_ = m.Enroll(ctx, "84987654321", "access", "P@ssw0rd")

	var shown string
	ks.Prompt = func(_ context.Context, message string) error {
		shown = message
		return ErrCancelled
	}
	if _, err := m.SignLogin(ctx, "84987654321", ""); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if shown != DefaultPrompt {
		t.Fatalf("expected default prompt, got %q", shown)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, ks := newTestManager(t, &recordingBackend{})
	_ = m.Enroll(ctx, "84987654321", "access", "P@ssw0rd")

	if err := m.Remove(ctx, "84987654321"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := m.Remove(ctx, "84987654321"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if ok, _ := ks.KeyExists(ctx); ok {
		t.Fatal("expected key pair removed")
	}
}

func TestRemoveOtherPhoneKeepsEnrollment(t *testing.T) {
	ctx := context.Background()
	m, ks := newTestManager(t, &recordingBackend{})
	_ = m.Enroll(ctx, "84987654321", "access", "P@ssw0rd")

	if err := m.Remove(ctx, "84900000000"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, _ := ks.KeyExists(ctx); !ok {
		t.Fatal("another phone's key pair must survive")
	}
}
