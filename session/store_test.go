package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/goAuthClient/storage"
	"github.com/MrEthical07/goAuthClient/token"
)

func newTestStore(t *testing.T) (*Store, *token.Manager, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	tokens := token.NewManager(token.Config{Store: kv})
	return NewStore(kv, "", tokens), tokens, kv
}

func testUser() *User {
	return &User{ID: "u-1", Phone: "84987654321", Name: "Lan", AccountKind: "personal", Verified: true}
}

func TestNewStoreStartsInitializing(t *testing.T) {
	s, _, _ := newTestStore(t)
	if snap := s.Snapshot(); snap.State != Initializing || snap.IsAuthenticated {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
}

func TestCompleteVerificationAuthenticatesAndPersists(t *testing.T) {
	ctx := context.Background()
	s, _, kv := newTestStore(t)
	_ = s.Hydrate(ctx)

	if err := s.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	if snap := s.Snapshot(); snap.State != Authenticating || !snap.IsLoading {
		t.Fatalf("expected authenticating snapshot, got %+v", snap)
	}
	if err := s.CompleteVerification(ctx, testUser(), token.Pair{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("CompleteVerification: %v", err)
	}

	snap := s.Snapshot()
	if !snap.IsAuthenticated || snap.AccessToken != "a1" || snap.RefreshToken != "r1" || snap.IsLoading {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.User == nil || snap.User.ID != "u-1" {
		t.Fatalf("expected user in snapshot, got %+v", snap.User)
	}

	// A fresh process hydrates the same session.
	tokens2 := token.NewManager(token.Config{Store: kv})
	if err := tokens2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s2 := NewStore(kv, "", tokens2)
	if err := s2.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	snap2 := s2.Snapshot()
	if snap2.State != Authenticated || !snap2.IsAuthenticated || snap2.User == nil || *snap2.User != *testUser() {
		t.Fatalf("unexpected hydrated snapshot %+v", snap2)
	}
	if snap2.IsLoading || snap2.Error != "" {
		t.Fatal("loading and error must never be persisted")
	}
}

func TestCompleteVerificationRequiresAccessToken(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.CompleteVerification(context.Background(), testUser(), token.Pair{RefreshToken: "r"})
	if !errors.Is(err, token.ErrNoAccessToken) {
		t.Fatalf("expected ErrNoAccessToken, got %v", err)
	}
	if s.Snapshot().IsAuthenticated {
		t.Fatal("session must stay unauthenticated")
	}
}

func TestHydrateDiscardsAuthenticatedRecordWithoutToken(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	data, err := encodeRecord(record{Authenticated: true, User: testUser()})
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}
	if err := kv.Set(ctx, DefaultKey, data); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s := NewStore(kv, "", token.NewManager(token.Config{Store: kv}))
	if err := s.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if snap := s.Snapshot(); snap.State != Unauthenticated || snap.IsAuthenticated || snap.User != nil {
		t.Fatalf("expected unauthenticated snapshot, got %+v", snap)
	}
	if _, err := kv.Get(ctx, DefaultKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected inconsistent record removed, got %v", err)
	}
}

func TestHydrateDiscardsCorruptRecord(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, DefaultKey, []byte{9, 9, 9})

	s := NewStore(kv, "", token.NewManager(token.Config{Store: kv}))
	if err := s.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if s.Snapshot().State != Unauthenticated {
		t.Fatal("expected unauthenticated after corrupt record")
	}
	if _, err := kv.Get(ctx, DefaultKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal("expected corrupt record removed")
	}
}

func TestFailLoginKeepsSessionUnauthenticated(t *testing.T) {
	s, _, _ := newTestStore(t)
	_ = s.Hydrate(context.Background())
	_ = s.BeginLogin()
	s.FailLogin("")

	snap := s.Snapshot()
	if snap.State != Unauthenticated || snap.IsLoading || snap.Error == "" || snap.AccessToken != "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestBeginLoginRejectedWhileAuthenticated(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	_ = s.CompleteVerification(ctx, testUser(), token.Pair{AccessToken: "a"})
	if err := s.BeginLogin(); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("expected ErrAlreadyAuthenticated, got %v", err)
	}
}

type failingKV struct{ storage.KV }

func (failingKV) Remove(context.Context, string) error { return errors.New("disk unavailable") }

func TestLogoutClearsStateEvenWhenStorageFails(t *testing.T) {
	ctx := context.Background()
	kv := failingKV{KV: storage.NewMemory()}
	tokens := token.NewManager(token.Config{Store: kv})
	s := NewStore(kv, "", tokens)
	_ = s.CompleteVerification(ctx, testUser(), token.Pair{AccessToken: "a", RefreshToken: "r"})

	if err := s.Logout(ctx); err == nil {
		t.Fatal("expected storage error to be reported")
	}
	snap := s.Snapshot()
	if snap.IsAuthenticated || snap.User != nil || snap.AccessToken != "" || snap.RefreshToken != "" {
		t.Fatalf("expected cleared session, got %+v", snap)
	}
	if tokens.Pair() != (token.Pair{}) {
		t.Fatal("expected in-memory tokens cleared")
	}
}

func TestForceExpireSetsMessage(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	_ = s.CompleteVerification(ctx, testUser(), token.Pair{AccessToken: "a"})
	if err := s.ForceExpire(ctx); err != nil {
		t.Fatalf("ForceExpire: %v", err)
	}
	snap := s.Snapshot()
	if snap.IsAuthenticated || snap.Error != msgSessionExpired {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSubscribeSeesEveryTransition(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	var seen []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { seen = append(seen, snap) })

	_ = s.Hydrate(ctx)
	_ = s.BeginLogin()
	_ = s.CompleteVerification(ctx, testUser(), token.Pair{AccessToken: "a"})
	unsubscribe()
	_ = s.Logout(ctx)

	if len(seen) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i].Version <= seen[i-1].Version {
			t.Fatalf("versions must increase: %d then %d", seen[i-1].Version, seen[i].Version)
		}
	}
	for _, snap := range seen {
		if snap.IsAuthenticated && snap.AccessToken == "" {
			t.Fatalf("authenticated snapshot without token: %+v", snap)
		}
	}
	if seen[2].State != Authenticated {
		t.Fatalf("expected last seen state authenticated, got %s", seen[2].State)
	}
}

func TestTokenExpiryHookForcesExpire(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	tokens := token.NewManager(token.Config{Store: kv})
	s := NewStore(kv, "", tokens)
	tokens.SetOnExpired(func(ctx context.Context) { _ = s.ForceExpire(ctx) })

	_ = s.CompleteVerification(ctx, testUser(), token.Pair{AccessToken: "a"})
	if _, err := tokens.Refresh(ctx); !errors.Is(err, token.ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if snap := s.Snapshot(); snap.IsAuthenticated || snap.State != Unauthenticated {
		t.Fatalf("expected expired session, got %+v", snap)
	}
}

func TestRecordEncodingRejectsTrailingBytes(t *testing.T) {
	data, err := encodeRecord(record{Authenticated: true, User: testUser()})
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}
	if _, err := decodeRecord(append(data, 0)); err == nil {
		t.Fatal("expected trailing bytes to be rejected")
	}
	got, err := decodeRecord(data)
	if err != nil || !got.Authenticated || *got.User != *testUser() {
		t.Fatalf("unexpected decode %+v %v", got, err)
	}
}

func TestLongUserFieldsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	s, _, kv := newTestStore(t)
	_ = s.Hydrate(ctx)

	user := testUser()
	user.Name = strings.Repeat("Nguyễn ", 60)
	user.AccountKind = strings.Repeat("k", 300)
	if err := s.CompleteVerification(ctx, user, token.Pair{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("CompleteVerification: %v", err)
	}

	tokens2 := token.NewManager(token.Config{Store: kv})
	if err := tokens2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s2 := NewStore(kv, "", tokens2)
	if err := s2.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	snap := s2.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil || *snap.User != *user {
		t.Fatalf("expected long user record restored, got %+v", snap.User)
	}
}

func TestDecodeReadsVersionOneRecords(t *testing.T) {
	u := testUser()
	data := []byte{recordFormatV1, flagAuthenticated | flagHasUser | flagVerified}
	for _, v := range []string{u.ID, u.Phone, u.Name, u.AccountKind} {
		data = append(data, byte(len(v)))
		data = append(data, v...)
	}

	got, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if !got.Authenticated || got.User == nil || *got.User != *u {
		t.Fatalf("unexpected decode %+v", got.User)
	}
}

func FuzzRecordDecode(f *testing.F) {
	if data, err := encodeRecord(record{Authenticated: true, User: testUser()}); err == nil {
		f.Add(data)
		f.Add(data[:5])
	}
	f.Add([]byte{})
	f.Add([]byte{recordFormatVersion})
	f.Add([]byte{recordFormatVersion, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		rec, err := decodeRecord(data)
		if err != nil {
			return
		}
		if _, err := encodeRecord(rec); err != nil {
			t.Fatalf("re-encode of decoded record failed: %v", err)
		}
	})
}
