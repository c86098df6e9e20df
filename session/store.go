package session

import (
	"context"
	"errors"
	"sync"

	"github.com/MrEthical07/goAuthClient/storage"
	"github.com/MrEthical07/goAuthClient/token"
)

// ErrAlreadyAuthenticated rejects a login while a session is active.
var ErrAlreadyAuthenticated = errors.New("session already authenticated")

// DefaultKey is the storage key of the persisted record.
const DefaultKey = "session"

const (
	msgLoginFailed    = "Login failed. Please try again."
	msgSessionExpired = "Your session has expired. Please log in again."
)

// TokenHolder is the token state the store reads and clears. *token.Manager
// implements it.
type TokenHolder interface {
	Pair() token.Pair
	SetTokens(ctx context.Context, access, refresh string) error
	ClearTokens(ctx context.Context) error
}

// Store is safe for concurrent use. Subscribers are called synchronously,
// outside the lock, after every transition.
type Store struct {
	kv     storage.KV
	key    string
	tokens TokenHolder
	warn   func(string, ...any)

	mu            sync.Mutex
	state         State
	user          *User
	authenticated bool
	loading       bool
	errMsg        string
	version       uint64

	subs    map[uint64]func(Snapshot)
	nextSub uint64
}

// NewStore returns a store in the Initializing state. kv may be nil for a
// memory-only session.
func NewStore(kv storage.KV, key string, tokens TokenHolder) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		kv:     kv,
		key:    key,
		tokens: tokens,
		state:  Initializing,
		subs:   make(map[uint64]func(Snapshot)),
	}
}

// SetWarn installs the logger for best-effort failures.
func (s *Store) SetWarn(fn func(string, ...any)) {
	s.mu.Lock()
	s.warn = fn
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every subsequent transition.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Hydrate restores the persisted record. Tokens must already be loaded into
// the holder. A record that claims an authenticated session without an
// access token is discarded.
func (s *Store) Hydrate(ctx context.Context) error {
	rec, err := s.load(ctx)

	pair := s.tokens.Pair()
	if rec.Authenticated && pair.AccessToken == "" {
		rec = record{}
		if s.kv != nil {
			if rmErr := s.kv.Remove(ctx, s.key); rmErr != nil {
				s.logWarn("goAuthClient: removing inconsistent session record failed", "error", rmErr)
			}
		}
	}

	s.transition(func() {
		s.loading = false
		s.errMsg = ""
		s.user = rec.User
		s.authenticated = rec.Authenticated
		if rec.Authenticated {
			s.state = Authenticated
		} else {
			s.state = Unauthenticated
		}
	})
	return err
}

// BeginLogin enters Authenticating.
func (s *Store) BeginLogin() error {
	s.mu.Lock()
	if s.authenticated {
		s.mu.Unlock()
		return ErrAlreadyAuthenticated
	}
	s.mu.Unlock()

	s.transition(func() {
		s.state = Authenticating
		s.loading = true
		s.errMsg = ""
	})
	return nil
}

// FailLogin leaves the session unauthenticated with msg, or a generic
// message when msg is empty.
func (s *Store) FailLogin(msg string) {
	if msg == "" {
		msg = msgLoginFailed
	}
	s.FinishUnauthenticated(msg)
}

// FinishUnauthenticated ends a login attempt that did not authenticate,
// for example one routed to device verification. msg may be empty.
func (s *Store) FinishUnauthenticated(msg string) {
	s.transition(func() {
		if !s.authenticated {
			s.state = Unauthenticated
		}
		s.loading = false
		s.errMsg = msg
	})
}

// CompleteVerification stores the tokens and enters Authenticated. A nil
// user keeps the one already held.
func (s *Store) CompleteVerification(ctx context.Context, user *User, pair token.Pair) error {
	if pair.AccessToken == "" {
		return token.ErrNoAccessToken
	}
	if err := s.tokens.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		s.logWarn("goAuthClient: persisting tokens failed", "error", err)
	}

	var rec record
	s.transition(func() {
		if user != nil {
			u := *user
			s.user = &u
		}
		s.authenticated = true
		s.state = Authenticated
		s.loading = false
		s.errMsg = ""
		rec = s.recordLocked()
	})
	s.persist(ctx, rec)
	return nil
}

// SetUser replaces the user record of an authenticated session.
func (s *Store) SetUser(ctx context.Context, user User) {
	var (
		rec record
		ok  bool
	)
	s.transition(func() {
		if !s.authenticated {
			return
		}
		s.user = &user
		rec = s.recordLocked()
		ok = true
	})
	if ok {
		s.persist(ctx, rec)
	}
}

// TokensRotated publishes a snapshot after the access token changed.
func (s *Store) TokensRotated() {
	s.transition(func() {})
}

// Logout clears the in-memory session first, then tokens and the persisted
// record. Storage errors are returned but never undo the teardown.
func (s *Store) Logout(ctx context.Context) error {
	return s.teardown(ctx, "")
}

// ForceExpire is Logout with an expiry message for the UI.
func (s *Store) ForceExpire(ctx context.Context) error {
	return s.teardown(ctx, msgSessionExpired)
}

func (s *Store) teardown(ctx context.Context, msg string) error {
	s.transition(func() {
		s.state = Unauthenticated
		s.user = nil
		s.authenticated = false
		s.loading = false
		s.errMsg = msg
	})

	var errs []error
	if err := s.tokens.ClearTokens(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.kv != nil {
		if err := s.kv.Remove(ctx, s.key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) transition(apply func()) {
	s.mu.Lock()
	apply()
	s.version++
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	pair := s.tokens.Pair()
	snap := Snapshot{
		Version:         s.version,
		State:           s.state,
		IsAuthenticated: s.authenticated && pair.AccessToken != "",
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		IsLoading:       s.loading,
		Error:           s.errMsg,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) recordLocked() record {
	rec := record{Authenticated: s.authenticated}
	if s.user != nil {
		u := *s.user
		rec.User = &u
	}
	return rec
}

func (s *Store) load(ctx context.Context) (record, error) {
	if s.kv == nil {
		return record{}, nil
	}
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return record{}, nil
		}
		return record{}, err
	}
	rec, err := decodeRecord(data)
	if err != nil {
		s.logWarn("goAuthClient: discarding unreadable session record")
		_ = s.kv.Remove(ctx, s.key)
		return record{}, nil
	}
	return rec, nil
}

func (s *Store) persist(ctx context.Context, rec record) {
	if s.kv == nil {
		return
	}
	data, err := encodeRecord(rec)
	if err == nil {
		err = s.kv.Set(ctx, s.key, data)
	}
	if err != nil {
		s.logWarn("goAuthClient: persisting session failed", "error", err)
	}
}

func (s *Store) logWarn(msg string, args ...any) {
	s.mu.Lock()
	fn := s.warn
	s.mu.Unlock()
	if fn != nil {
		fn(msg, args...)
	}
}
