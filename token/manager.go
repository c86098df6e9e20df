package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/storage"
	"github.com/MrEthical07/goAuthClient/transport"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoRefreshToken is returned by Refresh when no refresh token is held.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshRejected is returned when the backend refused the refresh token.
	// The pair has been discarded by the time the caller sees it.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrNoAccessToken is returned by Valid when nothing is held.
	ErrNoAccessToken = errors.New("no access token")
)

const refreshFlightKey = "refresh"

// Pair is the access/refresh token combination.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether no access token is held.
func (p Pair) Empty() bool { return p.AccessToken == "" }

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return f(ctx, refreshToken)
}

// Config wires a Manager.
type Config struct {
	Store         storage.KV
	Key           string
	Refresher     Refresher
	Inspector     *jwt.Inspector
	RefreshLeeway time.Duration
	Now           func() time.Time
	// OnExpired runs after a rejected refresh has cleared the pair.
	OnExpired func(ctx context.Context)
	// OnRefresh observes each completed refresh after the pair was updated.
	OnRefresh func(err error, took time.Duration)
	// OnShared runs for every caller that shared a refresh with another.
	OnShared func()
	Warn     func(string, ...any)
}

// Manager is safe for concurrent use.
type Manager struct {
	cfg Config

	mu   sync.RWMutex
	pair Pair
	// gen changes on every SetTokens/ClearTokens so a refresh that started
	// before a logout cannot resurrect a token.
	gen uint64

	flight singleflight.Group
}

func NewManager(cfg Config) *Manager {
	if cfg.Key == "" {
		cfg.Key = "tokens"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Inspector == nil {
		cfg.Inspector = &jwt.Inspector{}
	}
	return &Manager{cfg: cfg}
}

// SetOnExpired installs the expiry hook after construction; the session store
// and the manager reference each other.
func (m *Manager) SetOnExpired(fn func(ctx context.Context)) {
	m.mu.Lock()
	m.cfg.OnExpired = fn
	m.mu.Unlock()
}

// Load hydrates the pair from storage. A missing or corrupt record leaves the
// manager empty; a corrupt record is also removed.
func (m *Manager) Load(ctx context.Context) error {
	if m.cfg.Store == nil {
		return nil
	}
	data, err := m.cfg.Store.Get(ctx, m.cfg.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	pair, err := decodePair(data)
	if err != nil {
		m.warn("goAuthClient: discarding unreadable token record")
		_ = m.cfg.Store.Remove(ctx, m.cfg.Key)
		return nil
	}

	m.mu.Lock()
	m.pair = pair
	m.gen++
	m.mu.Unlock()
	return nil
}

// SetTokens stores a new pair. An empty refresh keeps the one already held.
func (m *Manager) SetTokens(ctx context.Context, access, refresh string) error {
	m.mu.Lock()
	next := Pair{AccessToken: access, RefreshToken: refresh}
	if refresh == "" {
		next.RefreshToken = m.pair.RefreshToken
	}
	m.pair = next
	m.gen++
	m.mu.Unlock()

	return m.persist(ctx, next)
}

func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.AccessToken
}

func (m *Manager) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.RefreshToken
}

func (m *Manager) Pair() Pair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair
}

// ClearTokens empties memory first, then removes the persisted record. The
// in-memory pair is gone even when storage fails.
func (m *Manager) ClearTokens(ctx context.Context) error {
	m.mu.Lock()
	m.pair = Pair{}
	m.gen++
	m.mu.Unlock()

	if m.cfg.Store == nil {
		return nil
	}
	return m.cfg.Store.Remove(ctx, m.cfg.Key)
}

// Refresh renews the access token. Concurrent callers join a single in-flight
// call. On success only the access token changes. The shared call is detached
// from the first caller's cancellation so one abandoned caller cannot fail the
// others.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	v, err, shared := m.flight.Do(refreshFlightKey, func() (interface{}, error) {
		start := m.cfg.Now()
		access, err := m.refreshOnce(context.WithoutCancel(ctx))
		if m.cfg.OnRefresh != nil {
			m.cfg.OnRefresh(err, m.cfg.Now().Sub(start))
		}
		return access, err
	})
	if shared && m.cfg.OnShared != nil {
		m.cfg.OnShared()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Valid returns an access token, refreshing first when the held one expires
// within the configured leeway.
func (m *Manager) Valid(ctx context.Context) (string, error) {
	access := m.AccessToken()
	if access == "" {
		return "", ErrNoAccessToken
	}
	if !m.cfg.Inspector.ExpiresWithin(access, m.cfg.RefreshLeeway, m.cfg.Now()) {
		return access, nil
	}
	return m.Refresh(ctx)
}

func (m *Manager) refreshOnce(ctx context.Context) (string, error) {
	m.mu.RLock()
	refresh := m.pair.RefreshToken
	gen := m.gen
	m.mu.RUnlock()

	if refresh == "" {
		m.expire(ctx)
		return "", ErrNoRefreshToken
	}
	if m.cfg.Refresher == nil {
		return "", errors.New("token: no refresher configured")
	}

	access, err := m.cfg.Refresher.Refresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, transport.ErrUnauthorized) {
			m.mu.RLock()
			stale := m.gen != gen
			m.mu.RUnlock()
			if !stale {
				m.expire(ctx)
			}
			return "", ErrRefreshRejected
		}
		return "", err
	}

	m.mu.Lock()
	if m.gen != gen {
		// Logged out or re-logged in while the call was in flight.
		m.mu.Unlock()
		return "", ErrRefreshRejected
	}
	m.pair.AccessToken = access
	m.gen++
	next := m.pair
	m.mu.Unlock()

	if err := m.persist(ctx, next); err != nil {
		m.warn("goAuthClient: persisting refreshed token failed", "error", err)
	}
	return access, nil
}

func (m *Manager) expire(ctx context.Context) {
	if err := m.ClearTokens(ctx); err != nil {
		m.warn("goAuthClient: removing token record failed", "error", err)
	}
	m.mu.RLock()
	hook := m.cfg.OnExpired
	m.mu.RUnlock()
	if hook != nil {
		hook(ctx)
	}
}

func (m *Manager) persist(ctx context.Context, p Pair) error {
	if m.cfg.Store == nil {
		return nil
	}
	data, err := encodePair(p)
	if err != nil {
		return err
	}
	return m.cfg.Store.Set(ctx, m.cfg.Key, data)
}

func (m *Manager) warn(msg string, args ...any) {
	if m.cfg.Warn != nil {
		m.cfg.Warn(msg, args...)
	}
}
