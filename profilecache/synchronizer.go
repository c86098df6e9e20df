package profilecache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultNamespace = "auth"
	DefaultTTL       = 30 * time.Minute
)

// ResourceProfile is the resource name of the signed-in user's profile.
const ResourceProfile = "profile"

// Synchronizer warms and purges the namespace. Fetches for the same key are
// deduplicated.
type Synchronizer struct {
	backend   Backend
	namespace string
	ttl       time.Duration

	flight singleflight.Group

	// gen changes on Purge; a fetch that started before a purge is not
	// stored.
	mu  sync.RWMutex
	gen uint64
}

func NewSynchronizer(backend Backend, namespace string, ttl time.Duration) *Synchronizer {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Synchronizer{backend: backend, namespace: namespace, ttl: ttl}
}

// Key returns "<namespace>:<resource>:<id>". id must be a stable resource
// identifier such as a user id.
func (s *Synchronizer) Key(resource, id string) string {
	return s.namespace + ":" + resource + ":" + id
}

// ErrPurged is returned by WarmAt when the namespace was purged after the
// caller captured its generation.
var ErrPurged = errors.New("profilecache: namespace purged")

// Generation identifies the current purge epoch. Capture it while the
// identity that owns the entry is known to be current.
func (s *Synchronizer) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Warm fetches and stores the value for key in the current generation.
// Concurrent calls for the same key share one fetch and receive its value.
func (s *Synchronizer) Warm(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	return s.WarmAt(ctx, s.Generation(), key, fetch)
}

// WarmAt is Warm pinned to gen. Once a Purge has moved past gen, no fetch is
// started and no value is stored.
func (s *Synchronizer) WarmAt(ctx context.Context, gen uint64, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	if key == "" {
		return nil, errors.New("profilecache: empty key")
	}
	v, err, _ := s.flight.Do(key+"@"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		if s.Generation() != gen {
			return nil, ErrPurged
		}

		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}

		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.gen != gen {
			return nil, ErrPurged
		}
		if err := s.backend.Set(ctx, key, data, s.ttl); err != nil {
			return nil, err
		}
		return value, nil
	})
	return v, err
}

// Get decodes the cached value for key into dest.
func (s *Synchronizer) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Purge removes every entry in the namespace.
func (s *Synchronizer) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.backend.DeletePrefix(ctx, s.namespace+":")
}
