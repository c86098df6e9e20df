package profilecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestKeyIsStableResourceIdentifier(t *testing.T) {
	s := NewSynchronizer(nil, "", 0)
	if got := s.Key(ResourceProfile, "u-1"); got != "auth:profile:u-1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestWarmDeduplicatesConcurrentFetches(t *testing.T) {
	ctx := context.Background()
	s := NewSynchronizer(NewMemoryBackend(), "", time.Minute)
	key := s.Key(ResourceProfile, "u-1")

	var calls int32
	release := make(chan struct{})
	fetch := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return profile{ID: "u-1", Name: "Lan"}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Warm(ctx, key, fetch); err != nil {
				t.Errorf("Warm: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one fetch, got %d", n)
	}
	var got profile
	ok, err := s.Get(ctx, key, &got)
	if err != nil || !ok || got.Name != "Lan" {
		t.Fatalf("unexpected cached value %+v ok=%v err=%v", got, ok, err)
	}
}

func TestWarmErrorStoresNothing(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := NewSynchronizer(b, "", 0)
	_, err := s.Warm(ctx, s.Key(ResourceProfile, "u-1"), func(context.Context) (any, error) {
		return nil, errors.New("backend down")
	})
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if b.Len() != 0 {
		t.Fatal("failed fetch must not be cached")
	}
}

func TestPurgeRemovesOnlyNamespace(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := NewSynchronizer(b, "", 0)

	_ = b.Set(ctx, "other:profile:u-1", []byte(`{}`), 0)
	_, _ = s.Warm(ctx, s.Key(ResourceProfile, "u-1"), func(context.Context) (any, error) {
		return profile{ID: "u-1"}, nil
	})
	if err := s.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	var got profile
	if ok, _ := s.Get(ctx, s.Key(ResourceProfile, "u-1"), &got); ok {
		t.Fatal("namespace entry must be purged")
	}
	if _, ok, _ := b.Get(ctx, "other:profile:u-1"); !ok {
		t.Fatal("entries outside the namespace must survive")
	}
}

func TestWarmStartedBeforePurgeIsNotStored(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := NewSynchronizer(b, "", 0)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Warm(ctx, s.Key(ResourceProfile, "u-1"), func(context.Context) (any, error) {
			close(started)
			<-release
			return profile{ID: "u-1"}, nil
		})
	}()
	<-started
	_ = s.Purge(ctx)
	close(release)
	<-done

	if b.Len() != 0 {
		t.Fatal("a fetch that outlived a purge must not be cached")
	}
}

func TestMemoryBackendExpiry(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	now := time.Now()
	b.now = func() time.Time { return now }

	_ = b.Set(ctx, "auth:profile:u-1", []byte(`1`), time.Second)
	now = now.Add(2 * time.Second)
	if _, ok, _ := b.Get(ctx, "auth:profile:u-1"); ok {
		t.Fatal("expired entry must be absent")
	}
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := NewSynchronizer(NewRedisBackend(rdb), "auth", time.Minute)

	for _, id := range []string{"u-1", "u-2", "u-3"} {
		id := id
		if _, err := s.Warm(ctx, s.Key(ResourceProfile, id), func(context.Context) (any, error) {
			return profile{ID: id}, nil
		}); err != nil {
			t.Fatalf("Warm: %v", err)
		}
	}
	mr.Set("billing:invoice:1", "x")

	var got profile
	ok, err := s.Get(ctx, s.Key(ResourceProfile, "u-2"), &got)
	if err != nil || !ok || got.ID != "u-2" {
		t.Fatalf("unexpected get %+v ok=%v err=%v", got, ok, err)
	}
	if ttl := mr.TTL("auth:profile:u-2"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}

	if err := s.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if mr.Exists("auth:profile:u-1") || mr.Exists("auth:profile:u-3") {
		t.Fatal("expected namespace purged in redis")
	}
	if !mr.Exists("billing:invoice:1") {
		t.Fatal("unrelated keys must survive")
	}
}

func TestWarmAtSkipsFetchAfterPurge(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := NewSynchronizer(b, "", 0)

	gen := s.Generation()
	if err := s.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	fetched := false
	_, err := s.WarmAt(ctx, gen, s.Key(ResourceProfile, "u-1"), func(context.Context) (any, error) {
		fetched = true
		return profile{ID: "u-1"}, nil
	})
	if !errors.Is(err, ErrPurged) {
		t.Fatalf("expected ErrPurged, got %v", err)
	}
	if fetched {
		t.Fatal("no fetch may start for a purged generation")
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty backend, got %d entries", b.Len())
	}
}
