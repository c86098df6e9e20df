// Package credcache holds the phone/password pair of a login that was stopped
// for device verification, so the login can be replayed once the OTP step
// succeeds without asking the user to type the password again.
//
// The cache has one writer (login classification) and one reader (the OTP
// success handler). Reads consume the entry. Nothing is ever persisted.
package credcache

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long an unconsumed entry stays usable.
const DefaultTTL = 10 * time.Minute

type Entry struct {
	Phone    string
	Password string
}

type Cache struct {
	mu      sync.Mutex
	entry   *Entry
	setAt   time.Time
	ttl     time.Duration
	nowFunc func() time.Time
}

// New returns an empty cache. ttl <= 0 selects DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, nowFunc: time.Now}
}

// Set replaces any previous entry.
func (c *Cache) Set(e Entry) {
	c.mu.Lock()
	c.entry = &e
	c.setAt = c.nowFunc()
	c.mu.Unlock()
}

// Consume returns the entry and clears it. A second Consume returns false
// until the next Set.
func (c *Cache) Consume() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry == nil {
		return Entry{}, false
	}
	e := *c.entry
	expired := c.nowFunc().Sub(c.setAt) > c.ttl
	c.clearLocked()
	if expired {
		return Entry{}, false
	}
	return e, true
}

// Peek reports the cached phone without consuming the entry.
func (c *Cache) Peek() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry == nil || c.nowFunc().Sub(c.setAt) > c.ttl {
		return "", false
	}
	return c.entry.Phone, true
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()
}

func (c *Cache) clearLocked() {
	if c.entry != nil {
		c.entry.Password = ""
	}
	c.entry = nil
	c.setAt = time.Time{}
}
