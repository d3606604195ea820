package dpop

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryJTICache is an in-process implementation of types.JTICache.
// Modeled on the teacher's MemoryTokenRepository (gourdiantoken.repository.inmemory.imp.go):
// a mutex-guarded map with a background sweep goroutine and an explicit
// Close to stop it, per spec.md §9's "every cache exposes a destroy
// operation" design note.
//
// exists is made linearizable with respect to the sweep by having both the
// read path and the sweep path take the same lock and treat "present but
// expired" identically to "absent" (spec.md §9 open question on
// non-atomic eviction).
type MemoryJTICache struct {
	mu      sync.RWMutex
	entries map[string]int64 // jti -> expiry (unix seconds)

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewMemoryJTICache creates an in-process JTI replay cache and starts its
// background sweep goroutine. sweepInterval defaults to 1 minute if <= 0.
func NewMemoryJTICache(sweepInterval time.Duration) *MemoryJTICache {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	c := &MemoryJTICache{
		entries:       make(map[string]int64),
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *MemoryJTICache) Store(_ context.Context, jti string, expiresAtUnix int64) error {
	if jti == "" {
		return fmt.Errorf("dpop: jti must not be empty")
	}
	c.mu.Lock()
	c.entries[jti] = expiresAtUnix
	c.mu.Unlock()
	return nil
}

// Exists returns true iff a live (non-expired) entry exists. An expired
// entry is treated as absent even if the sweep has not yet collected it.
func (c *MemoryJTICache) Exists(_ context.Context, jti string) (bool, error) {
	c.mu.RLock()
	expiry, ok := c.entries[jti]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return expiry > time.Now().Unix(), nil
}

func (c *MemoryJTICache) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryJTICache) sweepExpired() {
	now := time.Now().Unix()
	c.mu.Lock()
	for jti, expiry := range c.entries {
		if expiry <= now {
			delete(c.entries, jti)
		}
	}
	c.mu.Unlock()
}

// Close stops the sweep goroutine and clears all entries. Safe to call more
// than once.
func (c *MemoryJTICache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		c.entries = make(map[string]int64)
		c.mu.Unlock()
	})
	return nil
}

// Size reports the current entry count, including not-yet-swept expired
// entries, for monitoring/tests.
func (c *MemoryJTICache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
