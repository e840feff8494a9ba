// Package liveness tracks agent heartbeat timestamps behind a small
// interface so the registry can run against an in-memory map or an external
// store with native TTL support.
package liveness

import (
	"context"
	"sync"
	"time"
)

// Tracker records when an agent was last heard from. Entries expire on
// their own after the retention window; LastSeen reports presence.
type Tracker interface {
	// Touch records a heartbeat for the agent, retaining it for retention.
	Touch(ctx context.Context, agentID string, retention time.Duration) error
	// LastSeen returns the most recent heartbeat time, and whether the
	// agent is still within its retention window.
	LastSeen(ctx context.Context, agentID string) (time.Time, bool, error)
	// Forget drops the agent's liveness entry.
	Forget(ctx context.Context, agentID string) error
}

// MemoryTracker is the default in-process Tracker. Expiry is evaluated
// lazily on read; there is no background sweeper because the registry's
// health monitor visits every agent each tick anyway.
type MemoryTracker struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	seen    time.Time
	expires time.Time
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{entries: make(map[string]memoryEntry)}
}

func (t *MemoryTracker) Touch(_ context.Context, agentID string, retention time.Duration) error {
	now := time.Now()
	t.mu.Lock()
	t.entries[agentID] = memoryEntry{seen: now, expires: now.Add(retention)}
	t.mu.Unlock()
	return nil
}

func (t *MemoryTracker) LastSeen(_ context.Context, agentID string) (time.Time, bool, error) {
	t.mu.RLock()
	e, ok := t.entries[agentID]
	t.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return time.Time{}, false, nil
	}
	return e.seen, true, nil
}

func (t *MemoryTracker) Forget(_ context.Context, agentID string) error {
	t.mu.Lock()
	delete(t.entries, agentID)
	t.mu.Unlock()
	return nil
}
