// Package idempotency turns at-least-once webhook delivery into
// at-most-once processing: a keyed record-once ledger with a TTL, checked
// before any side-effecting work.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Ledger records event ids exactly once for the lifetime of their TTL.
type Ledger interface {
	// MarkIfNew atomically checks for a live record of eventID and creates
	// one when absent. It returns true only for the caller that created the
	// record; concurrent callers for the same unseen id get exactly one
	// true. An expired record counts as unseen.
	MarkIfNew(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// MemoryLedger is a process-local Ledger for tests and single-node
// deployments. The durable implementation lives in internal/storage.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time // event id -> expiry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]time.Time)}
}

func (l *MemoryLedger) MarkIfNew(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	if expiry, ok := l.seen[eventID]; ok && now.Before(expiry) {
		return false, nil
	}
	l.seen[eventID] = now.Add(ttl)
	return true, nil
}

// Seen reports whether a live record exists without creating one.
func (l *MemoryLedger) Seen(eventID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.seen[eventID]
	return ok && time.Now().UTC().Before(expiry)
}
