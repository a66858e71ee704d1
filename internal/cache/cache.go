package cache

import (
	"context"
	"time"
)

// Cleaner is implemented by caches that can drop expired items on demand.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic cleanup over a set of caches.
type Manager struct {
	caches  []Cleaner
	onSweep func(removed int)
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// OnSweep sets a hook called after each sweep that removed something.
func (m *Manager) OnSweep(fn func(removed int)) {
	m.onSweep = fn
}

// Sweep cleans every registered cache once and returns the number of
// removed items.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	if total > 0 && m.onSweep != nil {
		m.onSweep(total)
	}
	return total
}

// Run sweeps every interval until ctx is cancelled. It always returns nil so
// it can sit in an errgroup next to the HTTP server.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			return nil
		}
	}
}
