package session

import (
	"time"

	"github.com/google/uuid"

	"expenses/internal/cache"
	"expenses/internal/core"
)

// Options configures a Store.
type Options struct {
	TTL           time.Duration
	MaxSessions   int
	InitialFilter core.Filter
	ResetOnSubmit bool
}

// Store keeps workspaces in an LRU cache with sliding TTL. A workspace that
// expires or is pushed out is gone for good.
type Store struct {
	opts      Options
	workspace *cache.LRUCache[*Workspace]
	newID     func() string
}

// NewStore creates a workspace store.
func NewStore(opts Options) *Store {
	return &Store{
		opts:      opts,
		workspace: cache.NewLRUCache[*Workspace](opts.MaxSessions, opts.TTL).WithSlidingExpiration(),
		newID:     uuid.NewString,
	}
}

// OnEvict registers a hook run when a workspace leaves the store. lifetime
// is how long the workspace lived.
func (s *Store) OnEvict(fn func(id string, lifetime time.Duration, reason cache.EvictReason)) {
	s.workspace.OnEvict(func(key string, w *Workspace, reason cache.EvictReason) {
		fn(key, time.Since(w.CreatedAt()), reason)
	})
}

// Get returns the workspace for id, if it is still alive.
func (s *Store) Get(id string) (*Workspace, bool) {
	if id == "" {
		return nil, false
	}
	return s.workspace.Get(id)
}

// Create opens a fresh workspace under a new session ID.
func (s *Store) Create() *Workspace {
	w := newWorkspace(s.newID(), s.opts.InitialFilter, s.opts.ResetOnSubmit)
	s.workspace.Set(w.id, w)
	return w
}

// Resolve returns the workspace for id, creating one when id is unknown.
// created reports whether a new session ID was issued.
func (s *Store) Resolve(id string) (w *Workspace, created bool) {
	if w, ok := s.Get(id); ok {
		return w, false
	}
	return s.Create(), true
}

// Size returns the number of live workspaces.
func (s *Store) Size() int {
	return s.workspace.Size()
}

// Cleaner exposes the underlying cache for periodic expiry sweeps.
func (s *Store) Cleaner() cache.Cleaner {
	return s.workspace
}
