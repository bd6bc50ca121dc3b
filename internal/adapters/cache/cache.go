// Package cache wraps a script store with a read-through cache. Scripts
// change rarely but are read on every inbound message, so a short TTL
// takes almost all reads off the backing store.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/urbangroup/botflow/pkg/ports"
	"github.com/urbangroup/botflow/pkg/script"
)

// DefaultTTL bounds how stale a cached script can be when another process
// writes to the backing store directly.
const DefaultTTL = 5 * time.Minute

// ScriptStore is a caching decorator around another ports.ScriptStore.
type ScriptStore struct {
	next  ports.ScriptStore
	cache *gocache.Cache
}

// Option configures the ScriptStore.
type Option func(*ScriptStore)

// WithTTL sets the cache entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *ScriptStore) {
		s.cache = gocache.New(ttl, 2*ttl)
	}
}

// NewScriptStore wraps next with a read-through cache.
func NewScriptStore(next ports.ScriptStore, opts ...Option) *ScriptStore {
	s := &ScriptStore{
		next:  next,
		cache: gocache.New(DefaultTTL, 2*DefaultTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached script when fresh, loading and caching otherwise.
func (s *ScriptStore) Get(ctx context.Context, id string) (*script.Script, error) {
	if v, ok := s.cache.Get(id); ok {
		return v.(*script.Script).Clone(), nil
	}

	sc, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(id, sc.Clone())
	return sc, nil
}

// List always hits the backing store; the editor listing must not show a
// stale catalog.
func (s *ScriptStore) List(ctx context.Context) ([]*script.Script, error) {
	return s.next.List(ctx)
}

// Put writes through and invalidates the entry. The next Get re-reads the
// stored copy so cached timestamps match what the store stamped.
func (s *ScriptStore) Put(ctx context.Context, sc *script.Script) error {
	if err := s.next.Put(ctx, sc); err != nil {
		return err
	}
	s.cache.Delete(sc.ID)
	return nil
}

// Delete writes through and invalidates the entry.
func (s *ScriptStore) Delete(ctx context.Context, id string) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(id)
	return nil
}
