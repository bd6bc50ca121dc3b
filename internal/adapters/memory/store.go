// Package memory provides in-process store implementations, used by tests
// and by the interactive CLI runner where no external store is wired.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/urbangroup/botflow/pkg/script"
)

// ScriptStore implements ports.ScriptStore in memory.
type ScriptStore struct {
	mu      sync.RWMutex
	scripts map[string]*script.Script
}

// NewScriptStore creates an empty in-memory script store.
func NewScriptStore() *ScriptStore {
	return &ScriptStore{scripts: make(map[string]*script.Script)}
}

// Get retrieves a script by id.
func (s *ScriptStore) Get(ctx context.Context, id string) (*script.Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scripts[id]
	if !ok {
		return nil, script.ErrScriptNotFound
	}
	return sc.Clone(), nil
}

// List returns all scripts, sorted by id.
func (s *ScriptStore) List(ctx context.Context) ([]*script.Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*script.Script, 0, len(s.scripts))
	for _, sc := range s.scripts {
		out = append(out, sc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put saves a script, stamping timestamps.
func (s *ScriptStore) Put(ctx context.Context, sc *script.Script) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := sc.Clone()
	now := time.Now().UTC().Format(time.RFC3339)
	stored.UpdatedAt = now
	if prev, ok := s.scripts[sc.ID]; ok && prev.CreatedAt != "" {
		stored.CreatedAt = prev.CreatedAt
	} else if stored.CreatedAt == "" {
		stored.CreatedAt = now
	}
	s.scripts[sc.ID] = stored
	return nil
}

// Delete removes a script.
func (s *ScriptStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scripts, id)
	return nil
}

// SessionStore implements ports.SessionStore in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*script.Session
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*script.Session)}
}

// Load retrieves the session for a phone number.
func (s *SessionStore) Load(ctx context.Context, phone string) (*script.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[phone]
	if !ok {
		return nil, script.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Save persists the session.
func (s *SessionStore) Save(ctx context.Context, sess *script.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Phone] = sess.Clone()
	return nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, phone)
	return nil
}

// List returns the phone numbers with a stored session.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for phone := range s.sessions {
		out = append(out, phone)
	}
	sort.Strings(out)
	return out, nil
}
