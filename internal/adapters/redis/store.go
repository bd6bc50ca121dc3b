// Package redis provides Redis-backed stores and a distributed locker.
// Sessions carry a TTL so an abandoned conversation expires on its own;
// scripts never expire.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urbangroup/botflow/pkg/script"

	backend "github.com/redis/go-redis/v9"
)

// DefaultSessionTTL matches the conversation inactivity window: a session
// untouched for this long is considered abandoned.
const DefaultSessionTTL = 30 * time.Minute

// ScriptStore implements ports.ScriptStore using Redis.
type ScriptStore struct {
	client *backend.Client
	prefix string
}

// ScriptOption configures the ScriptStore.
type ScriptOption func(*ScriptStore)

// WithScriptPrefix sets the key prefix for scripts.
func WithScriptPrefix(prefix string) ScriptOption {
	return func(s *ScriptStore) { s.prefix = prefix }
}

// NewScriptStore creates a Redis script store from an existing client.
func NewScriptStore(client *backend.Client, opts ...ScriptOption) *ScriptStore {
	store := &ScriptStore{
		client: client,
		prefix: "botflow:script:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *ScriptStore) key(id string) string {
	return s.prefix + id
}

func (s *ScriptStore) indexKey() string {
	return s.prefix + "index"
}

// Get retrieves a script by id.
func (s *ScriptStore) Get(ctx context.Context, id string) (*script.Script, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, script.ErrScriptNotFound
		}
		return nil, fmt.Errorf("failed to get script from redis: %w", err)
	}

	var sc script.Script
	if err := json.Unmarshal([]byte(val), &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal script: %w", err)
	}
	return &sc, nil
}

// List returns all scripts, in index (id) order.
func (s *ScriptStore) List(ctx context.Context) ([]*script.Script, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}

	out := make([]*script.Script, 0, len(ids))
	for _, id := range ids {
		sc, err := s.Get(ctx, id)
		if err != nil {
			if err == script.ErrScriptNotFound {
				// Index entry outlived the value; skip and let the next
				// Put or Delete reconcile it.
				continue
			}
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// Put saves a script, stamping updated_at and preserving created_at
// across overwrites.
func (s *ScriptStore) Put(ctx context.Context, sc *script.Script) error {
	stored := sc.Clone()
	now := time.Now().UTC().Format(time.RFC3339)
	stored.UpdatedAt = now
	if prev, err := s.Get(ctx, sc.ID); err == nil && prev.CreatedAt != "" {
		stored.CreatedAt = prev.CreatedAt
	} else if stored.CreatedAt == "" {
		stored.CreatedAt = now
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal script: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(stored.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: 0, Member: stored.ID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save script to redis: %w", err)
	}
	return nil
}

// Delete removes a script.
func (s *ScriptStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)

	_, err := pipe.Exec(ctx)
	return err
}

// SessionStore implements ports.SessionStore using Redis.
type SessionStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// SessionOption configures the SessionStore.
type SessionOption func(*SessionStore)

// WithSessionTTL sets the expiration for sessions. Zero disables it.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionStore) { s.ttl = ttl }
}

// WithSessionPrefix sets the key prefix for sessions.
func WithSessionPrefix(prefix string) SessionOption {
	return func(s *SessionStore) { s.prefix = prefix }
}

// WithSessionClock overrides the time source used for index expiry scores.
// Tests pair it with miniredis's FastForward.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates a Redis session store from an existing client.
func NewSessionStore(client *backend.Client, opts ...SessionOption) *SessionStore {
	store := &SessionStore{
		client: client,
		prefix: "botflow:session:",
		ttl:    DefaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *SessionStore) key(phone string) string {
	return s.prefix + phone
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "index"
}

// Load retrieves the session for a phone number.
func (s *SessionStore) Load(ctx context.Context, phone string) (*script.Session, error) {
	val, err := s.client.Get(ctx, s.key(phone)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, script.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var sess script.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Save persists the session and refreshes its TTL. Every inbound message
// goes through here, so activity keeps the session alive.
func (s *SessionStore) Save(ctx context.Context, sess *script.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sess.Phone), data, s.ttl)

	// Score = expiry time, so List can prune lazily. TTL 0 means no expiry.
	score := float64(s.now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sess.Phone})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, phone string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(phone))
	pipe.ZRem(ctx, s.indexKey(), phone)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns phone numbers with a live session, pruning expired index
// entries first.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	now := float64(s.now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	phones, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return phones, nil
}
