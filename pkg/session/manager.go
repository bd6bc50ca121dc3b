package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/urbangroup/botflow/internal/logging"
	"github.com/urbangroup/botflow/pkg/ports"
	"github.com/urbangroup/botflow/pkg/script"
)

// lockEntry holds a per-phone mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access. Locks are garbage collected by
// reference counting: an entry disappears as soon as nobody waits on it.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) { m.locker = locker }
}

// WithLockTTL bounds how long a crashed holder can wedge a session.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.lockTTL = ttl }
}

// WithLogger configures a logger for deferred errors.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a session manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(phone string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[phone]
	if !ok {
		entry = &lockEntry{}
		m.locks[phone] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(phone string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[phone]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, phone)
	}
}

// WithLock runs fn while holding the transition lock for the phone number.
func (m *Manager) WithLock(ctx context.Context, phone string, fn func(context.Context) error) error {
	entry := m.acquire(phone)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(phone)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, phone, m.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"phone", phone,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves a session under the lock.
func (m *Manager) Load(ctx context.Context, phone string) (*script.Session, error) {
	var sess *script.Session
	err := m.WithLock(ctx, phone, func(ctx context.Context) error {
		var err error
		sess, err = m.store.Load(ctx, phone)
		return err
	})
	return sess, err
}

// Transition loads the session, applies fn, and persists the result fn
// returns, all under the lock. fn returning an error aborts the save.
func (m *Manager) Transition(ctx context.Context, phone string, fn func(context.Context, *script.Session) (*script.Session, error)) (*script.Session, error) {
	var out *script.Session
	err := m.WithLock(ctx, phone, func(ctx context.Context) error {
		cur, err := m.store.Load(ctx, phone)
		if err != nil {
			return err
		}
		next, err := fn(ctx, cur)
		if next != nil && next != cur {
			// Persist even on error when fn produced a new state: a failed
			// session must land in the store for the diagnostics view.
			if saveErr := m.store.Save(ctx, next); saveErr != nil {
				m.logger.Error("failed to persist session", "phone", phone, "err", saveErr)
				if err == nil {
					err = saveErr
				}
			}
		}
		out = next
		return err
	})
	return out, err
}

// Start persists a freshly created session under the lock.
func (m *Manager) Start(ctx context.Context, sess *script.Session) error {
	return m.WithLock(ctx, sess.Phone, func(ctx context.Context) error {
		return m.store.Save(ctx, sess)
	})
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, phone string) error {
	return m.WithLock(ctx, phone, func(ctx context.Context) error {
		return m.store.Delete(ctx, phone)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
