package ports

import (
	"context"

	"github.com/urbangroup/botflow/pkg/script"
)

// ScriptStore persists canonical scripts keyed by script id. The production
// backing is an external key/record store; scripts are never physically
// deleted while historical session logs reference them, so Delete is for
// drafts only.
type ScriptStore interface {
	// Get retrieves a script by id.
	// Returns script.ErrScriptNotFound if the id does not exist.
	Get(ctx context.Context, id string) (*script.Script, error)

	// List returns all stored scripts.
	List(ctx context.Context) ([]*script.Script, error)

	// Put saves or replaces a script under s.ID, stamping created_at and
	// updated_at.
	Put(ctx context.Context, s *script.Script) error

	// Delete removes a script.
	Delete(ctx context.Context, id string) error
}

// SessionStore persists conversation sessions keyed by phone number.
// Idle expiry (TTL) is the store's responsibility, not the engine's.
type SessionStore interface {
	// Load retrieves the session for a phone number.
	// Returns script.ErrSessionNotFound if none exists or it expired.
	Load(ctx context.Context, phone string) (*script.Session, error)

	// Save persists the session.
	Save(ctx context.Context, sess *script.Session) error

	// Delete removes the session.
	Delete(ctx context.Context, phone string) error

	// List returns the phone numbers with a stored session.
	List(ctx context.Context) ([]string, error)
}
