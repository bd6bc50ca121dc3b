package script

import "time"

// SessionStatus is the lifecycle state of one conversation walk.
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusDone   SessionStatus = "done"
	// StatusFailed marks sessions aborted by an unrecoverable script error
	// (dangling target at runtime). Kept for the diagnostics view.
	StatusFailed SessionStatus = "failed"
)

// Session is one phone number's walk through a script: the current step,
// the collected field map, and the append-only event log the diagnostics
// view reads.
//
// The engine never expires sessions on its own; idle expiry is the store's
// concern (TTL), mirroring the transport layer's behavior.
type Session struct {
	Phone     string        `json:"phone"`
	SessionID string        `json:"session_id"`
	ScriptID  string        `json:"script_id"`
	Step      string        `json:"step"`
	Status    SessionStatus `json:"status"`

	// Fields holds save_to answers plus engine-populated context such as
	// customer_name and device_number.
	Fields map[string]string `json:"fields"`

	Log []Event `json:"session_log"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an active session positioned at firstStep.
func NewSession(phone, sessionID, scriptID, firstStep string) *Session {
	now := time.Now().UTC()
	return &Session{
		Phone:     phone,
		SessionID: sessionID,
		ScriptID:  scriptID,
		Step:      firstStep,
		Status:    StatusActive,
		Fields:    map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy; transitions produce a new Session value so a
// failed save never leaves a half-mutated state behind.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	out.Log = make([]Event, len(s.Log))
	copy(out.Log, s.Log)
	return &out
}
