package ports

import (
	"context"

	"github.com/urbangroup/botflow/pkg/script"
)

// Classifier resolves free text to one of a choice step's options. The
// implementation is an external AI endpoint and entirely opaque here: the
// engine only logs whether the route came from it.
type Classifier interface {
	// Classify returns the id of the matched option, or "" when the text
	// matches none of them.
	Classify(ctx context.Context, text string, options []script.Button) (string, error)
}

// Checker runs the automated check behind an action step. The only deployed
// action_type resolves equipment records by a session field value.
type Checker interface {
	// Check returns the boolean outcome routed to on_success/on_failure.
	Check(ctx context.Context, actionType, field, value string) (bool, error)
}

// CustomerInfo is what the directory knows about a caller.
type CustomerInfo struct {
	Name           string `json:"name"`
	CustomerNumber string `json:"customer_number"`
	DeviceNumber   string `json:"device_number"`
}

// CustomerDirectory looks up callers by phone number, typically against the
// service-call history. A zero CustomerInfo means unknown caller; the engine
// then greets with greeting_unknown.
type CustomerDirectory interface {
	Lookup(ctx context.Context, phone string) (CustomerInfo, error)
}

// ActionSink executes the side effect of a done action: open a service
// call, file a plain message, escalate. Handoff (target_script_id) is the
// engine's own business and never reaches the sink.
type ActionSink interface {
	Execute(ctx context.Context, action string, sess *script.Session) error
}
