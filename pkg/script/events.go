package script

import "time"

// EventType tags one entry of a session's diagnostics log. The set below is
// the full vocabulary the diagnostics view understands; adding a type here
// without teaching the view about it just renders an unknown row.
type EventType string

const (
	// EventSessionStart opens every log.
	EventSessionStart EventType = "session_start"
	// EventStepShown records the step ultimately displayed after skip
	// evaluation settled.
	EventStepShown EventType = "step_shown"
	// EventSkipIfTriggered records a skip-condition jump; Target is the goto.
	EventSkipIfTriggered EventType = "skip_if_triggered"
	// EventUserInput records a free-text answer stored by a prompt step.
	EventUserInput EventType = "user_input"
	// EventButtonMatched records an exact option match on a choice step.
	EventButtonMatched EventType = "button_matched"
	// EventLLMRoute records an option resolved from free text by the
	// external classifier.
	EventLLMRoute EventType = "llm_route"
	// EventInstructionsAuto records a transition target supplied by the
	// non-graph AI triage path. State-machine-wise identical to
	// button_matched; logged apart for audit.
	EventInstructionsAuto EventType = "instructions_auto"
	// EventActionExecuted records an automated check and its outcome.
	EventActionExecuted EventType = "action_executed"
	// EventSessionDone records the terminal reached and its action tag.
	EventSessionDone EventType = "session_done"
	// EventSwitchScript records a handoff to another script.
	EventSwitchScript EventType = "switch_script"
	// EventSessionFailed records an unrecoverable script error at runtime.
	EventSessionFailed EventType = "session_failed"
)

// Event is one diagnostics log entry. Only the fields relevant to the type
// are populated.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`

	StepID string `json:"step_id,omitempty"`
	Target string `json:"target,omitempty"`

	// Input/Option for user_input, button_matched, llm_route.
	Input  string `json:"input,omitempty"`
	Option string `json:"option,omitempty"`

	// Action/Success for action_executed and session_done.
	Action  string `json:"action,omitempty"`
	Success *bool  `json:"success,omitempty"`

	// FromScript/ToScript for switch_script.
	FromScript string `json:"from_script,omitempty"`
	ToScript   string `json:"to_script,omitempty"`

	Detail string `json:"detail,omitempty"`
}
