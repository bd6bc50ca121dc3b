package script

// Done action tags. The engine maps them to side effects on an external
// collaborator (service-call store, escalation queue).
const (
	ActionSaveMessage     = "save_message"
	ActionSaveServiceCall = "save_service_call"
	ActionEscalate        = "escalate"
	ActionSwitchScript    = "switch_script"
)

// DoneAction is a script terminal: a closing message plus a
// post-conversation effect. A terminal has no outgoing transitions; reaching
// one moves the session to done, unless TargetScriptID hands the
// conversation off to another script.
type DoneAction struct {
	Text           string `json:"text"`
	Action         string `json:"action"`
	TargetScriptID string `json:"target_script_id,omitempty"`
}
