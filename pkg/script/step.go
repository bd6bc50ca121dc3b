package script

import (
	"encoding/json"
	"fmt"
)

// Step type discriminators, serialized as the "type" field.
const (
	TypeTextInput = "text_input"
	TypeButtons   = "buttons"
	TypeAction    = "action"
)

// Step is one node of the canonical flow. Exactly three variants exist:
// PromptStep (text_input), ChoiceStep (buttons) and CheckStep (action).
type Step interface {
	StepID() string
	StepType() string
	// Skip returns the step-level skip condition, or nil.
	Skip() *SkipCondition
}

// PromptStep asks an open question, stores the raw answer under SaveTo and
// transitions unconditionally to NextStep.
type PromptStep struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	SaveTo   string         `json:"save_to,omitempty"`
	NextStep string         `json:"next_step"`
	SkipIf   *SkipCondition `json:"skip_if,omitempty"`
}

func (s *PromptStep) StepID() string       { return s.ID }
func (s *PromptStep) StepType() string     { return TypeTextInput }
func (s *PromptStep) Skip() *SkipCondition { return s.SkipIf }

// Button is one option of a ChoiceStep. Each button owns its outgoing
// transition; SkipIf redirects after the button matched but before the
// transition is taken.
type Button struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	NextStep string         `json:"next_step"`
	SkipIf   *SkipCondition `json:"skip_if,omitempty"`
}

// ChoiceStep presents up to three buttons. The cap is an authoring
// constraint (WhatsApp interactive messages); the format itself does not
// enforce it, the validator does.
type ChoiceStep struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Buttons []Button       `json:"buttons"`
	SkipIf  *SkipCondition `json:"skip_if,omitempty"`
}

func (s *ChoiceStep) StepID() string       { return s.ID }
func (s *ChoiceStep) StepType() string     { return TypeButtons }
func (s *ChoiceStep) Skip() *SkipCondition { return s.SkipIf }

// CheckStep runs an automated lookup against a session field and branches on
// the boolean outcome. ActionType selects the checker implementation; the
// only deployed one resolves equipment records by field value.
type CheckStep struct {
	ID          string         `json:"id"`
	ActionType  string         `json:"action_type"`
	Field       string         `json:"field"`
	Description string         `json:"description,omitempty"`
	OnSuccess   string         `json:"on_success"`
	OnFailure   string         `json:"on_failure"`
	SkipIf      *SkipCondition `json:"skip_if,omitempty"`
}

func (s *CheckStep) StepID() string       { return s.ID }
func (s *CheckStep) StepType() string     { return TypeAction }
func (s *CheckStep) Skip() *SkipCondition { return s.SkipIf }

// Steps is the ordered step list with tagged-union JSON encoding.
type Steps []Step

func (ss Steps) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, len(ss))
	for i, st := range ss {
		raw, err := marshalStep(st)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return json.Marshal(out)
}

func (ss *Steps) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	steps := make(Steps, 0, len(raws))
	for i, raw := range raws {
		st, err := unmarshalStep(raw)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		steps = append(steps, st)
	}
	*ss = steps
	return nil
}

func marshalStep(st Step) ([]byte, error) {
	// Two-pass: marshal the variant, then splice in the discriminator.
	body, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	m["type"] = json.RawMessage(`"` + st.StepType() + `"`)
	return json.Marshal(m)
}

func unmarshalStep(raw json.RawMessage) (Step, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case TypeTextInput:
		var st PromptStep
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, err
		}
		return &st, nil
	case TypeButtons:
		var st ChoiceStep
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, err
		}
		return &st, nil
	case TypeAction:
		var st CheckStep
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, err
		}
		return &st, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, head.Type)
	}
}
