package script

import "encoding/json"

// SkipMode selects how a SkipCondition tests the session field.
type SkipMode string

const (
	SkipNotEmpty SkipMode = "not_empty"
	SkipEmpty    SkipMode = "empty"
	SkipEquals   SkipMode = "equals"
)

// SkipCondition bypasses a step (or a button's transition) when the session
// already holds the information the step would collect. When satisfied,
// execution jumps straight to Goto.
type SkipCondition struct {
	Field string   `json:"field"`
	Mode  SkipMode `json:"mode"`
	Value string   `json:"value,omitempty"`
	Goto  string   `json:"goto"`
}

// Satisfied evaluates the condition against the session field map.
// Unknown modes evaluate false; stored scripts predate mode values the
// engine knows about and must not break sessions.
func (c *SkipCondition) Satisfied(fields map[string]string) bool {
	if c == nil {
		return false
	}
	v := fields[c.Field]
	switch c.Mode {
	case SkipNotEmpty:
		return v != ""
	case SkipEmpty:
		return v == ""
	case SkipEquals:
		return v == c.Value
	}
	return false
}

func (c *SkipCondition) clone() *SkipCondition {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// UnmarshalJSON accepts both the current {"mode": "not_empty"} form and the
// legacy boolean flag {"not_empty": true} that early stored scripts used.
func (c *SkipCondition) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Field    string   `json:"field"`
		Mode     SkipMode `json:"mode"`
		Value    string   `json:"value"`
		Goto     string   `json:"goto"`
		NotEmpty bool     `json:"not_empty"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	c.Field = shadow.Field
	c.Mode = shadow.Mode
	c.Value = shadow.Value
	c.Goto = shadow.Goto
	if c.Mode == "" && shadow.NotEmpty {
		c.Mode = SkipNotEmpty
	}
	return nil
}
