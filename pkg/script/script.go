package script

// Position is a node coordinate in the visual editor. It is cosmetic only:
// the engine never reads it, and round-tripping a script through the editor
// preserves it on a best-effort basis.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Script is the root entity: one conversation flow, keyed by ID.
//
// Steps order carries no runtime meaning (traversal follows the graph, not
// the slice), but the compiler keeps it stable across saves so stored
// documents diff cleanly.
type Script struct {
	ID              string                `json:"script_id"`
	Name            string                `json:"name"`
	GreetingKnown   string                `json:"greeting_known,omitempty"`
	GreetingUnknown string                `json:"greeting_unknown,omitempty"`
	FirstStep       string                `json:"first_step"`
	Steps           Steps                 `json:"steps"`
	DoneActions     map[string]DoneAction `json:"done_actions"`
	Active          bool                  `json:"active"`

	// FlowPositions holds the editor layout, keyed by step/done-action id.
	FlowPositions map[string]Position `json:"_flow_positions,omitempty"`

	// Stamped by the store on save.
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// FindStep returns the step with the given id, or nil.
func (s *Script) FindStep(id string) Step {
	for _, st := range s.Steps {
		if st.StepID() == id {
			return st
		}
	}
	return nil
}

// IsDone reports whether id names a done action (a terminal).
func (s *Script) IsDone(id string) bool {
	_, ok := s.DoneActions[id]
	return ok
}

// HasTarget reports whether id resolves to a step or a done action.
func (s *Script) HasTarget(id string) bool {
	return s.FindStep(id) != nil || s.IsDone(id)
}

// Clone returns a deep copy. Edits in the editor API produce a new Script
// value instead of mutating the stored one.
func (s *Script) Clone() *Script {
	if s == nil {
		return nil
	}
	out := *s
	out.Steps = make(Steps, len(s.Steps))
	for i, st := range s.Steps {
		out.Steps[i] = cloneStep(st)
	}
	out.DoneActions = make(map[string]DoneAction, len(s.DoneActions))
	for id, da := range s.DoneActions {
		out.DoneActions[id] = da
	}
	if s.FlowPositions != nil {
		out.FlowPositions = make(map[string]Position, len(s.FlowPositions))
		for id, p := range s.FlowPositions {
			out.FlowPositions[id] = p
		}
	}
	return &out
}

func cloneStep(st Step) Step {
	switch v := st.(type) {
	case *PromptStep:
		c := *v
		c.SkipIf = v.SkipIf.clone()
		return &c
	case *ChoiceStep:
		c := *v
		c.SkipIf = v.SkipIf.clone()
		c.Buttons = make([]Button, len(v.Buttons))
		for i, b := range v.Buttons {
			b.SkipIf = b.SkipIf.clone()
			c.Buttons[i] = b
		}
		return &c
	case *CheckStep:
		c := *v
		c.SkipIf = v.SkipIf.clone()
		return &c
	}
	return st
}
