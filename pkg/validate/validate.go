// Package validate checks the structural invariants a canonical script must
// satisfy before it can be activated. It distinguishes hard errors (block
// save/activation) from warnings (drafts may carry them), and never panics:
// a malformed script yields a Result, not a crash.
package validate

import (
	"fmt"
	"unicode/utf8"

	"github.com/urbangroup/botflow/pkg/script"
)

// MaxButtons is the option cap per choice step (WhatsApp interactive
// messages allow three buttons).
const MaxButtons = 3

// MaxTitleLen is the button title cap in runes, an authoring constraint.
const MaxTitleLen = 20

// Issue is a single finding, tied to the step or terminal it concerns.
type Issue struct {
	StepID string `json:"step_id,omitempty"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	if i.StepID == "" {
		return i.Reason
	}
	return i.StepID + ": " + i.Reason
}

// Result partitions findings into hard errors and warnings.
type Result struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// OK reports whether the script may be saved as active.
func (r Result) OK() bool { return len(r.Errors) == 0 }

func (r *Result) errorf(stepID, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{StepID: stepID, Reason: fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(stepID, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{StepID: stepID, Reason: fmt.Sprintf(format, args...)})
}

// Check runs every validation rule against the script.
func Check(s *script.Script) Result {
	var r Result

	checkIDs(s, &r)
	checkTargets(s, &r)
	checkChoices(s, &r)
	checkReachability(s, &r)

	return r
}

// checkIDs enforces the shared id namespace: step ids unique, and no step
// id colliding with a done-action id.
func checkIDs(s *script.Script, r *Result) {
	seen := map[string]bool{}
	for _, st := range s.Steps {
		id := st.StepID()
		if id == "" {
			r.errorf("", "step with empty id")
			continue
		}
		if seen[id] {
			r.errorf(id, "duplicate step id")
		}
		seen[id] = true
		if s.IsDone(id) {
			r.errorf(id, "step id collides with a done action id")
		}
	}
}

// checkTargets verifies every transition resolves, and that no skip
// condition jumps to its own step.
func checkTargets(s *script.Script, r *Result) {
	if s.FirstStep == "" {
		r.errorf("", "first_step is empty")
	} else if !s.HasTarget(s.FirstStep) {
		r.errorf("", "first_step %q does not resolve", s.FirstStep)
	}

	for _, st := range s.Steps {
		id := st.StepID()
		checkSkip(s, r, id, st.Skip())

		switch v := st.(type) {
		case *script.PromptStep:
			checkTarget(s, r, id, "next_step", v.NextStep)
		case *script.ChoiceStep:
			for _, b := range v.Buttons {
				checkTarget(s, r, id, "button "+b.ID, b.NextStep)
				checkSkip(s, r, id, b.SkipIf)
			}
		case *script.CheckStep:
			checkTarget(s, r, id, "on_success", v.OnSuccess)
			checkTarget(s, r, id, "on_failure", v.OnFailure)
		}
	}
}

// checkTarget flags dangling references. An explicitly empty target is a
// dead end: allowed, but worth surfacing.
func checkTarget(s *script.Script, r *Result, stepID, what, target string) {
	if target == "" {
		r.warnf(stepID, "%s is a dead end", what)
		return
	}
	if !s.HasTarget(target) {
		r.warnf(stepID, "%s references unknown target %q", what, target)
	}
}

func checkSkip(s *script.Script, r *Result, stepID string, c *script.SkipCondition) {
	if c == nil {
		return
	}
	if c.Goto == stepID {
		r.errorf(stepID, "skip_if jumps to its own step")
		return
	}
	checkTarget(s, r, stepID, "skip_if goto", c.Goto)
}

func checkChoices(s *script.Script, r *Result) {
	for _, st := range s.Steps {
		v, ok := st.(*script.ChoiceStep)
		if !ok {
			continue
		}
		id := v.ID
		if len(v.Buttons) == 0 {
			r.errorf(id, "choice step has no options")
		}
		if len(v.Buttons) > MaxButtons {
			r.errorf(id, "choice step has %d options, max %d", len(v.Buttons), MaxButtons)
		}
		for _, b := range v.Buttons {
			if n := utf8.RuneCountInString(b.Title); n > MaxTitleLen {
				r.warnf(id, "button %s title is %d runes, max %d", b.ID, n, MaxTitleLen)
			}
		}
		checkRedundantSkips(r, v)
	}
}

// checkRedundantSkips flags two options of one step sharing an identical
// skip condition with the same destination. Harmless, but a sign the author
// meant to edit one of them.
func checkRedundantSkips(r *Result, v *script.ChoiceStep) {
	type condKey struct {
		field string
		mode  script.SkipMode
		value string
	}
	seen := map[condKey]string{}
	for _, b := range v.Buttons {
		if b.SkipIf == nil {
			continue
		}
		k := condKey{b.SkipIf.Field, b.SkipIf.Mode, b.SkipIf.Value}
		if gt, dup := seen[k]; dup && gt == b.SkipIf.Goto {
			r.warnf(v.ID, "button %s repeats another option's skip condition", b.ID)
		}
		seen[k] = b.SkipIf.Goto
	}
}

// checkReachability walks forward from first_step, following every
// transition including skip gotos, and reports steps the walk never
// reaches. Drafts may keep unreachable steps on purpose.
func checkReachability(s *script.Script, r *Result) {
	if s.FirstStep == "" {
		return
	}
	visited := map[string]bool{}
	queue := []string{s.FirstStep}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		st := s.FindStep(id)
		if st == nil {
			continue // terminal or dangling; both end the walk
		}
		for _, t := range stepTargets(st) {
			if t != "" && !visited[t] {
				queue = append(queue, t)
			}
		}
	}

	for _, st := range s.Steps {
		if !visited[st.StepID()] {
			r.warnf(st.StepID(), "step is unreachable from first_step")
		}
	}
}

func stepTargets(st script.Step) []string {
	var out []string
	if c := st.Skip(); c != nil {
		out = append(out, c.Goto)
	}
	switch v := st.(type) {
	case *script.PromptStep:
		out = append(out, v.NextStep)
	case *script.ChoiceStep:
		for _, b := range v.Buttons {
			out = append(out, b.NextStep)
			if b.SkipIf != nil {
				out = append(out, b.SkipIf.Goto)
			}
		}
	case *script.CheckStep:
		out = append(out, v.OnSuccess, v.OnFailure)
	}
	return out
}
