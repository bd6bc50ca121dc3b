package engine

import (
	"context"
	"strings"

	"github.com/urbangroup/botflow/pkg/script"
)

// settle moves the session to target and produces the reply for whatever is
// ultimately displayed: it follows skip-condition chains, lands on a step or
// a done action, and handles script handoff. prefix (the greeting) is
// prepended to the first reply of a session.
func (e *Engine) settle(ctx context.Context, sess *script.Session, sc *script.Script, target, prefix string) (*Reply, error) {
	// One visited set per evaluation pass: revisiting a step id means the
	// skip conditions form a cycle, which is a script bug, not a loop to
	// silently follow.
	visited := map[string]bool{}

	for {
		if target == "" {
			return nil, &DanglingTargetError{StepID: sess.Step, Target: target}
		}
		if done, ok := sc.DoneActions[target]; ok {
			return e.finish(ctx, sess, sc, target, done, prefix)
		}

		st := sc.FindStep(target)
		if st == nil {
			return nil, &DanglingTargetError{StepID: sess.Step, Target: target}
		}
		if visited[target] {
			return nil, &SkipCycleError{StepID: target}
		}
		visited[target] = true

		if cond := st.Skip(); cond.Satisfied(sess.Fields) {
			e.emit(sess, script.Event{Type: script.EventSkipIfTriggered, StepID: target, Target: cond.Goto})
			target = cond.Goto
			continue
		}

		sess.Step = target
		e.emit(sess, script.Event{Type: script.EventStepShown, StepID: target})
		return e.stepReply(sc, sess, st, prefix), nil
	}
}

// finish executes a done action: closing message, side effect, and either
// termination or handoff to another script.
func (e *Engine) finish(ctx context.Context, sess *script.Session, sc *script.Script, doneID string, done script.DoneAction, prefix string) (*Reply, error) {
	sess.Step = doneID
	e.emit(sess, script.Event{Type: script.EventSessionDone, StepID: doneID, Action: done.Action})

	if e.sink != nil && done.Action != "" {
		if err := e.sink.Execute(ctx, done.Action, sess); err != nil {
			// The conversation still closed; losing the side effect is an
			// operational incident, not a session failure.
			e.logger.Error("done action failed", "action", done.Action, "session_id", sess.SessionID, "err", err)
		}
	}

	text := joinLines(prefix, done.Text)

	if done.TargetScriptID == "" {
		sess.Status = script.StatusDone
		e.logger.Info("session done", "phone", sess.Phone, "step", doneID, "action", done.Action)
		return &Reply{Text: text}, nil
	}

	// Handoff: re-enter the target script with the same field map.
	next, err := e.scripts.Get(ctx, done.TargetScriptID)
	if err != nil {
		return nil, &DanglingTargetError{StepID: doneID, Target: done.TargetScriptID}
	}
	e.emit(sess, script.Event{
		Type:       script.EventSwitchScript,
		FromScript: sc.ID,
		ToScript:   next.ID,
	})
	e.logger.Info("script handoff", "phone", sess.Phone, "from", sc.ID, "to", next.ID)
	sess.ScriptID = next.ID

	reply, err := e.settle(ctx, sess, next, next.FirstStep, text)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// stepReply renders the message for a step. Choice steps carry their
// buttons; everything else is plain text.
func (e *Engine) stepReply(sc *script.Script, sess *script.Session, st script.Step, prefix string) *Reply {
	switch v := st.(type) {
	case *script.PromptStep:
		return &Reply{Text: joinLines(prefix, v.Text)}
	case *script.ChoiceStep:
		reply := &Reply{Text: joinLines(prefix, v.Text)}
		for _, b := range v.Buttons {
			reply.Buttons = append(reply.Buttons, ReplyButton{ID: b.ID, Title: b.Title})
		}
		return reply
	case *script.CheckStep:
		// Checks are silent; the description is shown while they run.
		return &Reply{Text: joinLines(prefix, v.Description)}
	}
	return &Reply{Text: prefix}
}

func joinLines(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
