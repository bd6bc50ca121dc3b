package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urbangroup/botflow/internal/logging"
	"github.com/urbangroup/botflow/pkg/ports"
	"github.com/urbangroup/botflow/pkg/script"
)

// Reply is what the transport layer sends back to the caller: a message and,
// for choice steps, up to three buttons.
type Reply struct {
	Text    string        `json:"text"`
	Buttons []ReplyButton `json:"buttons,omitempty"`
}

// ReplyButton is one interactive option.
type ReplyButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// nudge prefixes a re-sent choice prompt after unmatched input.
const nudge = "Please pick one of the options:\n\n"

// Engine executes canonical scripts. It holds no per-session state; every
// method takes a session in and returns a new session value out.
type Engine struct {
	scripts    ports.ScriptStore
	classifier ports.Classifier
	checker    ports.Checker
	directory  ports.CustomerDirectory
	sink       ports.ActionSink
	logger     *slog.Logger

	// Injected for deterministic tests.
	now   func() time.Time
	newID func() string

	hook func(script.Event)
}

// Option configures the Engine.
type Option func(*Engine)

// WithClassifier enables AI-assisted option matching on choice steps.
func WithClassifier(c ports.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithChecker wires the automated-check backend for action steps.
func WithChecker(c ports.Checker) Option {
	return func(e *Engine) { e.checker = c }
}

// WithDirectory wires the caller lookup used at session start.
func WithDirectory(d ports.CustomerDirectory) Option {
	return func(e *Engine) { e.directory = d }
}

// WithSink wires the done-action side-effect executor.
func WithSink(s ports.ActionSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLogger configures the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithEventHook registers a callback invoked for every emitted event, after
// it is appended to the session log. Used for metrics.
func WithEventHook(fn func(script.Event)) Option {
	return func(e *Engine) { e.hook = fn }
}

// New creates an engine reading scripts from the given store.
func New(scripts ports.ScriptStore, opts ...Option) *Engine {
	e := &Engine{
		scripts: scripts,
		logger:  logging.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) emit(sess *script.Session, ev script.Event) {
	ev.At = e.now().UTC()
	sess.Log = append(sess.Log, ev)
	if e.hook != nil {
		e.hook(ev)
	}
}

// StartSession opens a new session for a phone number on the given script
// and returns the greeting reply. Inactive scripts are never selected for
// new sessions. If the first step resolves to nothing or its skip conditions
// cycle, the returned session is marked failed and must still be persisted
// so the diagnostics view sees it.
func (e *Engine) StartSession(ctx context.Context, phone, scriptID string) (*script.Session, *Reply, error) {
	sc, err := e.scripts.Get(ctx, scriptID)
	if err != nil {
		return nil, nil, fmt.Errorf("load script %s: %w", scriptID, err)
	}
	if !sc.Active {
		return nil, nil, fmt.Errorf("script %s: %w", scriptID, ErrScriptInactive)
	}

	sess := script.NewSession(phone, e.newID(), scriptID, sc.FirstStep)

	known := false
	if e.directory != nil {
		info, err := e.directory.Lookup(ctx, phone)
		if err != nil {
			// Lookup failures degrade to the unknown-caller greeting.
			e.logger.Warn("customer lookup failed", "phone", phone, "err", err)
		} else {
			sess.Fields["customer_name"] = info.Name
			sess.Fields["customer_number"] = info.CustomerNumber
			sess.Fields["device_number"] = info.DeviceNumber
			known = info.Name != ""
		}
	}

	e.emit(sess, script.Event{Type: script.EventSessionStart, Detail: callerKind(known)})
	e.logger.Info("session started", "phone", phone, "script", scriptID, "session_id", sess.SessionID)

	reply, err := e.settle(ctx, sess, sc, sc.FirstStep, e.greeting(sc, sess, known))
	if err != nil {
		// A fresh session has no stable step to fall back to, so a skip
		// cycle fails it just like a dangling target.
		var dangling *DanglingTargetError
		var cycle *SkipCycleError
		if errors.As(err, &dangling) || errors.As(err, &cycle) {
			return e.fail(sess, sess, err)
		}
		return nil, nil, err
	}
	return sess, reply, nil
}

// HandleMessage processes one inbound message for an active session and
// returns the updated session plus the reply to send.
//
// The input session is never mutated. On a skip-cycle error the returned
// session equals the input (last stable step); on a dangling target the
// returned session is marked failed and must still be persisted.
func (e *Engine) HandleMessage(ctx context.Context, in *script.Session, text string) (*script.Session, *Reply, error) {
	if in.Status != script.StatusActive {
		return in, nil, ErrSessionNotActive
	}
	sc, err := e.scripts.Get(ctx, in.ScriptID)
	if err != nil {
		return in, nil, fmt.Errorf("load script %s: %w", in.ScriptID, err)
	}

	sess := in.Clone()
	sess.UpdatedAt = e.now().UTC()

	st := sc.FindStep(sess.Step)
	if st == nil {
		return e.fail(in, sess, &DanglingTargetError{StepID: sess.Step, Target: sess.Step})
	}

	var target string
	switch v := st.(type) {
	case *script.PromptStep:
		if v.SaveTo != "" {
			sess.Fields[v.SaveTo] = text
		}
		e.emit(sess, script.Event{Type: script.EventUserInput, StepID: v.ID, Input: text})
		target = v.NextStep

	case *script.ChoiceStep:
		btn, how := e.matchOption(ctx, v, text)
		if btn == nil {
			// Unmatched input re-prompts without transitioning.
			reply := e.stepReply(sc, sess, v, "")
			reply.Text = nudge + reply.Text
			return in, reply, nil
		}
		e.emit(sess, script.Event{Type: how, StepID: v.ID, Input: text, Option: btn.ID})
		target = btn.NextStep
		if btn.SkipIf.Satisfied(sess.Fields) {
			e.emit(sess, script.Event{Type: script.EventSkipIfTriggered, StepID: v.ID, Target: btn.SkipIf.Goto})
			target = btn.SkipIf.Goto
		}

	case *script.CheckStep:
		ok, err := e.runCheck(ctx, v, sess)
		if err != nil {
			return in, nil, err
		}
		e.emit(sess, script.Event{Type: script.EventActionExecuted, StepID: v.ID, Action: v.ActionType, Success: &ok})
		if ok {
			target = v.OnSuccess
		} else {
			target = v.OnFailure
		}
	}

	reply, err := e.settle(ctx, sess, sc, target, "")
	if err != nil {
		var cyc *SkipCycleError
		if errors.As(err, &cyc) {
			// Abort the transition; the caller keeps the last stable step.
			return in, nil, err
		}
		var dangling *DanglingTargetError
		if errors.As(err, &dangling) {
			return e.fail(in, sess, dangling)
		}
		return in, nil, err
	}
	return sess, reply, nil
}

// InjectTransition applies a transition target supplied by the non-graph AI
// triage path. Identical to a matched button for state purposes, logged as
// instructions_auto for audit.
func (e *Engine) InjectTransition(ctx context.Context, in *script.Session, target string) (*script.Session, *Reply, error) {
	if in.Status != script.StatusActive {
		return in, nil, ErrSessionNotActive
	}
	sc, err := e.scripts.Get(ctx, in.ScriptID)
	if err != nil {
		return in, nil, fmt.Errorf("load script %s: %w", in.ScriptID, err)
	}

	sess := in.Clone()
	sess.UpdatedAt = e.now().UTC()
	e.emit(sess, script.Event{Type: script.EventInstructionsAuto, StepID: sess.Step, Target: target})

	reply, err := e.settle(ctx, sess, sc, target, "")
	if err != nil {
		var dangling *DanglingTargetError
		if errors.As(err, &dangling) {
			return e.fail(in, sess, dangling)
		}
		return in, nil, err
	}
	return sess, reply, nil
}

func (e *Engine) matchOption(ctx context.Context, st *script.ChoiceStep, text string) (*script.Button, script.EventType) {
	trimmed := strings.TrimSpace(text)
	for i := range st.Buttons {
		b := &st.Buttons[i]
		if trimmed == b.ID || strings.EqualFold(trimmed, b.Title) {
			return b, script.EventButtonMatched
		}
	}
	if e.classifier == nil {
		return nil, ""
	}
	id, err := e.classifier.Classify(ctx, text, st.Buttons)
	if err != nil {
		e.logger.Warn("classifier failed", "step", st.ID, "err", err)
		return nil, ""
	}
	for i := range st.Buttons {
		if st.Buttons[i].ID == id {
			return &st.Buttons[i], script.EventLLMRoute
		}
	}
	return nil, ""
}

func (e *Engine) runCheck(ctx context.Context, st *script.CheckStep, sess *script.Session) (bool, error) {
	if e.checker == nil {
		return false, fmt.Errorf("step %s: no checker configured for action_type %q", st.ID, st.ActionType)
	}
	ok, err := e.checker.Check(ctx, st.ActionType, st.Field, sess.Fields[st.Field])
	if err != nil {
		return false, fmt.Errorf("step %s: check %s: %w", st.ID, st.ActionType, err)
	}
	return ok, nil
}

func (e *Engine) fail(in, sess *script.Session, cause error) (*script.Session, *Reply, error) {
	sess.Status = script.StatusFailed
	e.emit(sess, script.Event{Type: script.EventSessionFailed, StepID: in.Step, Detail: cause.Error()})
	e.logger.Error("session failed", "phone", sess.Phone, "session_id", sess.SessionID, "err", cause)
	return sess, nil, cause
}

func callerKind(known bool) string {
	if known {
		return "known_customer"
	}
	return "unknown_customer"
}

// greeting renders the script greeting for the caller, substituting the
// customer name placeholder.
func (e *Engine) greeting(sc *script.Script, sess *script.Session, known bool) string {
	if known {
		return strings.ReplaceAll(sc.GreetingKnown, "{customer_name}", sess.Fields["customer_name"])
	}
	return sc.GreetingUnknown
}
