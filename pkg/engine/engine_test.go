package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbangroup/botflow/internal/adapters/memory"
	"github.com/urbangroup/botflow/pkg/engine"
	"github.com/urbangroup/botflow/pkg/ports"
	"github.com/urbangroup/botflow/pkg/script"
)

// stubClassifier routes any text to a fixed option id.
type stubClassifier struct {
	optionID string
	err      error
}

func (c *stubClassifier) Classify(ctx context.Context, text string, options []script.Button) (string, error) {
	return c.optionID, c.err
}

// stubChecker answers by field value.
type stubChecker struct {
	ok  bool
	err error
}

func (c *stubChecker) Check(ctx context.Context, actionType, field, value string) (bool, error) {
	return c.ok, c.err
}

type stubDirectory struct {
	info ports.CustomerInfo
	err  error
}

func (d *stubDirectory) Lookup(ctx context.Context, phone string) (ports.CustomerInfo, error) {
	return d.info, d.err
}

// recordingSink captures executed done actions.
type recordingSink struct {
	actions []string
	err     error
}

func (s *recordingSink) Execute(ctx context.Context, action string, sess *script.Session) error {
	s.actions = append(s.actions, action)
	return s.err
}

func troubleshootScript() *script.Script {
	return &script.Script{
		ID:              "M10010",
		Name:            "Troubleshoot",
		GreetingKnown:   "Hello {customer_name}!",
		GreetingUnknown: "Hello! Who am I talking to?",
		FirstStep:       "GREETING",
		Active:          true,
		Steps: script.Steps{
			&script.ChoiceStep{ID: "GREETING", Text: "What would you like to do?", Buttons: []script.Button{
				{ID: "intent_fault", Title: "Report a fault", NextStep: "ASK_DEVICE",
					SkipIf: &script.SkipCondition{Field: "device_number", Mode: script.SkipNotEmpty, Goto: "LOOKUP"}},
				{ID: "intent_message", Title: "Leave a message", NextStep: "GET_MESSAGE"},
			}},
			&script.PromptStep{ID: "ASK_DEVICE", Text: "Which device?", SaveTo: "device_number", NextStep: "LOOKUP"},
			&script.CheckStep{ID: "LOOKUP", ActionType: "equipment_lookup", Field: "device_number",
				Description: "Checking the device...", OnSuccess: "DESCRIBE", OnFailure: "ASK_DEVICE"},
			&script.PromptStep{ID: "DESCRIBE", Text: "Describe the fault:", SaveTo: "fault_description", NextStep: "DONE_FAULT"},
			&script.PromptStep{ID: "GET_MESSAGE", Text: "Send your message:", SaveTo: "customer_message", NextStep: "DONE_MESSAGE"},
		},
		DoneActions: map[string]script.DoneAction{
			"DONE_FAULT":   {Text: "A technician will call you.", Action: script.ActionSaveServiceCall},
			"DONE_MESSAGE": {Text: "Thanks, noted!", Action: script.ActionSaveMessage},
		},
	}
}

func newEngine(t *testing.T, scripts []*script.Script, opts ...engine.Option) *engine.Engine {
	t.Helper()
	store := memory.NewScriptStore()
	for _, sc := range scripts {
		require.NoError(t, store.Put(context.Background(), sc))
	}
	n := 0
	base := append([]engine.Option{
		engine.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
		engine.WithIDGenerator(func() string { n++; return fmt.Sprintf("sess-%d", n) }),
	}, opts...)
	return engine.New(store, base...)
}

func eventTypes(log []script.Event) []script.EventType {
	out := make([]script.EventType, len(log))
	for i, e := range log {
		out[i] = e.Type
	}
	return out
}

func TestStartSession_UnknownCaller(t *testing.T) {
	e := newEngine(t, []*script.Script{troubleshootScript()})

	sess, reply, err := e.StartSession(context.Background(), "5511999990000", "M10010")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", sess.SessionID)
	assert.Equal(t, "GREETING", sess.Step)
	assert.Equal(t, script.StatusActive, sess.Status)

	assert.Contains(t, reply.Text, "Hello! Who am I talking to?")
	assert.Contains(t, reply.Text, "What would you like to do?")
	require.Len(t, reply.Buttons, 2)
	assert.Equal(t, "Report a fault", reply.Buttons[0].Title)

	require.Len(t, sess.Log, 2)
	assert.Equal(t, script.EventSessionStart, sess.Log[0].Type)
	assert.Equal(t, "unknown_customer", sess.Log[0].Detail)
	assert.Equal(t, script.EventStepShown, sess.Log[1].Type)
}

func TestStartSession_KnownCallerGreeting(t *testing.T) {
	dir := &stubDirectory{info: ports.CustomerInfo{Name: "Maria", CustomerNumber: "C-7", DeviceNumber: "D-42"}}
	e := newEngine(t, []*script.Script{troubleshootScript()}, engine.WithDirectory(dir))

	sess, reply, err := e.StartSession(context.Background(), "5511999990000", "M10010")
	require.NoError(t, err)

	assert.Contains(t, reply.Text, "Hello Maria!")
	assert.Equal(t, "D-42", sess.Fields["device_number"])
	assert.Equal(t, "known_customer", sess.Log[0].Detail)
}

func TestStartSession_DirectoryFailureDegradesToUnknown(t *testing.T) {
	dir := &stubDirectory{err: errors.New("directory down")}
	e := newEngine(t, []*script.Script{troubleshootScript()}, engine.WithDirectory(dir))

	sess, reply, err := e.StartSession(context.Background(), "5511999990000", "M10010")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Hello! Who am I talking to?")
	assert.Equal(t, "unknown_customer", sess.Log[0].Detail)
}

func TestStartSession_InactiveScript(t *testing.T) {
	sc := troubleshootScript()
	sc.Active = false
	e := newEngine(t, []*script.Script{sc})

	_, _, err := e.StartSession(context.Background(), "5511999990000", "M10010")
	assert.ErrorIs(t, err, engine.ErrScriptInactive)
}

func TestStartSession_DanglingFirstStepFailsSession(t *testing.T) {
	sc := troubleshootScript()
	sc.FirstStep = "NOWHERE"
	e := newEngine(t, []*script.Script{sc})

	failed, reply, err := e.StartSession(context.Background(), "551", "M10010")
	var dangling *engine.DanglingTargetError
	require.ErrorAs(t, err, &dangling)
	assert.Nil(t, reply)

	// The session comes back failed so the caller can persist it for the
	// diagnostics view.
	require.NotNil(t, failed)
	assert.Equal(t, script.StatusFailed, failed.Status)
	assert.Equal(t, script.EventSessionFailed, failed.Log[len(failed.Log)-1].Type)
}

func TestHandleMessage_ButtonMatch(t *testing.T) {
	e := newEngine(t, []*script.Script{troubleshootScript()})
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	// Title match, case-insensitive.
	next, reply, err := e.HandleMessage(context.Background(), sess, "report a FAULT")
	require.NoError(t, err)
	assert.Equal(t, "ASK_DEVICE", next.Step)
	assert.Equal(t, "Which device?", reply.Text)

	last := next.Log[len(next.Log)-2]
	assert.Equal(t, script.EventButtonMatched, last.Type)
	assert.Equal(t, "intent_fault", last.Option)
}

func TestHandleMessage_UnmatchedInputNudges(t *testing.T) {
	e := newEngine(t, []*script.Script{troubleshootScript()})
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	next, reply, err := e.HandleMessage(context.Background(), sess, "blah blah")
	require.NoError(t, err)

	// No transition, same log, the prompt re-sent with a nudge.
	assert.Same(t, sess, next)
	assert.Contains(t, reply.Text, "Please pick one of the options:")
	assert.Contains(t, reply.Text, "What would you like to do?")
	require.Len(t, reply.Buttons, 2)
}

func TestHandleMessage_ClassifierRoute(t *testing.T) {
	e := newEngine(t, []*script.Script{troubleshootScript()},
		engine.WithClassifier(&stubClassifier{optionID: "intent_message"}))
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	next, reply, err := e.HandleMessage(context.Background(), sess, "i want to leave a note for the office")
	require.NoError(t, err)
	assert.Equal(t, "GET_MESSAGE", next.Step)
	assert.Equal(t, "Send your message:", reply.Text)

	routed := next.Log[len(next.Log)-2]
	assert.Equal(t, script.EventLLMRoute, routed.Type)
	assert.Equal(t, "intent_message", routed.Option)
}

func TestHandleMessage_ClassifierFailureNudges(t *testing.T) {
	e := newEngine(t, []*script.Script{troubleshootScript()},
		engine.WithClassifier(&stubClassifier{err: errors.New("model timeout")}))
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	next, reply, err := e.HandleMessage(context.Background(), sess, "hmm")
	require.NoError(t, err)
	assert.Same(t, sess, next)
	assert.Contains(t, reply.Text, "Please pick one of the options:")
}

func TestHandleMessage_PromptSavesField(t *testing.T) {
	e := newEngine(t, []*script.Script{troubleshootScript()},
		engine.WithChecker(&stubChecker{ok: true}))
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	sess, _, err = e.HandleMessage(context.Background(), sess, "intent_fault")
	require.NoError(t, err)
	require.Equal(t, "ASK_DEVICE", sess.Step)

	sess, reply, err := e.HandleMessage(context.Background(), sess, "D-42")
	require.NoError(t, err)
	assert.Equal(t, "D-42", sess.Fields["device_number"])
	assert.Equal(t, "LOOKUP", sess.Step)
	assert.Equal(t, "Checking the device...", reply.Text)
}

func TestHandleMessage_SkipPrecedesDisplay(t *testing.T) {
	// A known device number skips ASK_DEVICE entirely: the button's own skip
	// condition routes straight to LOOKUP and ASK_DEVICE is never shown.
	dir := &stubDirectory{info: ports.CustomerInfo{Name: "Maria", DeviceNumber: "D-42"}}
	e := newEngine(t, []*script.Script{troubleshootScript()}, engine.WithDirectory(dir))
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	next, reply, err := e.HandleMessage(context.Background(), sess, "intent_fault")
	require.NoError(t, err)
	assert.Equal(t, "LOOKUP", next.Step)
	assert.Equal(t, "Checking the device...", reply.Text)

	types := eventTypes(next.Log)
	assert.Contains(t, types, script.EventSkipIfTriggered)
	for _, ev := range next.Log {
		if ev.Type == script.EventStepShown {
			assert.NotEqual(t, "ASK_DEVICE", ev.StepID, "skipped step must never be shown")
		}
	}
}

func TestHandleMessage_StepSkipFollowsChain(t *testing.T) {
	// ASK_DEVICE's own skip condition fires when the field arrives some other
	// way, e.g. via an earlier prompt.
	sc := troubleshootScript()
	sc.Steps[0].(*script.ChoiceStep).Buttons[0].SkipIf = nil
	sc.Steps[1].(*script.PromptStep).SkipIf = &script.SkipCondition{
		Field: "device_number", Mode: script.SkipNotEmpty, Goto: "LOOKUP",
	}
	e := newEngine(t, []*script.Script{sc}, engine.WithChecker(&stubChecker{ok: true}))

	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)
	sess.Fields["device_number"] = "D-42"

	next, reply, err := e.HandleMessage(context.Background(), sess, "intent_fault")
	require.NoError(t, err)
	assert.Equal(t, "LOOKUP", next.Step)
	assert.Equal(t, "Checking the device...", reply.Text)
}

func TestHandleMessage_CheckStepBranches(t *testing.T) {
	run := func(t *testing.T, ok bool) *script.Session {
		e := newEngine(t, []*script.Script{troubleshootScript()},
			engine.WithChecker(&stubChecker{ok: ok}))
		sess, _, err := e.StartSession(context.Background(), "551", "M10010")
		require.NoError(t, err)
		sess, _, err = e.HandleMessage(context.Background(), sess, "intent_fault")
		require.NoError(t, err)
		sess, _, err = e.HandleMessage(context.Background(), sess, "D-42")
		require.NoError(t, err)
		require.Equal(t, "LOOKUP", sess.Step)

		// Any inbound message triggers the pending check.
		sess, _, err = e.HandleMessage(context.Background(), sess, "ok")
		require.NoError(t, err)
		return sess
	}

	t.Run("success", func(t *testing.T) {
		sess := run(t, true)
		assert.Equal(t, "DESCRIBE", sess.Step)
	})
	t.Run("failure", func(t *testing.T) {
		sess := run(t, false)
		// The failed lookup routes to on_failure: the device is asked again.
		assert.Equal(t, "ASK_DEVICE", sess.Step)
		assert.Equal(t, script.StatusActive, sess.Status)

		var checked *script.Event
		for i := range sess.Log {
			if sess.Log[i].Type == script.EventActionExecuted {
				checked = &sess.Log[i]
			}
		}
		require.NotNil(t, checked)
		require.NotNil(t, checked.Success)
		assert.False(t, *checked.Success)
	})
}

func TestHandleMessage_DoneActionExecutesSink(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, []*script.Script{troubleshootScript()}, engine.WithSink(sink))
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	sess, _, err = e.HandleMessage(context.Background(), sess, "intent_message")
	require.NoError(t, err)
	sess, reply, err := e.HandleMessage(context.Background(), sess, "the gate does not close")
	require.NoError(t, err)

	assert.Equal(t, script.StatusDone, sess.Status)
	assert.Equal(t, "DONE_MESSAGE", sess.Step)
	assert.Equal(t, "Thanks, noted!", reply.Text)
	assert.Equal(t, []string{script.ActionSaveMessage}, sink.actions)
	assert.Equal(t, script.EventSessionDone, sess.Log[len(sess.Log)-1].Type)
}

func TestHandleMessage_SinkFailureStillCloses(t *testing.T) {
	sink := &recordingSink{err: errors.New("queue full")}
	e := newEngine(t, []*script.Script{troubleshootScript()}, engine.WithSink(sink))
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	sess, _, err = e.HandleMessage(context.Background(), sess, "intent_message")
	require.NoError(t, err)
	sess, _, err = e.HandleMessage(context.Background(), sess, "hello?")
	require.NoError(t, err)
	assert.Equal(t, script.StatusDone, sess.Status)
}

func TestHandleMessage_ScriptHandoff(t *testing.T) {
	first := troubleshootScript()
	first.DoneActions["DONE_MESSAGE"] = script.DoneAction{
		Text:           "Switching you over.",
		Action:         script.ActionSwitchScript,
		TargetScriptID: "M20020",
	}
	second := &script.Script{
		ID:        "M20020",
		Name:      "Billing",
		FirstStep: "ASK_INVOICE",
		Active:    true,
		Steps: script.Steps{
			&script.PromptStep{ID: "ASK_INVOICE", Text: "Which invoice?", SaveTo: "invoice", NextStep: "DONE_BILLING"},
		},
		DoneActions: map[string]script.DoneAction{
			"DONE_BILLING": {Text: "Billing will reply.", Action: script.ActionSaveMessage},
		},
	}
	e := newEngine(t, []*script.Script{first, second})

	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)
	sess, _, err = e.HandleMessage(context.Background(), sess, "intent_message")
	require.NoError(t, err)

	sess, reply, err := e.HandleMessage(context.Background(), sess, "about my bill")
	require.NoError(t, err)

	// Still active, now inside the target script, fields carried over.
	assert.Equal(t, script.StatusActive, sess.Status)
	assert.Equal(t, "M20020", sess.ScriptID)
	assert.Equal(t, "ASK_INVOICE", sess.Step)
	assert.Equal(t, "about my bill", sess.Fields["customer_message"])

	// The terminal text and the next prompt arrive in one reply.
	assert.Contains(t, reply.Text, "Switching you over.")
	assert.Contains(t, reply.Text, "Which invoice?")

	var sw *script.Event
	for i := range sess.Log {
		if sess.Log[i].Type == script.EventSwitchScript {
			sw = &sess.Log[i]
		}
	}
	require.NotNil(t, sw)
	assert.Equal(t, "M10010", sw.FromScript)
	assert.Equal(t, "M20020", sw.ToScript)

	// The handed-off conversation keeps going in the new script.
	sess, reply, err = e.HandleMessage(context.Background(), sess, "invoice 1234")
	require.NoError(t, err)
	assert.Equal(t, script.StatusDone, sess.Status)
	assert.Equal(t, "Billing will reply.", reply.Text)
}

func TestHandleMessage_HandoffToMissingScriptFails(t *testing.T) {
	first := troubleshootScript()
	first.DoneActions["DONE_MESSAGE"] = script.DoneAction{
		Text:           "Switching you over.",
		Action:         script.ActionSwitchScript,
		TargetScriptID: "GONE",
	}
	e := newEngine(t, []*script.Script{first})

	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)
	sess, _, err = e.HandleMessage(context.Background(), sess, "intent_message")
	require.NoError(t, err)

	failed, _, err := e.HandleMessage(context.Background(), sess, "msg")
	var dangling *engine.DanglingTargetError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, script.StatusFailed, failed.Status)
	assert.Equal(t, script.EventSessionFailed, failed.Log[len(failed.Log)-1].Type)
}

func TestHandleMessage_DanglingTargetFailsSession(t *testing.T) {
	sc := troubleshootScript()
	sc.Steps[4].(*script.PromptStep).NextStep = "NOWHERE"
	e := newEngine(t, []*script.Script{sc})

	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)
	sess, _, err = e.HandleMessage(context.Background(), sess, "intent_message")
	require.NoError(t, err)

	failed, reply, err := e.HandleMessage(context.Background(), sess, "msg")
	var dangling *engine.DanglingTargetError
	require.ErrorAs(t, err, &dangling)
	assert.Nil(t, reply)
	assert.Equal(t, script.StatusFailed, failed.Status)
}

func TestHandleMessage_SkipCycleKeepsLastStableStep(t *testing.T) {
	sc := troubleshootScript()
	sc.Steps[0].(*script.ChoiceStep).Buttons[0].SkipIf = nil
	// ASK_DEVICE and DESCRIBE skip to each other once the field is set.
	sc.Steps[1].(*script.PromptStep).SkipIf = &script.SkipCondition{
		Field: "device_number", Mode: script.SkipNotEmpty, Goto: "DESCRIBE",
	}
	sc.Steps[3].(*script.PromptStep).SkipIf = &script.SkipCondition{
		Field: "device_number", Mode: script.SkipNotEmpty, Goto: "ASK_DEVICE",
	}
	e := newEngine(t, []*script.Script{sc})

	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)
	sess.Fields["device_number"] = "D-42"

	out, _, err := e.HandleMessage(context.Background(), sess, "intent_fault")
	var cyc *engine.SkipCycleError
	require.ErrorAs(t, err, &cyc)

	// The transition is aborted: caller keeps the last stable step, active.
	assert.Same(t, sess, out)
	assert.Equal(t, "GREETING", out.Step)
	assert.Equal(t, script.StatusActive, out.Status)
}

func TestHandleMessage_FinishedSessionRejected(t *testing.T) {
	e := newEngine(t, []*script.Script{troubleshootScript()})
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)
	sess.Status = script.StatusDone

	_, _, err = e.HandleMessage(context.Background(), sess, "hi")
	assert.ErrorIs(t, err, engine.ErrSessionNotActive)
}

func TestInjectTransition(t *testing.T) {
	e := newEngine(t, []*script.Script{troubleshootScript()})
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	next, reply, err := e.InjectTransition(context.Background(), sess, "GET_MESSAGE")
	require.NoError(t, err)
	assert.Equal(t, "GET_MESSAGE", next.Step)
	assert.Equal(t, "Send your message:", reply.Text)

	auto := next.Log[len(next.Log)-2]
	assert.Equal(t, script.EventInstructionsAuto, auto.Type)
	assert.Equal(t, "GET_MESSAGE", auto.Target)
}

func TestEventHookSeesEveryEvent(t *testing.T) {
	var seen []script.EventType
	e := newEngine(t, []*script.Script{troubleshootScript()},
		engine.WithEventHook(func(ev script.Event) { seen = append(seen, ev.Type) }))

	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)
	sess, _, err = e.HandleMessage(context.Background(), sess, "intent_message")
	require.NoError(t, err)
	sess, _, err = e.HandleMessage(context.Background(), sess, "hi")
	require.NoError(t, err)

	assert.Equal(t, eventTypes(sess.Log), seen)
	assert.Equal(t, script.StatusDone, sess.Status)
}

func TestHandleMessage_DoesNotMutateInput(t *testing.T) {
	e := newEngine(t, []*script.Script{troubleshootScript()})
	sess, _, err := e.StartSession(context.Background(), "551", "M10010")
	require.NoError(t, err)

	before := sess.Clone()
	_, _, err = e.HandleMessage(context.Background(), sess, "intent_message")
	require.NoError(t, err)
	assert.Equal(t, before, sess)
}
