package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/urbangroup/botflow/internal/adapters/http"
	"github.com/urbangroup/botflow/internal/adapters/memory"
	"github.com/urbangroup/botflow/pkg/engine"
	"github.com/urbangroup/botflow/pkg/graph"
	"github.com/urbangroup/botflow/pkg/script"
	"github.com/urbangroup/botflow/pkg/session"
)

func testScript() *script.Script {
	return &script.Script{
		ID:              "M10010",
		Name:            "Troubleshoot",
		GreetingKnown:   "Hi {customer_name}!",
		GreetingUnknown: "Hi!",
		FirstStep:       "ASK_ISSUE",
		Active:          true,
		Steps: script.Steps{
			&script.ChoiceStep{ID: "ASK_ISSUE", Text: "What is wrong?", Buttons: []script.Button{
				{ID: "no_power", Title: "No power", NextStep: "GET_DETAILS"},
				{ID: "other", Title: "Other", NextStep: "DONE_ESCALATE"},
			}},
			&script.PromptStep{ID: "GET_DETAILS", Text: "Describe the problem.", SaveTo: "details", NextStep: "DONE_SAVE"},
		},
		DoneActions: map[string]script.DoneAction{
			"DONE_SAVE":     {Text: "Thanks, noted!", Action: script.ActionSaveMessage},
			"DONE_ESCALATE": {Text: "Forwarding you to a colleague.", Action: script.ActionEscalate},
		},
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	scripts := memory.NewScriptStore()
	sessions := session.NewManager(memory.NewSessionStore())
	eng := engine.New(scripts)
	return httpadapter.NewServer(scripts, sessions, eng).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGetHealth(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestPutScript_SavesAndStamps(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, "PUT", "/api/scripts/M10010", testScript())

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Script *script.Script `json:"script"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "M10010", resp.Script.ID)
	assert.NotEmpty(t, resp.Script.CreatedAt)
	assert.NotEmpty(t, resp.Script.UpdatedAt)
}

func TestPutScript_RejectsInvalid(t *testing.T) {
	h := newTestHandler(t)
	sc := testScript()
	sc.FirstStep = "NO_SUCH_STEP"

	rr := doJSON(t, h, "PUT", "/api/scripts/M10010", sc)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestGetScript_NotFound(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, "GET", "/api/scripts/MISSING", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGraphRoundTrip(t *testing.T) {
	h := newTestHandler(t)
	require.Equal(t, http.StatusOK, doJSON(t, h, "PUT", "/api/scripts/M10010", testScript()).Code)

	rr := doJSON(t, h, "GET", "/api/scripts/M10010/graph", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var g graph.Graph
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &g))
	assert.Equal(t, "M10010", g.ScriptID)
	assert.NotNil(t, g.NodeByID("__start__"))

	// Saving the graph back must not change the stored steps.
	rr = doJSON(t, h, "PUT", "/api/scripts/M10010/graph", g)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Script *script.Script `json:"script"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Script.Steps, 2)
	assert.Equal(t, "ASK_ISSUE", resp.Script.Steps[0].StepID())
	assert.Equal(t, "GET_DETAILS", resp.Script.Steps[1].StepID())
}

func TestPutGraph_StructuralError(t *testing.T) {
	h := newTestHandler(t)

	// Graph without a start node cannot compile.
	g := graph.Graph{
		Nodes: []graph.Node{{ID: "A", Kind: graph.KindPrompt, Data: map[string]any{"text": "hi"}}},
	}
	rr := doJSON(t, h, "PUT", "/api/scripts/M10010/graph", g)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestSessionFlow(t *testing.T) {
	h := newTestHandler(t)
	require.Equal(t, http.StatusOK, doJSON(t, h, "PUT", "/api/scripts/M10010", testScript()).Code)

	// Start: greeting plus the first choice step.
	rr := doJSON(t, h, "POST", "/api/sessions", map[string]string{
		"phone":     "5511999990000",
		"script_id": "M10010",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var started struct {
		Session *script.Session `json:"session"`
		Reply   *engine.Reply   `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))
	assert.Equal(t, "ASK_ISSUE", started.Session.Step)
	assert.Contains(t, started.Reply.Text, "Hi!")
	assert.Contains(t, started.Reply.Text, "What is wrong?")
	require.Len(t, started.Reply.Buttons, 2)

	// Answer with a button id.
	rr = doJSON(t, h, "POST", "/api/sessions/5511999990000/messages", map[string]string{"text": "no_power"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var answered struct {
		Session *script.Session `json:"session"`
		Reply   *engine.Reply   `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &answered))
	assert.Equal(t, "GET_DETAILS", answered.Session.Step)
	assert.Equal(t, "Describe the problem.", answered.Reply.Text)

	// Free text lands in the saved field and finishes the script.
	rr = doJSON(t, h, "POST", "/api/sessions/5511999990000/messages", map[string]string{"text": "screen stays black"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &answered))
	assert.Equal(t, script.StatusDone, answered.Session.Status)
	assert.Equal(t, "screen stays black", answered.Session.Fields["details"])

	// Diagnostics view returns the full event log.
	rr = doJSON(t, h, "GET", "/api/sessions/5511999990000", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var sess script.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.Log)
	assert.Equal(t, script.EventSessionStart, sess.Log[0].Type)
	assert.Equal(t, script.EventSessionDone, sess.Log[len(sess.Log)-1].Type)
}

func TestStartSession_InactiveScript(t *testing.T) {
	h := newTestHandler(t)
	sc := testScript()
	sc.Active = false
	require.Equal(t, http.StatusOK, doJSON(t, h, "PUT", "/api/scripts/M10010", sc).Code)

	rr := doJSON(t, h, "POST", "/api/sessions", map[string]string{
		"phone":     "5511999990000",
		"script_id": "M10010",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestPostMessage_UnknownSession(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, "POST", "/api/sessions/000/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
