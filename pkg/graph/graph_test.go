package graph_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbangroup/botflow/pkg/graph"
	"github.com/urbangroup/botflow/pkg/script"
)

func TestOptionHandles(t *testing.T) {
	assert.Equal(t, "option-0", graph.OptionHandle(0))
	assert.Equal(t, "option-2", graph.OptionHandle(2))

	i, ok := graph.ParseOptionHandle("option-1")
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = graph.ParseOptionHandle("success")
	assert.False(t, ok)
	_, ok = graph.ParseOptionHandle("option-x")
	assert.False(t, ok)
	_, ok = graph.ParseOptionHandle("option--1")
	assert.False(t, ok)
}

func TestOutgoingEdges_SortedByHandle(t *testing.T) {
	g := &graph.Graph{Edges: []graph.Edge{
		{Source: "C", SourceHandle: "option-1", Target: "B"},
		{Source: "C", SourceHandle: "option-0", Target: "A"},
		{Source: "X", Target: "Y"},
	}}

	out := g.OutgoingEdges("C")
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Target)
	assert.Equal(t, "B", out[1].Target)
}

func TestEdgeByHandle_IgnoresDashed(t *testing.T) {
	g := &graph.Graph{Edges: []graph.Edge{
		{Source: "P", Target: "SKIPPED", Dashed: true},
		{Source: "P", Target: "NEXT"},
	}}

	e := g.EdgeByHandle("P", "")
	require.NotNil(t, e)
	assert.Equal(t, "NEXT", e.Target)
}

func TestNodeData_DecodeFromEditorJSON(t *testing.T) {
	// The shape the editor posts, after generic JSON decoding.
	raw := `{
		"id": "GREETING",
		"kind": "choice",
		"position": {"x": 100, "y": 40},
		"data": {
			"text": "What would you like to do?",
			"options": [
				{"id": "a", "title": "Option A",
				 "skip_if": {"field": "device_number", "mode": "not_empty", "goto": "LOOKUP"}}
			]
		}
	}`
	var n graph.Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	var data graph.ChoiceData
	require.NoError(t, n.DecodeData(&data))

	assert.Equal(t, "What would you like to do?", data.Text)
	require.Len(t, data.Options, 1)
	require.NotNil(t, data.Options[0].SkipIf)
	assert.Equal(t, script.SkipNotEmpty, data.Options[0].SkipIf.Mode)
	assert.Equal(t, "LOOKUP", data.Options[0].SkipIf.Goto)
}

func TestEncodeDecodeData_RoundTrip(t *testing.T) {
	in := graph.CheckData{
		ActionType:  "equipment_lookup",
		Field:       "device_number",
		Description: "Checking...",
		SkipIf:      &script.SkipCondition{Field: "device_number", Mode: script.SkipEmpty, Goto: "ASK"},
	}

	m, err := graph.EncodeData(in)
	require.NoError(t, err)

	n := graph.Node{ID: "LOOKUP", Kind: graph.KindCheck, Data: m}
	var out graph.CheckData
	require.NoError(t, n.DecodeData(&out))
	assert.Equal(t, in, out)
}

func TestValidateKind(t *testing.T) {
	for _, kind := range []string{graph.KindStart, graph.KindPrompt, graph.KindChoice, graph.KindCheck, graph.KindTerminal} {
		assert.NoError(t, graph.ValidateKind(kind))
	}
	assert.Error(t, graph.ValidateKind("carousel"))
}
