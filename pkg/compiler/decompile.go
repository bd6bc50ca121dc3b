package compiler

import (
	"fmt"
	"sort"

	"github.com/urbangroup/botflow/pkg/graph"
	"github.com/urbangroup/botflow/pkg/script"
)

// StartNodeID is the synthetic id of the start node a decompiled graph
// gets. It shares the step/terminal namespace, so scripts must not use it.
const StartNodeID = "__start__"

// Fallback layout. Used only for ids missing from _flow_positions; the
// result is cosmetic and the editor rewrites it on the first drag.
const (
	layoutColumnX     = 260.0
	layoutTopY        = 40.0
	layoutRowGapY     = 160.0
	layoutTerminalGap = 240.0
)

// Decompile reconstructs an editable graph from a stored canonical script.
// It is the inverse of Compile for all semantic fields.
func Decompile(s *script.Script) (*graph.Graph, error) {
	g := &graph.Graph{
		ScriptID:        s.ID,
		Name:            s.Name,
		GreetingKnown:   s.GreetingKnown,
		GreetingUnknown: s.GreetingUnknown,
		Active:          s.Active,
	}

	pos := positionFor(s)

	g.Nodes = append(g.Nodes, graph.Node{
		ID:       StartNodeID,
		Kind:     graph.KindStart,
		Position: pos(StartNodeID, 0, 0),
	})
	if s.FirstStep != "" {
		g.Edges = append(g.Edges, graph.Edge{Source: StartNodeID, Target: s.FirstStep})
	}

	for i, st := range s.Steps {
		node, edges, err := decompileStep(st, pos(st.StepID(), i+1, 0))
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, node)
		g.Edges = append(g.Edges, edges...)
	}

	// Terminals, sorted for a deterministic graph.
	ids := make([]string, 0, len(s.DoneActions))
	for id := range s.DoneActions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for j, id := range ids {
		da := s.DoneActions[id]
		data, err := graph.EncodeData(graph.TerminalData{
			Text:           da.Text,
			Action:         da.Action,
			TargetScriptID: da.TargetScriptID,
		})
		if err != nil {
			return nil, fmt.Errorf("terminal %s: %w", id, err)
		}
		g.Nodes = append(g.Nodes, graph.Node{
			ID:       id,
			Kind:     graph.KindTerminal,
			Position: pos(id, len(s.Steps)+1, j),
			Data:     data,
		})
	}

	return g, nil
}

// positionFor prefers stored layout hints and falls back to a vertical
// stack with terminals spread horizontally below the last step.
func positionFor(s *script.Script) func(id string, row, col int) script.Position {
	return func(id string, row, col int) script.Position {
		if p, ok := s.FlowPositions[id]; ok {
			return p
		}
		if col > 0 || s.IsDone(id) {
			return script.Position{
				X: layoutColumnX + float64(col)*layoutTerminalGap,
				Y: layoutTopY + float64(row)*layoutRowGapY,
			}
		}
		return script.Position{X: layoutColumnX, Y: layoutTopY + float64(row)*layoutRowGapY}
	}
}

func decompileStep(st script.Step, p script.Position) (graph.Node, []graph.Edge, error) {
	var (
		kind  string
		data  any
		edges []graph.Edge
	)
	id := st.StepID()

	switch v := st.(type) {
	case *script.PromptStep:
		kind = graph.KindPrompt
		data = graph.PromptData{Text: v.Text, SaveTo: v.SaveTo, SkipIf: v.SkipIf}
		if v.NextStep != "" {
			edges = append(edges, graph.Edge{Source: id, Target: v.NextStep})
		}
	case *script.ChoiceStep:
		kind = graph.KindChoice
		opts := make([]graph.OptionData, len(v.Buttons))
		for i, b := range v.Buttons {
			opts[i] = graph.OptionData{ID: b.ID, Title: b.Title, SkipIf: b.SkipIf}
			if b.NextStep != "" {
				edges = append(edges, graph.Edge{
					Source:       id,
					SourceHandle: graph.OptionHandle(i),
					Target:       b.NextStep,
					Label:        b.Title,
				})
			}
			edges = append(edges, skipEdge(id, b.SkipIf)...)
		}
		data = graph.ChoiceData{Text: v.Text, Options: opts, SkipIf: v.SkipIf}
	case *script.CheckStep:
		kind = graph.KindCheck
		data = graph.CheckData{
			ActionType:  v.ActionType,
			Field:       v.Field,
			Description: v.Description,
			SkipIf:      v.SkipIf,
		}
		if v.OnSuccess != "" {
			edges = append(edges, graph.Edge{
				Source:       id,
				SourceHandle: graph.HandleSuccess,
				Target:       v.OnSuccess,
				Label:        "success",
			})
		}
		if v.OnFailure != "" {
			edges = append(edges, graph.Edge{
				Source:       id,
				SourceHandle: graph.HandleFailure,
				Target:       v.OnFailure,
				Label:        "failure",
			})
		}
	default:
		return graph.Node{}, nil, fmt.Errorf("step %s: unsupported type %T", id, st)
	}

	edges = append(edges, skipEdge(id, st.Skip())...)

	encoded, err := graph.EncodeData(data)
	if err != nil {
		return graph.Node{}, nil, fmt.Errorf("step %s: %w", id, err)
	}
	return graph.Node{ID: id, Kind: kind, Position: p, Data: encoded}, edges, nil
}

// skipEdge visualizes a skip condition as a dashed, labeled edge. The
// condition itself lives in the node data; Compile ignores dashed edges.
func skipEdge(source string, c *script.SkipCondition) []graph.Edge {
	if c == nil || c.Goto == "" {
		return nil
	}
	return []graph.Edge{{
		Source: source,
		Target: c.Goto,
		Label:  "skip: " + c.Field,
		Dashed: true,
	}}
}
