// Package compiler converts between the editor's graph representation and
// the canonical script format. Compile and Decompile are pure functions and
// inverses of each other for every semantic field; node positions survive
// round trips on a best-effort basis only.
package compiler

import (
	"github.com/urbangroup/botflow/pkg/graph"
	"github.com/urbangroup/botflow/pkg/script"
)

// Compile converts an authored graph into a canonical script.
//
// prev is the previously stored canonical form, if any. Steps that already
// exist keep their relative order so a re-save diffs cleanly; new steps are
// appended in graph order (the editor keeps nodes in authoring order).
// Passing nil prev orders all steps in graph order.
func Compile(g *graph.Graph, prev *script.Script) (*script.Script, error) {
	starts := g.StartNodes()
	switch {
	case len(starts) == 0:
		return nil, structuralf(CodeMissingStart, "", "graph has no start node")
	case len(starts) > 1:
		return nil, structuralf(CodeMultipleStart, starts[1].ID, "graph has %d start nodes", len(starts))
	}
	start := starts[0]

	if err := checkEdgePartition(g); err != nil {
		return nil, err
	}

	entry := solidEdges(g, start.ID)
	switch {
	case len(entry) == 0:
		return nil, structuralf(CodeNoEntryEdge, start.ID, "start node has no outgoing edge")
	case len(entry) > 1:
		return nil, structuralf(CodeManyEntryEdges, start.ID, "start node has %d outgoing edges", len(entry))
	}

	out := &script.Script{
		ID:              g.ScriptID,
		Name:            g.Name,
		GreetingKnown:   g.GreetingKnown,
		GreetingUnknown: g.GreetingUnknown,
		FirstStep:       entry[0].Target,
		Active:          g.Active,
		DoneActions:     map[string]script.DoneAction{},
		FlowPositions:   map[string]script.Position{},
	}
	if prev != nil {
		out.CreatedAt = prev.CreatedAt
		out.UpdatedAt = prev.UpdatedAt
	}

	compiled := map[string]script.Step{}
	var graphOrder []string

	for _, n := range g.Nodes {
		out.FlowPositions[n.ID] = n.Position

		switch n.Kind {
		case graph.KindStart:
			// Synthetic: consumed by first_step above.
		case graph.KindPrompt:
			st, err := compilePrompt(g, n)
			if err != nil {
				return nil, err
			}
			compiled[n.ID] = st
			graphOrder = append(graphOrder, n.ID)
		case graph.KindChoice:
			st, err := compileChoice(g, n, prev)
			if err != nil {
				return nil, err
			}
			compiled[n.ID] = st
			graphOrder = append(graphOrder, n.ID)
		case graph.KindCheck:
			st, err := compileCheck(g, n)
			if err != nil {
				return nil, err
			}
			compiled[n.ID] = st
			graphOrder = append(graphOrder, n.ID)
		case graph.KindTerminal:
			var data graph.TerminalData
			if err := n.DecodeData(&data); err != nil {
				return nil, structuralf(CodeBadNodeData, n.ID, "%v", err)
			}
			out.DoneActions[n.ID] = script.DoneAction{
				Text:           data.Text,
				Action:         data.Action,
				TargetScriptID: data.TargetScriptID,
			}
		default:
			return nil, structuralf(CodeUnknownKind, n.ID, "unknown node kind %q", n.Kind)
		}
	}

	out.Steps = orderSteps(compiled, graphOrder, prev)
	return out, nil
}

// orderSteps keeps the relative order of steps that survive from prev and
// appends new ones in graph order.
func orderSteps(compiled map[string]script.Step, graphOrder []string, prev *script.Script) script.Steps {
	var steps script.Steps
	seen := map[string]bool{}

	if prev != nil {
		for _, old := range prev.Steps {
			if st, ok := compiled[old.StepID()]; ok {
				steps = append(steps, st)
				seen[old.StepID()] = true
			}
		}
	}
	for _, id := range graphOrder {
		if !seen[id] {
			steps = append(steps, compiled[id])
		}
	}
	return steps
}

func compilePrompt(g *graph.Graph, n graph.Node) (script.Step, error) {
	var data graph.PromptData
	if err := n.DecodeData(&data); err != nil {
		return nil, structuralf(CodeBadNodeData, n.ID, "%v", err)
	}
	st := &script.PromptStep{
		ID:     n.ID,
		Text:   data.Text,
		SaveTo: data.SaveTo,
		SkipIf: data.SkipIf,
	}
	if e := g.EdgeByHandle(n.ID, ""); e != nil {
		st.NextStep = e.Target
	}
	return st, nil
}

func compileChoice(g *graph.Graph, n graph.Node, prev *script.Script) (script.Step, error) {
	var data graph.ChoiceData
	if err := n.DecodeData(&data); err != nil {
		return nil, structuralf(CodeBadNodeData, n.ID, "%v", err)
	}

	st := &script.ChoiceStep{
		ID:      n.ID,
		Text:    data.Text,
		SkipIf:  data.SkipIf,
		Buttons: make([]script.Button, len(data.Options)),
	}
	for i, opt := range data.Options {
		st.Buttons[i] = script.Button{
			ID:     opt.ID,
			Title:  opt.Title,
			SkipIf: opt.SkipIf,
		}
		if e := g.EdgeByHandle(n.ID, graph.OptionHandle(i)); e != nil {
			st.Buttons[i].NextStep = e.Target
		} else {
			// Unresolved option: keep the stored transition. A still-empty
			// next_step is a dead end, flagged by the validator, not here.
			st.Buttons[i].NextStep = prevButtonTarget(prev, n.ID, opt.ID)
		}
	}

	// Reject edges that name an option index the node does not have.
	for _, e := range solidEdges(g, n.ID) {
		i, ok := graph.ParseOptionHandle(e.SourceHandle)
		if !ok {
			return nil, structuralf(CodeBadHandle, n.ID, "choice edge with handle %q", e.SourceHandle)
		}
		if i >= len(data.Options) {
			return nil, structuralf(CodeDanglingOption, n.ID, "edge references option %d of %d", i, len(data.Options))
		}
	}
	return st, nil
}

func compileCheck(g *graph.Graph, n graph.Node) (script.Step, error) {
	var data graph.CheckData
	if err := n.DecodeData(&data); err != nil {
		return nil, structuralf(CodeBadNodeData, n.ID, "%v", err)
	}
	st := &script.CheckStep{
		ID:          n.ID,
		ActionType:  data.ActionType,
		Field:       data.Field,
		Description: data.Description,
		SkipIf:      data.SkipIf,
	}
	for _, e := range solidEdges(g, n.ID) {
		switch e.SourceHandle {
		case graph.HandleSuccess:
			st.OnSuccess = e.Target
		case graph.HandleFailure:
			st.OnFailure = e.Target
		default:
			return nil, structuralf(CodeBadHandle, n.ID, "check edge with handle %q", e.SourceHandle)
		}
	}
	return st, nil
}

// prevButtonTarget looks up the transition a button held in the previously
// stored script, matching by button id.
func prevButtonTarget(prev *script.Script, stepID, buttonID string) string {
	if prev == nil {
		return ""
	}
	old, ok := prev.FindStep(stepID).(*script.ChoiceStep)
	if !ok {
		return ""
	}
	for _, b := range old.Buttons {
		if b.ID == buttonID {
			return b.NextStep
		}
	}
	return ""
}

// solidEdges returns the non-dashed outgoing edges of a node. Dashed edges
// visualize skip conditions and carry no transition of their own.
func solidEdges(g *graph.Graph, nodeID string) []graph.Edge {
	var out []graph.Edge
	for _, e := range g.OutgoingEdges(nodeID) {
		if !e.Dashed {
			out = append(out, e)
		}
	}
	return out
}

// checkEdgePartition rejects two outgoing edges sharing one handle: each
// branch of a multi-exit node owns at most one transition.
func checkEdgePartition(g *graph.Graph) error {
	type key struct{ source, handle string }
	seen := map[key]bool{}
	for _, e := range g.Edges {
		if e.Dashed {
			continue
		}
		k := key{e.Source, e.SourceHandle}
		if seen[k] {
			return structuralf(CodeDuplicateEdge, e.Source, "two edges on handle %q", e.SourceHandle)
		}
		seen[k] = true
	}
	return nil
}
