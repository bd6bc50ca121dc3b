// Package graph holds the visual authoring representation of a bot script:
// typed nodes placed on a canvas, connected by handle-labeled edges. The
// editor ships this shape verbatim; the compiler package converts it to and
// from the canonical form.
package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/urbangroup/botflow/pkg/script"
)

// Node kinds. Start is synthetic: it exists only in the graph and marks the
// entry edge; it never compiles to a step.
const (
	KindStart    = "start"
	KindPrompt   = "prompt"
	KindChoice   = "choice"
	KindCheck    = "check"
	KindTerminal = "terminal"
)

// Edge source handles for multi-exit nodes.
const (
	HandleSuccess = "success"
	HandleFailure = "failure"

	optionHandlePrefix = "option-"
)

// OptionHandle names the outgoing handle for a choice node's i-th option.
func OptionHandle(i int) string {
	return optionHandlePrefix + strconv.Itoa(i)
}

// ParseOptionHandle extracts the option index from an "option-<i>" handle.
func ParseOptionHandle(handle string) (int, bool) {
	if !strings.HasPrefix(handle, optionHandlePrefix) {
		return 0, false
	}
	i, err := strconv.Atoi(handle[len(optionHandlePrefix):])
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Node is one element on the editor canvas. Data holds the kind-specific
// payload as the editor sends it (a loose map); DecodeData projects it onto
// the typed payload structs.
type Node struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Position script.Position `json:"position"`
	Data     map[string]any  `json:"data,omitempty"`
}

// Edge is a directed connection. SourceHandle selects which outgoing branch
// of a multi-exit node this edge represents; empty for single-exit nodes.
type Edge struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	Label        string `json:"label,omitempty"`
	// Dashed marks skip-condition edges so the editor can style them apart.
	Dashed bool `json:"dashed,omitempty"`
}

// Graph is the authored script plus script-level metadata that has no node
// of its own (name, greetings, active flag).
type Graph struct {
	ScriptID        string `json:"scriptId"`
	Name            string `json:"name"`
	GreetingKnown   string `json:"greetingKnown,omitempty"`
	GreetingUnknown string `json:"greetingUnknown,omitempty"`
	Active          bool   `json:"active"`
	Nodes           []Node `json:"nodes"`
	Edges           []Edge `json:"edges"`
}

// StartNodes returns all nodes of kind start. A well-formed graph has
// exactly one; the compiler rejects anything else.
func (g *Graph) StartNodes() []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Kind == KindStart {
			out = append(out, n)
		}
	}
	return out
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// OutgoingEdges returns the edges leaving a node, sorted by handle so
// option-0 precedes option-1 regardless of authoring order.
func (g *Graph) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SourceHandle < out[j].SourceHandle
	})
	return out
}

// EdgeByHandle returns the edge leaving nodeID on the given handle, or nil.
func (g *Graph) EdgeByHandle(nodeID, handle string) *Edge {
	for i := range g.Edges {
		if g.Edges[i].Source == nodeID && g.Edges[i].SourceHandle == handle && !g.Edges[i].Dashed {
			return &g.Edges[i]
		}
	}
	return nil
}

// ValidateKind checks that kind is one of the known node kinds.
func ValidateKind(kind string) error {
	switch kind {
	case KindStart, KindPrompt, KindChoice, KindCheck, KindTerminal:
		return nil
	}
	return fmt.Errorf("unknown node kind %q", kind)
}
