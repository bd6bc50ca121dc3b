package compiler

import "fmt"

// Structural error codes. These block compilation; the editor surfaces them
// before save and must not persist the script.
const (
	CodeMissingStart   = "missing_start"
	CodeMultipleStart  = "multiple_start"
	CodeNoEntryEdge    = "no_entry_edge"
	CodeManyEntryEdges = "many_entry_edges"
	CodeBadHandle      = "bad_handle"
	CodeDanglingOption = "dangling_option"
	CodeDuplicateEdge  = "duplicate_edge"
	CodeUnknownKind    = "unknown_kind"
	CodeBadNodeData    = "bad_node_data"
)

// StructuralError reports a malformed graph. Compilation returns it instead
// of a script; it never panics into the caller.
type StructuralError struct {
	Code   string
	NodeID string
	Detail string
}

func (e *StructuralError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("structural error [%s]: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("structural error [%s] at node %s: %s", e.Code, e.NodeID, e.Detail)
}

func structuralf(code, nodeID, format string, args ...any) *StructuralError {
	return &StructuralError{Code: code, NodeID: nodeID, Detail: fmt.Sprintf(format, args...)}
}
