/*
Package script defines the canonical, storage-ready representation of a bot
conversation script.

A Script is an id-addressed set of steps plus a map of terminal ("done")
actions. Steps form a directed graph: every next_step, on_success, on_failure,
button next_step and skip_if goto points at another step id or a done action
id. The visual editor authors scripts as a node/edge graph (package graph) and
compiles them into this form (package compiler); the runtime engine walks the
canonical form only (package engine).

The JSON field names in this package are the persistence contract. Scripts are
stored by external key/record stores keyed by script_id, and the WhatsApp bot
reads them verbatim, so renaming a tag here is a breaking change.
*/
package script
