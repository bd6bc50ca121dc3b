/*
Package engine walks canonical scripts against live conversations.

One Engine serves all scripts; one Session (pkg/script) tracks one phone
number's walk. Every transition appends typed events to the session log, and
that log is the diagnostics contract: a deployed engine is correct exactly
when it produces the same event trace for the same inputs.

The engine is deliberately not durable on its own. Callers persist the
returned session value (see pkg/session for the locking manager); a failed
save loses the transition, never corrupts it, because transitions operate on
a clone.
*/
package engine
