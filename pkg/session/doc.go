// Package session serializes access to conversation sessions. Concurrent
// inbound messages for one phone number must not race on the field map, so
// the Manager guarantees at most one in-flight transition per phone: a
// refcounted local mutex per key, plus an optional distributed locker when
// several replicas share the store.
package session
