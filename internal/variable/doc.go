// Package variable provides the shared runtime variable store.
//
// Variables are typed (bool, int, float, string) and shared between the
// action engine, readiness watchers, and the API. Action handlers publish
// execution results here (exit codes, status strings, timestamps) and
// subsequent actions consume them through ${name} placeholder expansion.
//
// String values are capped at 64 characters and silently truncated on
// write. This keeps expansion output bounded; callers that need full
// command output should read it from the action result instead.
//
// Thread Safety: the Store is safe for concurrent use.
package variable
