// Package action is the automation engine: a bounded work queue drained
// by exactly one worker, a typed dispatcher for the action kinds, and a
// store of named, persisted action templates.
//
// # Execution model
//
// Callers enqueue actions synchronously (block until the result arrives
// or a kind-dependent wait expires) or asynchronously (return right after
// admission, with an optional callback). Admission onto the queue is
// bounded by a short wait; a full queue is an error, never a silent drop.
// The single worker serializes all execution, so no two actions ever run
// concurrently regardless of how many callers enqueue.
//
// # Templates
//
// Templates are reusable action definitions with usage statistics. They
// persist through a tiered pipeline: a per-item export directory on
// removable storage (encrypted pack preferred over plaintext JSON), a
// legacy single-file format that is migrated to per-item form when seen,
// and an sqlite blob store that always holds the authoritative local
// copy. Loading promotes removable-storage data down into sqlite; saving
// writes sqlite synchronously and exports per-item files best-effort.
package action
