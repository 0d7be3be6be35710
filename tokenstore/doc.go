// Package tokenstore persists the client's access/refresh token pair.
//
// # Backends
//
//   - [Memory] keeps the pair in process; the default for long-lived services.
//   - [File] writes JSON with 0600 permissions; used by the CLI between invocations.
//   - [Redis] stores a compact versioned binary encoding so that several processes acting
//     for the same learner share one token pair.
//
// All backends return [ErrNotFound] when no pair is stored.
//
// # What this package must NOT do
//
//   - Import goLearn or refresh (no upward imports).
//   - Refresh, validate, or interpret tokens beyond their expiry field.
package tokenstore
