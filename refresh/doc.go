// Package refresh implements the single-flight coordinator that guards access-token
// refresh calls on the client side.
//
// # Model
//
// A [Coordinator] owns one refresh function and a queue of waiters. The first caller that
// observes an expired credential starts the refresh; every caller that arrives while it is in
// flight is queued and receives the same outcome. Completed refreshes advance a generation
// counter so that a late expiry signal for an already-superseded token is answered with the
// completed result instead of a second refresh.
//
// # Architecture boundaries
//
// This package owns ordering and fan-out only. It does not know about HTTP, token storage or
// sign-out; the refresh function supplied by the caller performs those side effects.
//
// # What this package must NOT do
//
//   - Import goLearn, tokenstore, or middleware.
//   - Retry a failed refresh function.
//   - Let a waiter's context cancel the refresh other waiters depend on.
package refresh
