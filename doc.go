// Package goLearn is a client for the goLearn e-learning REST backend: authentication,
// the course catalogue, enrollments, certificates and presigned uploads.
//
// A [Client] is built once through [Builder.Build] and is safe for concurrent use.
//
// # Token refresh
//
// Every non-auth request carries the stored access token. When the backend answers with an
// expired-token status (401 by default) the request joins a single coordinated refresh: at
// most one refresh call is in flight, every request that hit the expired token during that
// flight waits for it and is replayed exactly once with the resulting token, and all of them
// see the same outcome. A failed refresh is not retried. It signs the user out, clears the
// [TokenStore] and calls the [SignOutHandler], and every waiter fails with
// [ErrSessionExpired].
//
// Requests whose body cannot be re-read (no GetBody) are not replayed; the expired response
// is returned unchanged.
//
// # Architecture boundaries
//
// goLearn is the public surface. Coordination lives in refresh, token persistence in
// tokenstore, transport decorators in middleware and JWT handling in jwt. None of those
// packages import goLearn.
//
// # What this package must NOT do
//
//   - Send the bearer token to presigned storage URLs.
//   - Cancel a refresh because one waiting request gave up.
//   - Retry login, register or refresh calls.
package goLearn
