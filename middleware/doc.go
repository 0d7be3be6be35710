// Package middleware provides http.RoundTripper decorators used by the goLearn client
// below its authentication layer.
//
// # Decorators
//
//   - [RequestID] stamps every request with a correlation id.
//   - [UserAgent] sets a fixed User-Agent.
//   - [Logging] writes one structured line per round trip.
//   - [Retry] replays idempotent requests on transport errors and gateway statuses.
//
// [Chain] composes them; the first decorator listed sees the request first.
//
// # What this package must NOT do
//
//   - Attach or refresh credentials (the client's auth transport owns that).
//   - Retry non-idempotent methods or requests whose body cannot be replayed.
//   - Import goLearn (no upward imports).
package middleware
