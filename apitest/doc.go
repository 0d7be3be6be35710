// Package apitest runs an in-process fake of the goLearn REST backend for tests, examples
// and the load test.
//
// The fake speaks the same wire contract as the real backend: camelCase JSON, bearer access
// tokens signed by the jwt package, opaque refresh tokens, paginated collections and
// presigned storage URLs. Test hooks let callers expire every access token at once, make
// the refresh endpoint slow or failing, and count refresh calls.
//
// # What this package must NOT do
//
//   - Import goLearn. The fake is an independent collaborator, so internal tests of goLearn
//     can use it without an import cycle.
package apitest
