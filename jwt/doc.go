// Package jwt reads access-token expiry on the client side and issues signed tokens for
// the in-process fake backend.
//
// [Inspect] never verifies a signature: the client is not the audience that enforces
// tokens, it only needs exp to decide on proactive refresh. [Issuer] signs and verifies
// with a configured key and is used by apitest and the load test.
package jwt
