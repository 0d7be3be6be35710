package goLearn

import (
	"context"

	"github.com/MrEthical07/goLearn/middleware"
)

type skipAuthContextKey struct{}

// WithoutAuth marks requests made with ctx as anonymous: no bearer token is attached and an
// expired-token status is returned as-is.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthContextKey{}, true)
}

// WithRequestID sets the correlation id sent with requests made with ctx, instead of a
// generated one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return middleware.WithRequestID(ctx, id)
}

func authSkipped(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	skip, _ := ctx.Value(skipAuthContextKey{}).(bool)
	return skip
}
