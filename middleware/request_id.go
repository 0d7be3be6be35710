package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the default correlation header.
const RequestIDHeader = "X-Request-ID"

// RequestID sets header on every request. The id comes from the request context when
// present, otherwise a random UUID is generated. An existing header is left alone.
func RequestID(header string) Middleware {
	if header == "" {
		header = RequestIDHeader
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(header) != "" {
				return next.RoundTrip(req)
			}
			id := RequestIDFromContext(req.Context())
			if id == "" {
				id = uuid.NewString()
			}
			r := req.Clone(req.Context())
			r.Header.Set(header, id)
			return next.RoundTrip(r)
		})
	}
}
