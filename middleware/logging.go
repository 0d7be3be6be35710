package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Logging logs each round trip at Debug and transport failures at Warn.
func Logging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Duration("elapsed", time.Since(start)),
			}
			if id := req.Header.Get(RequestIDHeader); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if err != nil {
				logger.Warn("http round trip failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("http round trip", append(fields, zap.Int("status", resp.StatusCode))...)
			return resp, nil
		})
	}
}
