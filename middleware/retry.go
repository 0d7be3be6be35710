package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryConfig controls Retry.
type RetryConfig struct {
	// Attempts is the total number of tries including the first. Values below 2 disable
	// retries.
	Attempts    uint
	Delay       time.Duration
	MaxDelay    time.Duration
	StatusCodes []int
	// OnRetry is called before each replay with the 1-based attempt that failed.
	OnRetry func(attempt uint, err error)
}

// DefaultRetryStatusCodes are the gateway statuses retried when StatusCodes is empty.
var DefaultRetryStatusCodes = []int{
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

type retryableStatusError struct {
	code int
}

func (e retryableStatusError) Error() string {
	return fmt.Sprintf("retryable status %d", e.code)
}

// Retry replays idempotent, replayable requests on transport errors and retryable
// statuses with exponential backoff. The final attempt's response is returned as-is.
func Retry(cfg RetryConfig) Middleware {
	codes := cfg.StatusCodes
	if len(codes) == 0 {
		codes = DefaultRetryStatusCodes
	}
	retryable := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		retryable[c] = struct{}{}
	}

	return func(next http.RoundTripper) http.RoundTripper {
		if cfg.Attempts < 2 {
			return next
		}
		return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !idempotent(req.Method) || !Replayable(req) {
				return next.RoundTrip(req)
			}

			var attempt uint
			opts := []retry.Option{
				retry.Context(req.Context()),
				retry.Attempts(cfg.Attempts),
				retry.Delay(cfg.Delay),
				retry.DelayType(retry.BackOffDelay),
				retry.LastErrorOnly(true),
				retry.RetryIf(func(err error) bool {
					return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
				}),
				retry.OnRetry(func(n uint, err error) {
					if cfg.OnRetry != nil {
						cfg.OnRetry(n+1, err)
					}
				}),
			}
			if cfg.MaxDelay > 0 {
				opts = append(opts, retry.MaxDelay(cfg.MaxDelay))
			}

			return retry.DoWithData(func() (*http.Response, error) {
				r := req
				if attempt > 0 {
					var err error
					if r, err = CloneForReplay(req); err != nil {
						return nil, retry.Unrecoverable(err)
					}
				}
				attempt++

				resp, err := next.RoundTrip(r)
				if err != nil {
					return nil, err
				}
				if _, ok := retryable[resp.StatusCode]; ok && attempt < cfg.Attempts {
					DrainAndClose(resp)
					return nil, retryableStatusError{code: resp.StatusCode}
				}
				return resp, nil
			}, opts...)
		})
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
