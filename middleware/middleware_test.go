package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func statusSequence(t *testing.T, codes ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(hits.Add(1)) - 1
		if i >= len(codes) {
			i = len(codes) - 1
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Echo-Body", string(body))
		w.WriteHeader(codes[i])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRequestIDGeneratesUUID(t *testing.T) {
	var seen string
	rt := RequestID("")(RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req.Header.Get(RequestIDHeader)
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.test/courses", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected uuid request id, got %q", seen)
	}
	if req.Header.Get(RequestIDHeader) != "" {
		t.Fatal("original request must not be mutated")
	}
}

func TestRequestIDPrefersContext(t *testing.T) {
	var seen string
	rt := RequestID("X-Correlation-ID")(RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req.Header.Get("X-Correlation-ID")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	}))

	ctx := WithRequestID(context.Background(), "trace-42")
	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil).WithContext(ctx)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if seen != "trace-42" {
		t.Fatalf("expected context id, got %q", seen)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(req)
			})
		}
	}
	base := RoundTripFunc(func(*http.Request) (*http.Response, error) {
		order = append(order, "base")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})

	rt := Chain(base, mark("a"), nil, mark("b"))
	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got := strings.Join(order, ","); got != "a,b,base" {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestRetryRecoversFromGatewayError(t *testing.T) {
	srv, hits := statusSequence(t, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK)
	var retries atomic.Int32
	client := &http.Client{Transport: Retry(RetryConfig{
		Attempts: 3,
		Delay:    time.Millisecond,
		OnRetry:  func(uint, error) { retries.Add(1) },
	})(http.DefaultTransport)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 hits, got %d", hits.Load())
	}
	if retries.Load() != 2 {
		t.Fatalf("expected 2 retries, got %d", retries.Load())
	}
}

func TestRetryReturnsLastResponse(t *testing.T) {
	srv, hits := statusSequence(t, http.StatusServiceUnavailable)
	client := &http.Client{Transport: Retry(RetryConfig{Attempts: 2, Delay: time.Millisecond})(http.DefaultTransport)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected final 503, got %d", resp.StatusCode)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 hits, got %d", hits.Load())
	}
}

func TestRetrySkipsNonIdempotent(t *testing.T) {
	srv, hits := statusSequence(t, http.StatusServiceUnavailable, http.StatusOK)
	client := &http.Client{Transport: Retry(RetryConfig{Attempts: 3, Delay: time.Millisecond})(http.DefaultTransport)}

	resp, err := client.Post(srv.URL, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if hits.Load() != 1 {
		t.Fatalf("POST must not be retried, got %d hits", hits.Load())
	}
}

func TestRetryDoesNotRetryClientStatus(t *testing.T) {
	srv, hits := statusSequence(t, http.StatusUnauthorized, http.StatusOK)
	client := &http.Client{Transport: Retry(RetryConfig{Attempts: 3, Delay: time.Millisecond})(http.DefaultTransport)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized || hits.Load() != 1 {
		t.Fatalf("expected single 401, got %d after %d hits", resp.StatusCode, hits.Load())
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	rt := Retry(RetryConfig{Attempts: 5, Delay: time.Millisecond})(RoundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		cancel()
		return nil, context.Canceled
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil).WithContext(ctx)
	if _, err := rt.RoundTrip(req); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", calls.Load())
	}
}

func TestLoggingWritesStructuredLine(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rt := Logging(zap.New(core))(RoundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusTeapot, Body: http.NoBody}, nil
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.test/courses", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("round trip: %v", err)
	}

	entries := logs.FilterMessage("http round trip").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/courses" || fields["status"] != int64(http.StatusTeapot) || fields["request_id"] != "rid-1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestLoggingWarnsOnError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rt := Logging(zap.New(core))(RoundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial refused")
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatal("expected one warn line")
	}
}
