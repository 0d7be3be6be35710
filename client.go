package goLearn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goLearn/middleware"
	"github.com/MrEthical07/goLearn/refresh"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const maxErrorBody = 64 << 10

// Client talks to the goLearn REST backend. It is safe for concurrent use.
type Client struct {
	cfg        Config
	baseURL    *url.URL
	logger     *zap.Logger
	store      TokenStore
	closeStore func() error
	metrics    *Metrics
	events     *eventQueue
	onSignOut  SignOutHandler
	now        func() time.Time
	authPaths  map[string]struct{}

	coord *refresh.Coordinator[*oauth2.Token]
	// refreshAttempt holds the refresh token sent by the refresh in flight, read back when
	// it completes.
	refreshAttempt atomic.Pointer[string]
	// sessionMu serialises writes that decide who owns the stored token: login, refresh
	// save and sign-out.
	sessionMu sync.Mutex

	http   *http.Client
	raw    *http.Client
	upload *http.Client

	closed    atomic.Bool
	closeOnce sync.Once
}

// HTTPClient returns the authenticated client for calls not covered by a binding. Its
// requests receive the bearer token and take part in coordinated refresh.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Metrics returns the live counters.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot copies the counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped returns the number of events lost to event queue backpressure.
func (c *Client) EventsDropped() uint64 {
	return c.events.Dropped()
}

// EventsDroppedByType breaks EventsDropped down by event type.
func (c *Client) EventsDroppedByType() map[string]uint64 {
	return c.events.DroppedByType()
}

// Close flushes queued events and releases a token store opened by Build. Requests made
// after Close fail with ErrClientClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.events.Close()
		if c.closeStore != nil {
			err = c.closeStore()
		}
	})
	return err
}

// Do sends a JSON request through the authenticated client and decodes a JSON response into
// out. in and out may be nil. Non-2xx responses return *APIError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	return c.do(ctx, c.http, method, path, nil, in, out)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, in, out any) error {
	req, err := c.newRequest(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer middleware.DrainAndClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, in any) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		// bytes.Reader gives the request a GetBody, which makes it replayable.
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	var b strings.Builder
	b.WriteString(c.baseURL.String())
	if !strings.HasPrefix(path, "/") {
		b.WriteByte('/')
	}
	b.WriteString(path)
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	apiErr.RequestID = resp.Header.Get(c.cfg.Auth.RequestIDHeader)
	if apiErr.RequestID == "" && resp.Request != nil {
		apiErr.RequestID = resp.Request.Header.Get(c.cfg.Auth.RequestIDHeader)
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if len(data) > 0 && json.Unmarshal(data, &eb) == nil {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message
		if apiErr.Message == "" {
			apiErr.Message = eb.Error
		}
	} else if len(data) > 0 {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func (c *Client) emit(ctx context.Context, event Event) {
	if c.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	if event.RequestID == "" {
		event.RequestID = middleware.RequestIDFromContext(ctx)
	}
	c.events.Emit(ctx, event)
}

func (c *Client) isAuthRequest(req *http.Request) bool {
	if authSkipped(req.Context()) {
		return true
	}
	_, ok := c.authPaths[req.URL.Path]
	return ok
}

func (c *Client) expiredStatus(code int) bool {
	for _, s := range c.cfg.Refresh.ExpiredStatusCodes {
		if s == code {
			return true
		}
	}
	return false
}
