package goLearn

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goLearn/middleware"
	"github.com/MrEthical07/goLearn/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// authTransport attaches the stored access token and recovers from an expired token by
// joining the coordinated refresh and replaying the request once.
type authTransport struct {
	client *Client
	next   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if c.isAuthRequest(req) {
		return t.next.RoundTrip(req)
	}
	ctx := req.Context()

	// The generation is read before the token so that the token is never older than it.
	gen := c.coord.Generation()
	tok, err := c.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			return nil, err
		}
		tok = nil
	}

	if tok != nil && tok.RefreshToken != "" && c.expiresSoon(tok) {
		c.metrics.Inc(MetricProactiveRefresh)
		fresh, g, err := c.coord.Do(ctx, gen)
		if err != nil {
			return nil, c.refreshError(ctx, err)
		}
		tok, gen = fresh, g
	}

	resp, err := t.send(req, tok)
	if err != nil {
		return nil, err
	}
	if !c.expiredStatus(resp.StatusCode) {
		return resp, nil
	}
	c.metrics.Inc(MetricExpiredResponse)

	if !middleware.Replayable(req) {
		c.metrics.Inc(MetricReplaySkipped)
		c.logger.Debug("expired token on non-replayable request",
			zapRequest(req)...,
		)
		c.emit(ctx, Event{
			Type:     EventReplaySkipped,
			Metadata: map[string]string{"method": req.Method, "path": req.URL.Path},
		})
		return resp, nil
	}
	middleware.DrainAndClose(resp)

	fresh, _, err := c.coord.Do(ctx, gen)
	if err != nil {
		return nil, c.refreshError(ctx, err)
	}

	replay, err := middleware.CloneForReplay(req)
	if err != nil {
		return nil, fmt.Errorf("replay %s %s: %w", req.Method, req.URL.Path, err)
	}
	c.metrics.Inc(MetricReplay)
	// A second expired status is returned to the caller unchanged.
	return t.send(replay, fresh)
}

func (t *authTransport) send(req *http.Request, tok *oauth2.Token) (*http.Response, error) {
	c := t.client
	r := req.Clone(req.Context())
	if tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(r)
	} else {
		r.Header.Del("Authorization")
	}

	c.metrics.Inc(MetricRequest)
	resp, err := t.next.RoundTrip(r)
	if err != nil {
		c.metrics.Inc(MetricRequestFailure)
		return nil, err
	}
	return resp, nil
}

// refreshError maps a coordinator failure to the error returned to the request. A caller
// that stopped waiting gets its own context error.
func (c *Client) refreshError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSessionExpired, err)
}

func zapRequest(req *http.Request) []zap.Field {
	return []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	}
}
