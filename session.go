package goLearn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goLearn/jwt"
	"github.com/MrEthical07/goLearn/refresh"
	"github.com/MrEthical07/goLearn/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
	User         *User  `json:"user,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// token converts the response. Expiry comes from expiresIn, or from the access token's exp
// claim when the backend omits it.
func (r *tokenResponse) token(now time.Time, defaultType string) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	if tok.TokenType == "" {
		tok.TokenType = defaultType
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	} else if claims, err := jwt.Inspect(r.AccessToken); err == nil {
		tok.Expiry = claims.ExpiresAt
	}
	return tok
}

func (c *Client) expiresSoon(tok *oauth2.Token) bool {
	skew := c.cfg.Refresh.Skew
	if skew <= 0 {
		return false
	}
	now := c.now()
	if !tok.Expiry.IsZero() {
		return !tok.Expiry.After(now.Add(skew))
	}
	return jwt.ExpiresWithin(tok.AccessToken, skew, now)
}

// refreshToken is the coordinator's refresh function. It runs at most once at a time.
func (c *Client) refreshToken(ctx context.Context) (*oauth2.Token, error) {
	empty := ""
	c.refreshAttempt.Store(&empty)

	tok, err := c.store.Load(ctx)
	switch {
	case errors.Is(err, tokenstore.ErrNotFound):
		return nil, ErrNoRefreshToken
	case err != nil:
		return nil, fmt.Errorf("%w: load token: %w", ErrRefreshFailed, err)
	case tok.RefreshToken == "":
		return nil, ErrNoRefreshToken
	}
	used := tok.RefreshToken
	c.refreshAttempt.Store(&used)

	var out tokenResponse
	err = c.do(ctx, c.raw, "POST", c.cfg.Auth.RefreshPath, nil, refreshRequest{RefreshToken: used}, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%w: response carried no access token", ErrRefreshFailed)
	}
	next := out.token(c.now(), c.cfg.Auth.TokenType)
	if next.RefreshToken == "" {
		next.RefreshToken = used
	}

	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	cur, err := c.store.Load(ctx)
	switch {
	case errors.Is(err, tokenstore.ErrNotFound):
		// Logged out while the call was in flight.
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNotAuthenticated)
	case err == nil && cur.RefreshToken != used:
		// A login replaced the session; its token wins.
		return cur, nil
	}
	if err := c.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("%w: save token: %w", ErrRefreshFailed, err)
	}
	return next, nil
}

// refreshCompleted records a finished refresh. The returned function, if any, runs once
// the waiters have their result.
func (c *Client) refreshCompleted(o refresh.Outcome) func() {
	c.metrics.Observe(MetricRefreshLatency, o.Duration)
	if o.Waiters > 1 {
		c.metrics.Add(MetricRefreshCoalesced, uint64(o.Waiters-1))
	}

	var used string
	if p := c.refreshAttempt.Swap(nil); p != nil {
		used = *p
	}

	fields := []zap.Field{
		zap.Int("waiters", o.Waiters),
		zap.Duration("elapsed", o.Duration),
	}
	meta := map[string]string{"waiters": strconv.Itoa(o.Waiters)}

	if o.Err == nil {
		c.metrics.Inc(MetricRefreshSuccess)
		c.logger.Info("token refreshed", fields...)
		c.emit(context.Background(), Event{Type: EventRefresh, Success: true, Metadata: meta})
		return nil
	}

	c.metrics.Inc(MetricRefreshFailure)
	c.logger.Warn("token refresh failed", append(fields, zap.Error(o.Err))...)
	c.emit(context.Background(), Event{Type: EventRefresh, Error: o.Err.Error(), Metadata: meta})
	return c.forceSignOut(used, o.Err)
}

// forceSignOut ends the session after a failed refresh and returns the notification to run
// after the failed batch is released. It returns nil when no session ended, including when
// a login replaced the session the refresh was for.
func (c *Client) forceSignOut(used string, cause error) func() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Refresh.Timeout)
	defer cancel()

	c.sessionMu.Lock()
	cur, err := c.store.Load(ctx)
	signedIn := true
	switch {
	case errors.Is(err, tokenstore.ErrNotFound):
		signedIn = false
	case err != nil:
		c.logger.Warn("token store load failed during sign-out", zap.Error(err))
	case cur.RefreshToken != used:
		// The login already seeded the coordinator, so the waiters get its token.
		c.sessionMu.Unlock()
		c.logger.Info("sign-out skipped, session replaced during refresh")
		return nil
	}
	if signedIn {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Warn("token store clear failed", zap.Error(err))
		}
	}
	c.sessionMu.Unlock()

	if !signedIn {
		return nil
	}

	reason := fmt.Errorf("%w: %w", ErrSessionExpired, cause)
	c.metrics.Inc(MetricSignOut)
	c.logger.Warn("signed out", zap.Error(cause))
	c.emit(ctx, Event{Type: EventSignOut, Error: cause.Error()})
	return func() { c.notifySignOut(reason) }
}

// notifySignOut delivers the queued sign_out event to the sink, then calls the handler.
// The handler may use the client; the refresh that failed is no longer in flight.
func (c *Client) notifySignOut(reason error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Refresh.Timeout)
	if !c.events.Flush(ctx) {
		c.logger.Warn("event flush before sign-out handler timed out")
	}
	cancel()
	if c.onSignOut != nil {
		c.onSignOut(reason)
	}
}

// establish stores a token obtained by login or registration and makes it the current
// generation.
func (c *Client) establish(ctx context.Context, tok *oauth2.Token) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if err := c.store.Save(ctx, tok); err != nil {
		return err
	}
	c.coord.Seed(tok)
	return nil
}

func (c *Client) clearSession(ctx context.Context) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	err := c.store.Clear(ctx)
	c.coord.Reset()
	return err
}
