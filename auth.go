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

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token pair, stores it and returns the signed-in user.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := c.authenticate(ctx, c.cfg.Auth.LoginPath, loginRequest{Email: email, Password: password})
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, Event{Type: EventLogin, Error: err.Error()})
		return nil, err
	}
	c.metrics.Inc(MetricLoginSuccess)
	c.logger.Info("logged in", zap.String("user_id", user.ID))
	c.emit(ctx, Event{Type: EventLogin, UserID: user.ID, Success: true})
	return user, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	if in.Role == "" {
		in.Role = RoleLearner
	}
	user, err := c.authenticate(ctx, c.cfg.Auth.RegisterPath, in)
	if err != nil {
		c.emit(ctx, Event{Type: EventRegister, Error: err.Error()})
		return nil, err
	}
	c.logger.Info("registered", zap.String("user_id", user.ID))
	c.emit(ctx, Event{Type: EventRegister, UserID: user.ID, Success: true})
	return user, nil
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*User, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	var out tokenResponse
	if err := c.do(ctx, c.raw, http.MethodPost, path, nil, body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("auth response carried no access token")
	}
	if err := c.establish(ctx, out.token(c.now(), c.cfg.Auth.TokenType)); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	if out.User == nil {
		return &User{}, nil
	}
	return out.User, nil
}

// Refresh forces a refresh, or joins the one in flight.
func (c *Client) Refresh(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	_, _, err := c.coord.Do(ctx, c.coord.Generation())
	if err != nil {
		return c.refreshError(ctx, err)
	}
	return nil
}

// Logout revokes the refresh token on the backend, best effort, and clears the local
// session. The sign-out handler is not called.
func (c *Client) Logout(ctx context.Context) error {
	tok, err := c.store.Load(ctx)
	if err == nil && tok.RefreshToken != "" && !c.closed.Load() {
		req, rerr := c.newRequest(ctx, http.MethodPost, c.cfg.Auth.LogoutPath, nil, refreshRequest{RefreshToken: tok.RefreshToken})
		if rerr == nil {
			tok.SetAuthHeader(req)
			resp, derr := c.raw.Do(req)
			switch {
			case derr != nil:
				c.logger.Warn("logout call failed", zap.Error(derr))
			case resp.StatusCode >= 300:
				c.logger.Warn("logout call rejected", zap.Int("status", resp.StatusCode))
			}
			if resp != nil {
				middleware.DrainAndClose(resp)
			}
		}
	}

	if err := c.clearSession(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	c.metrics.Inc(MetricLogout)
	c.emit(ctx, Event{Type: EventLogout, Success: true})
	return nil
}

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, c.http, http.MethodGet, c.cfg.Auth.MePath, nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Token returns a copy of the stored token pair.
func (c *Client) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// SignedIn reports whether a token pair is stored.
func (c *Client) SignedIn(ctx context.Context) bool {
	_, err := c.Token(ctx)
	return err == nil
}
