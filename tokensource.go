package goLearn

import (
	"context"

	"golang.org/x/oauth2"
)

type clientTokenSource struct {
	ctx    context.Context
	client *Client
}

// TokenSource adapts the client to oauth2.TokenSource. Token returns the stored token, or
// goes through the coordinated refresh when it is invalid or about to expire. Do not wrap
// it in oauth2.ReuseTokenSource: that would keep serving a token after sign-out.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	return &clientTokenSource{ctx: ctx, client: c}
}

func (s *clientTokenSource) Token() (*oauth2.Token, error) {
	c := s.client
	gen := c.coord.Generation()
	tok, err := c.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	if tok.Valid() && !c.expiresSoon(tok) {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	fresh, _, err := c.coord.Do(s.ctx, gen)
	if err != nil {
		return nil, c.refreshError(s.ctx, err)
	}
	return fresh, nil
}
