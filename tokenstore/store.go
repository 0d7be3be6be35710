package tokenstore

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"
)

var (
	// ErrNotFound is returned by Load when no token pair is stored.
	ErrNotFound = errors.New("token not found")
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("token store unavailable")
	// ErrCorrupt is returned when a stored pair cannot be decoded.
	ErrCorrupt = errors.New("stored token corrupt")
)

// Memory is an in-process store.
type Memory struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(context.Context) (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return nil, ErrNotFound
	}
	return cloneToken(m.token), nil
}

func (m *Memory) Save(_ context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("nil token")
	}
	m.mu.Lock()
	m.token = cloneToken(tok)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	return nil
}

func cloneToken(tok *oauth2.Token) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
