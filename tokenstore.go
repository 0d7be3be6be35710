package goLearn

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goLearn/tokenstore"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// TokenStore persists the current token pair. Load returns tokenstore.ErrNotFound when the
// store is empty. Implementations must be safe for concurrent use.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
	Clear(ctx context.Context) error
}

var (
	_ TokenStore = (*tokenstore.Memory)(nil)
	_ TokenStore = (*tokenstore.File)(nil)
	_ TokenStore = (*tokenstore.Redis)(nil)
)

// OpenTokenStore opens the backend named by cfg. The returned close function is nil when
// there is nothing to release.
func OpenTokenStore(cfg TokenStoreConfig) (TokenStore, func() error, error) {
	switch cfg.Backend {
	case "", TokenStoreMemory:
		return tokenstore.NewMemory(), nil, nil
	case TokenStoreFile:
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("%w: file token store needs a path", ErrInvalidConfig)
		}
		return tokenstore.NewFile(cfg.FilePath), nil, nil
	case TokenStoreRedis:
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("%w: redis token store needs an address", ErrInvalidConfig)
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return tokenstore.NewRedis(rdb, cfg.RedisPrefix, cfg.RedisKey, cfg.TTL), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown token store backend %q", ErrInvalidConfig, cfg.Backend)
	}
}
