package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// Redis stores one token pair under prefix:key.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	key    string
	ttl    time.Duration
}

// NewRedis returns a store bound to key. ttl bounds how long the pair survives without a
// Save; zero keeps it until Clear. It should match the refresh token lifetime.
func NewRedis(client redis.UniversalClient, prefix, key string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "gl"
	}
	return &Redis{
		redis:  client,
		prefix: prefix,
		key:    key,
		ttl:    ttl,
	}
}

func (s *Redis) fullKey() string {
	return s.prefix + ":tok:" + s.key
}

func (s *Redis) Load(ctx context.Context) (*oauth2.Token, error) {
	data, err := s.redis.Get(ctx, s.fullKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Decode(data)
}

func (s *Redis) Save(ctx context.Context, tok *oauth2.Token) error {
	data, err := Encode(tok)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.fullKey(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.fullKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
