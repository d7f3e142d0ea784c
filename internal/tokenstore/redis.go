package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores tokens under "<prefix>:<token>" with a native TTL.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis returns a Redis-backed store.  An empty prefix defaults to "pwreset".
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "pwreset"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (s *Redis) key(token string) string { return s.prefix + ":" + token }

func (s *Redis) Save(ctx context.Context, token string, subject Subject, ttl time.Duration) error {
	body, err := json.Marshal(subject)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(token), body, ttl).Err(); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

// Consume atomically reads and deletes the token (GETDEL), so a token can
// be used only once even under concurrent requests.
func (s *Redis) Consume(ctx context.Context, token string) (Subject, error) {
	body, err := s.rdb.GetDel(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Subject{}, ErrNotFound
		}
		return Subject{}, fmt.Errorf("consume reset token: %w", err)
	}
	var sub Subject
	if err := json.Unmarshal(body, &sub); err != nil {
		return Subject{}, fmt.Errorf("decode reset token: %w", err)
	}
	return sub, nil
}
