package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/usecase"
)

var _ usecase.StatusCache = (*StatusCache)(nil)

// StatusCache is the optimistic per-order status view behind the read API.
// It is never consulted for terminal decisions; a cache miss or a stale entry
// only costs a store read.
type StatusCache struct {
	cli *redis.Client
	ttl time.Duration
	log *zerolog.Logger
}

func NewStatusCache(c *Client, ttl time.Duration, logger *zerolog.Logger) *StatusCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatusCache{cli: c.cli, ttl: ttl, log: logger}
}

func key(ref string) string { return "order:status:" + ref }

func (s *StatusCache) Put(ctx context.Context, ref string, status model.OrderStatus) {
	if err := s.cli.Set(ctx, key(ref), string(status), s.ttl).Err(); err != nil {
		s.log.Debug().Str("order_ref", ref).Err(err).Msg("status cache put failed")
	}
}

func (s *StatusCache) Get(ctx context.Context, ref string) (model.OrderStatus, bool) {
	v, err := s.cli.Get(ctx, key(ref)).Result()
	if err != nil {
		return "", false
	}
	return model.OrderStatus(v), true
}
