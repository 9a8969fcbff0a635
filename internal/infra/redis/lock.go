package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/usecase"
)

var _ usecase.AttemptLocker = (*AttemptLocker)(nil)

// AttemptLocker guards one live reconciliation attempt per order across
// engine instances. The in-process registry covers the single-instance case;
// this lock covers the rest.
type AttemptLocker struct {
	cli *redis.Client
}

func NewAttemptLocker(c *Client) *AttemptLocker {
	return &AttemptLocker{cli: c.cli}
}

func (l *AttemptLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 3; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			continue
		}
		if ok {
			return token, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return "", domain.ErrAttemptActive
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *AttemptLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
