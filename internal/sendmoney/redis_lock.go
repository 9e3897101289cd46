package sendmoney

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/account-ledger/internal/account"
)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLock is an AccountLock shared by every process talking to the same Redis.
// Each lock expires after TTL so a crashed holder cannot block an account forever.
type RedisLock struct {
	Redis      *redis.Client
	Prefix     string
	TTL        time.Duration
	RetryDelay time.Duration

	mu     sync.Mutex
	tokens map[account.AccountID]string
}

func NewRedisLock(rdb *redis.Client, prefix string) *RedisLock {
	return &RedisLock{
		Redis:      rdb,
		Prefix:     prefix,
		TTL:        30 * time.Second,
		RetryDelay: 25 * time.Millisecond,
		tokens:     make(map[account.AccountID]string),
	}
}

func (l *RedisLock) key(id account.AccountID) string {
	raw := "account-lock:" + strconv.FormatUint(uint64(id), 10)
	if l.Prefix == "" {
		return raw
	}
	return l.Prefix + ":" + raw
}

// Lock retries SET NX until it wins or ctx is done.
func (l *RedisLock) Lock(ctx context.Context, id account.AccountID) error {
	token := uuid.NewString()
	key := l.key(id)
	delay := l.RetryDelay
	if delay <= 0 {
		delay = 25 * time.Millisecond
	}

	for {
		ok, err := l.Redis.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire %s: %w", key, err)
		}
		if ok {
			l.mu.Lock()
			if l.tokens == nil {
				l.tokens = make(map[account.AccountID]string)
			}
			l.tokens[id] = token
			l.mu.Unlock()
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Unlock deletes the key only if it still holds this process's token.
func (l *RedisLock) Unlock(ctx context.Context, id account.AccountID) error {
	l.mu.Lock()
	token, ok := l.tokens[id]
	delete(l.tokens, id)
	l.mu.Unlock()
	if !ok {
		return ErrNotLocked
	}

	n, err := releaseScript.Run(ctx, l.Redis, []string{l.key(id)}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release %s: %w", l.key(id), err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s expired before release", ErrNotLocked, l.key(id))
	}
	return nil
}
