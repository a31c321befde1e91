package lock

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/gatherly/internal/clock"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Release keeps the key alive until the minimum hold elapses so a restarted
// peer cannot re-run the job inside the hold window.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  if tonumber(ARGV[2]) > 0 then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
  end
  return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrNotHeld = errors.New("lock_not_held")

type Lease struct {
	key        string
	token      string
	acquiredAt time.Time
}

type Locker struct {
	client *redis.Client
	script *redis.Script
	clock  clock.Clock
}

func NewLocker(client *redis.Client, clk clock.Clock) *Locker {
	if client == nil {
		return nil
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		clock:  clk,
	}
}

// TryLock acquires the named lock for at most ttl. The returned lease is nil
// when another holder owns the lock.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock client not configured")
	}
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{key: key, token: token, acquiredAt: l.clock.Now()}, nil
}

// Release frees the lock, but never earlier than minHold after acquisition.
func (l *Locker) Release(ctx context.Context, lease *Lease, minHold time.Duration) error {
	if l == nil || l.client == nil || lease == nil {
		return nil
	}
	remaining := time.Duration(0)
	if minHold > 0 {
		elapsed := l.clock.Now().Sub(lease.acquiredAt)
		if elapsed < minHold {
			remaining = minHold - elapsed
		}
	}
	res, err := l.script.Run(ctx, l.client, []string{lease.key}, lease.token, remaining.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}
