package lock

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Guard wraps job bodies so only one instance runs a named job at a time.
type Guard struct {
	locker *Locker
	log    *zap.Logger
}

func NewGuard(locker *Locker, log *zap.Logger) *Guard {
	return &Guard{
		locker: locker,
		log:    log.Named("lock"),
	}
}

// Run executes fn while holding the named lock. It returns ran=false without
// error when another holder owns the lock.
func (g *Guard) Run(ctx context.Context, name string, lease, minHold time.Duration, fn func(ctx context.Context) error) (bool, error) {
	if g == nil || g.locker == nil {
		// No redis configured (single instance mode); run unguarded.
		return true, fn(ctx)
	}

	held, err := g.locker.TryLock(ctx, "lock:"+name, lease)
	if err != nil {
		return false, err
	}
	if held == nil {
		g.log.Debug("lock.held_elsewhere", zap.String("name", name))
		return false, nil
	}
	defer func() {
		if err := g.locker.Release(context.WithoutCancel(ctx), held, minHold); err != nil {
			g.log.Warn("lock.release_failed", zap.String("name", name), zap.Error(err))
		}
	}()

	return true, fn(ctx)
}
