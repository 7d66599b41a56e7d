package schedule

import (
	"context"
	"sync"
	"time"
)

// Locker 跨实例互斥，*cache.Locker 实现
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, name, token string) error
}

// jobGuard 同一进程内同一任务不重入，多实例部署时再加分布式锁
type jobGuard struct {
	mu      sync.Mutex
	running bool
	lastRun time.Time
}

func (g *jobGuard) enter(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	g.lastRun = now
	return true
}

func (g *jobGuard) leave() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

// LastRun 最近一次开始执行的时间
func (g *jobGuard) LastRun() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRun
}

// withLock 拿不到锁时返回 false，不执行 fn
func withLock(ctx context.Context, locker Locker, name string, ttl time.Duration, fn func() error) (bool, error) {
	if locker == nil {
		return true, fn()
	}

	token, ok, err := locker.TryLock(ctx, name, ttl)
	if err != nil || !ok {
		return false, err
	}
	defer func() {
		_ = locker.Unlock(context.WithoutCancel(ctx), name, token)
	}()

	return true, fn()
}
