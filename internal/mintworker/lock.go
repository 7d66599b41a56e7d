package mintworker

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Locker 单个成就的互斥锁，*cache.Locker 实现
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, name, token string) error
}

// LocalLocker 单进程内的锁，测试和单机部署使用
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localLock
	seq   atomic.Int64
	nowFn func() time.Time
}

type localLock struct {
	token     string
	expiresAt time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLock), nowFn: time.Now}
}

func (l *LocalLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if cur, ok := l.held[name]; ok && now.Before(cur.expiresAt) {
		return "", false, nil
	}

	token := strconv.FormatInt(l.seq.Add(1), 10)
	l.held[name] = localLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLocker) Unlock(ctx context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.held[name]; ok && cur.token == token {
		delete(l.held, name)
	}
	return nil
}
