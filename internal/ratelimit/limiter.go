// Package ratelimit 按 (identity, action) 的滑动窗口限流
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Key 限流维度
type Key struct {
	Identity string
	Action   string
}

func (k Key) String() string {
	return k.Action + ":" + k.Identity
}

// Decision 一次检查的结果
type Decision struct {
	Allowed   bool
	Limit     int
	Count     int // 窗口内已记录的请求数，含本次
	Remaining int
	ResetAt   time.Time
}

// Store 滑动窗口存储，Admit 的裁剪、计数、记录必须是一个原子操作
// 只有被放行的请求才会被记录
type Store interface {
	Admit(ctx context.Context, key string, now time.Time, max int, window time.Duration) (allowed bool, count int, oldest time.Time, err error)
}

// Policy 一类操作的限额
type Policy struct {
	Action string
	Max    int
	Window time.Duration
}

type Limiter struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// WithClock 替换时钟
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Check 先裁剪 now-window 之前的记录，计数小于 max 时放行
func (l *Limiter) Check(ctx context.Context, key Key, max int, window time.Duration) (Decision, error) {
	if max <= 0 || window <= 0 {
		return Decision{}, fmt.Errorf("invalid rate limit %d/%s", max, window)
	}

	now := l.now()
	allowed, count, oldest, err := l.store.Admit(ctx, key.String(), now, max, window)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check rate limit: %w", err)
	}

	d := Decision{
		Allowed:   allowed,
		Limit:     max,
		Count:     count,
		Remaining: max - count,
		ResetAt:   now.Add(window),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !oldest.IsZero() {
		d.ResetAt = oldest.Add(window)
	}
	return d, nil
}

// Allow 按策略检查，scope 用于细分 action，例如活动 ID
func (l *Limiter) Allow(ctx context.Context, p Policy, identity, scope string) (Decision, error) {
	action := p.Action
	if scope != "" {
		action += ":" + scope
	}
	return l.Check(ctx, Key{Identity: identity, Action: action}, p.Max, p.Window)
}

// MemoryStore 单进程使用，多实例部署需要换成 Redis 实现
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	// 每个 key 最近一次命中的窗口长度，清扫时按各自的窗口判断过期
	spans     map[string]time.Duration
	lastSweep time.Time
}

// memorySweepEvery 两次全量清扫的最小间隔
const memorySweepEvery = time.Minute

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string][]time.Time),
		spans:   make(map[string]time.Duration),
	}
}

// Len 当前保留的 key 数量
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// sweepLocked 删除最后一次命中已落在自身窗口之外的 key
func (s *MemoryStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < memorySweepEvery {
		return
	}
	s.lastSweep = now
	for key, hits := range s.windows {
		if len(hits) == 0 || !hits[len(hits)-1].After(now.Add(-s.spans[key])) {
			delete(s.windows, key)
			delete(s.spans, key)
		}
	}
}

func (s *MemoryStore) Admit(ctx context.Context, key string, now time.Time, max int, window time.Duration) (bool, int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	cutoff := now.Add(-window)
	hits := s.windows[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	allowed := len(kept) < max
	if allowed {
		kept = append(kept, now)
	}

	if len(kept) == 0 {
		delete(s.windows, key)
		delete(s.spans, key)
		return allowed, 0, time.Time{}, nil
	}
	s.windows[key] = kept
	s.spans[key] = window
	return allowed, len(kept), kept[0], nil
}
