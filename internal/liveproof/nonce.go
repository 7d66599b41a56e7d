package liveproof

import (
	"context"
	"sync"
	"time"
)

// NonceStore 防重放集合，Consume 必须是一次原子的比较并设置
type NonceStore interface {
	// Register 签发时登记 nonce，状态为 issued
	Register(ctx context.Context, nonce string, ttl time.Duration) error
	// Consume 标记为 consumed，已经 consumed 时返回 false
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
	// Release 将 consumed 恢复为 issued，让令牌在有效期内还能再用一次
	Release(ctx context.Context, nonce string, ttl time.Duration) error
}

const (
	nonceIssued   = "issued"
	nonceConsumed = "consumed"
)

type nonceEntry struct {
	state     string
	expiresAt time.Time
}

// MemoryNonceStore 单实例部署和测试使用
type MemoryNonceStore struct {
	mu      sync.Mutex
	entries map[string]nonceEntry
	now     func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		entries: make(map[string]nonceEntry),
		now:     time.Now,
	}
}

// WithClock 替换时钟
func (s *MemoryNonceStore) WithClock(now func() time.Time) *MemoryNonceStore {
	s.now = now
	return s
}

func (s *MemoryNonceStore) Register(ctx context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	if _, ok := s.entries[nonce]; ok {
		return nil
	}
	s.entries[nonce] = nonceEntry{state: nonceIssued, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryNonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	if e, ok := s.entries[nonce]; ok && e.state == nonceConsumed {
		return false, nil
	}
	// 未登记的 nonce 签名已校验通过，同样按首次使用处理
	s.entries[nonce] = nonceEntry{state: nonceConsumed, expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryNonceStore) Release(ctx context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[nonce]; ok && e.state == nonceConsumed {
		s.entries[nonce] = nonceEntry{state: nonceIssued, expiresAt: s.now().Add(ttl)}
	}
	return nil
}

func (s *MemoryNonceStore) pruneLocked() {
	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
