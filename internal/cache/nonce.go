package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	noncePrefix   = "liveproof:nonce"
	nonceIssued   = "issued"
	nonceConsumed = "consumed"
)

// 读取和写入在同一个脚本里执行，并发核销同一个 nonce 只有一个能拿到 1
var consumeNonceScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v == ARGV[2] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[1])
return 1
`)

var releaseNonceScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[2] then
  redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[1])
  return 1
end
return 0
`)

// NonceStore liveproof nonce 的 Redis 实现，多实例共享
type NonceStore struct {
	client redis.UniversalClient
	prefix string
}

func NewNonceStore(client redis.UniversalClient, prefix string) *NonceStore {
	return &NonceStore{client: client, prefix: prefix}
}

func (s *NonceStore) key(nonce string) string {
	return buildKey(s.prefix, noncePrefix, nonce)
}

func (s *NonceStore) Register(ctx context.Context, nonce string, ttl time.Duration) error {
	return s.client.SetNX(ctx, s.key(nonce), nonceIssued, ttl).Err()
}

func (s *NonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	n, err := consumeNonceScript.Run(ctx, s.client,
		[]string{s.key(nonce)},
		millis(ttl), nonceConsumed,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *NonceStore) Release(ctx context.Context, nonce string, ttl time.Duration) error {
	return releaseNonceScript.Run(ctx, s.client,
		[]string{s.key(nonce)},
		millis(ttl), nonceConsumed, nonceIssued,
	).Err()
}

func millis(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}
