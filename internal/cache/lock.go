package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 分布式锁，通过 SetNX 为多个消费者互斥同一个成就
const lockPrefix = "lock"

// 只删除自己持有的锁，过期后被别人拿到的锁不会被误删
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

type Locker struct {
	client redis.UniversalClient
	prefix string
}

func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// TryLock 拿到锁时返回持有者令牌
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, buildKey(l.prefix, lockPrefix, name), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Unlock(ctx context.Context, name, token string) error {
	return unlockScript.Run(ctx, l.client, []string{buildKey(l.prefix, lockPrefix, name)}, token).Err()
}
