package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit"

// 裁剪、计数、记录在一个脚本里完成，被拒绝的请求不写入窗口
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
local allowed = 0
if count < limit then
  redis.call('ZADD', KEYS[1], now, ARGV[4])
  redis.call('PEXPIRE', KEYS[1], window)
  count = count + 1
  allowed = 1
end

local oldest = 0
local first = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// SlidingWindowStore ratelimit.Store 的 Redis 实现
type SlidingWindowStore struct {
	client redis.UniversalClient
	prefix string
}

func NewSlidingWindowStore(client redis.UniversalClient, prefix string) *SlidingWindowStore {
	return &SlidingWindowStore{client: client, prefix: prefix}
}

func (s *SlidingWindowStore) Admit(ctx context.Context, key string, now time.Time, max int, window time.Duration) (bool, int, time.Time, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{buildKey(s.prefix, rateLimitPrefix, key)},
		nowMs, millis(window), max, member,
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, err
	}

	var oldest time.Time
	if len(res) > 2 && res[2] > 0 {
		oldest = time.UnixMilli(res[2]).In(now.Location())
	}
	return res[0] == 1, int(res[1]), oldest, nil
}
