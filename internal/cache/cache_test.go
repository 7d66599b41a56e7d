package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/liveproof"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/ratelimit"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNonceStoreConsumeOnce(t *testing.T) {
	mr, client := newRedis(t)
	store := NewNonceStore(client, "test")
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, "n1", time.Minute))
	v, err := mr.Get("test:liveproof:nonce:n1")
	require.NoError(t, err)
	require.Equal(t, "issued", v)

	ok, err := store.Consume(ctx, "n1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Consume(ctx, "n1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Release(ctx, "n1", time.Minute))
	ok, err = store.Consume(ctx, "n1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNonceStoreRegisterDoesNotResetConsumed(t *testing.T) {
	_, client := newRedis(t)
	store := NewNonceStore(client, "test")
	ctx := context.Background()

	ok, err := store.Consume(ctx, "n2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Register(ctx, "n2", time.Minute))
	ok, err = store.Consume(ctx, "n2", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNonceStoreExpires(t *testing.T) {
	mr, client := newRedis(t)
	store := NewNonceStore(client, "test")
	ctx := context.Background()

	_, err := store.Consume(ctx, "n3", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("test:liveproof:nonce:n3"))
}

type staticEvents struct{}

func (staticEvents) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	return &model.Event{BaseModel: model.BaseModel{ID: id}, OrganizerID: "org"}, nil
}

func TestConcurrentVerifyAgainstRedis(t *testing.T) {
	_, client := newRedis(t)
	svc, err := liveproof.NewService(
		[]byte("0123456789abcdef0123456789abcdef"),
		staticEvents{},
		NewNonceStore(client, "test"),
	)
	require.NoError(t, err)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 10, "org")
	require.NoError(t, err)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Verify(ctx, tok.Token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, replayed int
	for err := range results {
		if err == nil {
			ok++
		} else if err == pkgerrors.TokenReplayed {
			replayed++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, replayed)
}

func TestSlidingWindowStore(t *testing.T) {
	_, client := newRedis(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(NewSlidingWindowStore(client, "test")).WithClock(func() time.Time { return now })
	ctx := context.Background()
	key := ratelimit.Key{Identity: "user-1", Action: "liveproof.verify:7"}

	for i := 1; i <= 5; i++ {
		d, err := limiter.Check(ctx, key, 5, time.Minute)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, i, d.Count)
		now = now.Add(time.Second)
	}

	d, err := limiter.Check(ctx, key, 5, time.Minute)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 5, d.Count)
	require.Equal(t, time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC), d.ResetAt)

	// 12:01:00 时第一条记录出窗
	now = time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	d, err = limiter.Check(ctx, key, 5, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 5, d.Count)
}

func TestLocker(t *testing.T) {
	_, client := newRedis(t)
	locker := NewLocker(client, "test")
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "achievement:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "achievement:1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// 非持有者解锁无效
	require.NoError(t, locker.Unlock(ctx, "achievement:1", "someone-else"))
	_, ok, err = locker.TryLock(ctx, "achievement:1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, locker.Unlock(ctx, "achievement:1", token))
	_, ok, err = locker.TryLock(ctx, "achievement:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
