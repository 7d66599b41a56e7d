package liveproof

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeEvents map[int64]*model.Event

func (f fakeEvents) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	if e, ok := f[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("event %d: %w", id, repository.ErrNotFound)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	events := fakeEvents{
		1: {BaseModel: model.BaseModel{ID: 1}, OrganizerID: "org-1"},
		2: {BaseModel: model.BaseModel{ID: 2}, OrganizerID: "org-1"},
	}
	nonces := NewMemoryNonceStore().WithClock(clock.Now)

	svc, err := NewService(testSecret, events, nonces, WithClock(clock.Now))
	require.NoError(t, err)
	return svc, clock
}

func TestNewServiceRejectsShortSecret(t *testing.T) {
	_, err := NewService([]byte("short"), fakeEvents{}, NewMemoryNonceStore())
	require.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 1, "org-1")
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	require.Equal(t, 5*time.Minute, tok.ExpiresAt.Sub(tok.IssuedAt))
	require.Equal(t, 300, svc.ExpiresIn(tok))
	// 32 字节随机数 base64url 编码后 43 个字符
	require.Len(t, tok.Nonce, 43)

	claims, err := svc.Verify(ctx, tok.Token)
	require.NoError(t, err)
	require.Equal(t, int64(1), claims.EventID)
	require.Equal(t, tok.Nonce, claims.Nonce)
}

func TestIssueRequiresOrganizer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, 1, "someone-else")
	require.ErrorIs(t, err, pkgerrors.IssuerUnauthorized)

	_, err = svc.Issue(ctx, 1, "")
	require.ErrorIs(t, err, pkgerrors.IssuerUnauthorized)

	_, err = svc.Issue(ctx, 99, "org-1")
	require.ErrorIs(t, err, pkgerrors.EventNotFound)
}

func TestNoncesAreUnique(t *testing.T) {
	svc, _ := newTestService(t)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := svc.Issue(context.Background(), 1, "org-1")
		require.NoError(t, err)
		_, dup := seen[tok.Nonce]
		require.False(t, dup)
		seen[tok.Nonce] = struct{}{}
	}
}

func TestVerifyAtExpiryBoundary(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 1, "org-1")
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = svc.Verify(ctx, tok.Token)
	require.NoError(t, err)
}

func TestVerifyExpired(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 1, "org-1")
	require.NoError(t, err)

	clock.Advance(5*time.Minute + time.Second)
	_, err = svc.Verify(ctx, tok.Token)
	require.ErrorIs(t, err, pkgerrors.TokenExpired)
}

func TestExpiredWinsOverBadSignature(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 1, "org-1")
	require.NoError(t, err)

	tampered := flipSignature(tok.Token)
	_, err = svc.Verify(ctx, tampered)
	require.ErrorIs(t, err, pkgerrors.TokenInvalidSignature)

	clock.Advance(6 * time.Minute)
	_, err = svc.Verify(ctx, tampered)
	require.ErrorIs(t, err, pkgerrors.TokenExpired)
}

func TestVerifyRejectsTampering(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Issue(ctx, 1, "org-1")
	require.NoError(t, err)
	b, err := svc.Issue(ctx, 2, "org-1")
	require.NoError(t, err)

	pa := strings.Split(a.Token, ".")
	pb := strings.Split(b.Token, ".")

	cases := map[string]string{
		"swapped payload": pa[0] + "." + pb[1] + "." + pa[2],
		"flipped sig":     flipSignature(a.Token),
		"garbage":         "not-a-token",
		"empty":           "",
		"alg none":        "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." + pa[1] + ".",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(ctx, raw)
			require.ErrorIs(t, err, pkgerrors.TokenInvalidSignature)
		})
	}

	other, err := NewService([]byte("ffffffffffffffffffffffffffffffff"), fakeEvents{
		1: {BaseModel: model.BaseModel{ID: 1}, OrganizerID: "org-1"},
	}, NewMemoryNonceStore())
	require.NoError(t, err)
	forged, err := other.Issue(ctx, 1, "org-1")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, forged.Token)
	require.ErrorIs(t, err, pkgerrors.TokenInvalidSignature)

	// 原令牌未被篡改尝试消耗
	_, err = svc.Verify(ctx, a.Token)
	require.NoError(t, err)
}

func TestVerifyReplay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 1, "org-1")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, tok.Token)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, tok.Token)
	require.ErrorIs(t, err, pkgerrors.TokenReplayed)
}

func TestConcurrentVerifyExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 1, "org-1")
	require.NoError(t, err)

	const workers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		replayed int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Verify(ctx, tok.Token)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case stderrors.Is(err, pkgerrors.TokenReplayed):
				replayed++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, workers-1, replayed)
}

func TestReleaseAllowsOneMoreUse(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, 1, "org-1")
	require.NoError(t, err)

	claims, err := svc.Verify(ctx, tok.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, claims))

	_, err = svc.Verify(ctx, tok.Token)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, tok.Token)
	require.ErrorIs(t, err, pkgerrors.TokenReplayed)

	// 过期后归还不再生效
	clock.Advance(10 * time.Minute)
	require.NoError(t, svc.Release(ctx, claims))
	_, err = svc.Verify(ctx, tok.Token)
	require.ErrorIs(t, err, pkgerrors.TokenExpired)
}

func flipSignature(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}
