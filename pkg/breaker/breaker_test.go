package breaker

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	errTransient = stderrors.New("timeout")
	errPermanent = stderrors.New("reverted")
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cb := New("ledger", 2, 10*time.Second, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	fail := func(context.Context) error { return errTransient }
	ok := func(context.Context) error { return nil }

	require.ErrorIs(t, cb.Call(ctx, fail), errTransient)
	require.ErrorIs(t, cb.Call(ctx, fail), errTransient)
	require.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(ctx, func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, ErrOpen)
	require.False(t, called)

	now = now.Add(10 * time.Second)
	require.NoError(t, cb.Call(ctx, ok))
	require.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cb := New("ledger", 1, time.Second, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	fail := func(context.Context) error { return errTransient }

	require.Error(t, cb.Call(ctx, fail))
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(time.Second)
	require.ErrorIs(t, cb.Call(ctx, fail), errTransient)
	require.Equal(t, StateOpen, cb.GetState())
	require.ErrorIs(t, cb.Call(ctx, fail), ErrOpen)
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	cb := New("ledger", 1, time.Minute, WithFailurePredicate(func(err error) bool {
		return stderrors.Is(err, errTransient)
	}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, cb.Call(ctx, func(context.Context) error { return errPermanent }), errPermanent)
	}
	require.Equal(t, StateClosed, cb.GetState())
}
