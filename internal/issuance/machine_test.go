package issuance

import (
	"context"
	stderrors "errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/testutil"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(1, 1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newMachine(t *testing.T) *Machine {
	t.Helper()
	return New(repository.NewAchievementRepository(testutil.NewDB(t)))
}

func createPending(t *testing.T, m *Machine, checkInID int64) *model.Achievement {
	t.Helper()
	a, err := m.Create(context.Background(), CreateInput{
		CheckInID:  checkInID,
		EventID:    10,
		BadgeID:    20,
		AttendeeID: "user-1",
	})
	require.NoError(t, err)
	return a
}

func TestCreateIsIdempotentPerCheckIn(t *testing.T) {
	m := newMachine(t)
	ctx := context.Background()

	first := createPending(t, m, 100)
	require.Equal(t, model.AchievementStatusPending, first.Status)

	again, err := m.Create(ctx, CreateInput{CheckInID: 100, EventID: 10, BadgeID: 20, AttendeeID: "user-1"})
	require.ErrorIs(t, err, pkgerrors.Conflict)
	require.NotNil(t, again)
	require.Equal(t, first.ID, again.ID)
}

func TestHappyPath(t *testing.T) {
	m := newMachine(t)
	ctx := context.Background()
	a := createPending(t, m, 101)

	a, err := m.BeginMint(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AchievementStatusMinting, a.Status)
	require.NotNil(t, a.MintStartedAt)

	a, err = m.CompleteMint(ctx, a.ID, "7", "0xabc", 3)
	require.NoError(t, err)
	require.Equal(t, model.AchievementStatusMinted, a.Status)
	require.Equal(t, "7", *a.TokenID)
	require.Equal(t, "0xabc", *a.TxHash)
	require.Equal(t, 3, a.MintAttempts)
	require.NotNil(t, a.MintedAt)
}

func TestBeginMintFromMintingIsInvalid(t *testing.T) {
	m := newMachine(t)
	ctx := context.Background()
	a := createPending(t, m, 102)

	_, err := m.BeginMint(ctx, a.ID)
	require.NoError(t, err)

	current, err := m.BeginMint(ctx, a.ID)
	require.ErrorIs(t, err, pkgerrors.InvalidTransition)
	require.Equal(t, model.AchievementStatusMinting, current.Status)
}

func TestMintedIsTerminal(t *testing.T) {
	m := newMachine(t)
	ctx := context.Background()
	a := createPending(t, m, 103)

	_, err := m.BeginMint(ctx, a.ID)
	require.NoError(t, err)
	_, err = m.CompleteMint(ctx, a.ID, "1", "0x1", 1)
	require.NoError(t, err)

	_, err = m.CompleteMint(ctx, a.ID, "2", "0x2", 1)
	require.ErrorIs(t, err, pkgerrors.InvalidTransition)
	_, err = m.FailMint(ctx, a.ID, "late", model.FailureKindTransient, 1)
	require.ErrorIs(t, err, pkgerrors.InvalidTransition)
	_, err = m.BeginMint(ctx, a.ID)
	require.ErrorIs(t, err, pkgerrors.InvalidTransition)

	got, err := m.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "1", *got.TokenID)
}

func TestFailAndRetry(t *testing.T) {
	m := newMachine(t)
	ctx := context.Background()
	a := createPending(t, m, 104)

	_, err := m.CompleteMint(ctx, a.ID, "1", "0x1", 1)
	require.ErrorIs(t, err, pkgerrors.InvalidTransition)
	_, err = m.FailMint(ctx, a.ID, "boom", model.FailureKindTransient, 1)
	require.ErrorIs(t, err, pkgerrors.InvalidTransition)

	_, err = m.BeginMint(ctx, a.ID)
	require.NoError(t, err)

	a, err = m.FailMint(ctx, a.ID, "node timeout", model.FailureKindTransient, 5)
	require.NoError(t, err)
	require.Equal(t, model.AchievementStatusMintFailed, a.Status)
	require.Equal(t, "node timeout", *a.LastError)
	require.Equal(t, model.FailureKindTransient, *a.FailureKind)
	require.Equal(t, 1, a.FailureRounds)
	require.Equal(t, 5, a.MintAttempts)
	require.NotNil(t, a.FailedAt)

	a, err = m.BeginMint(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AchievementStatusMinting, a.Status)

	a, err = m.CompleteMint(ctx, a.ID, "9", "0x9", 1)
	require.NoError(t, err)
	require.Equal(t, 6, a.MintAttempts)
	require.Nil(t, a.LastError)
}

func TestParkAndUnpark(t *testing.T) {
	m := newMachine(t)
	ctx := context.Background()
	a := createPending(t, m, 105)

	a, err := m.Park(ctx, a.ID, model.ParkReasonWalletRequired)
	require.NoError(t, err)
	require.True(t, a.IsParked())
	require.Equal(t, model.AchievementStatusPending, a.Status)

	a, err = m.Unpark(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, a.IsParked())

	_, err = m.Park(ctx, a.ID, model.ParkReasonWalletRequired)
	require.NoError(t, err)

	// BeginMint 会清除挂起标记
	a, err = m.BeginMint(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, a.IsParked())

	_, err = m.Park(ctx, a.ID, model.ParkReasonWalletRequired)
	require.ErrorIs(t, err, pkgerrors.InvalidTransition)
}

func TestUnknownAchievement(t *testing.T) {
	m := newMachine(t)
	ctx := context.Background()

	_, err := m.BeginMint(ctx, 424242)
	require.ErrorIs(t, err, pkgerrors.AchievementNotFound)
	_, err = m.Get(ctx, 424242)
	require.ErrorIs(t, err, pkgerrors.AchievementNotFound)
}

func TestConcurrentBeginMintSingleWinner(t *testing.T) {
	m := newMachine(t)
	ctx := context.Background()
	a := createPending(t, m, 106)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		invalid int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.BeginMint(ctx, a.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case stderrors.Is(err, pkgerrors.InvalidTransition):
				invalid++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, won)
	require.Equal(t, 7, invalid)
}

func TestFailMintTruncatesReason(t *testing.T) {
	m := New(repository.NewAchievementRepository(testutil.NewDB(t)), WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	}))
	ctx := context.Background()
	a := createPending(t, m, 107)

	_, err := m.BeginMint(ctx, a.ID)
	require.NoError(t, err)

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	a, err = m.FailMint(ctx, a.ID, string(long), model.FailureKindPermanent, 1)
	require.NoError(t, err)
	require.Len(t, *a.LastError, maxErrorLength)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), a.FailedAt.UTC())
}
