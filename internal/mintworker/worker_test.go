package mintworker

import (
	"context"
	stderrors "errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/issuance"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/testutil"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/mint"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
)

const (
	testWallet = "0x00000000000000000000000000000000000000a1"
	badgeID    = int64(20)
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(3, 1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fixture struct {
	db      *gorm.DB
	machine *issuance.Machine
	events  *repository.EventRepository
	client  *mint.MockClient
	worker  *Worker
}

func newFixture(t *testing.T, script ...error) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&model.Badge{
		BaseModel:     model.BaseModel{ID: badgeID},
		Name:          "Early Bird",
		Rarity:        model.RarityRare,
		TokenStandard: model.TokenStandardERC721,
		MetadataURI:   "ipfs://badge/20",
	}).Error)

	f := &fixture{
		db:      db,
		machine: issuance.New(repository.NewAchievementRepository(db)),
		events:  repository.NewEventRepository(db),
		client:  mint.NewMockClient(script...),
	}
	f.worker = New(f.machine, f.events, f.client, NewLocalLocker(), Config{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		AttemptTimeout: time.Second,
	})
	return f
}

func (f *fixture) withWallet(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, f.events.SetWallet(context.Background(), userID, testWallet))
}

func (f *fixture) pending(t *testing.T, checkInID int64, attendee string) *model.Achievement {
	t.Helper()
	a, err := f.machine.Create(context.Background(), issuance.CreateInput{
		CheckInID:  checkInID,
		EventID:    10,
		BadgeID:    badgeID,
		AttendeeID: attendee,
	})
	require.NoError(t, err)
	return a
}

func TestProcessMintsAfterTransientFailures(t *testing.T) {
	rpcDown := mint.Transient(stderrors.New("connection refused"))
	f := newFixture(t, rpcDown, rpcDown, nil)
	f.withWallet(t, "user-1")
	a := f.pending(t, 1, "user-1")

	res, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeMinted, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, f.client.CallCount())

	got, err := f.machine.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AchievementStatusMinted, got.Status)
	require.NotNil(t, got.TokenID)
	assert.Equal(t, "1", *got.TokenID)
	assert.Equal(t, 3, got.MintAttempts)
	assert.Nil(t, got.LastError)

	call := f.client.Calls[0]
	assert.Equal(t, mint.StandardERC721, call.Standard)
	assert.Equal(t, testWallet, call.Recipient)
	assert.Equal(t, "ipfs://badge/20", call.MetadataURI)
}

func TestProcessPermanentFailureDoesNotRetry(t *testing.T) {
	f := newFixture(t, mint.Permanent(mint.ErrReverted))
	f.withWallet(t, "user-1")
	a := f.pending(t, 2, "user-1")

	res, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, f.client.CallCount())

	got, err := f.machine.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AchievementStatusMintFailed, got.Status)
	require.NotNil(t, got.FailureKind)
	assert.Equal(t, model.FailureKindPermanent, *got.FailureKind)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "reverted")
	assert.Equal(t, 1, got.FailureRounds)
}

func TestProcessExhaustsAttempts(t *testing.T) {
	timeout := mint.Transient(mint.ErrReceiptTimeout)
	f := newFixture(t, timeout, timeout, timeout, timeout, timeout, nil)
	f.withWallet(t, "user-1")
	a := f.pending(t, 3, "user-1")

	res, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 5, res.Attempts)
	assert.Equal(t, 5, f.client.CallCount())

	got, err := f.machine.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AchievementStatusMintFailed, got.Status)
	require.NotNil(t, got.FailureKind)
	assert.Equal(t, model.FailureKindTransient, *got.FailureKind)
	assert.Equal(t, 5, got.MintAttempts)
}

func pendingTx(hash string) error {
	return mint.Transient(&mint.PendingError{TxHash: hash, Err: mint.ErrReceiptTimeout})
}

func TestProcessAwaitsSubmittedTransaction(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)
	f := newFixture(t, pendingTx(hash), mint.Transient(stderrors.New("connection reset")), nil)
	f.withWallet(t, "user-1")
	a := f.pending(t, 11, "user-1")

	res, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeMinted, res.Outcome)
	assert.Equal(t, 3, res.Attempts)

	// 只提交过一次，后面两次都在等同一笔交易
	assert.Equal(t, 1, f.client.CallCount())
	assert.Equal(t, []string{hash, hash}, f.client.Awaits)

	got, err := f.machine.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TxHash)
	assert.Equal(t, hash, *got.TxHash)
}

func TestProcessUnconfirmedTransactionIsNotRedispatchable(t *testing.T) {
	hash := "0x" + strings.Repeat("cd", 32)
	f := newFixture(t, pendingTx(hash), pendingTx(hash), pendingTx(hash), pendingTx(hash), pendingTx(hash))
	f.withWallet(t, "user-1")
	a := f.pending(t, 12, "user-1")

	res, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, f.client.CallCount())
	assert.Equal(t, 4, f.client.AwaitCount())

	got, err := f.machine.Get(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FailureKind)
	assert.Equal(t, model.FailureKindStale, *got.FailureKind)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, hash)
}

func TestProcessParksWithoutWallet(t *testing.T) {
	f := newFixture(t)
	a := f.pending(t, 4, "no-wallet")

	res, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeParked, res.Outcome)
	assert.Zero(t, f.client.CallCount())

	got, err := f.machine.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AchievementStatusPending, got.Status)
	assert.True(t, got.IsParked())

	// 绑定钱包后同一条成就可以正常铸造
	f.withWallet(t, "no-wallet")
	res, err = f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMinted, res.Outcome)

	got, err = f.machine.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsParked())
}

func TestProcessSkipsMintingAndMinted(t *testing.T) {
	f := newFixture(t)
	f.withWallet(t, "user-1")
	ctx := context.Background()

	minting := f.pending(t, 5, "user-1")
	_, err := f.machine.BeginMint(ctx, minting.ID)
	require.NoError(t, err)

	res, err := f.worker.Process(ctx, minting.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)

	minted := f.pending(t, 6, "user-1")
	res, err = f.worker.Process(ctx, minted.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeMinted, res.Outcome)

	res, err = f.worker.Process(ctx, minted.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, 1, f.client.CallCount())
}

func TestProcessUnknownAchievement(t *testing.T) {
	f := newFixture(t)

	res, err := f.worker.Process(context.Background(), 424242)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
}

func TestProcessMissingBadgeFailsPermanently(t *testing.T) {
	f := newFixture(t)
	f.withWallet(t, "user-1")
	a, err := f.machine.Create(context.Background(), issuance.CreateInput{
		CheckInID:  7,
		EventID:    10,
		BadgeID:    999,
		AttendeeID: "user-1",
	})
	require.NoError(t, err)

	res, err := f.worker.Process(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, res.Outcome)
	assert.Zero(t, f.client.CallCount())
	require.NotNil(t, res.Achievement.FailureKind)
	assert.Equal(t, model.FailureKindPermanent, *res.Achievement.FailureKind)
}

func TestConcurrentProcessMintsOnce(t *testing.T) {
	f := newFixture(t)
	f.withWallet(t, "user-1")
	a := f.pending(t, 8, "user-1")

	var wg sync.WaitGroup
	outcomes := make(chan Outcome, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.worker.Process(context.Background(), a.ID)
			if err == nil {
				outcomes <- res.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	minted := 0
	for o := range outcomes {
		if o == OutcomeMinted {
			minted++
		}
	}
	assert.Equal(t, 1, minted)
	assert.Equal(t, 1, f.client.CallCount())
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	now := time.Unix(1_700_000_000, 0)
	l.nowFn = func() time.Time { return now }
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(ctx, "a", time.Minute)
	assert.False(t, ok)

	// 非持有者不能释放
	require.NoError(t, l.Unlock(ctx, "a", "other"))
	_, ok, _ = l.TryLock(ctx, "a", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = l.TryLock(ctx, "a", time.Minute)
	assert.True(t, ok, "expired lock should be reclaimable")

	require.NoError(t, l.Unlock(ctx, "a", token))
}
