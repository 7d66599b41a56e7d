// Package service 编排 LiveProof 签到和成就发放的业务流程
package service

import (
	"context"
	"time"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/checkin"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/issuance"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/liveproof"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/ratelimit"
)

// Dispatcher 投递铸造任务，*queue.Producer 和 mintworker.InlineDispatcher 实现
type Dispatcher interface {
	DispatchMint(ctx context.Context, achievementID int64, reason model.MintReason) error
}

// Directory 活动、徽章、资料查询，*repository.EventRepository 实现
type Directory interface {
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	GetBadge(ctx context.Context, id int64) (*model.Badge, error)
	ReputationOf(ctx context.Context, userID string) (int, error)
	SetWallet(ctx context.Context, userID, address string) error
}

// ParkedLister *repository.AchievementRepository 实现
type ParkedLister interface {
	ListParked(ctx context.Context, attendeeID, reason string) ([]*model.Achievement, error)
}

// Dependencies 由入口组装
type Dependencies struct {
	Tokens       *liveproof.Service
	Limiter      *ratelimit.Limiter
	CheckIns     *checkin.Store
	Machine      *issuance.Machine
	Directory    Directory
	Parked       ParkedLister
	Dispatcher   Dispatcher
	StartPolicy  ratelimit.Policy
	VerifyPolicy ratelimit.Policy
	Now          func() time.Time
}

var (
	liveProofService   *LiveProofService
	achievementService *AchievementService
	walletService      *WalletService
)

// Init 在 router 注册前调用
func Init(d Dependencies) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.StartPolicy.Action == "" {
		d.StartPolicy = DefaultStartPolicy
	}
	if d.VerifyPolicy.Action == "" {
		d.VerifyPolicy = DefaultVerifyPolicy
	}

	liveProofService = newLiveProofService(d)
	achievementService = newAchievementService(d)
	walletService = newWalletService(d)
}

func LiveProof() *LiveProofService {
	return liveProofService
}

func Achievement() *AchievementService {
	return achievementService
}

func Wallet() *WalletService {
	return walletService
}

// 默认限流策略，入口可用配置覆盖
var (
	DefaultStartPolicy  = ratelimit.Policy{Action: "liveproof.start", Max: 30, Window: time.Minute}
	DefaultVerifyPolicy = ratelimit.Policy{Action: "liveproof.verify", Max: 5, Window: time.Minute}
)
