package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/issuance"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model/dto"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
)

type WalletService struct {
	directory  Directory
	parked     ParkedLister
	machine    *issuance.Machine
	dispatcher Dispatcher
	log        *zap.Logger
}

func newWalletService(d Dependencies) *WalletService {
	return &WalletService{
		directory:  d.Directory,
		parked:     d.Parked,
		machine:    d.Machine,
		dispatcher: d.Dispatcher,
		log:        logger.Named("wallet"),
	}
}

// ConnectWallet 绑定钱包并恢复因缺少钱包挂起的成就
func (s *WalletService) ConnectWallet(ctx context.Context, userID, address string) (*dto.ConnectWalletResponse, error) {
	if !common.IsHexAddress(address) {
		return nil, pkgerrors.WalletInvalid
	}
	// 统一存 EIP-55 校验和格式
	normalized := common.HexToAddress(address).Hex()

	if err := s.directory.SetWallet(ctx, userID, normalized); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	parked, err := s.parked.ListParked(ctx, userID, model.ParkReasonWalletRequired)
	if err != nil {
		return nil, fmt.Errorf("failed to list parked achievements: %w", err)
	}

	resumed := 0
	for _, a := range parked {
		if _, err := s.machine.Unpark(ctx, a.ID); err != nil {
			if stderrors.Is(err, pkgerrors.InvalidTransition) {
				continue
			}
			return nil, err
		}
		if err := s.dispatcher.DispatchMint(ctx, a.ID, model.MintReasonWalletConnected); err != nil {
			// 已解除挂起，扫描任务会补投
			s.log.Warn("Failed to dispatch resumed achievement",
				zap.Int64("achievement_id", a.ID),
				zap.Error(err),
			)
		}
		resumed++
	}

	s.log.Info("Wallet connected",
		zap.String("user_id", userID),
		zap.Int("resumed", resumed),
	)
	return &dto.ConnectWalletResponse{WalletAddress: normalized, Resumed: resumed}, nil
}
