package mintworker

import (
	"context"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
)

// InlineDispatcher 在当前 goroutine 里直接处理，不经过消息队列
// 用于测试和 MINT_DISPATCH=inline 的单机模式
type InlineDispatcher struct {
	Worker *Worker
}

func (d InlineDispatcher) DispatchMint(ctx context.Context, achievementID int64, reason model.MintReason) error {
	res, err := d.Worker.Process(ctx, achievementID)
	if err != nil {
		return err
	}
	d.Worker.log.Debug("Inline mint processed",
		zap.Int64("achievement_id", achievementID),
		zap.String("reason", string(reason)),
		zap.String("outcome", string(res.Outcome)),
	)
	return nil
}
