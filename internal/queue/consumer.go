package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/mintworker"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/mq"
)

// Processor 由 *mintworker.Worker 实现
type Processor interface {
	Process(ctx context.Context, achievementID int64) (mintworker.Result, error)
}

// StartMintConsumer 阻塞消费铸造请求，直到 ctx 取消
func StartMintConsumer(ctx context.Context, processor Processor, prefetch int) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         QueueMintRequests,
		ConsumerTag:   "mint_worker",
		PrefetchCount: prefetch,
		Handler:       MintHandler(processor),
	})
}

// MintHandler 解析消息并交给 worker
// 格式错误的消息直接确认丢弃，只有基础设施错误才返回 error
func MintHandler(processor Processor) mq.MessageHandler {
	return func(ctx context.Context, body []byte) error {
		var msg model.MintRequestMessage
		if err := json.Unmarshal(body, &msg); err != nil || msg.AchievementID <= 0 {
			logger.Logger.Warn("Dropping malformed mint request",
				zap.ByteString("body", body),
				zap.Error(err),
			)
			return nil
		}

		res, err := processor.Process(ctx, msg.AchievementID)
		if err != nil {
			return fmt.Errorf("failed to process achievement %d: %w", msg.AchievementID, err)
		}

		logger.Logger.Info("Mint request handled",
			zap.String("message_id", msg.MessageID),
			zap.Int64("achievement_id", msg.AchievementID),
			zap.String("reason", string(msg.Reason)),
			zap.String("outcome", string(res.Outcome)),
			zap.Int("attempts", res.Attempts),
		)
		return nil
	}
}
