package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/mq"
)

// PublishFunc 与 mq.PublishMessage 签名一致，测试时替换
type PublishFunc func(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error

// Producer 把铸造请求投递到 RabbitMQ
type Producer struct {
	publish PublishFunc
}

func NewProducer() *Producer {
	return &Producer{publish: mq.PublishMessage}
}

func NewProducerWith(publish PublishFunc) *Producer {
	return &Producer{publish: publish}
}

// DispatchMint 投递一条铸造请求，重复投递由状态机和 worker 锁去重
func (p *Producer) DispatchMint(ctx context.Context, achievementID int64, reason model.MintReason) error {
	messageID, err := snowflake.NextMessageID("mint")
	if err != nil {
		return fmt.Errorf("failed to generate message ID: %w", err)
	}

	msg := model.MintRequestMessage{
		MessageID:     messageID,
		AchievementID: achievementID,
		Reason:        reason,
		RequestedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	if err := p.publish(ctx, ExchangeMint, RoutingKeyMintRequest, messageID, msg); err != nil {
		logger.Logger.Error("Failed to publish mint request",
			zap.String("message_id", messageID),
			zap.Int64("achievement_id", achievementID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published mint request",
		zap.String("message_id", messageID),
		zap.Int64("achievement_id", achievementID),
		zap.String("reason", string(reason)),
	)
	return nil
}
