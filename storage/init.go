package storage

import (
	"fmt"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/database"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/mongo"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/mq"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/redis"
)

// Init 统一初始化存储层，Mongo 只在证据走 GridFS 时连接
func Init() error {
	if err := database.Init(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := redis.Init(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := mq.Init(config.Cfg.GetRabbitMQURL()); err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}

	if config.Cfg.EvidenceBackend == "gridfs" {
		if err := mongo.Init(); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}

	return nil
}
