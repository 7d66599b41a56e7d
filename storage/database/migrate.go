package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
)

// Migrate 运行数据库迁移，创建所有表和索引
func Migrate() error {
	db := DB()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.Event{},
		&model.Badge{},
		&model.Profile{},
		&model.CheckIn{},
		&model.Achievement{},
	)
	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
