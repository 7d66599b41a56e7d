package middleware

import (
	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/ratelimit"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
)

var limiter *ratelimit.Limiter

// Init 初始化所有中间件，limiter 为空时不启用通用限流
func Init(l *ratelimit.Limiter) error {
	if err := initAuthMiddleware(); err != nil {
		logger.Logger.Error("Failed to initialize auth middleware", zap.Error(err))
		return err
	}
	limiter = l

	logger.Logger.Info("All middlewares initialized successfully")
	return nil
}
