package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
)

// Job 一次调度执行，返回处理的条数
type Job func(ctx context.Context) (int, error)

// RunEvery 启动后立即执行一次，之后按 interval 周期执行，直到 ctx 结束
// 单次执行的超时不超过 interval
func RunEvery(ctx context.Context, name string, interval time.Duration, job Job) {
	log := logger.Named("scheduler").With(zap.String("job", name))
	log.Info("Scheduled job started", zap.Duration("interval", interval))

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		n, err := job(runCtx)
		if err != nil {
			log.Error("Scheduled job run failed", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("Scheduled job run finished", zap.Int("processed", n))
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduled job stopped")
			return
		case <-ticker.C:
			run()
		}
	}
}
