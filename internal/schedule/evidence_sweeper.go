package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/evidence"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/metrics"
)

// EvidenceReferences *repository.CheckInRepository 实现
type EvidenceReferences interface {
	ReferencedEvidence(ctx context.Context, refs []string) (map[string]struct{}, error)
}

// EvidenceSweeper 删除上传成功但没有签到引用的凭证
// 只处理足够旧的对象，避免删掉正在落库的签到所引用的对象
type EvidenceSweeper struct {
	store       evidence.Store
	refs        EvidenceReferences
	locker      Locker
	orphanAfter time.Duration
	batchSize   int
	now         func() time.Time
	log         *zap.Logger

	job jobGuard
}

func NewEvidenceSweeper(store evidence.Store, refs EvidenceReferences, locker Locker, orphanAfter time.Duration, batchSize int) *EvidenceSweeper {
	if orphanAfter <= 0 {
		orphanAfter = time.Hour
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &EvidenceSweeper{
		store:       store,
		refs:        refs,
		locker:      locker,
		orphanAfter: orphanAfter,
		batchSize:   batchSize,
		now:         time.Now,
		log:         logger.Named("evidence-sweeper"),
	}
}

func (s *EvidenceSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	if !s.job.enter(now) {
		return 0, nil
	}
	defer s.job.leave()

	deleted := 0
	_, err := withLock(ctx, s.locker, "sweep:evidence", 10*time.Minute, func() error {
		cutoff := now.Add(-s.orphanAfter)
		var after time.Time

		for {
			objs, err := s.store.List(ctx, after, cutoff, s.batchSize)
			if err != nil {
				return fmt.Errorf("failed to list evidence: %w", err)
			}
			if len(objs) == 0 {
				return nil
			}

			keys := make([]string, len(objs))
			for i, obj := range objs {
				keys[i] = obj.Key
			}
			used, err := s.refs.ReferencedEvidence(ctx, keys)
			if err != nil {
				return fmt.Errorf("failed to load evidence references: %w", err)
			}

			for _, obj := range objs {
				if _, ok := used[obj.Key]; ok {
					continue
				}
				if err := s.store.Delete(ctx, obj.Key); err != nil {
					s.log.Warn("Failed to delete orphaned evidence", zap.String("key", obj.Key), zap.Error(err))
					continue
				}
				deleted++
			}

			if len(objs) < s.batchSize {
				return nil
			}
			after = objs[len(objs)-1].CreatedAt
		}
	})

	metrics.RecordEvidenceSwept(ctx, deleted)
	if deleted > 0 {
		s.log.Info("Orphaned evidence removed", zap.Int("count", deleted))
	}
	return deleted, err
}
