package service

import (
	"context"
	"time"

	"solo_edu_backend/internal/repository"
	"solo_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// MaintenanceService 后台清理任务
type MaintenanceService struct {
	translationRepo *repository.TranslationRepository
}

func NewMaintenanceService(translationRepo *repository.TranslationRepository) *MaintenanceService {
	return &MaintenanceService{translationRepo: translationRepo}
}

// StartOrphanSweep 每小时清理一次孤儿译文，随ctx结束退出
func (s *MaintenanceService) StartOrphanSweep(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.translationRepo.DeleteOrphans()
				if err != nil {
					logger.Log.Warn("孤儿译文清理失败", zap.Error(err))
					continue
				}
				if deleted > 0 {
					logger.Log.Info("孤儿译文清理完成", zap.Int64("deleted", deleted))
				}
			}
		}
	}()
}
