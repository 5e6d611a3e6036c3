package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chat"
	"github.com/RajashekarChelimala/comrade-backend/internal/media"
)

// SweepResult 清理任务中单条媒体的处理结果
type SweepResult struct {
	MessageID int64  `json:"message_id"`
	PublicID  string `json:"public_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SweepReport 单轮清理汇总
type SweepReport struct {
	Scanned   int           `json:"scanned"`
	Reclaimed int           `json:"reclaimed"`
	Failed    int           `json:"failed"`
	Results   []SweepResult `json:"results,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// SweeperService 过期媒体清理：先删外部资源，成功后才墓碑化。
// 外部删除失败的条目保持原状，留给下一轮重试；单条失败互相隔离。
type SweeperService struct {
	messageRepo chat.MessageRepository
	storage     media.Storage
	batchSize   int
}

// NewSweeperService 创建清理服务
func NewSweeperService(messageRepo chat.MessageRepository, storage media.Storage, batchSize int) *SweeperService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SweeperService{
		messageRepo: messageRepo,
		storage:     storage,
		batchSize:   batchSize,
	}
}

// RunOnce 执行一轮清理
func (s *SweeperService) RunOnce(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{StartedAt: time.Now()}

	candidates, err := s.messageRepo.ListExpiredMedia(ctx, report.StartedAt, s.batchSize)
	if err != nil {
		GetMonitor().RecordDBError()
		return nil, err
	}
	report.Scanned = len(candidates)

	for _, m := range candidates {
		res := SweepResult{MessageID: m.ID, PublicID: m.MediaPublicID}

		// 没有外部引用的条目只需要墓碑化
		if m.MediaPublicID != "" {
			if err := s.storage.Destroy(ctx, m.MediaPublicID, m.MediaType); err != nil {
				GetMonitor().RecordStorageError()
				GetMonitor().RecordSweepError()
				zap.S().Warnw("media destroy failed", "message_id", m.ID, "public_id", m.MediaPublicID, "err", err)
				res.Error = err.Error()
				report.Failed++
				report.Results = append(report.Results, res)
				continue
			}
		}

		if err := s.messageRepo.Tombstone(ctx, m.ID); err != nil {
			GetMonitor().RecordDBError()
			GetMonitor().RecordSweepError()
			res.Error = err.Error()
			report.Failed++
			report.Results = append(report.Results, res)
			continue
		}

		report.Reclaimed++
		report.Results = append(report.Results, res)
	}

	report.Elapsed = time.Since(report.StartedAt)
	GetMonitor().RecordSweepReclaimed(int64(report.Reclaimed))
	zap.S().Infow("media sweep finished",
		"scanned", report.Scanned,
		"reclaimed", report.Reclaimed,
		"failed", report.Failed,
		"elapsed", report.Elapsed,
	)
	return report, nil
}
