package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 管道阶段
const (
	StagePending    = "pending"
	StageExtracting = "extracting"
	StageSections   = "sections"
	StageObjects    = "objects"
	StageSummary    = "summary"
	StageCompleted  = "completed"
	StageFailed     = "failed"
	StageCancelled  = "cancelled"
)

const jobTTL = 24 * time.Hour

// PipelineJob 某课时摄取作业的当前状态
type PipelineJob struct {
	LessonID string `json:"lessonId"`
	Stage    string `json:"stage"`
	Detail   string `json:"detail,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PipelineStatusService 在redis中维护摄取作业状态与协作式取消标记
// 键格式 pipeline:job:<lesson_id>，随作业更新并在TTL后过期
type PipelineStatusService struct {
	rdb *redis.Client
}

func NewPipelineStatusService(rdb *redis.Client) *PipelineStatusService {
	return &PipelineStatusService{rdb: rdb}
}

func jobKey(lessonID string) string {
	return fmt.Sprintf("pipeline:job:%s", lessonID)
}

func cancelKey(lessonID string) string {
	return fmt.Sprintf("pipeline:cancel:%s", lessonID)
}

// SetStage 更新作业阶段；redis不可用时静默跳过，不影响管道本身
func (s *PipelineStatusService) SetStage(ctx context.Context, lessonID, stage, detail string) {
	if s.rdb == nil {
		return
	}
	key := jobKey(lessonID)
	s.rdb.HSet(ctx, key, "lessonId", lessonID, "stage", stage, "detail", detail)
	s.rdb.Expire(ctx, key, jobTTL)
}

// SetFailed 记录失败阶段与错误信息
func (s *PipelineStatusService) SetFailed(ctx context.Context, lessonID string, err error) {
	if s.rdb == nil {
		return
	}
	key := jobKey(lessonID)
	s.rdb.HSet(ctx, key, "stage", StageFailed, "error", err.Error())
	s.rdb.Expire(ctx, key, jobTTL)
}

// Get 读取作业状态，作业不存在时返回nil
func (s *PipelineStatusService) Get(ctx context.Context, lessonID string) (*PipelineJob, error) {
	if s.rdb == nil {
		return nil, nil
	}
	fields, err := s.rdb.HGetAll(ctx, jobKey(lessonID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &PipelineJob{
		LessonID: lessonID,
		Stage:    fields["stage"],
		Detail:   fields["detail"],
		Error:    fields["error"],
	}, nil
}

// RequestCancel 置位取消标记，管道在子调用之间协作式检查
func (s *PipelineStatusService) RequestCancel(ctx context.Context, lessonID string) {
	if s.rdb == nil {
		return
	}
	s.rdb.Set(ctx, cancelKey(lessonID), "1", jobTTL)
}

// CancelRequested 查询取消标记
func (s *PipelineStatusService) CancelRequested(ctx context.Context, lessonID string) bool {
	if s.rdb == nil {
		return false
	}
	v, err := s.rdb.Get(ctx, cancelKey(lessonID)).Result()
	return err == nil && v == "1"
}

// ClearCancel 作业结束后清除取消标记
func (s *PipelineStatusService) ClearCancel(ctx context.Context, lessonID string) {
	if s.rdb == nil {
		return
	}
	s.rdb.Del(ctx, cancelKey(lessonID))
}
