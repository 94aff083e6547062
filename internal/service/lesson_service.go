package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"
	"solo_edu_backend/pkg/logger"
	"solo_edu_backend/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LessonService 课时生命周期：上传、摄取、结构查询、重抽取与删除
type LessonService struct {
	cfg             *config.Config
	pdf             *PDFService
	extraction      *ContentExtractionService
	storage         *StorageService
	status          *PipelineStatusService
	lessonRepo      *repository.LessonRepository
	courseRepo      *repository.CourseRepository
	translationRepo *repository.TranslationRepository
}

func NewLessonService(cfg *config.Config, pdf *PDFService, extraction *ContentExtractionService, storage *StorageService, status *PipelineStatusService, lessonRepo *repository.LessonRepository, courseRepo *repository.CourseRepository, translationRepo *repository.TranslationRepository) *LessonService {
	return &LessonService{
		cfg:             cfg,
		pdf:             pdf,
		extraction:      extraction,
		storage:         storage,
		status:          status,
		lessonRepo:      lessonRepo,
		courseRepo:      courseRepo,
		translationRepo: translationRepo,
	}
}

// UploadAndIngest 保存PDF并启动后台摄取，调用方立即拿到课时记录
// 摄取进度通过 PipelineStatus 查询
func (s *LessonService) UploadAndIngest(courseID, title, filename string, file io.Reader) (*model.Lesson, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, e := range util.AllowedLessonExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: only PDF files are accepted", util.ErrValidationFailed)
	}
	if _, err := s.courseRepo.FindByID(courseID); err != nil {
		return nil, util.ErrCourseNotFound
	}
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(filepath.Base(filename), ext)
	}

	// MIME 嗅探会消费文件头，校验后拼回去
	header := make([]byte, 512)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	if _, err := util.ValidateMimeType(bytes.NewReader(header[:n]), []string{util.MimePDF}); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrValidationFailed, err)
	}
	file = io.MultiReader(bytes.NewReader(header[:n]), file)

	storedName := uuid.New().String() + ext
	scratchPath, err := s.storage.SaveScratch(storedName, file)
	if err != nil {
		return nil, err
	}

	lesson := &model.Lesson{
		CourseID:       courseID,
		Title:          title,
		SourceFilename: filename,
	}
	if err := s.lessonRepo.Create(lesson); err != nil {
		s.storage.RemoveScratch(scratchPath)
		return nil, err
	}

	if _, err := s.storage.UploadFile(context.Background(), "lessons/"+storedName, scratchPath, util.MimePDF); err != nil {
		logger.Log.Warn("课件归档失败", zap.String("lessonId", lesson.ID), zap.Error(err))
	}

	s.status.SetStage(context.Background(), lesson.ID, StagePending, "")
	go func() {
		defer s.storage.RemoveScratch(scratchPath)
		timeout := time.Duration(s.cfg.AI.CallTimeoutSeconds) * time.Second * 30
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.ingest(ctx, lesson, scratchPath); err != nil {
			logger.Log.Error("课时摄取失败", zap.String("lessonId", lesson.ID), zap.Error(err))
		}
	}()
	return lesson, nil
}

// ingest 摄取管道：文本抽取 → 内容抽取 → 事务落库
// 子调用之间协作式检查取消标记
func (s *LessonService) ingest(ctx context.Context, lesson *model.Lesson, pdfPath string) error {
	ctx, stop := s.watchCancel(ctx, lesson.ID)
	defer stop()
	defer s.status.ClearCancel(context.Background(), lesson.ID)

	s.status.SetStage(ctx, lesson.ID, StageExtracting, "")
	start := time.Now()
	content, err := s.pdf.ExtractText(pdfPath)
	monitoring.PipelineStageDuration.WithLabelValues(StageExtracting).Observe(time.Since(start).Seconds())
	if err != nil {
		s.status.SetFailed(context.Background(), lesson.ID, err)
		return err
	}
	if err := s.checkCancelled(ctx, lesson.ID); err != nil {
		return err
	}

	s.status.SetStage(ctx, lesson.ID, StageSections, fmt.Sprintf("%d pages", content.PageCount))
	start = time.Now()
	extraction, err := s.extraction.ExtractLessonContent(ctx, lesson.Title, content,
		func(stage, detail string) {
			s.status.SetStage(ctx, lesson.ID, stage, detail)
		})
	monitoring.PipelineStageDuration.WithLabelValues(StageSections).Observe(time.Since(start).Seconds())
	if err != nil {
		s.status.SetFailed(context.Background(), lesson.ID, err)
		if ctx.Err() != nil || errors.Is(err, util.ErrCancelled) {
			s.status.SetStage(context.Background(), lesson.ID, StageCancelled, "")
		}
		return err
	}

	lesson.RawText = content.FullText
	lesson.PageCount = content.PageCount
	lesson.Summary = extraction.Summary
	sections := buildSections(lesson.ID, extraction)

	if err := s.replaceStructure(lesson, sections); err != nil {
		s.status.SetFailed(context.Background(), lesson.ID, err)
		return err
	}

	s.status.SetStage(ctx, lesson.ID, StageCompleted, fmt.Sprintf("%d sections", len(sections)))
	logger.Log.Info("课时摄取完成",
		zap.String("lessonId", lesson.ID),
		zap.Int("pages", content.PageCount),
		zap.Int("sections", len(sections)))
	return nil
}

// Reextract 基于已存的原始文本重新运行内容抽取
func (s *LessonService) Reextract(ctx context.Context, lessonID string) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.FindByID(lessonID)
	if err != nil {
		return nil, util.ErrLessonNotFound
	}
	if strings.TrimSpace(lesson.RawText) == "" {
		return nil, fmt.Errorf("%w: lesson has no stored text", util.ErrDependencyMissing)
	}

	content := &PDFContent{FullText: lesson.RawText, PageCount: lesson.PageCount}
	extraction, err := s.extraction.ExtractLessonContent(ctx, lesson.Title, content, nil)
	if err != nil {
		return nil, err
	}

	lesson.Summary = extraction.Summary
	sections := buildSections(lesson.ID, extraction)
	if err := s.replaceStructure(lesson, sections); err != nil {
		return nil, err
	}
	return s.lessonRepo.FindByIDWithStructure(lessonID)
}

// replaceStructure 替换结构前清除旧小节与学习对象的译文，源变更后译文失效
func (s *LessonService) replaceStructure(lesson *model.Lesson, sections []model.Section) error {
	if oldSections, err := s.lessonRepo.FindSectionsByLessonID(lesson.ID); err == nil {
		for _, section := range oldSections {
			if err := s.translationRepo.DeleteForEntity(model.KindSection, section.ID); err != nil {
				logger.Log.Warn("小节译文清理失败", zap.String("sectionId", section.ID), zap.Error(err))
			}
			for _, obj := range section.Objects {
				if err := s.translationRepo.DeleteForEntity(model.KindLearningObject, obj.ID); err != nil {
					logger.Log.Warn("学习对象译文清理失败", zap.String("objectId", obj.ID), zap.Error(err))
				}
			}
		}
	}
	if err := s.translationRepo.DeleteForEntity(model.KindLesson, lesson.ID); err != nil {
		logger.Log.Warn("课时译文清理失败", zap.String("lessonId", lesson.ID), zap.Error(err))
	}
	return s.lessonRepo.ReplaceStructure(lesson, sections)
}

// buildSections 把抽取结果转换为数据模型
func buildSections(lessonID string, extraction *LessonExtraction) []model.Section {
	sections := make([]model.Section, 0, len(extraction.Sections))
	for _, es := range extraction.Sections {
		section := model.Section{
			LessonID:  lessonID,
			Title:     es.Descriptor.Title,
			Content:   es.Content,
			Summary:   es.Descriptor.Summary,
			StartPage: es.Descriptor.StartPage,
			EndPage:   es.Descriptor.EndPage,
		}
		for _, eo := range es.Objects {
			keywords, _ := json.Marshal(eo.Keywords)
			section.Objects = append(section.Objects, model.LearningObject{
				LessonID: lessonID,
				Title:    eo.Title,
				Content:  eo.Content,
				Type:     model.LearningObjectType(eo.ObjectType),
				Keywords: keywords,
			})
		}
		sections = append(sections, section)
	}
	return sections
}

// watchCancel 轮询redis取消标记并转换为ctx取消
func (s *LessonService) watchCancel(ctx context.Context, lessonID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.status.CancelRequested(ctx, lessonID) {
					cancel()
					return
				}
			}
		}
	}()
	return ctx, func() {
		close(done)
		cancel()
	}
}

func (s *LessonService) checkCancelled(ctx context.Context, lessonID string) error {
	if ctx.Err() != nil {
		s.status.SetStage(context.Background(), lessonID, StageCancelled, "")
		return util.ErrCancelled
	}
	return nil
}

func (s *LessonService) Get(id string) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrLessonNotFound
	}
	return lesson, nil
}

func (s *LessonService) GetWithStructure(id string) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.FindByIDWithStructure(id)
	if err != nil {
		return nil, util.ErrLessonNotFound
	}
	return lesson, nil
}

func (s *LessonService) ListByCourse(courseID string) ([]model.Lesson, error) {
	if _, err := s.courseRepo.FindByID(courseID); err != nil {
		return nil, util.ErrCourseNotFound
	}
	return s.lessonRepo.FindByCourseID(courseID)
}

// Delete 按配置策略处理引用该课时的题目：refuse 拒绝删除，cascade 连带删除
func (s *LessonService) Delete(id string) error {
	if _, err := s.lessonRepo.FindByID(id); err != nil {
		return util.ErrLessonNotFound
	}

	cascade := s.cfg.Generation.LessonDeletePolicy == "cascade"
	if !cascade {
		count, err := s.lessonRepo.CountQuestionsReferencing(id)
		if err != nil {
			return err
		}
		if count > 0 {
			return util.ErrLessonReferenced
		}
	}

	if err := s.translationRepo.DeleteForEntity(model.KindLesson, id); err != nil {
		logger.Log.Warn("课时译文清理失败", zap.String("lessonId", id), zap.Error(err))
	}
	return s.lessonRepo.Delete(id, cascade)
}

// Status 查询摄取作业状态
func (s *LessonService) Status(ctx context.Context, lessonID string) (*PipelineJob, error) {
	return s.status.Get(ctx, lessonID)
}

// Cancel 请求取消进行中的摄取作业
func (s *LessonService) Cancel(ctx context.Context, lessonID string) {
	s.status.RequestCancel(ctx, lessonID)
}
