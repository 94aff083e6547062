package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"
	"solo_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// BatchTranslationReport 批量翻译的逐实体结果
type BatchTranslationReport struct {
	LanguageCode string   `json:"languageCode"`
	Total        int      `json:"total"`
	Succeeded    int      `json:"succeeded"`
	FailedIDs    []string `json:"failedIds,omitempty"`
}

// Complete 目标语言完整当且仅当所有实体均有译文
func (r *BatchTranslationReport) Complete() bool {
	return r.Total > 0 && r.Succeeded == r.Total
}

// TranslationService 把题目、课时、小节与学习对象翻译到目标语言
// 重译替换旧行；翻译彼此独立，无跨实体依赖
type TranslationService struct {
	ai              AIInvoker
	translationRepo *repository.TranslationRepository
	questionRepo    *repository.QuestionRepository
	lessonRepo      *repository.LessonRepository
	quizRepo        *repository.QuizRepository
	allowedLangs    map[string]bool
}

func NewTranslationService(ai AIInvoker, allowedLanguages []string, translationRepo *repository.TranslationRepository, questionRepo *repository.QuestionRepository, lessonRepo *repository.LessonRepository, quizRepo *repository.QuizRepository) *TranslationService {
	allowed := make(map[string]bool, len(allowedLanguages))
	for _, l := range allowedLanguages {
		allowed[strings.ToLower(l)] = true
	}
	return &TranslationService{
		ai:              ai,
		translationRepo: translationRepo,
		questionRepo:    questionRepo,
		lessonRepo:      lessonRepo,
		quizRepo:        quizRepo,
		allowedLangs:    allowed,
	}
}

func (s *TranslationService) checkLanguage(lang string) error {
	lang = strings.ToLower(lang)
	if lang == "" || lang == "en" {
		return util.ErrLanguageNotAllowed
	}
	if len(s.allowedLangs) > 0 && !s.allowedLangs[lang] {
		return util.ErrLanguageNotAllowed
	}
	return nil
}

// TranslateQuestion 单题翻译：选项顺序保持，正确答案身份不变
func (s *TranslationService) TranslateQuestion(ctx context.Context, questionID, lang string) (*model.Translation, error) {
	if err := s.checkLanguage(lang); err != nil {
		return nil, err
	}
	q, err := s.questionRepo.FindByID(questionID)
	if err != nil {
		return nil, util.ErrQuestionNotFound
	}
	return s.translateQuestion(ctx, q, strings.ToLower(lang))
}

func (s *TranslationService) translateQuestion(ctx context.Context, q *model.Question, lang string) (*model.Translation, error) {
	source := model.QuestionTranslationFields{
		QuestionText:  q.QuestionText,
		Options:       q.OptionList(),
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}
	sourceJSON, _ := json.Marshal(source)

	prompt := fmt.Sprintf(`Translate the quiz question below into the language with ISO code "%s".
Keep the JSON structure identical: same keys, same number of options in the same order.
The translated correct_answer must remain the same option as in the source.
Respond with ONLY the translated JSON object.

%s`, lang, string(sourceJSON))

	var fields model.QuestionTranslationFields
	if err := s.callTranslate(ctx, prompt, &fields); err != nil {
		return nil, err
	}
	if fields.QuestionText == "" || fields.CorrectAnswer == "" {
		return nil, fmt.Errorf("%w: translated question missing required fields", util.ErrValidationFailed)
	}
	if len(source.Options) > 0 && len(fields.Options) != len(source.Options) {
		return nil, fmt.Errorf("%w: translated options count %d differs from source %d", util.ErrValidationFailed, len(fields.Options), len(source.Options))
	}

	return s.store(model.KindQuestion, q.ID, lang, fields)
}

// TranslateLesson 课时标题与摘要翻译
func (s *TranslationService) TranslateLesson(ctx context.Context, lessonID, lang string) (*model.Translation, error) {
	if err := s.checkLanguage(lang); err != nil {
		return nil, err
	}
	lesson, err := s.lessonRepo.FindByID(lessonID)
	if err != nil {
		return nil, util.ErrLessonNotFound
	}
	fields, err := s.translateTitleSummary(ctx, lesson.Title, lesson.Summary, strings.ToLower(lang))
	if err != nil {
		return nil, err
	}
	return s.store(model.KindLesson, lesson.ID, strings.ToLower(lang), fields)
}

// TranslateSections 批量翻译课时的全部小节
func (s *TranslationService) TranslateSections(ctx context.Context, lessonID, lang string) (*BatchTranslationReport, error) {
	if err := s.checkLanguage(lang); err != nil {
		return nil, err
	}
	sections, err := s.lessonRepo.FindSectionsByLessonID(lessonID)
	if err != nil {
		return nil, err
	}
	lang = strings.ToLower(lang)

	report := &BatchTranslationReport{LanguageCode: lang, Total: len(sections)}
	for _, section := range sections {
		if ctx.Err() != nil {
			return report, util.ErrCancelled
		}
		fields, err := s.translateTitleSummary(ctx, section.Title, section.Summary, lang)
		if err == nil {
			_, err = s.store(model.KindSection, section.ID, lang, fields)
		}
		if err != nil {
			report.FailedIDs = append(report.FailedIDs, section.ID)
			logger.Log.Warn("小节翻译失败", zap.String("sectionId", section.ID), zap.String("lang", lang), zap.Error(err))
			continue
		}
		report.Succeeded++
	}
	return report, nil
}

func (s *TranslationService) translateTitleSummary(ctx context.Context, title, summary, lang string) (model.TitleSummaryFields, error) {
	source := model.TitleSummaryFields{Title: title, Summary: summary}
	sourceJSON, _ := json.Marshal(source)

	prompt := fmt.Sprintf(`Translate the JSON object below into the language with ISO code "%s".
Keep the keys unchanged. Respond with ONLY the translated JSON object.

%s`, lang, string(sourceJSON))

	var fields model.TitleSummaryFields
	if err := s.callTranslate(ctx, prompt, &fields); err != nil {
		return fields, err
	}
	if fields.Title == "" {
		return fields, fmt.Errorf("%w: translated title is empty", util.ErrValidationFailed)
	}
	return fields, nil
}

// TranslateLearningObject 学习对象翻译：标题、正文与关键词
func (s *TranslationService) TranslateLearningObject(ctx context.Context, obj *model.LearningObject, lang string) (*model.Translation, error) {
	if err := s.checkLanguage(lang); err != nil {
		return nil, err
	}
	lang = strings.ToLower(lang)
	source := model.LearningObjectTranslationFields{
		Title:    obj.Title,
		Content:  obj.Content,
		Keywords: obj.KeywordList(),
	}
	sourceJSON, _ := json.Marshal(source)

	prompt := fmt.Sprintf(`Translate the learning object below into the language with ISO code "%s".
Keep the JSON keys unchanged and keep the keywords array the same length.
Respond with ONLY the translated JSON object.

%s`, lang, string(sourceJSON))

	var fields model.LearningObjectTranslationFields
	if err := s.callTranslate(ctx, prompt, &fields); err != nil {
		return nil, err
	}
	if fields.Title == "" {
		return nil, fmt.Errorf("%w: translated title is empty", util.ErrValidationFailed)
	}
	return s.store(model.KindLearningObject, obj.ID, lang, fields)
}

// TranslateQuiz 批量翻译测验的全部题目并报告逐题结果
// 部分失败不回滚已成功的译文，但该语言不会被通告为可用
func (s *TranslationService) TranslateQuiz(ctx context.Context, quizID, lang string) (*BatchTranslationReport, error) {
	if err := s.checkLanguage(lang); err != nil {
		return nil, err
	}
	questionIDs, err := s.quizRepo.QuestionIDs(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	questions, err := s.questionRepo.FindByIDs(questionIDs)
	if err != nil {
		return nil, err
	}
	lang = strings.ToLower(lang)

	report := &BatchTranslationReport{LanguageCode: lang, Total: len(questions)}
	for i := range questions {
		if ctx.Err() != nil {
			return report, util.ErrCancelled
		}
		if _, err := s.translateQuestion(ctx, &questions[i], lang); err != nil {
			report.FailedIDs = append(report.FailedIDs, questions[i].ID)
			logger.Log.Warn("题目翻译失败", zap.String("questionId", questions[i].ID), zap.String("lang", lang), zap.Error(err))
			continue
		}
		report.Succeeded++
	}

	logger.Log.Info("测验翻译完成",
		zap.String("quizId", quizID),
		zap.String("lang", lang),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("total", report.Total))
	return report, nil
}

// AvailableQuizLanguages 语言可用当且仅当每道题都有该语言译文
// 部分译文保留在库中但不对外通告
func (s *TranslationService) AvailableQuizLanguages(quizID string) ([]string, error) {
	questionIDs, err := s.quizRepo.QuestionIDs(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	if len(questionIDs) == 0 {
		return nil, nil
	}
	counts, err := s.translationRepo.LanguagesForEntities(model.KindQuestion, questionIDs)
	if err != nil {
		return nil, err
	}
	var langs []string
	for lang, count := range counts {
		if count == int64(len(questionIDs)) {
			langs = append(langs, lang)
		}
	}
	return langs, nil
}

// QuizLanguageStatus 报告某语言下的覆盖率（已译/总数）
func (s *TranslationService) QuizLanguageStatus(quizID, lang string) (int64, int, error) {
	questionIDs, err := s.quizRepo.QuestionIDs(quizID)
	if err != nil {
		return 0, 0, util.ErrQuizNotFound
	}
	count, err := s.translationRepo.CountForEntities(model.KindQuestion, questionIDs, strings.ToLower(lang))
	return count, len(questionIDs), err
}

// FixQuizLanguage 原子删除测验在某语言下的全部题目译文，返回删除行数
// 用于修复无法恢复的半成品翻译
func (s *TranslationService) FixQuizLanguage(quizID, lang string) (int64, error) {
	questionIDs, err := s.quizRepo.QuestionIDs(quizID)
	if err != nil {
		return 0, util.ErrQuizNotFound
	}
	deleted, err := s.translationRepo.DeleteForEntities(model.KindQuestion, questionIDs, strings.ToLower(lang))
	if err != nil {
		return 0, err
	}
	logger.Log.Info("清除测验残缺译文", zap.String("quizId", quizID), zap.String("lang", lang), zap.Int64("deleted", deleted))
	return deleted, nil
}

func (s *TranslationService) callTranslate(ctx context.Context, prompt string, out interface{}) error {
	text, err := s.ai.Call(ctx, []AIChatMessage{
		{Role: "system", Content: "You are a professional translator of educational content. Always respond with valid JSON matching the source structure."},
		{Role: "user", Content: prompt},
	}, 2000, 0.2)
	if err != nil {
		return err
	}
	body, err := util.ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: translation does not match contract", util.ErrJSONRecoveryFailed)
	}
	return nil
}

// store 落库：同一 (entity, language) 的旧行被替换
func (s *TranslationService) store(kind model.EntityKind, entityID, lang string, fields interface{}) (*model.Translation, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	t := &model.Translation{
		EntityKind:   kind,
		EntityID:     entityID,
		LanguageCode: lang,
		Fields:       raw,
	}
	if err := s.translationRepo.Upsert(t); err != nil {
		return nil, err
	}
	return t, nil
}
