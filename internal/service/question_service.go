package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"
	"solo_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// soloDefinitions 完整的五级SOLO定义，随每个提示一起下发，让模型理解层级全貌
const soloDefinitions = `The SOLO taxonomy describes five levels of response complexity:
1. Prestructural: the response misses the point entirely (never generate at this level).
2. Unistructural: the response uses one single relevant fact or aspect.
3. Multistructural: the response lists several relevant but independent aspects.
4. Relational: the response integrates aspects into a coherent structure, explaining relationships, causes and comparisons.
5. Extended Abstract: the response generalizes the integrated structure to a new domain, hypothesis or context.`

// generatedQuestion 大模型输出的单题契约
type generatedQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswer      string   `json:"correct_answer"`
	CorrectOptionIndex *int     `json:"correct_option_index"`
	Explanation        string   `json:"explanation"`
}

// workItem 工作计划中的一项：一个SOLO层级与其内容范围
type workItem struct {
	level             model.SoloLevel
	primaryLessonID   string
	secondaryLessonID string
	scopeText         string
}

// GenerationRequest 题目生成请求
// Levels 给出每个启用层级的题目数；Extended Abstract 要求恰好两个课时
type GenerationRequest struct {
	LessonIDs    []string                `json:"lessonIds" binding:"required,min=1"`
	Levels       map[model.SoloLevel]int `json:"levels"`
	QuestionType model.QuestionType      `json:"questionType"`
}

// GenerationResult 结构化的生成结果：成功题目、每层级计数与丢弃数
type GenerationResult struct {
	Questions []model.Question        `json:"questions"`
	PerLevel  map[model.SoloLevel]int `json:"perLevel"`
	Discarded int                     `json:"discarded"`
}

// QuestionService 按SOLO层级的内容范围规则生成测验题
type QuestionService struct {
	ai           AIInvoker
	questionRepo *repository.QuestionRepository
	lessonRepo   *repository.LessonRepository
	ontologyRepo *repository.OntologyRepository
	perLevel     int
}

func NewQuestionService(ai AIInvoker, cfg config.GenerationConfig, questionRepo *repository.QuestionRepository, lessonRepo *repository.LessonRepository, ontologyRepo *repository.OntologyRepository) *QuestionService {
	perLevel := cfg.QuestionsPerLevelDefault
	if perLevel <= 0 {
		perLevel = 3
	}
	return &QuestionService{
		ai:           ai,
		questionRepo: questionRepo,
		lessonRepo:   lessonRepo,
		ontologyRepo: ontologyRepo,
		perLevel:     perLevel,
	}
}

// Generate 按工作计划逐项生成题目并落库
// 单题失败相互隔离；全部失败时向调用方返回错误
func (s *QuestionService) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if req.QuestionType == "" {
		req.QuestionType = model.QMultipleChoice
	}
	levels := req.Levels
	if len(levels) == 0 {
		levels = map[model.SoloLevel]int{}
		for _, l := range model.AllSoloLevels {
			levels[l] = s.perLevel
		}
	}
	for level := range levels {
		if !model.ValidSoloLevel(string(level)) {
			return nil, fmt.Errorf("%w: unknown solo level %q", util.ErrValidationFailed, level)
		}
	}
	if n, ok := levels[model.SoloExtendedAbstract]; ok && n > 0 && len(req.LessonIDs) != 2 {
		return nil, fmt.Errorf("%w: extended_abstract requires exactly two lessons", util.ErrDependencyMissing)
	}

	lessons := make([]*model.Lesson, 0, len(req.LessonIDs))
	for _, id := range req.LessonIDs {
		lesson, err := s.lessonRepo.FindByIDWithStructure(id)
		if err != nil {
			return nil, util.ErrLessonNotFound
		}
		if len(lesson.Sections) == 0 {
			return nil, fmt.Errorf("%w: lesson %q has no extracted structure", util.ErrDependencyMissing, lesson.Title)
		}
		lessons = append(lessons, lesson)
	}

	plan, err := s.buildWorkPlan(levels, lessons)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{PerLevel: map[model.SoloLevel]int{}}
	for _, item := range plan {
		if ctx.Err() != nil {
			return nil, util.ErrCancelled
		}
		q, err := s.generateOne(ctx, item, req.QuestionType)
		if err != nil {
			result.Discarded++
			logger.Log.Warn("题目生成失败，丢弃该项",
				zap.String("level", string(item.level)),
				zap.String("lessonId", item.primaryLessonID),
				zap.Error(err))
			continue
		}
		result.Questions = append(result.Questions, *q)
		result.PerLevel[item.level]++
	}

	if len(result.Questions) == 0 {
		return nil, fmt.Errorf("question generation produced no valid questions: %w", util.ErrValidationFailed)
	}
	if err := s.questionRepo.CreateBatch(result.Questions); err != nil {
		return nil, err
	}
	return result, nil
}

// buildWorkPlan 为每个启用层级生成 count 个工作项
// 非顶层级按轮询从课时集中选取内容范围
func (s *QuestionService) buildWorkPlan(levels map[model.SoloLevel]int, lessons []*model.Lesson) ([]workItem, error) {
	var plan []workItem
	for _, level := range model.AllSoloLevels {
		count, ok := levels[level]
		if !ok || count <= 0 {
			continue
		}
		for i := 0; i < count; i++ {
			item, err := s.planItem(level, lessons, i)
			if err != nil {
				return nil, err
			}
			plan = append(plan, item)
		}
	}
	return plan, nil
}

func (s *QuestionService) planItem(level model.SoloLevel, lessons []*model.Lesson, seq int) (workItem, error) {
	switch level {
	case model.SoloUnistructural:
		// 单个学习对象，跨课时轮询
		lesson := lessons[seq%len(lessons)]
		objects := lessonObjects(lesson)
		if len(objects) == 0 {
			return workItem{}, fmt.Errorf("%w: lesson %q has no learning objects", util.ErrDependencyMissing, lesson.Title)
		}
		obj := objects[seq%len(objects)]
		return workItem{
			level:           level,
			primaryLessonID: lesson.ID,
			scopeText:       fmt.Sprintf("Learning object: %s (%s)\n%s", obj.Title, obj.Type, obj.Content),
		}, nil

	case model.SoloMultistructural:
		lesson := lessons[seq%len(lessons)]
		section := lesson.Sections[seq%len(lesson.Sections)]
		return workItem{
			level:           level,
			primaryLessonID: lesson.ID,
			scopeText:       sectionScope(section),
		}, nil

	case model.SoloRelational:
		lesson := lessons[seq%len(lessons)]
		section := lesson.Sections[seq%len(lesson.Sections)]
		scope := sectionScope(section)

		ids := make([]string, 0, len(section.Objects))
		names := make(map[string]string)
		for _, obj := range section.Objects {
			ids = append(ids, obj.ID)
			names[obj.ID] = obj.Title
		}
		rels, err := s.ontologyRepo.FindTouching(lesson.ID, ids)
		if err == nil && len(rels) > 0 {
			var b strings.Builder
			b.WriteString("\n\nKnown relationships between learning objects:\n")
			for _, rel := range rels {
				source, target := names[rel.SourceID], names[rel.TargetID]
				if source == "" || target == "" {
					continue
				}
				fmt.Fprintf(&b, "- %s --[%s]--> %s: %s\n", source, rel.Type, target, rel.Description)
			}
			scope += b.String()
		}
		return workItem{level: level, primaryLessonID: lesson.ID, scopeText: scope}, nil

	case model.SoloExtendedAbstract:
		// 两个不同课时，主次按序号交替
		first := lessons[seq%2]
		second := lessons[(seq+1)%2]
		scope := fmt.Sprintf("Lesson A: %s\n%s\n\nLesson B: %s\n%s",
			first.Title, util.Truncate(first.Summary+"\n"+lessonObjectTitles(first), 4000),
			second.Title, util.Truncate(second.Summary+"\n"+lessonObjectTitles(second), 4000))
		return workItem{
			level:             level,
			primaryLessonID:   first.ID,
			secondaryLessonID: second.ID,
			scopeText:         scope,
		}, nil
	}
	return workItem{}, fmt.Errorf("%w: unknown solo level %q", util.ErrValidationFailed, level)
}

func lessonObjects(lesson *model.Lesson) []model.LearningObject {
	var objects []model.LearningObject
	for _, s := range lesson.Sections {
		objects = append(objects, s.Objects...)
	}
	return objects
}

func lessonObjectTitles(lesson *model.Lesson) string {
	var titles []string
	for _, obj := range lessonObjects(lesson) {
		titles = append(titles, obj.Title)
	}
	return "Key learning objects: " + strings.Join(titles, "; ")
}

func sectionScope(section model.Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Section: %s\n%s\n\nLearning objects:\n", section.Title, util.Truncate(section.Content, 6000))
	for _, obj := range section.Objects {
		fmt.Fprintf(&b, "- %s (%s): %s\n", obj.Title, obj.Type, util.Truncate(obj.Content, 600))
	}
	return b.String()
}

// generateOne 单题生成：首次调用未通过校验时，把校验错误附加到提示再重试一次
// 提供商链耗尽或JSON恢复失败不触发纠正重试，重走链条没有意义
func (s *QuestionService) generateOne(ctx context.Context, item workItem, qType model.QuestionType) (*model.Question, error) {
	prompt := s.buildPrompt(item, qType, "")
	q, validationErr := s.callAndValidate(ctx, item, qType, prompt)
	if validationErr == nil {
		return q, nil
	}
	if ctx.Err() != nil {
		return nil, util.ErrCancelled
	}
	if !errors.Is(validationErr, util.ErrValidationFailed) {
		return nil, validationErr
	}

	prompt = s.buildPrompt(item, qType, validationErr.Error())
	q, validationErr = s.callAndValidate(ctx, item, qType, prompt)
	if validationErr != nil {
		return nil, validationErr
	}
	return q, nil
}

func (s *QuestionService) callAndValidate(ctx context.Context, item workItem, qType model.QuestionType, prompt string) (*model.Question, error) {
	text, err := s.ai.Call(ctx, []AIChatMessage{
		{Role: "system", Content: "You are an expert assessment designer who writes quiz questions calibrated to the SOLO taxonomy. Always respond with valid JSON."},
		{Role: "user", Content: prompt},
	}, 1500, 0.4)
	if err != nil {
		return nil, err
	}

	body, err := util.ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var gen generatedQuestion
	if err := json.Unmarshal(body, &gen); err != nil {
		return nil, fmt.Errorf("%w: question does not match contract", util.ErrJSONRecoveryFailed)
	}

	q, err := buildQuestion(item, qType, gen)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// buildQuestion 强制执行题目不变量
func buildQuestion(item workItem, qType model.QuestionType, gen generatedQuestion) (*model.Question, error) {
	if strings.TrimSpace(gen.Question) == "" {
		return nil, fmt.Errorf("%w: question text is empty", util.ErrValidationFailed)
	}

	q := &model.Question{
		QuestionText:    strings.TrimSpace(gen.Question),
		SoloLevel:       item.level,
		Type:            qType,
		CorrectAnswer:   strings.TrimSpace(gen.CorrectAnswer),
		Explanation:     strings.TrimSpace(gen.Explanation),
		PrimaryLessonID: item.primaryLessonID,
		IsAIGenerated:   true,
		HumanModified:   false,
	}
	if item.secondaryLessonID != "" {
		secondary := item.secondaryLessonID
		q.SecondaryLessonID = &secondary
	}

	switch qType {
	case model.QMultipleChoice:
		if len(gen.Options) != 4 {
			return nil, fmt.Errorf("%w: multiple choice requires exactly 4 options, got %d", util.ErrValidationFailed, len(gen.Options))
		}
		if gen.CorrectOptionIndex == nil {
			return nil, fmt.Errorf("%w: correct_option_index is missing", util.ErrValidationFailed)
		}
		idx := *gen.CorrectOptionIndex
		if idx < 0 || idx >= len(gen.Options) {
			return nil, fmt.Errorf("%w: correct_option_index %d out of range", util.ErrValidationFailed, idx)
		}
		// 选项落库前统一去空白，保证存储行同样满足 options[idx] == correct_answer
		for i := range gen.Options {
			gen.Options[i] = strings.TrimSpace(gen.Options[i])
		}
		if gen.Options[idx] != q.CorrectAnswer {
			return nil, fmt.Errorf("%w: correct_answer does not equal options[correct_option_index]", util.ErrValidationFailed)
		}
		opts, _ := json.Marshal(gen.Options)
		q.Options = opts
		q.CorrectOptionIndex = &idx

	case model.QTrueFalse:
		if q.CorrectAnswer != "True" && q.CorrectAnswer != "False" {
			return nil, fmt.Errorf("%w: true_false answer must be \"True\" or \"False\"", util.ErrValidationFailed)
		}

	case model.QShortAnswer:
		if q.CorrectAnswer == "" {
			return nil, fmt.Errorf("%w: correct_answer is empty", util.ErrValidationFailed)
		}

	default:
		return nil, fmt.Errorf("%w: unknown question type %q", util.ErrValidationFailed, qType)
	}

	return q, nil
}

func (s *QuestionService) buildPrompt(item workItem, qType model.QuestionType, previousError string) string {
	var b strings.Builder
	b.WriteString(soloDefinitions)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Write ONE quiz question at the %q SOLO level.\n", item.level)
	b.WriteString(levelConstraints(item.level))
	b.WriteString("\n\n")

	switch qType {
	case model.QMultipleChoice:
		b.WriteString(`Output schema (JSON object, nothing else):
{"question": "...", "options": ["...", "...", "...", "..."], "correct_option_index": 0, "correct_answer": "...", "explanation": "..."}
Rules: options has exactly 4 entries; correct_answer must be byte-identical to options[correct_option_index].`)
	case model.QTrueFalse:
		b.WriteString(`Output schema (JSON object, nothing else):
{"question": "...", "correct_answer": "True", "explanation": "..."}
Rules: correct_answer is exactly "True" or "False".`)
	default:
		b.WriteString(`Output schema (JSON object, nothing else):
{"question": "...", "correct_answer": "...", "explanation": "..."}`)
	}

	if previousError != "" {
		fmt.Fprintf(&b, "\n\nYour previous attempt was rejected: %s\nFix the problem and output a corrected question.", previousError)
	}

	b.WriteString("\n\nSource content:\n")
	b.WriteString(item.scopeText)
	return b.String()
}

func levelConstraints(level model.SoloLevel) string {
	switch level {
	case model.SoloUnistructural:
		return `Constraints: test recall of ONE single fact or aspect from the learning object below. Do not combine facts.`
	case model.SoloMultistructural:
		return `Constraints: require the learner to enumerate SEVERAL independent aspects from the section below. Do NOT ask about relationships or connections between them.`
	case model.SoloRelational:
		return `Constraints: require the learner to relate, compare, or explain cause and effect between the concepts below, using the listed relationships where relevant.`
	case model.SoloExtendedAbstract:
		return `Constraints: require the learner to generalize across BOTH lessons below, form a hypothesis, or transfer the combined ideas to a new context.`
	}
	return ""
}

// ListByLesson 分页检索课时题目，可按SOLO层级过滤
func (s *QuestionService) ListByLesson(lessonID, soloLevel string, page, limit int) ([]model.Question, int64, error) {
	if soloLevel != "" && !model.ValidSoloLevel(soloLevel) {
		return nil, 0, fmt.Errorf("%w: unknown solo level %q", util.ErrValidationFailed, soloLevel)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.questionRepo.FindByLessonID(lessonID, soloLevel, page, limit)
}

// UpdateByHuman 人工编辑题目：重新校验不变量并置位 human_modified
func (s *QuestionService) UpdateByHuman(question *model.Question) error {
	if _, err := s.questionRepo.FindByID(question.ID); err != nil {
		return util.ErrQuestionNotFound
	}
	if question.Type == model.QMultipleChoice {
		opts := question.OptionList()
		if len(opts) < 2 {
			return fmt.Errorf("%w: multiple choice requires at least 2 options", util.ErrValidationFailed)
		}
		if question.CorrectOptionIndex == nil || *question.CorrectOptionIndex < 0 || *question.CorrectOptionIndex >= len(opts) {
			return fmt.Errorf("%w: correct_option_index out of range", util.ErrValidationFailed)
		}
		if opts[*question.CorrectOptionIndex] != question.CorrectAnswer {
			return fmt.Errorf("%w: correct_answer does not equal options[correct_option_index]", util.ErrValidationFailed)
		}
	}
	return s.questionRepo.Update(question, true)
}

func (s *QuestionService) Delete(id string) error {
	if _, err := s.questionRepo.FindByID(id); err != nil {
		return util.ErrQuestionNotFound
	}
	return s.questionRepo.Delete(id)
}
