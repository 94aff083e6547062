package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/util"
	"solo_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// SectionDescriptor 阶段A输出的小节描述
type SectionDescriptor struct {
	Title     string `json:"title"`
	StartPage *int   `json:"start_page"`
	EndPage   *int   `json:"end_page"`
	Summary   string `json:"summary"`
}

// ExtractedObject 阶段C输出的学习对象
type ExtractedObject struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	ObjectType string   `json:"object_type"`
	Keywords   []string `json:"keywords"`
}

// ExtractedSection 切片后的小节及其学习对象
type ExtractedSection struct {
	Descriptor SectionDescriptor
	Content    string
	Objects    []ExtractedObject
}

// LessonExtraction 内容抽取管道的完整产出
// 该服务对持久化无副作用，落库由调用方负责
type LessonExtraction struct {
	Sections []ExtractedSection
	Summary  string
}

// ContentExtractionService 分阶段把PDF文本转换为小节与学习对象
// 任何子阶段失败都降级处理（空小节、空对象列表、空摘要），不中断整个课时
type ContentExtractionService struct {
	ai      AIInvoker
	budgets config.PromptBudgets
}

func NewContentExtractionService(ai AIInvoker, budgets config.PromptBudgets) *ContentExtractionService {
	return &ContentExtractionService{ai: ai, budgets: budgets}
}

// ExtractLessonContent 执行 A（小节识别）→ B（内容切片）→ C（对象抽取）→ D（摘要）四个阶段
// progress 可为nil，每进入一个可观测子阶段回调一次
func (s *ContentExtractionService) ExtractLessonContent(ctx context.Context, lessonTitle string, pdfContent *PDFContent, progress func(stage, detail string)) (*LessonExtraction, error) {
	report := func(stage, detail string) {
		if progress != nil {
			progress(stage, detail)
		}
	}

	descriptors := s.identifySections(ctx, lessonTitle, pdfContent.FullText)
	if ctx.Err() != nil {
		return nil, util.ErrCancelled
	}

	result := &LessonExtraction{}
	for i, desc := range descriptors {
		content := SliceSectionContent(pdfContent.FullText, desc)
		section := ExtractedSection{Descriptor: desc, Content: content}

		report(StageObjects, fmt.Sprintf("section %d/%d", i+1, len(descriptors)))
		section.Objects = s.extractObjects(ctx, lessonTitle, desc.Title, content)
		if ctx.Err() != nil {
			return nil, util.ErrCancelled
		}

		result.Sections = append(result.Sections, section)
	}

	report(StageSummary, "")
	result.Summary = s.summarize(ctx, lessonTitle, pdfContent.FullText)
	if ctx.Err() != nil {
		return nil, util.ErrCancelled
	}

	return result, nil
}

// identifySections 阶段A：一次大模型调用识别3-8个小节
// 调用或JSON恢复失败时，整篇文本退化为单个合成小节
func (s *ContentExtractionService) identifySections(ctx context.Context, lessonTitle, fullText string) []SectionDescriptor {
	prompt := fmt.Sprintf(`You are analyzing a lesson document titled "%s".
The text below contains page markers in the form "--- Page N ---".

Identify between 3 and 8 logical sections of this lesson. For each section return:
- "title": the section title
- "start_page": first page of the section (integer, optional)
- "end_page": last page of the section (integer, optional)
- "summary": one or two sentences summarizing the section

Respond with ONLY a JSON array of section objects, no prose.

Document text:
%s`, lessonTitle, util.Truncate(fullText, s.budgets.SectionIdentify))

	text, err := s.ai.Call(ctx, []AIChatMessage{
		{Role: "system", Content: "You are an expert at analyzing educational documents and extracting their structure. Always respond with valid JSON."},
		{Role: "user", Content: prompt},
	}, 2000, 0.3)
	if err != nil {
		logger.Log.Warn("小节识别调用失败，退化为单一小节", zap.String("lesson", lessonTitle), zap.Error(err))
		return s.syntheticSection(lessonTitle)
	}

	raw, err := util.ExtractJSON(text)
	if err != nil {
		logger.Log.Warn("小节识别JSON恢复失败，退化为单一小节", zap.String("lesson", lessonTitle), zap.Error(err))
		return s.syntheticSection(lessonTitle)
	}

	var descriptors []SectionDescriptor
	if err := json.Unmarshal(raw, &descriptors); err != nil || len(descriptors) == 0 {
		logger.Log.Warn("小节描述结构不符合契约，退化为单一小节", zap.String("lesson", lessonTitle))
		return s.syntheticSection(lessonTitle)
	}
	return descriptors
}

func (s *ContentExtractionService) syntheticSection(lessonTitle string) []SectionDescriptor {
	return []SectionDescriptor{{
		Title:   lessonTitle,
		Summary: "",
	}}
}

// SliceSectionContent 阶段B：按页标记确定性切片
// 页标记不可用时按标题大小写不敏感搜索取有界后缀，仍失败则取固定长度前缀
// 给定相同的阶段A描述，该函数的切片边界是确定的
func SliceSectionContent(fullText string, desc SectionDescriptor) string {
	const fallbackLen = 8000

	if desc.StartPage != nil {
		startMarker := PageMarker(*desc.StartPage)
		start := strings.Index(fullText, startMarker)
		if start >= 0 {
			end := len(fullText)
			if desc.EndPage != nil {
				endMarker := PageMarker(*desc.EndPage + 1)
				if idx := strings.Index(fullText, endMarker); idx > start {
					end = idx
				}
			}
			return strings.TrimSpace(fullText[start:end])
		}
	}

	if desc.Title != "" {
		lower := strings.ToLower(fullText)
		if idx := strings.Index(lower, strings.ToLower(desc.Title)); idx >= 0 {
			end := idx + fallbackLen
			if end > len(fullText) {
				end = len(fullText)
			}
			return strings.TrimSpace(fullText[idx:end])
		}
	}

	if len(fullText) > fallbackLen {
		return strings.TrimSpace(fullText[:fallbackLen])
	}
	return strings.TrimSpace(fullText)
}

// extractObjects 阶段C：每个小节一次调用，抽取2-6个学习对象
// 失败时该小节的对象列表为空
func (s *ContentExtractionService) extractObjects(ctx context.Context, lessonTitle, sectionTitle, content string) []ExtractedObject {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	prompt := fmt.Sprintf(`From the lesson "%s", section "%s", extract between 2 and 6 learning objects.

A learning object is the smallest assessable unit of content. For each one return:
- "title": short name of the learning object
- "content": the full explanatory text
- "object_type": one of "concept", "definition", "procedure", "principle", "example", "fact"
- "keywords": 2 to 4 keyword strings

Respond with ONLY a JSON array.

Section content:
%s`, lessonTitle, sectionTitle, util.Truncate(content, s.budgets.LearningObjects))

	text, err := s.ai.Call(ctx, []AIChatMessage{
		{Role: "system", Content: "You are an expert at decomposing educational content into atomic learning objects. Always respond with valid JSON."},
		{Role: "user", Content: prompt},
	}, 3000, 0.3)
	if err != nil {
		logger.Log.Warn("学习对象抽取调用失败", zap.String("section", sectionTitle), zap.Error(err))
		return nil
	}

	raw, err := util.ExtractJSON(text)
	if err != nil {
		logger.Log.Warn("学习对象JSON恢复失败", zap.String("section", sectionTitle), zap.Error(err))
		return nil
	}

	var objects []ExtractedObject
	if err := json.Unmarshal(raw, &objects); err != nil {
		logger.Log.Warn("学习对象结构不符合契约", zap.String("section", sectionTitle))
		return nil
	}

	// 对象类型不在枚举内时归为 concept
	var valid []ExtractedObject
	for _, obj := range objects {
		if strings.TrimSpace(obj.Title) == "" {
			continue
		}
		if !model.ValidLearningObjectType(obj.ObjectType) {
			obj.ObjectType = string(model.LOConcept)
		}
		valid = append(valid, obj)
	}
	return valid
}

// summarize 阶段D：生成2-3段课时摘要，失败时为空
func (s *ContentExtractionService) summarize(ctx context.Context, lessonTitle, fullText string) string {
	prompt := fmt.Sprintf(`Summarize the lesson "%s" in 2-3 paragraphs for a student who is about to study it.
Respond with the summary text only, no headings.

Lesson text:
%s`, lessonTitle, util.Truncate(fullText, s.budgets.LessonSummary))

	text, err := s.ai.Call(ctx, []AIChatMessage{
		{Role: "system", Content: "You are an educational content summarizer."},
		{Role: "user", Content: prompt},
	}, 1500, 0.3)
	if err != nil {
		logger.Log.Warn("课时摘要生成失败", zap.String("lesson", lessonTitle), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}
