package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBudgets() config.PromptBudgets {
	return config.PromptBudgets{
		SectionIdentify: 15000,
		LearningObjects: 8000,
		LessonSummary:   10000,
		Ontology:        10000,
		Chatbot:         6000,
	}
}

func pagedText() string {
	return strings.Join([]string{
		PageMarker(1), "Introduction to queues and their uses.",
		PageMarker(2), "Operations: enqueue and dequeue explained.",
		PageMarker(3), "Advanced Topics in priority queues.",
	}, "\n")
}

func TestExtractLessonContentHappyPath(t *testing.T) {
	ai := &fakeInvoker{fn: func(call int, messages []AIChatMessage) (string, error) {
		switch call {
		case 1: // 小节识别
			return `[{"title": "Basics", "start_page": 1, "end_page": 2, "summary": "queue basics"},
				{"title": "Advanced Topics", "start_page": 3, "end_page": 3, "summary": "advanced"}]`, nil
		case 2, 3: // 学习对象抽取
			return `[{"title": "Queue", "content": "FIFO structure", "object_type": "concept", "keywords": ["fifo"]},
				{"title": "Enqueue", "content": "Insert operation", "object_type": "made_up_type", "keywords": ["op"]},
				{"title": "", "content": "ignored", "object_type": "fact", "keywords": []}]`, nil
		default: // 摘要
			return "This lesson covers queues.", nil
		}
	}}

	var stages []string
	svc := NewContentExtractionService(ai, testBudgets())
	out, err := svc.ExtractLessonContent(context.Background(), "Queues", &PDFContent{FullText: pagedText(), PageCount: 3},
		func(stage, detail string) {
			stages = append(stages, stage+" "+detail)
		})
	require.NoError(t, err)

	require.Len(t, out.Sections, 2)
	assert.Equal(t, "Basics", out.Sections[0].Descriptor.Title)
	assert.Contains(t, out.Sections[0].Content, "enqueue and dequeue")
	assert.NotContains(t, out.Sections[0].Content, "Advanced Topics")

	// 空标题对象被丢弃，非法类型归为 concept
	require.Len(t, out.Sections[0].Objects, 2)
	assert.Equal(t, "concept", out.Sections[0].Objects[1].ObjectType)

	assert.Equal(t, "This lesson covers queues.", out.Summary)
	assert.Equal(t, 4, ai.callCount())

	// 每个小节的对象抽取和摘要阶段各上报一次
	assert.Equal(t, []string{
		StageObjects + " section 1/2",
		StageObjects + " section 2/2",
		StageSummary + " ",
	}, stages)
}

func TestExtractLessonContentSyntheticFallback(t *testing.T) {
	ai := &fakeInvoker{fn: func(call int, messages []AIChatMessage) (string, error) {
		return "", errors.New("provider down")
	}}

	svc := NewContentExtractionService(ai, testBudgets())
	out, err := svc.ExtractLessonContent(context.Background(), "Queues", &PDFContent{FullText: pagedText(), PageCount: 3}, nil)
	require.NoError(t, err)

	// 全部子阶段失败时降级：单一合成小节、无对象、空摘要
	require.Len(t, out.Sections, 1)
	assert.Equal(t, "Queues", out.Sections[0].Descriptor.Title)
	assert.NotEmpty(t, out.Sections[0].Content)
	assert.Empty(t, out.Sections[0].Objects)
	assert.Empty(t, out.Summary)
}

func TestExtractLessonContentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ai := &fakeInvoker{fn: func(call int, messages []AIChatMessage) (string, error) {
		return `[{"title": "Basics"}]`, nil
	}}
	svc := NewContentExtractionService(ai, testBudgets())
	_, err := svc.ExtractLessonContent(ctx, "Queues", &PDFContent{FullText: pagedText(), PageCount: 3}, nil)
	assert.True(t, errors.Is(err, util.ErrCancelled))
}

func TestSliceSectionContentByPageMarkers(t *testing.T) {
	start, end := 2, 2
	got := SliceSectionContent(pagedText(), SectionDescriptor{Title: "Ops", StartPage: &start, EndPage: &end})
	assert.Contains(t, got, "enqueue and dequeue")
	assert.NotContains(t, got, "priority queues")

	// 相同描述重复切片结果一致
	again := SliceSectionContent(pagedText(), SectionDescriptor{Title: "Ops", StartPage: &start, EndPage: &end})
	assert.Equal(t, got, again)
}

func TestSliceSectionContentOpenEnd(t *testing.T) {
	start := 2
	got := SliceSectionContent(pagedText(), SectionDescriptor{StartPage: &start})
	assert.Contains(t, got, "enqueue and dequeue")
	assert.Contains(t, got, "priority queues")
	assert.NotContains(t, got, "Introduction to queues")
}

func TestSliceSectionContentTitleFallback(t *testing.T) {
	// 页码缺失时按标题大小写不敏感搜索
	got := SliceSectionContent(pagedText(), SectionDescriptor{Title: "advanced topics"})
	assert.True(t, strings.HasPrefix(got, "Advanced Topics"))
}

func TestSliceSectionContentPrefixFallback(t *testing.T) {
	long := strings.Repeat("x", 20000)
	got := SliceSectionContent(long, SectionDescriptor{Title: "nowhere"})
	assert.Len(t, got, 8000)

	short := "tiny document"
	assert.Equal(t, short, SliceSectionContent(short, SectionDescriptor{}))
}

func TestSliceSectionContentMissingStartMarker(t *testing.T) {
	start := 99
	text := fmt.Sprintf("%s\nonly page one", PageMarker(1))
	got := SliceSectionContent(text, SectionDescriptor{StartPage: &start})
	// 页标记找不到时退回前缀策略
	assert.Equal(t, strings.TrimSpace(text), got)
}
