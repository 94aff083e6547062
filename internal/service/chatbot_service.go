package service

import (
	"context"
	"fmt"
	"strings"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"
	"solo_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// ChatRequest 一轮对话的输入，历史由调用方携带，服务端不保存会话
type ChatRequest struct {
	Message  string          `json:"message" binding:"required"`
	CourseID string          `json:"courseId"`
	LessonID string          `json:"lessonId"`
	History  []AIChatMessage `json:"history"`
}

const maxChatHistory = 10

// ChatbotService 以课程内容为依据回答学习者提问
type ChatbotService struct {
	ai           AIInvoker
	budgets      config.PromptBudgets
	courseRepo   *repository.CourseRepository
	lessonRepo   *repository.LessonRepository
	ontologyRepo *repository.OntologyRepository
}

func NewChatbotService(ai AIInvoker, budgets config.PromptBudgets, courseRepo *repository.CourseRepository, lessonRepo *repository.LessonRepository, ontologyRepo *repository.OntologyRepository) *ChatbotService {
	return &ChatbotService{ai: ai, budgets: budgets, courseRepo: courseRepo, lessonRepo: lessonRepo, ontologyRepo: ontologyRepo}
}

// Chat 单轮应答：检索上下文 → 构建接地提示 → 一次调用
// 调用失败时降级为点名未知主题的固定话术
func (s *ChatbotService) Chat(ctx context.Context, req ChatRequest) (string, error) {
	contextText := s.retrieveContext(req.CourseID, req.LessonID)

	system := `You are a study assistant for an online course.
Ground every answer in the course context supplied below.
If the context does not cover the question, say so explicitly instead of inventing an answer.

Course context:
` + contextText

	messages := []AIChatMessage{{Role: "system", Content: system}}
	history := req.History
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	messages = append(messages, history...)
	messages = append(messages, AIChatMessage{Role: "user", Content: req.Message})

	answer, err := s.ai.Call(ctx, messages, 1000, 0.5)
	if err != nil {
		logger.Log.Warn("聊天调用失败，返回降级话术", zap.Error(err))
		topic := util.Truncate(strings.TrimSpace(req.Message), 80)
		return fmt.Sprintf("I can't reach the assistant right now, so I couldn't look into %q. Please try again in a moment.", topic), nil
	}
	return strings.TrimSpace(answer), nil
}

// retrieveContext 汇集课时摘要、小节与对象标题、本体关系，每个维度截断到预算内
func (s *ChatbotService) retrieveContext(courseID, lessonID string) string {
	var b strings.Builder

	if courseID != "" {
		if course, err := s.courseRepo.FindByID(courseID); err == nil {
			fmt.Fprintf(&b, "Course: %s\n%s\n\n", course.Name, util.Truncate(course.Description, 500))
		}
	}

	if lessonID == "" {
		if b.Len() == 0 {
			return "(no course context available)"
		}
		return b.String()
	}

	lesson, err := s.lessonRepo.FindByIDWithStructure(lessonID)
	if err != nil {
		if b.Len() == 0 {
			return "(no course context available)"
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Lesson: %s\n%s\n\n", lesson.Title, util.Truncate(lesson.Summary, s.budgets.Chatbot/2))

	names := make(map[string]string)
	b.WriteString("Sections and learning objects:\n")
	for _, section := range lesson.Sections {
		fmt.Fprintf(&b, "- %s\n", section.Title)
		for _, obj := range section.Objects {
			fmt.Fprintf(&b, "  - %s (%s)\n", obj.Title, obj.Type)
			names[obj.ID] = obj.Title
		}
	}

	if rels, err := s.ontologyRepo.FindByLessonID(lessonID); err == nil && len(rels) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, rel := range rels {
			source, target := names[rel.SourceID], names[rel.TargetID]
			if source == "" || target == "" {
				continue
			}
			fmt.Fprintf(&b, "- %s %s %s\n", source, rel.Type, target)
		}
	}

	return util.Truncate(b.String(), s.budgets.Chatbot)
}
