package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func buildChatbotService(db *gorm.DB, ai AIInvoker) *ChatbotService {
	return NewChatbotService(ai, testBudgets(),
		repository.NewCourseRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
	)
}

func TestChatGroundsPromptInLessonContext(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Recursion")

	var systemPrompt string
	ai := &fakeInvoker{fn: func(call int, messages []AIChatMessage) (string, error) {
		systemPrompt = messages[0].Content
		return "  Grounded answer.  ", nil
	}}

	svc := buildChatbotService(db, ai)
	answer, err := svc.Chat(context.Background(), ChatRequest{
		Message:  "What is recursion?",
		CourseID: course.ID,
		LessonID: lesson.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Grounded answer.", answer)

	assert.Contains(t, systemPrompt, course.Name)
	assert.Contains(t, systemPrompt, "Lesson: Recursion")
	assert.Contains(t, systemPrompt, "Recursion Section 1")
	assert.Contains(t, systemPrompt, "Recursion Object 1.1")
}

func TestChatHistoryWindow(t *testing.T) {
	db := newTestDB(t)

	var got []AIChatMessage
	ai := &fakeInvoker{fn: func(call int, messages []AIChatMessage) (string, error) {
		got = messages
		return "ok", nil
	}}
	svc := buildChatbotService(db, ai)

	history := make([]AIChatMessage, 0, 14)
	for i := 0; i < 14; i++ {
		history = append(history, AIChatMessage{Role: "user", Content: "old"})
	}
	_, err := svc.Chat(context.Background(), ChatRequest{Message: "latest", History: history})
	require.NoError(t, err)

	// system + 最近10条历史 + 当前消息
	assert.Len(t, got, 12)
	assert.Equal(t, "latest", got[len(got)-1].Content)
}

func TestChatFallbackOnBrokerFailure(t *testing.T) {
	db := newTestDB(t)
	ai := &fakeInvoker{fn: func(int, []AIChatMessage) (string, error) {
		return "", errors.New("all providers down")
	}}
	svc := buildChatbotService(db, ai)

	answer, err := svc.Chat(context.Background(), ChatRequest{Message: "Explain B-trees please"})
	require.NoError(t, err)
	assert.Contains(t, answer, "Explain B-trees please")
	assert.True(t, strings.Contains(answer, "try again"), "fallback should invite a retry")
}

func TestRetrieveContextWithoutAnyScope(t *testing.T) {
	db := newTestDB(t)
	svc := buildChatbotService(db, nil)
	assert.Equal(t, "(no course context available)", svc.retrieveContext("", ""))
}

func TestChatRelationshipsIncluded(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Graphs")

	lessonRepo := repository.NewLessonRepository(db)
	objects, err := lessonRepo.FindLearningObjectsByLessonID(lesson.ID)
	require.NoError(t, err)
	ontologyRepo := repository.NewOntologyRepository(db)
	require.NoError(t, ontologyRepo.ReplaceForLesson(lesson.ID, []model.OntologyRelationship{
		{SourceID: objects[0].ID, TargetID: objects[1].ID, Type: model.RelPrerequisite},
	}))

	svc := buildChatbotService(db, nil)
	ctx := svc.retrieveContext("", lesson.ID)
	assert.Contains(t, ctx, "Relationships:")
	assert.Contains(t, ctx, string(model.RelPrerequisite))
}
