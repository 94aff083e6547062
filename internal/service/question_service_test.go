package service

import (
	"context"
	"errors"
	"testing"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validMCJSON = `{"question": "What is a queue?",
	"options": ["A FIFO structure", "A LIFO structure", "A tree", "A graph"],
	"correct_option_index": 0,
	"correct_answer": "A FIFO structure",
	"explanation": "Queues are first-in first-out."}`

func intPtr(n int) *int { return &n }

func buildQuestionService(db *repository.QuestionRepository, lessonRepo *repository.LessonRepository, ontologyRepo *repository.OntologyRepository, ai AIInvoker) *QuestionService {
	return NewQuestionService(ai, config.GenerationConfig{QuestionsPerLevelDefault: 2}, db, lessonRepo, ontologyRepo)
}

func TestBuildQuestionMultipleChoiceInvariants(t *testing.T) {
	item := workItem{level: model.SoloUnistructural, primaryLessonID: "l1"}

	q, err := buildQuestion(item, model.QMultipleChoice, generatedQuestion{
		Question:           "Pick one",
		Options:            []string{"a", "b", "c", "d"},
		CorrectOptionIndex: intPtr(2),
		CorrectAnswer:      "c",
	})
	require.NoError(t, err)
	assert.Equal(t, model.SoloUnistructural, q.SoloLevel)
	assert.True(t, q.IsAIGenerated)
	assert.Nil(t, q.SecondaryLessonID)

	cases := []generatedQuestion{
		{Question: "Pick", Options: []string{"a", "b", "c"}, CorrectOptionIndex: intPtr(0), CorrectAnswer: "a"},            // 3 options
		{Question: "Pick", Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: intPtr(4), CorrectAnswer: "a"},       // index out of range
		{Question: "Pick", Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: intPtr(1), CorrectAnswer: "a"},       // answer mismatch
		{Question: "Pick", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: "a"},                                      // index missing
		{Question: "", Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: intPtr(0), CorrectAnswer: "a"},           // empty text
	}
	for i, gen := range cases {
		_, err := buildQuestion(item, model.QMultipleChoice, gen)
		assert.True(t, errors.Is(err, util.ErrValidationFailed), "case %d should fail validation", i)
	}
}

func TestBuildQuestionTrueFalse(t *testing.T) {
	item := workItem{level: model.SoloMultistructural, primaryLessonID: "l1"}

	q, err := buildQuestion(item, model.QTrueFalse, generatedQuestion{Question: "Is it?", CorrectAnswer: "True"})
	require.NoError(t, err)
	assert.Equal(t, "True", q.CorrectAnswer)

	_, err = buildQuestion(item, model.QTrueFalse, generatedQuestion{Question: "Is it?", CorrectAnswer: "yes"})
	assert.True(t, errors.Is(err, util.ErrValidationFailed))
}

func TestGenerateExtendedAbstractRequiresTwoLessons(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Solo")

	svc := buildQuestionService(
		repository.NewQuestionRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
		&fakeInvoker{fn: func(int, []AIChatMessage) (string, error) { return validMCJSON, nil }},
	)

	_, err := svc.Generate(context.Background(), GenerationRequest{
		LessonIDs: []string{lesson.ID},
		Levels:    map[model.SoloLevel]int{model.SoloExtendedAbstract: 1},
	})
	assert.True(t, errors.Is(err, util.ErrDependencyMissing))
}

func TestGenerateExtendedAbstractSetsSecondaryLesson(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	first := seedLessonWithStructure(t, db, course.ID, "Alpha")
	second := seedLessonWithStructure(t, db, course.ID, "Beta")

	svc := buildQuestionService(
		repository.NewQuestionRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
		&fakeInvoker{fn: func(int, []AIChatMessage) (string, error) { return validMCJSON, nil }},
	)

	result, err := svc.Generate(context.Background(), GenerationRequest{
		LessonIDs: []string{first.ID, second.ID},
		Levels:    map[model.SoloLevel]int{model.SoloExtendedAbstract: 2},
	})
	require.NoError(t, err)
	require.Len(t, result.Questions, 2)
	for _, q := range result.Questions {
		require.NotNil(t, q.SecondaryLessonID)
		assert.NotEqual(t, q.PrimaryLessonID, *q.SecondaryLessonID)
	}
	// 主次课时按序号交替
	assert.NotEqual(t, result.Questions[0].PrimaryLessonID, result.Questions[1].PrimaryLessonID)
}

func TestGenerateLowerLevelsNeverSetSecondaryLesson(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Gamma")

	svc := buildQuestionService(
		repository.NewQuestionRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
		&fakeInvoker{fn: func(int, []AIChatMessage) (string, error) { return validMCJSON, nil }},
	)

	result, err := svc.Generate(context.Background(), GenerationRequest{
		LessonIDs: []string{lesson.ID},
		Levels: map[model.SoloLevel]int{
			model.SoloUnistructural:   1,
			model.SoloMultistructural: 1,
			model.SoloRelational:      1,
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Questions, 3)
	for _, q := range result.Questions {
		assert.Nil(t, q.SecondaryLessonID)
		assert.Equal(t, lesson.ID, q.PrimaryLessonID)
	}
	assert.Equal(t, 1, result.PerLevel[model.SoloRelational])
}

func TestGenerateRequiresExtractedStructure(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	bare := &model.Lesson{CourseID: course.ID, Title: "Unprocessed"}
	require.NoError(t, db.Create(bare).Error)

	svc := buildQuestionService(
		repository.NewQuestionRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
		&fakeInvoker{fn: func(int, []AIChatMessage) (string, error) { return validMCJSON, nil }},
	)

	_, err := svc.Generate(context.Background(), GenerationRequest{
		LessonIDs: []string{bare.ID},
		Levels:    map[model.SoloLevel]int{model.SoloUnistructural: 1},
	})
	assert.True(t, errors.Is(err, util.ErrDependencyMissing))
}

func TestGenerateCorrectiveRetry(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Delta")

	invalid := `{"question": "Broken", "options": ["a", "b"], "correct_option_index": 0, "correct_answer": "a"}`
	ai := &fakeInvoker{fn: func(call int, messages []AIChatMessage) (string, error) {
		if call == 1 {
			return invalid, nil
		}
		return validMCJSON, nil
	}}

	svc := buildQuestionService(
		repository.NewQuestionRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
		ai,
	)

	result, err := svc.Generate(context.Background(), GenerationRequest{
		LessonIDs: []string{lesson.ID},
		Levels:    map[model.SoloLevel]int{model.SoloUnistructural: 1},
	})
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, 0, result.Discarded)
	assert.Equal(t, 2, ai.callCount())
	// 重试提示携带首次的校验错误
	assert.Contains(t, ai.lastPrompt(), "previous attempt was rejected")
}

func TestGenerateNoCorrectiveRetryOnProviderFailure(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Iota")

	// 提供商链耗尽不是内容问题，纠正重试只会重走注定失败的链条
	ai := &fakeInvoker{fn: func(int, []AIChatMessage) (string, error) {
		return "", util.ErrAllProvidersExhausted
	}}

	svc := buildQuestionService(
		repository.NewQuestionRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
		ai,
	)

	_, err := svc.Generate(context.Background(), GenerationRequest{
		LessonIDs: []string{lesson.ID},
		Levels:    map[model.SoloLevel]int{model.SoloUnistructural: 1},
	})
	require.Error(t, err)
	assert.Equal(t, 1, ai.callCount())
	assert.NotContains(t, ai.lastPrompt(), "previous attempt was rejected")
}

func TestBuildQuestionTrimsStoredOptions(t *testing.T) {
	item := workItem{level: model.SoloUnistructural, primaryLessonID: "l1"}

	q, err := buildQuestion(item, model.QMultipleChoice, generatedQuestion{
		Question:           "Pick one",
		Options:            []string{"  A FIFO structure ", "b", "c", "d"},
		CorrectOptionIndex: intPtr(0),
		CorrectAnswer:      " A FIFO structure ",
	})
	require.NoError(t, err)

	// 落库的选项与答案同样去除空白，存储行仍满足 options[idx] == correct_answer
	opts := q.OptionList()
	require.Len(t, opts, 4)
	assert.Equal(t, "A FIFO structure", opts[0])
	assert.Equal(t, q.CorrectAnswer, opts[*q.CorrectOptionIndex])
}

func TestGenerateDiscardsAfterSecondFailure(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Epsilon")

	invalid := `{"question": "Broken", "options": ["a", "b"], "correct_option_index": 0, "correct_answer": "a"}`
	ai := &fakeInvoker{fn: func(call int, messages []AIChatMessage) (string, error) {
		// 第一个工作项两次都失败，第二个成功
		if call <= 2 {
			return invalid, nil
		}
		return validMCJSON, nil
	}}

	svc := buildQuestionService(
		repository.NewQuestionRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
		ai,
	)

	result, err := svc.Generate(context.Background(), GenerationRequest{
		LessonIDs: []string{lesson.ID},
		Levels:    map[model.SoloLevel]int{model.SoloUnistructural: 2},
	})
	require.NoError(t, err)
	assert.Len(t, result.Questions, 1)
	assert.Equal(t, 1, result.Discarded)
}

func TestGenerateAllFailuresReturnsError(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Zeta")

	ai := &fakeInvoker{fn: func(int, []AIChatMessage) (string, error) {
		return "not json at all", nil
	}}

	svc := buildQuestionService(
		repository.NewQuestionRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
		ai,
	)

	_, err := svc.Generate(context.Background(), GenerationRequest{
		LessonIDs: []string{lesson.ID},
		Levels:    map[model.SoloLevel]int{model.SoloUnistructural: 1},
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.Question{}).Count(&count).Error)
	assert.Zero(t, count, "no questions should be persisted when every item fails")
}

func TestGenerateUnknownLevelRejected(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Eta")

	svc := buildQuestionService(
		repository.NewQuestionRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
		&fakeInvoker{fn: func(int, []AIChatMessage) (string, error) { return validMCJSON, nil }},
	)

	_, err := svc.Generate(context.Background(), GenerationRequest{
		LessonIDs: []string{lesson.ID},
		Levels:    map[model.SoloLevel]int{model.SoloLevel("prestructural"): 1},
	})
	assert.True(t, errors.Is(err, util.ErrValidationFailed))
}

func TestUpdateByHumanRevalidates(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Theta")

	questionRepo := repository.NewQuestionRepository(db)
	q := model.Question{
		QuestionText:       "Original",
		SoloLevel:          model.SoloUnistructural,
		Type:               model.QMultipleChoice,
		Options:            []byte(`["a","b","c","d"]`),
		CorrectOptionIndex: intPtr(0),
		CorrectAnswer:      "a",
		PrimaryLessonID:    lesson.ID,
		IsAIGenerated:      true,
	}
	require.NoError(t, questionRepo.Create(&q))

	svc := buildQuestionService(questionRepo, repository.NewLessonRepository(db), repository.NewOntologyRepository(db), nil)

	q.CorrectAnswer = "b"
	err := svc.UpdateByHuman(&q)
	assert.True(t, errors.Is(err, util.ErrValidationFailed))

	q.CorrectOptionIndex = intPtr(1)
	require.NoError(t, svc.UpdateByHuman(&q))

	stored, err := questionRepo.FindByID(q.ID)
	require.NoError(t, err)
	assert.True(t, stored.HumanModified)
	assert.Equal(t, "b", stored.CorrectAnswer)
}
