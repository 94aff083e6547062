package service

import (
	"errors"
	"testing"

	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func buildQuizService(db *gorm.DB) *QuizService {
	return NewQuizService(
		repository.NewQuizRepository(db),
		repository.NewQuestionRepository(db),
		repository.NewCourseRepository(db),
	)
}

func seedQuestions(t *testing.T, db *gorm.DB, lessonID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		q := model.Question{
			QuestionText:    "Q",
			SoloLevel:       model.SoloUnistructural,
			Type:            model.QShortAnswer,
			CorrectAnswer:   "A",
			PrimaryLessonID: lessonID,
		}
		require.NoError(t, db.Create(&q).Error)
		ids = append(ids, q.ID)
	}
	return ids
}

func TestQuizCreateRequiresExistingQuestions(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Omicron")
	ids := seedQuestions(t, db, lesson.ID, 2)

	svc := buildQuizService(db)

	_, err := svc.Create(course.ID, "Quiz", "", append(ids, "no-such-id"))
	assert.True(t, errors.Is(err, util.ErrQuestionNotFound))

	quiz, err := svc.Create(course.ID, "Quiz", "desc", ids)
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 2)
}

func TestQuizCreateValidation(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	svc := buildQuizService(db)

	_, err := svc.Create(course.ID, "   ", "", nil)
	assert.True(t, errors.Is(err, util.ErrValidationFailed))

	_, err = svc.Create("ghost-course", "Quiz", "", nil)
	assert.True(t, errors.Is(err, util.ErrCourseNotFound))
}

func TestQuizAddQuestions(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Pi")
	ids := seedQuestions(t, db, lesson.ID, 3)

	svc := buildQuizService(db)
	quiz, err := svc.Create(course.ID, "Quiz", "", ids[:1])
	require.NoError(t, err)

	quiz, err = svc.AddQuestions(quiz.ID, ids[1:])
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 3)
}

func TestQuizDeleteKeepsQuestions(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Rho")
	ids := seedQuestions(t, db, lesson.ID, 2)

	svc := buildQuizService(db)
	quiz, err := svc.Create(course.ID, "Quiz", "", ids)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(quiz.ID))
	_, err = svc.Get(quiz.ID)
	assert.True(t, errors.Is(err, util.ErrQuizNotFound))

	// 删除测验不删除题目本身
	var count int64
	require.NoError(t, db.Model(&model.Question{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
