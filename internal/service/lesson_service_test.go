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
	"gorm.io/gorm"
)

func buildLessonService(t *testing.T, db *gorm.DB, ai AIInvoker, deletePolicy string) *LessonService {
	t.Helper()
	cfg := &config.Config{}
	cfg.AI.CallTimeoutSeconds = 5
	cfg.Generation.LessonDeletePolicy = deletePolicy
	cfg.Storage.Type = util.StorageLocal
	cfg.Storage.LocalPath = t.TempDir()

	var extraction *ContentExtractionService
	if ai != nil {
		extraction = NewContentExtractionService(ai, testBudgets())
	}
	return NewLessonService(
		cfg,
		NewPDFService(),
		extraction,
		NewStorageService(cfg),
		NewPipelineStatusService(nil),
		repository.NewLessonRepository(db),
		repository.NewCourseRepository(db),
		repository.NewTranslationRepository(db),
	)
}

func TestUploadRejectsNonPDFExtension(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)

	svc := buildLessonService(t, db, nil, "refuse")
	_, err := svc.UploadAndIngest(course.ID, "Lecture", "notes.docx", nil)
	assert.True(t, errors.Is(err, util.ErrValidationFailed))
}

func TestReextractWithoutStoredText(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := &model.Lesson{CourseID: course.ID, Title: "Empty"}
	require.NoError(t, db.Create(lesson).Error)

	svc := buildLessonService(t, db, nil, "refuse")
	_, err := svc.Reextract(context.Background(), lesson.ID)
	assert.True(t, errors.Is(err, util.ErrDependencyMissing))
}

func TestReextractRebuildsStructureAndInvalidatesTranslations(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Sorting")

	translationRepo := repository.NewTranslationRepository(db)
	lessonRepo := repository.NewLessonRepository(db)

	// 旧译文：重抽取后必须全部失效
	sections, err := lessonRepo.FindSectionsByLessonID(lesson.ID)
	require.NoError(t, err)
	require.NoError(t, translationRepo.Upsert(&model.Translation{
		EntityKind: model.KindLesson, EntityID: lesson.ID, LanguageCode: "el", Fields: []byte(`{}`),
	}))
	require.NoError(t, translationRepo.Upsert(&model.Translation{
		EntityKind: model.KindSection, EntityID: sections[0].ID, LanguageCode: "el", Fields: []byte(`{}`),
	}))

	ai := &fakeInvoker{fn: func(call int, messages []AIChatMessage) (string, error) {
		switch call {
		case 1:
			return `[{"title": "Rebuilt Section", "summary": "fresh"}]`, nil
		case 2:
			return `[{"title": "Bubble Sort", "content": "swap adjacent", "object_type": "procedure", "keywords": ["sort"]},
				{"title": "Stability", "content": "order preserved", "object_type": "concept", "keywords": ["order"]}]`, nil
		default:
			return "New summary.", nil
		}
	}}

	svc := buildLessonService(t, db, ai, "refuse")
	rebuilt, err := svc.Reextract(context.Background(), lesson.ID)
	require.NoError(t, err)
	require.Len(t, rebuilt.Sections, 1)
	assert.Equal(t, "Rebuilt Section", rebuilt.Sections[0].Title)
	assert.Len(t, rebuilt.Sections[0].Objects, 2)
	assert.Equal(t, "New summary.", rebuilt.Summary)

	var count int64
	require.NoError(t, db.Model(&model.Translation{}).Count(&count).Error)
	assert.Zero(t, count, "stale translations must be removed on re-extraction")
}

func TestDeleteRefusePolicyBlocksReferencedLesson(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Hashing")

	require.NoError(t, db.Create(&model.Question{
		QuestionText:    "Q",
		SoloLevel:       model.SoloUnistructural,
		Type:            model.QShortAnswer,
		CorrectAnswer:   "A",
		PrimaryLessonID: lesson.ID,
	}).Error)

	svc := buildLessonService(t, db, nil, "refuse")
	err := svc.Delete(lesson.ID)
	assert.True(t, errors.Is(err, util.ErrLessonReferenced))

	_, err = svc.Get(lesson.ID)
	assert.NoError(t, err)
}

func TestDeleteCascadePolicyRemovesQuestions(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Trees")

	q := model.Question{
		QuestionText:    "Q",
		SoloLevel:       model.SoloUnistructural,
		Type:            model.QShortAnswer,
		CorrectAnswer:   "A",
		PrimaryLessonID: lesson.ID,
	}
	require.NoError(t, db.Create(&q).Error)

	quizRepo := repository.NewQuizRepository(db)
	quiz := &model.Quiz{CourseID: course.ID, Title: "Final"}
	require.NoError(t, quizRepo.Create(quiz))
	require.NoError(t, quizRepo.AddQuestions(quiz, []model.Question{q}))

	svc := buildLessonService(t, db, nil, "cascade")
	require.NoError(t, svc.Delete(lesson.ID))

	_, err := svc.Get(lesson.ID)
	assert.True(t, errors.Is(err, util.ErrLessonNotFound))

	var questions, sections, objects int64
	db.Model(&model.Question{}).Count(&questions)
	db.Model(&model.Section{}).Count(&sections)
	db.Model(&model.LearningObject{}).Count(&objects)
	assert.Zero(t, questions)
	assert.Zero(t, sections)
	assert.Zero(t, objects)

	// 级联删除的题目同时退出测验
	ids, err := quizRepo.QuestionIDs(quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestBuildSectionsMapsExtraction(t *testing.T) {
	extraction := &LessonExtraction{
		Sections: []ExtractedSection{{
			Descriptor: SectionDescriptor{Title: "S1", Summary: "sum"},
			Content:    "body",
			Objects: []ExtractedObject{{
				Title: "O1", Content: "text", ObjectType: "definition", Keywords: []string{"k1", "k2"},
			}},
		}},
		Summary: "lesson summary",
	}

	sections := buildSections("lesson-1", extraction)
	require.Len(t, sections, 1)
	assert.Equal(t, "lesson-1", sections[0].LessonID)
	require.Len(t, sections[0].Objects, 1)
	assert.Equal(t, model.LODefinition, sections[0].Objects[0].Type)
	assert.Equal(t, []string{"k1", "k2"}, sections[0].Objects[0].KeywordList())
}
