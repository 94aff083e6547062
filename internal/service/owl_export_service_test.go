package service

import (
	"strings"
	"testing"

	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeIRIToken(t *testing.T) {
	assert.Equal(t, "Dijkstra_s_Algorithm", sanitizeIRIToken("Dijkstra's Algorithm"))
	assert.Equal(t, "FIFO_Queue", sanitizeIRIToken("FIFO Queue!"))
	assert.Equal(t, "LearningObject", sanitizeIRIToken("???"))
	assert.Equal(t, "LearningObject", sanitizeIRIToken(""))
}

func TestAssignIRIsDeduplicates(t *testing.T) {
	objects := []model.LearningObject{
		{UUIDBase: model.UUIDBase{ID: "a"}, Title: "Queue"},
		{UUIDBase: model.UUIDBase{ID: "b"}, Title: "Queue!"},
		{UUIDBase: model.UUIDBase{ID: "c"}, Title: "Queue"},
	}
	iris := assignIRIs(objects)
	assert.Equal(t, "#Queue", iris["a"])
	assert.Equal(t, "#Queue_2", iris["b"])
	assert.Equal(t, "#Queue_3", iris["c"])
}

func TestExportLessonOntology(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	lesson := seedLessonWithStructure(t, db, course.ID, "Trees")

	lessonRepo := repository.NewLessonRepository(db)
	ontologyRepo := repository.NewOntologyRepository(db)
	objects, err := lessonRepo.FindLearningObjectsByLessonID(lesson.ID)
	require.NoError(t, err)
	require.Len(t, objects, 4)

	require.NoError(t, ontologyRepo.ReplaceForLesson(lesson.ID, []model.OntologyRelationship{
		{SourceID: objects[0].ID, TargetID: objects[1].ID, Type: model.RelPrerequisite, Description: "order"},
		{SourceID: objects[1].ID, TargetID: objects[2].ID, Type: model.RelPrerequisite, Description: "order"},
		{SourceID: objects[0].ID, TargetID: objects[3].ID, Type: model.RelRelatedTo, Description: "loose"},
	}))

	svc := NewOWLExportService(repository.NewCourseRepository(db), lessonRepo, ontologyRepo)
	out, err := svc.ExportLesson(lesson.ID)
	require.NoError(t, err)
	doc := string(out)

	assert.True(t, strings.HasPrefix(doc, "<?xml"))
	assert.Contains(t, doc, `ontologyIRI="http://solo-edu.org/ontology/lesson/`+lesson.ID+`"`)

	// 每个对象：类声明 + 个体声明；每种用到的关系类型一条属性声明
	assert.Equal(t, 4+2+4, strings.Count(doc, "<Declaration>"))
	assert.Equal(t, 4, strings.Count(doc, "<ClassAssertion>"))
	assert.Equal(t, 3, strings.Count(doc, "<ObjectPropertyAssertion>"))
	assert.Equal(t, 4, strings.Count(doc, "<DataPropertyAssertion>"))
	assert.Contains(t, doc, `IRI="#prerequisite"`)
	assert.Contains(t, doc, `IRI="#related_to"`)
	assert.Contains(t, doc, "rdf-schema#label")
}

func TestExportCourseMergesLessons(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	seedLessonWithStructure(t, db, course.ID, "Nu")
	seedLessonWithStructure(t, db, course.ID, "Xi")

	svc := NewOWLExportService(
		repository.NewCourseRepository(db),
		repository.NewLessonRepository(db),
		repository.NewOntologyRepository(db),
	)
	out, err := svc.ExportCourse(course.ID)
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, `ontologyIRI="http://solo-edu.org/ontology/course/`+course.ID+`"`)
	// 两个课时各4个对象，无关系
	assert.Equal(t, 8, strings.Count(doc, "<ClassAssertion>"))
	assert.Equal(t, 0, strings.Count(doc, "<ObjectPropertyAssertion>"))
}
