package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"solo_edu_backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存sqlite库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Lesson{},
		&model.Section{},
		&model.LearningObject{},
		&model.OntologyRelationship{},
		&model.Question{},
		&model.Quiz{},
		&model.Translation{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeInvoker 按调用序号脚本化的大模型替身
type fakeInvoker struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	fn      func(call int, messages []AIChatMessage) (string, error)
}

func (f *fakeInvoker) Call(ctx context.Context, messages []AIChatMessage, maxTokens int, temperature float32) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	if len(messages) > 0 {
		f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	}
	f.mu.Unlock()
	return f.fn(n, messages)
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeInvoker) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func seedCourse(t *testing.T, db *gorm.DB) *model.Course {
	t.Helper()
	course := &model.Course{Name: "Distributed Systems", Code: "CS-401"}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return course
}

// seedLessonWithStructure 造一个带两个小节、每节两个学习对象的课时
func seedLessonWithStructure(t *testing.T, db *gorm.DB, courseID, title string) *model.Lesson {
	t.Helper()
	lesson := &model.Lesson{
		CourseID:  courseID,
		Title:     title,
		RawText:   "--- Page 1 ---\nIntroduction to " + title + "\n--- Page 2 ---\nDetails of " + title,
		Summary:   "Summary of " + title,
		PageCount: 2,
	}
	if err := db.Create(lesson).Error; err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
	for i := 0; i < 2; i++ {
		section := &model.Section{
			LessonID:   lesson.ID,
			Title:      fmt.Sprintf("%s Section %d", title, i+1),
			Content:    fmt.Sprintf("Content of section %d in %s", i+1, title),
			OrderIndex: i,
		}
		if err := db.Create(section).Error; err != nil {
			t.Fatalf("seed section: %v", err)
		}
		for j := 0; j < 2; j++ {
			obj := &model.LearningObject{
				SectionID: section.ID,
				LessonID:  lesson.ID,
				Title:     fmt.Sprintf("%s Object %d.%d", title, i+1, j+1),
				Content:   "Explanatory text",
				Type:      model.LOConcept,
			}
			if err := db.Create(obj).Error; err != nil {
				t.Fatalf("seed object: %v", err)
			}
		}
	}
	return lesson
}
