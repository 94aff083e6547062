package repository

import (
	"solo_edu_backend/internal/model"

	"gorm.io/gorm"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) Create(lesson *model.Lesson) error {
	return r.DB.Create(lesson).Error
}

func (r *LessonRepository) FindByID(id string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.First(&lesson, "id = ?", id).Error
	return &lesson, err
}

// FindByIDWithStructure 加载课时及其全部小节与学习对象（按小节顺序）
func (r *LessonRepository) FindByIDWithStructure(id string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sections.order_index asc")
		}).
		Preload("Sections.Objects").
		First(&lesson, "id = ?", id).Error
	return &lesson, err
}

func (r *LessonRepository) FindByCourseID(courseID string) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("course_id = ?", courseID).Order("created_at asc").Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) Update(lesson *model.Lesson) error {
	return r.DB.Save(lesson).Error
}

// ReplaceStructure 以事务替换课时的小节与学习对象（重新抽取时调用）
// 课时上的 Summary、PageCount 同步更新
func (r *LessonRepository) ReplaceStructure(lesson *model.Lesson, sections []model.Section) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lesson_id = ?", lesson.ID).Delete(&model.LearningObject{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lesson_id = ?", lesson.ID).Delete(&model.Section{}).Error; err != nil {
			return err
		}

		for i := range sections {
			sections[i].LessonID = lesson.ID
			sections[i].OrderIndex = i
			if err := tx.Create(&sections[i]).Error; err != nil {
				return err
			}
		}

		return tx.Model(&model.Lesson{}).Where("id = ?", lesson.ID).
			Updates(map[string]interface{}{
				"summary":    lesson.Summary,
				"page_count": lesson.PageCount,
				"raw_text":   lesson.RawText,
			}).Error
	})
}

// CountQuestionsReferencing 统计引用该课时（主或次）的题目数量
func (r *LessonRepository) CountQuestionsReferencing(lessonID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).
		Where("primary_lesson_id = ? OR secondary_lesson_id = ?", lessonID, lessonID).
		Count(&count).Error
	return count, err
}

// Delete 删除课时并级联清理小节、学习对象与本体关系
// 题目的处理（拒绝或级联）由服务层按配置决定
func (r *LessonRepository) Delete(id string, cascadeQuestions bool) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if cascadeQuestions {
			if err := tx.Exec(
				"DELETE FROM quiz_questions WHERE question_id IN (SELECT id FROM questions WHERE primary_lesson_id = ? OR secondary_lesson_id = ?)",
				id, id).Error; err != nil {
				return err
			}
			if err := tx.Where("primary_lesson_id = ? OR secondary_lesson_id = ?", id, id).
				Delete(&model.Question{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("lesson_id = ?", id).Delete(&model.OntologyRelationship{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lesson_id = ?", id).Delete(&model.LearningObject{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lesson_id = ?", id).Delete(&model.Section{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Lesson{}, "id = ?", id).Error
	})
}

// FindLearningObjectsByLessonID 按课时检索全部学习对象
func (r *LessonRepository) FindLearningObjectsByLessonID(lessonID string) ([]model.LearningObject, error) {
	var objects []model.LearningObject
	err := r.DB.Where("lesson_id = ?", lessonID).Find(&objects).Error
	return objects, err
}

// FindSectionsByLessonID 按顺序检索课时的小节（含学习对象）
func (r *LessonRepository) FindSectionsByLessonID(lessonID string) ([]model.Section, error) {
	var sections []model.Section
	err := r.DB.Preload("Objects").
		Where("lesson_id = ?", lessonID).
		Order("order_index asc").
		Find(&sections).Error
	return sections, err
}
