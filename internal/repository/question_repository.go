package repository

import (
	"solo_edu_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(question *model.Question) error {
	return r.DB.Create(question).Error
}

func (r *QuestionRepository) CreateBatch(questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.Create(&questions).Error
}

func (r *QuestionRepository) FindByID(id string) (*model.Question, error) {
	var q model.Question
	err := r.DB.First(&q, "id = ?", id).Error
	return &q, err
}

func (r *QuestionRepository) FindByIDs(ids []string) ([]model.Question, error) {
	var questions []model.Question
	if len(ids) == 0 {
		return questions, nil
	}
	err := r.DB.Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) FindByLessonID(lessonID string, soloLevel string, page, limit int) ([]model.Question, int64, error) {
	var questions []model.Question
	var total int64

	query := r.DB.Model(&model.Question{}).
		Where("primary_lesson_id = ? OR secondary_lesson_id = ?", lessonID, lessonID)
	if soloLevel != "" {
		query = query.Where("solo_level = ?", soloLevel)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&questions).Error
	return questions, total, err
}

// Update 人工编辑题目时置位 human_modified
func (r *QuestionRepository) Update(question *model.Question, byHuman bool) error {
	if byHuman {
		question.HumanModified = true
	}
	return r.DB.Save(question).Error
}

// Delete 删除题目时一并清除译文与测验关联，避免测验统计到已删除题目
func (r *QuestionRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entity_kind = ? AND entity_id = ?",
			model.KindQuestion, id).Delete(&model.Translation{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM quiz_questions WHERE question_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Question{}, "id = ?", id).Error
	})
}
