package repository

import (
	"solo_edu_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) FindByID(id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.Preload("Questions").First(&quiz, "id = ?", id).Error
	return &quiz, err
}

func (r *QuizRepository) FindByCourseID(courseID string) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.Where("course_id = ?", courseID).Order("created_at desc").Find(&quizzes).Error
	return quizzes, err
}

// AddQuestions 向测验追加题目
func (r *QuizRepository) AddQuestions(quiz *model.Quiz, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.Model(quiz).Association("Questions").Append(&questions)
}

func (r *QuizRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var quiz model.Quiz
		if err := tx.First(&quiz, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&quiz).Association("Questions").Clear(); err != nil {
			return err
		}
		return tx.Delete(&quiz).Error
	})
}

// QuestionIDs 返回测验内全部题目ID
func (r *QuizRepository) QuestionIDs(quizID string) ([]string, error) {
	var ids []string
	err := r.DB.Table("quiz_questions").
		Where("quiz_id = ?", quizID).
		Pluck("question_id", &ids).Error
	return ids, err
}
