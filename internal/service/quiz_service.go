package service

import (
	"fmt"
	"strings"

	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"
)

// QuizService 从已生成的题目组装测验
type QuizService struct {
	quizRepo     *repository.QuizRepository
	questionRepo *repository.QuestionRepository
	courseRepo   *repository.CourseRepository
}

func NewQuizService(quizRepo *repository.QuizRepository, questionRepo *repository.QuestionRepository, courseRepo *repository.CourseRepository) *QuizService {
	return &QuizService{quizRepo: quizRepo, questionRepo: questionRepo, courseRepo: courseRepo}
}

// Create 以题目ID集合创建测验，所有ID必须已存在
func (s *QuizService) Create(courseID, title, description string, questionIDs []string) (*model.Quiz, error) {
	if strings.TrimSpace(title) == "" {
		return nil, util.ErrValidationFailed
	}
	if _, err := s.courseRepo.FindByID(courseID); err != nil {
		return nil, util.ErrCourseNotFound
	}
	questions, err := s.questionRepo.FindByIDs(questionIDs)
	if err != nil {
		return nil, err
	}
	if len(questions) != len(questionIDs) {
		return nil, fmt.Errorf("%w: %d of %d questions not found", util.ErrQuestionNotFound, len(questionIDs)-len(questions), len(questionIDs))
	}

	quiz := &model.Quiz{
		CourseID:    courseID,
		Title:       title,
		Description: description,
	}
	if err := s.quizRepo.Create(quiz); err != nil {
		return nil, err
	}
	if len(questions) > 0 {
		if err := s.quizRepo.AddQuestions(quiz, questions); err != nil {
			return nil, err
		}
	}
	return s.quizRepo.FindByID(quiz.ID)
}

func (s *QuizService) Get(id string) (*model.Quiz, error) {
	quiz, err := s.quizRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *QuizService) ListByCourse(courseID string) ([]model.Quiz, error) {
	if _, err := s.courseRepo.FindByID(courseID); err != nil {
		return nil, util.ErrCourseNotFound
	}
	return s.quizRepo.FindByCourseID(courseID)
}

// AddQuestions 向既有测验追加题目
func (s *QuizService) AddQuestions(quizID string, questionIDs []string) (*model.Quiz, error) {
	quiz, err := s.quizRepo.FindByID(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	questions, err := s.questionRepo.FindByIDs(questionIDs)
	if err != nil {
		return nil, err
	}
	if len(questions) != len(questionIDs) {
		return nil, util.ErrQuestionNotFound
	}
	if err := s.quizRepo.AddQuestions(quiz, questions); err != nil {
		return nil, err
	}
	return s.quizRepo.FindByID(quizID)
}

func (s *QuizService) Delete(id string) error {
	if _, err := s.quizRepo.FindByID(id); err != nil {
		return util.ErrQuizNotFound
	}
	return s.quizRepo.Delete(id)
}
