package service

import (
	"strings"

	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"
	"solo_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

type CourseService struct {
	courseRepo *repository.CourseRepository
}

func NewCourseService(courseRepo *repository.CourseRepository) *CourseService {
	return &CourseService{courseRepo: courseRepo}
}

func (s *CourseService) Create(course *model.Course) error {
	if strings.TrimSpace(course.Name) == "" {
		return util.ErrValidationFailed
	}
	return s.courseRepo.Create(course)
}

func (s *CourseService) Get(id string) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	return course, nil
}

func (s *CourseService) List(page, limit int) ([]model.Course, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.courseRepo.FindAll(page, limit)
}

func (s *CourseService) Update(course *model.Course) error {
	if _, err := s.courseRepo.FindByID(course.ID); err != nil {
		return util.ErrCourseNotFound
	}
	return s.courseRepo.Update(course)
}

// Delete 级联删除课程下的全部课时、小节、学习对象与本体关系
func (s *CourseService) Delete(id string) error {
	if _, err := s.courseRepo.FindByID(id); err != nil {
		return util.ErrCourseNotFound
	}
	if err := s.courseRepo.Delete(id); err != nil {
		return err
	}
	logger.Log.Info("课程已删除", zap.String("courseId", id))
	return nil
}
