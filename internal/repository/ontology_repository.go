package repository

import (
	"solo_edu_backend/internal/model"

	"gorm.io/gorm"
)

type OntologyRepository struct {
	DB *gorm.DB
}

func NewOntologyRepository(db *gorm.DB) *OntologyRepository {
	return &OntologyRepository{DB: db}
}

func (r *OntologyRepository) FindByLessonID(lessonID string) ([]model.OntologyRelationship, error) {
	var rels []model.OntologyRelationship
	err := r.DB.Where("lesson_id = ?", lessonID).Find(&rels).Error
	return rels, err
}

// FindTouching 检索与给定学习对象集合相连的关系
func (r *OntologyRepository) FindTouching(lessonID string, objectIDs []string) ([]model.OntologyRelationship, error) {
	var rels []model.OntologyRelationship
	if len(objectIDs) == 0 {
		return rels, nil
	}
	err := r.DB.Where("lesson_id = ?", lessonID).
		Where("source_id IN ? OR target_id IN ?", objectIDs, objectIDs).
		Find(&rels).Error
	return rels, err
}

// ReplaceForLesson 整体替换课时的本体关系
// 删除与插入在同一事务内完成，外部观察不到新旧混杂状态
func (r *OntologyRepository) ReplaceForLesson(lessonID string, rels []model.OntologyRelationship) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("lesson_id = ?", lessonID).
			Delete(&model.OntologyRelationship{}).Error; err != nil {
			return err
		}
		for i := range rels {
			rels[i].LessonID = lessonID
			if err := tx.Create(&rels[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
