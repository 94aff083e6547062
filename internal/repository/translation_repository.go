package repository

import (
	"solo_edu_backend/internal/model"

	"gorm.io/gorm"
)

type TranslationRepository struct {
	DB *gorm.DB
}

func NewTranslationRepository(db *gorm.DB) *TranslationRepository {
	return &TranslationRepository{DB: db}
}

// Upsert 写入译文，(entity_kind, entity_id, language_code) 已存在时整行替换
func (r *TranslationRepository) Upsert(t *model.Translation) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("entity_kind = ? AND entity_id = ? AND language_code = ?",
				t.EntityKind, t.EntityID, t.LanguageCode).
			Delete(&model.Translation{}).Error; err != nil {
			return err
		}
		return tx.Create(t).Error
	})
}

func (r *TranslationRepository) Find(kind model.EntityKind, entityID, lang string) (*model.Translation, error) {
	var t model.Translation
	err := r.DB.Where("entity_kind = ? AND entity_id = ? AND language_code = ?",
		kind, entityID, lang).First(&t).Error
	return &t, err
}

// CountForEntities 统计给定实体集合在某语言下已有的译文条数
func (r *TranslationRepository) CountForEntities(kind model.EntityKind, entityIDs []string, lang string) (int64, error) {
	var count int64
	if len(entityIDs) == 0 {
		return 0, nil
	}
	err := r.DB.Model(&model.Translation{}).
		Where("entity_kind = ? AND entity_id IN ? AND language_code = ?", kind, entityIDs, lang).
		Count(&count).Error
	return count, err
}

// LanguagesForEntities 返回 language_code -> 译文条数，用于完整性统计
func (r *TranslationRepository) LanguagesForEntities(kind model.EntityKind, entityIDs []string) (map[string]int64, error) {
	result := make(map[string]int64)
	if len(entityIDs) == 0 {
		return result, nil
	}

	type row struct {
		LanguageCode string
		Cnt          int64
	}
	var rows []row
	err := r.DB.Model(&model.Translation{}).
		Select("language_code, count(*) as cnt").
		Where("entity_kind = ? AND entity_id IN ?", kind, entityIDs).
		Group("language_code").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, rw := range rows {
		result[rw.LanguageCode] = rw.Cnt
	}
	return result, nil
}

// DeleteForEntities 原子删除一批实体在某语言下的译文，返回删除条数
// 用于组合实体（测验）翻译恢复失败后的清理
func (r *TranslationRepository) DeleteForEntities(kind model.EntityKind, entityIDs []string, lang string) (int64, error) {
	if len(entityIDs) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().
			Where("entity_kind = ? AND entity_id IN ? AND language_code = ?", kind, entityIDs, lang).
			Delete(&model.Translation{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// DeleteForEntity 删除单个实体的全部译文（源实体变更或删除时调用）
func (r *TranslationRepository) DeleteForEntity(kind model.EntityKind, entityID string) error {
	return r.DB.Unscoped().
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Delete(&model.Translation{}).Error
}

// DeleteOrphans 清理源实体已不存在的译文行，返回删除总数
// 由后台定时任务调用；实体删除是软删除，只有 deleted_at 为空的行才算存活
func (r *TranslationRepository) DeleteOrphans() (int64, error) {
	tables := map[model.EntityKind]string{
		model.KindQuestion:       "questions",
		model.KindLesson:         "lessons",
		model.KindSection:        "sections",
		model.KindLearningObject: "learning_objects",
	}
	var total int64
	for kind, table := range tables {
		res := r.DB.Exec(
			"DELETE FROM translations WHERE entity_kind = ? AND entity_id NOT IN (SELECT id FROM "+table+" WHERE deleted_at IS NULL)",
			kind)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}
