package model

import "encoding/json"

type LearningObjectType string

const (
	LOConcept    LearningObjectType = "concept"
	LODefinition LearningObjectType = "definition"
	LOProcedure  LearningObjectType = "procedure"
	LOPrinciple  LearningObjectType = "principle"
	LOExample    LearningObjectType = "example"
	LOFact       LearningObjectType = "fact"
)

// ValidLearningObjectType 校验学习对象类型是否合法
func ValidLearningObjectType(t string) bool {
	switch LearningObjectType(t) {
	case LOConcept, LODefinition, LOProcedure, LOPrinciple, LOExample, LOFact:
		return true
	}
	return false
}

// LearningObject 最小可评估的内容单元
// LessonID 为冗余字段，便于本体构建按课时直接检索
// swagger:model LearningObject
type LearningObject struct {
	UUIDBase
	SectionID string             `gorm:"index;type:varchar(36);not null" json:"sectionId"`
	LessonID  string             `gorm:"index;type:varchar(36);not null" json:"lessonId"`
	Title     string             `gorm:"size:255;not null" json:"title"`
	Content   string             `gorm:"type:text" json:"content"`
	Type      LearningObjectType `gorm:"size:50;not null" json:"type"`
	Keywords  json.RawMessage    `gorm:"type:json" json:"keywords"` // JSON: []string
}

func (LearningObject) TableName() string {
	return "learning_objects"
}

// KeywordList 解析关键词JSON，解析失败时返回空列表
func (lo *LearningObject) KeywordList() []string {
	if len(lo.Keywords) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(lo.Keywords, &out); err != nil {
		return nil
	}
	return out
}
