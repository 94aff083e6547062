package model

import "encoding/json"

type EntityKind string

const (
	KindQuestion       EntityKind = "question"
	KindLesson         EntityKind = "lesson"
	KindSection        EntityKind = "section"
	KindLearningObject EntityKind = "learning_object"
)

// ValidEntityKind 校验可翻译实体类型
func ValidEntityKind(k string) bool {
	switch EntityKind(k) {
	case KindQuestion, KindLesson, KindSection, KindLearningObject:
		return true
	}
	return false
}

// Translation 某实体在某目标语言下的译文
// (entity_kind, entity_id, language_code) 唯一；英文为隐含源语言，不落库
// swagger:model Translation
type Translation struct {
	BaseModel
	EntityKind   EntityKind      `gorm:"size:50;not null;uniqueIndex:idx_entity_lang" json:"entityKind"`
	EntityID     string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_entity_lang" json:"entityId"`
	LanguageCode string          `gorm:"size:10;not null;uniqueIndex:idx_entity_lang" json:"languageCode"`
	Fields       json.RawMessage `gorm:"type:json;not null" json:"fields"` // 按实体类型组织的译文字段
}

func (Translation) TableName() string {
	return "translations"
}

// QuestionTranslationFields 题目译文字段
type QuestionTranslationFields struct {
	QuestionText  string   `json:"question_text"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// TitleSummaryFields 课时/小节译文字段
type TitleSummaryFields struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// LearningObjectTranslationFields 学习对象译文字段
type LearningObjectTranslationFields struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords,omitempty"`
}
