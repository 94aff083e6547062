package model

import "encoding/json"

type SoloLevel string

const (
	SoloUnistructural    SoloLevel = "unistructural"
	SoloMultistructural  SoloLevel = "multistructural"
	SoloRelational       SoloLevel = "relational"
	SoloExtendedAbstract SoloLevel = "extended_abstract"
)

// AllSoloLevels 按层级从低到高排列
var AllSoloLevels = []SoloLevel{
	SoloUnistructural,
	SoloMultistructural,
	SoloRelational,
	SoloExtendedAbstract,
}

// ValidSoloLevel 校验SOLO层级是否合法
func ValidSoloLevel(l string) bool {
	switch SoloLevel(l) {
	case SoloUnistructural, SoloMultistructural, SoloRelational, SoloExtendedAbstract:
		return true
	}
	return false
}

type QuestionType string

const (
	QMultipleChoice QuestionType = "multiple_choice"
	QTrueFalse      QuestionType = "true_false"
	QShortAnswer    QuestionType = "short_answer"
)

// Question 一道SOLO标注的测验题
// PrimaryLessonID 必填；仅 extended_abstract 层级要求 SecondaryLessonID 非空且不同于主课时
// swagger:model Question
type Question struct {
	UUIDBase
	QuestionText       string          `gorm:"type:text;not null" json:"questionText"`
	SoloLevel          SoloLevel       `gorm:"size:50;not null;index" json:"soloLevel"`
	Type               QuestionType    `gorm:"size:50;not null" json:"type"`
	Options            json.RawMessage `gorm:"type:json" json:"options"` // JSON: []string，仅选择题
	CorrectOptionIndex *int            `json:"correctOptionIndex"`       // 仅选择题
	CorrectAnswer      string          `gorm:"type:text" json:"correctAnswer"`
	Explanation        string          `gorm:"type:text" json:"explanation"`
	Difficulty         float64         `gorm:"default:0.5" json:"difficulty"` // [0,1]
	BloomLevel         string          `gorm:"size:50" json:"bloomLevel"`
	Tags               string          `gorm:"size:500" json:"tags"` // 逗号分隔
	PrimaryLessonID    string          `gorm:"index;type:varchar(36);not null" json:"primaryLessonId"`
	SecondaryLessonID  *string         `gorm:"type:varchar(36)" json:"secondaryLessonId"`
	IsAIGenerated      bool            `gorm:"default:false" json:"isAiGenerated"`
	HumanModified      bool            `gorm:"default:false" json:"humanModified"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList 解析选项JSON，解析失败时返回空列表
func (q *Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(q.Options, &out); err != nil {
		return nil
	}
	return out
}
