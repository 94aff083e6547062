package model

// Quiz 测验，题目的聚合单元
// 翻译完整性按测验维度统计：某语言下所有题目均有翻译时才对外公布
// swagger:model Quiz
type Quiz struct {
	UUIDBase
	CourseID    string     `gorm:"index;type:varchar(36);not null" json:"courseId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Questions   []Question `gorm:"many2many:quiz_questions;" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}
