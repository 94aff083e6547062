package model

// Course 课程，课时的归属单元
// swagger:model Course
type Course struct {
	UUIDBase
	Name        string   `gorm:"size:255;not null" json:"name"`
	Code        string   `gorm:"size:50" json:"code"`
	Description string   `gorm:"type:text" json:"description"`
	Lessons     []Lesson `gorm:"foreignKey:CourseID" json:"lessons,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}
