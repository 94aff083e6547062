package model

// Lesson 一份上传的PDF课件及其抽取出的结构
// RawText 与 PageCount 由PDF解析写入，Summary 与 Sections 由内容抽取管道填充
// swagger:model Lesson
type Lesson struct {
	UUIDBase
	CourseID       string    `gorm:"index;type:varchar(36);not null" json:"courseId"`
	Title          string    `gorm:"size:255;not null" json:"title"`
	SourceFilename string    `gorm:"size:255" json:"sourceFilename"`
	RawText        string    `gorm:"type:longtext" json:"-"`
	Summary        string    `gorm:"type:text" json:"summary"`
	PageCount      int       `gorm:"default:0" json:"pageCount"`
	Sections       []Section `gorm:"foreignKey:LessonID" json:"sections,omitempty"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// Section 课时内的有序小节，学习对象的容器
// swagger:model Section
type Section struct {
	UUIDBase
	LessonID   string           `gorm:"index;type:varchar(36);not null" json:"lessonId"`
	Title      string           `gorm:"size:255;not null" json:"title"`
	Content    string           `gorm:"type:longtext" json:"content"`
	Summary    string           `gorm:"type:text" json:"summary"`
	StartPage  *int             `json:"startPage"`
	EndPage    *int             `json:"endPage"`
	OrderIndex int              `gorm:"default:0" json:"orderIndex"`
	Objects    []LearningObject `gorm:"foreignKey:SectionID" json:"objects,omitempty"`
}

func (Section) TableName() string {
	return "sections"
}
