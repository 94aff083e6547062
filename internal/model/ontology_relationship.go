package model

type RelationType string

const (
	RelPrerequisite RelationType = "prerequisite"
	RelPartOf       RelationType = "part_of"
	RelRelatedTo    RelationType = "related_to"
	RelInstanceOf   RelationType = "instance_of"
)

// ValidRelationType 校验关系类型是否合法
func ValidRelationType(t string) bool {
	switch RelationType(t) {
	case RelPrerequisite, RelPartOf, RelRelatedTo, RelInstanceOf:
		return true
	}
	return false
}

// OntologyRelationship 同一课时内两个学习对象之间的有向类型边
// 不变量：SourceID != TargetID，且两端均属于 LessonID 对应的课时
// swagger:model OntologyRelationship
type OntologyRelationship struct {
	UUIDBase
	LessonID    string       `gorm:"index;type:varchar(36);not null" json:"lessonId"`
	SourceID    string       `gorm:"index;type:varchar(36);not null" json:"sourceId"`
	TargetID    string       `gorm:"index;type:varchar(36);not null" json:"targetId"`
	Type        RelationType `gorm:"size:50;not null" json:"type"`
	Description string       `gorm:"type:text" json:"description"`
}

func (OntologyRelationship) TableName() string {
	return "ontology_relationships"
}
