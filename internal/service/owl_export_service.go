package service

import (
	"encoding/xml"
	"fmt"
	"strings"

	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"
)

// OWL/RDF-XML 文档结构，供下游SPARQL引擎消费
type owlOntology struct {
	XMLName   xml.Name      `xml:"Ontology"`
	Xmlns     string        `xml:"xmlns,attr"`
	XmlnsRDF  string        `xml:"xmlns:rdf,attr"`
	XmlnsRDFS string        `xml:"xmlns:rdfs,attr"`
	XmlnsXSD  string        `xml:"xmlns:xsd,attr"`
	IRI       string        `xml:"ontologyIRI,attr"`
	Elements  []interface{} `xml:",any"`
}

type owlClass struct {
	IRI string `xml:"IRI,attr"`
}

type owlObjectProperty struct {
	IRI string `xml:"IRI,attr"`
}

type owlNamedIndividual struct {
	XMLName xml.Name `xml:"NamedIndividual"`
	IRI     string   `xml:"IRI,attr"`
}

type owlDeclaration struct {
	XMLName        xml.Name            `xml:"Declaration"`
	Class          *owlClass           `xml:"Class,omitempty"`
	ObjectProperty *owlObjectProperty  `xml:"ObjectProperty,omitempty"`
	Individual     *owlNamedIndividual `xml:"NamedIndividual,omitempty"`
}

type owlClassAssertion struct {
	XMLName    xml.Name           `xml:"ClassAssertion"`
	Class      owlClass           `xml:"Class"`
	Individual owlNamedIndividual `xml:"NamedIndividual"`
}

type owlObjectPropertyAssertion struct {
	XMLName     xml.Name             `xml:"ObjectPropertyAssertion"`
	Property    owlObjectProperty    `xml:"ObjectProperty"`
	Individuals []owlNamedIndividual `xml:"NamedIndividual"`
}

type owlLiteral struct {
	Datatype string `xml:"datatypeIRI,attr"`
	Value    string `xml:",chardata"`
}

type owlDataPropertyAssertion struct {
	XMLName    xml.Name           `xml:"DataPropertyAssertion"`
	Property   owlObjectProperty  `xml:"DataProperty"`
	Individual owlNamedIndividual `xml:"NamedIndividual"`
	Literal    owlLiteral         `xml:"Literal"`
}

type owlAnnotationAssertion struct {
	XMLName  xml.Name   `xml:"AnnotationAssertion"`
	Property owlClass   `xml:"AnnotationProperty"`
	Subject  string     `xml:"IRI"`
	Literal  owlLiteral `xml:"Literal"`
}

// OWLExportService 按课时或课程导出OWL/RDF-XML本体文档
type OWLExportService struct {
	courseRepo   *repository.CourseRepository
	lessonRepo   *repository.LessonRepository
	ontologyRepo *repository.OntologyRepository
}

func NewOWLExportService(courseRepo *repository.CourseRepository, lessonRepo *repository.LessonRepository, ontologyRepo *repository.OntologyRepository) *OWLExportService {
	return &OWLExportService{courseRepo: courseRepo, lessonRepo: lessonRepo, ontologyRepo: ontologyRepo}
}

// ExportLesson 导出单课时本体文档
func (s *OWLExportService) ExportLesson(lessonID string) ([]byte, error) {
	lesson, err := s.lessonRepo.FindByID(lessonID)
	if err != nil {
		return nil, util.ErrLessonNotFound
	}
	objects, err := s.lessonRepo.FindLearningObjectsByLessonID(lessonID)
	if err != nil {
		return nil, err
	}
	rels, err := s.ontologyRepo.FindByLessonID(lessonID)
	if err != nil {
		return nil, err
	}
	baseIRI := fmt.Sprintf("http://solo-edu.org/ontology/lesson/%s", lesson.ID)
	return renderOntology(baseIRI, objects, rels)
}

// ExportCourse 导出课程下全部课时的合并本体文档
func (s *OWLExportService) ExportCourse(courseID string) ([]byte, error) {
	course, err := s.courseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	lessons, err := s.lessonRepo.FindByCourseID(courseID)
	if err != nil {
		return nil, err
	}

	var objects []model.LearningObject
	var rels []model.OntologyRelationship
	for _, lesson := range lessons {
		objs, err := s.lessonRepo.FindLearningObjectsByLessonID(lesson.ID)
		if err != nil {
			return nil, err
		}
		objects = append(objects, objs...)

		lessonRels, err := s.ontologyRepo.FindByLessonID(lesson.ID)
		if err != nil {
			return nil, err
		}
		rels = append(rels, lessonRels...)
	}
	baseIRI := fmt.Sprintf("http://solo-edu.org/ontology/course/%s", course.ID)
	return renderOntology(baseIRI, objects, rels)
}

// renderOntology 每个学习对象一条Class声明，每种用到的关系类型一条ObjectProperty声明，
// 每条关系一条ObjectPropertyAssertion；对象附带ClassAssertion、rdfs:label与rdfs:comment
func renderOntology(baseIRI string, objects []model.LearningObject, rels []model.OntologyRelationship) ([]byte, error) {
	iris := assignIRIs(objects)

	doc := owlOntology{
		Xmlns:     "http://www.w3.org/2002/07/owl#",
		XmlnsRDF:  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		XmlnsRDFS: "http://www.w3.org/2000/01/rdf-schema#",
		XmlnsXSD:  "http://www.w3.org/2001/XMLSchema#",
		IRI:       baseIRI,
	}

	for _, obj := range objects {
		doc.Elements = append(doc.Elements, owlDeclaration{Class: &owlClass{IRI: iris[obj.ID]}})
	}

	usedTypes := map[model.RelationType]bool{}
	for _, rel := range rels {
		if !usedTypes[rel.Type] {
			usedTypes[rel.Type] = true
			doc.Elements = append(doc.Elements, owlDeclaration{ObjectProperty: &owlObjectProperty{IRI: "#" + string(rel.Type)}})
		}
	}

	for _, obj := range objects {
		iri := iris[obj.ID]
		doc.Elements = append(doc.Elements,
			owlDeclaration{Individual: &owlNamedIndividual{IRI: iri}},
			owlClassAssertion{Class: owlClass{IRI: iri}, Individual: owlNamedIndividual{IRI: iri}},
			owlDataPropertyAssertion{
				Property:   owlObjectProperty{IRI: "http://www.w3.org/2000/01/rdf-schema#label"},
				Individual: owlNamedIndividual{IRI: iri},
				Literal:    owlLiteral{Datatype: "http://www.w3.org/2001/XMLSchema#string", Value: obj.Title},
			},
		)
		if obj.Content != "" {
			doc.Elements = append(doc.Elements, owlAnnotationAssertion{
				Property: owlClass{IRI: "http://www.w3.org/2000/01/rdf-schema#comment"},
				Subject:  iri,
				Literal:  owlLiteral{Datatype: "http://www.w3.org/2001/XMLSchema#string", Value: util.Truncate(obj.Content, 2000)},
			})
		}
	}

	for _, rel := range rels {
		source, okS := iris[rel.SourceID]
		target, okT := iris[rel.TargetID]
		if !okS || !okT {
			continue
		}
		doc.Elements = append(doc.Elements, owlObjectPropertyAssertion{
			Property: owlObjectProperty{IRI: "#" + string(rel.Type)},
			Individuals: []owlNamedIndividual{
				{IRI: source},
				{IRI: target},
			},
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// assignIRIs 标题净化为IRI安全形式，冲突时追加数字后缀去重
func assignIRIs(objects []model.LearningObject) map[string]string {
	taken := map[string]bool{}
	iris := make(map[string]string, len(objects))
	for _, obj := range objects {
		base := sanitizeIRIToken(obj.Title)
		candidate := base
		for n := 2; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", base, n)
		}
		taken[candidate] = true
		iris[obj.ID] = "#" + candidate
	}
	return iris
}

// sanitizeIRIToken 非字母数字字符替换为下划线
func sanitizeIRIToken(title string) string {
	var b strings.Builder
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	token := strings.Trim(b.String(), "_")
	if token == "" {
		token = "LearningObject"
	}
	return token
}
