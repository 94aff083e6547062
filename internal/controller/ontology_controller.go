package controller

import (
	"errors"

	"solo_edu_backend/internal/service"
	"solo_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type OntologyController struct {
	OntologyService *service.OntologyService
	ExportService   *service.OWLExportService
}

func NewOntologyController(ontologyService *service.OntologyService, exportService *service.OWLExportService) *OntologyController {
	return &OntologyController{OntologyService: ontologyService, ExportService: exportService}
}

// Rebuild godoc
// @Summary 重建课时本体（整体替换）
// @Tags 本体
// @Produce  json
// @Security ApiKeyAuth
// @Param   lessonId path string true "课时ID"
// @Success 200 {object} util.Response{data=[]model.OntologyRelationship}
// @Failure 404 {object} util.Response "课时不存在"
// @Failure 503 {object} util.Response "AI提供商全部耗尽"
// @Router /api/lessons/{lessonId}/ontology/rebuild [post]
func (c *OntologyController) Rebuild(ctx *gin.Context) {
	rels, err := c.OntologyService.RebuildLesson(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAllProvidersExhausted):
			util.Error(ctx, 503, "all AI providers exhausted")
		case errors.Is(err, util.ErrJSONRecoveryFailed):
			util.Error(ctx, 502, "model output could not be recovered")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, rels)
}

// ExportLesson godoc
// @Summary 导出课时本体为OWL/RDF-XML
// @Tags 本体
// @Produce  xml
// @Security ApiKeyAuth
// @Param   lessonId path string true "课时ID"
// @Success 200 {string} string "RDF-XML文档"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/lessons/{lessonId}/ontology/export [get]
func (c *OntologyController) ExportLesson(ctx *gin.Context) {
	doc, err := c.ExportService.ExportLesson(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	ctx.Data(200, "application/rdf+xml", doc)
}

// ExportCourse godoc
// @Summary 导出课程本体为OWL/RDF-XML
// @Tags 本体
// @Produce  xml
// @Security ApiKeyAuth
// @Param   courseId path string true "课程ID"
// @Success 200 {string} string "RDF-XML文档"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{courseId}/ontology/export [get]
func (c *OntologyController) ExportCourse(ctx *gin.Context) {
	doc, err := c.ExportService.ExportCourse(ctx.Param("courseId"))
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	ctx.Data(200, "application/rdf+xml", doc)
}
