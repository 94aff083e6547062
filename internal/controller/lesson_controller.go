package controller

import (
	"errors"

	"solo_edu_backend/internal/service"
	"solo_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LessonController struct {
	LessonService *service.LessonService
}

func NewLessonController(lessonService *service.LessonService) *LessonController {
	return &LessonController{LessonService: lessonService}
}

// Upload godoc
// @Summary 上传课件PDF并启动摄取管道
// @Description 立即返回课时记录，摄取进度通过状态接口查询
// @Tags 课时
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path string true "课程ID"
// @Param   title formData string false "课时标题，缺省取文件名"
// @Param   file formData file true "PDF文件"
// @Success 201 {object} util.Response{data=model.Lesson}
// @Failure 400 {object} util.Response "不是PDF文件"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{courseId}/lessons [post]
func (c *LessonController) Upload(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	lesson, err := c.LessonService.UploadAndIngest(
		ctx.Param("courseId"),
		ctx.PostForm("title"),
		fileHeader.Filename,
		file,
	)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrValidationFailed):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, lesson)
}

// List godoc
// @Summary 获取课程下的课时列表
// @Tags 课时
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Lesson}
// @Router /api/courses/{courseId}/lessons [get]
func (c *LessonController) List(ctx *gin.Context) {
	lessons, err := c.LessonService.ListByCourse(ctx.Param("courseId"))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, lessons)
}

// Get godoc
// @Summary 获取课时及其小节与学习对象
// @Tags 课时
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课时ID"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/lessons/{id} [get]
func (c *LessonController) Get(ctx *gin.Context) {
	lesson, err := c.LessonService.GetWithStructure(ctx.Param("id"))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, lesson)
}

// Status godoc
// @Summary 查询课时摄取作业状态
// @Tags 课时
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课时ID"
// @Success 200 {object} util.Response{data=service.PipelineJob}
// @Router /api/lessons/{id}/status [get]
func (c *LessonController) Status(ctx *gin.Context) {
	job, err := c.LessonService.Status(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if job == nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, job)
}

// Cancel godoc
// @Summary 请求取消摄取作业（协作式）
// @Tags 课时
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课时ID"
// @Success 200 {object} util.Response
// @Router /api/lessons/{id}/cancel [post]
func (c *LessonController) Cancel(ctx *gin.Context) {
	c.LessonService.Cancel(ctx.Request.Context(), ctx.Param("id"))
	util.Success(ctx, nil)
}

// Reextract godoc
// @Summary 基于已存原文重新抽取课时结构
// @Tags 课时
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课时ID"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/lessons/{id}/reextract [post]
func (c *LessonController) Reextract(ctx *gin.Context) {
	lesson, err := c.LessonService.Reextract(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAllProvidersExhausted):
			util.Error(ctx, 503, "all AI providers exhausted")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, lesson)
}

// Delete godoc
// @Summary 删除课时
// @Description 有题目引用且策略为 refuse 时返回409
// @Tags 课时
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课时ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "课时不存在"
// @Failure 409 {object} util.Response "课时被题目引用"
// @Router /api/lessons/{id} [delete]
func (c *LessonController) Delete(ctx *gin.Context) {
	if err := c.LessonService.Delete(ctx.Param("id")); err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrLessonReferenced):
			util.Error(ctx, 409, "lesson is referenced by questions")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}
