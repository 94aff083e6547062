package controller

import (
	"errors"
	"strconv"

	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/service"
	"solo_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// Generate godoc
// @Summary 按SOLO层级生成题目
// @Description extended_abstract 层级要求恰好两个课时ID
// @Tags 题目
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.GenerationRequest true "生成请求"
// @Success 200 {object} util.Response{data=service.GenerationResult}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "课时缺少抽取结构"
// @Failure 503 {object} util.Response "AI提供商全部耗尽"
// @Router /api/questions/generate [post]
func (c *QuestionController) Generate(ctx *gin.Context) {
	var req service.GenerationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.QuestionService.Generate(ctx.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrDependencyMissing):
			util.Error(ctx, 409, err.Error())
		case errors.Is(err, util.ErrAllProvidersExhausted):
			util.Error(ctx, 503, "all AI providers exhausted")
		case errors.Is(err, util.ErrValidationFailed):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, result)
}

// ListByLesson godoc
// @Summary 分页获取课时题目
// @Tags 题目
// @Produce  json
// @Security ApiKeyAuth
// @Param   lessonId path string true "课时ID"
// @Param   soloLevel query string false "SOLO层级过滤"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/lessons/{lessonId}/questions [get]
func (c *QuestionController) ListByLesson(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	questions, total, err := c.QuestionService.ListByLesson(
		ctx.Param("id"), ctx.Query("soloLevel"), page, limit)
	if err != nil {
		if errors.Is(err, util.ErrValidationFailed) {
			util.BadRequest(ctx, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, util.PageResponse{List: questions, Total: total, Page: page, Limit: limit})
}

// Update godoc
// @Summary 人工编辑题目
// @Description 会重新校验题目不变量并置位 human_modified
// @Tags 题目
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "题目ID"
// @Param   body body model.Question true "题目内容"
// @Success 200 {object} util.Response{data=model.Question}
// @Failure 400 {object} util.Response "违反题目不变量"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/questions/{id} [put]
func (c *QuestionController) Update(ctx *gin.Context) {
	var question model.Question
	if err := ctx.ShouldBindJSON(&question); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	question.ID = ctx.Param("id")

	if err := c.QuestionService.UpdateByHuman(&question); err != nil {
		switch {
		case errors.Is(err, util.ErrQuestionNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrValidationFailed):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, question)
}

// Delete godoc
// @Summary 删除题目及其译文
// @Tags 题目
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "题目ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/questions/{id} [delete]
func (c *QuestionController) Delete(ctx *gin.Context) {
	if err := c.QuestionService.Delete(ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrQuestionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}
