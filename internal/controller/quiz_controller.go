package controller

import (
	"errors"

	"solo_edu_backend/internal/service"
	"solo_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// QuizCreateRequest 测验创建请求
// swagger:model QuizCreateRequest
type QuizCreateRequest struct {
	CourseID    string   `json:"courseId" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	QuestionIDs []string `json:"questionIds"`
}

// Create godoc
// @Summary 从已生成题目创建测验
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body QuizCreateRequest true "测验信息"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 404 {object} util.Response "课程或题目不存在"
// @Router /api/quizzes [post]
func (c *QuizController) Create(ctx *gin.Context) {
	var req QuizCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.QuizService.Create(req.CourseID, req.Title, req.Description, req.QuestionIDs)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrQuestionNotFound):
			util.Error(ctx, 404, err.Error())
		case errors.Is(err, util.ErrValidationFailed):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, quiz)
}

// Get godoc
// @Summary 获取测验及其题目
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/quizzes/{id} [get]
func (c *QuizController) Get(ctx *gin.Context) {
	quiz, err := c.QuizService.Get(ctx.Param("id"))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, quiz)
}

// ListByCourse godoc
// @Summary 获取课程下的测验列表
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Quiz}
// @Router /api/courses/{courseId}/quizzes [get]
func (c *QuizController) ListByCourse(ctx *gin.Context) {
	quizzes, err := c.QuizService.ListByCourse(ctx.Param("courseId"))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, quizzes)
}

// AddQuestionsRequest 追加题目请求
// swagger:model AddQuestionsRequest
type AddQuestionsRequest struct {
	QuestionIDs []string `json:"questionIds" binding:"required,min=1"`
}

// AddQuestions godoc
// @Summary 向测验追加题目
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测验ID"
// @Param   body body AddQuestionsRequest true "题目ID集合"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Failure 404 {object} util.Response "测验或题目不存在"
// @Router /api/quizzes/{id}/questions [post]
func (c *QuizController) AddQuestions(ctx *gin.Context) {
	var req AddQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	quiz, err := c.QuizService.AddQuestions(ctx.Param("id"), req.QuestionIDs)
	if err != nil {
		util.Error(ctx, 404, err.Error())
		return
	}
	util.Success(ctx, quiz)
}

// Delete godoc
// @Summary 删除测验（题目本身保留）
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测验ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/quizzes/{id} [delete]
func (c *QuizController) Delete(ctx *gin.Context) {
	if err := c.QuizService.Delete(ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrQuizNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}
