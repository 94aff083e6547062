package controller

import (
	"errors"

	"solo_edu_backend/internal/service"
	"solo_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TranslationController struct {
	TranslationService *service.TranslationService
}

func NewTranslationController(translationService *service.TranslationService) *TranslationController {
	return &TranslationController{TranslationService: translationService}
}

// TranslateRequest 翻译请求
// swagger:model TranslateRequest
type TranslateRequest struct {
	LanguageCode string `json:"languageCode" binding:"required"`
}

func (c *TranslationController) translateError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrLanguageNotAllowed):
		util.BadRequest(ctx, "language not in the configured allow-list")
	case errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrLessonNotFound),
		errors.Is(err, util.ErrQuizNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAllProvidersExhausted):
		util.Error(ctx, 503, "all AI providers exhausted")
	case errors.Is(err, util.ErrCancelled):
		util.Error(ctx, 499, "cancelled")
	default:
		util.LogInternalError(ctx, err)
	}
}

// TranslateQuestion godoc
// @Summary 翻译单个题目
// @Tags 翻译
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "题目ID"
// @Param   body body TranslateRequest true "目标语言"
// @Success 200 {object} util.Response{data=model.Translation}
// @Failure 400 {object} util.Response "语言不在允许列表"
// @Router /api/questions/{id}/translate [post]
func (c *TranslationController) TranslateQuestion(ctx *gin.Context) {
	var req TranslateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	t, err := c.TranslationService.TranslateQuestion(ctx.Request.Context(), ctx.Param("id"), req.LanguageCode)
	if err != nil {
		c.translateError(ctx, err)
		return
	}
	util.Success(ctx, t)
}

// TranslateLesson godoc
// @Summary 翻译课时标题与摘要
// @Tags 翻译
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课时ID"
// @Param   body body TranslateRequest true "目标语言"
// @Success 200 {object} util.Response{data=model.Translation}
// @Router /api/lessons/{id}/translate [post]
func (c *TranslationController) TranslateLesson(ctx *gin.Context) {
	var req TranslateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	t, err := c.TranslationService.TranslateLesson(ctx.Request.Context(), ctx.Param("id"), req.LanguageCode)
	if err != nil {
		c.translateError(ctx, err)
		return
	}
	util.Success(ctx, t)
}

// TranslateSections godoc
// @Summary 批量翻译课时全部小节
// @Tags 翻译
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "课时ID"
// @Param   body body TranslateRequest true "目标语言"
// @Success 200 {object} util.Response{data=service.BatchTranslationReport}
// @Router /api/lessons/{id}/sections/translate [post]
func (c *TranslationController) TranslateSections(ctx *gin.Context) {
	var req TranslateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	report, err := c.TranslationService.TranslateSections(ctx.Request.Context(), ctx.Param("id"), req.LanguageCode)
	if err != nil {
		c.translateError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// TranslateQuiz godoc
// @Summary 批量翻译测验全部题目并报告逐题结果
// @Tags 翻译
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测验ID"
// @Param   body body TranslateRequest true "目标语言"
// @Success 200 {object} util.Response{data=service.BatchTranslationReport}
// @Router /api/quizzes/{id}/translate [post]
func (c *TranslationController) TranslateQuiz(ctx *gin.Context) {
	var req TranslateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	report, err := c.TranslationService.TranslateQuiz(ctx.Request.Context(), ctx.Param("id"), req.LanguageCode)
	if err != nil {
		c.translateError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// QuizLanguages godoc
// @Summary 获取测验的可用语言（全部题目均有译文才算可用）
// @Tags 翻译
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测验ID"
// @Success 200 {object} util.Response{data=[]string}
// @Router /api/quizzes/{id}/languages [get]
func (c *TranslationController) QuizLanguages(ctx *gin.Context) {
	langs, err := c.TranslationService.AvailableQuizLanguages(ctx.Param("id"))
	if err != nil {
		c.translateError(ctx, err)
		return
	}
	if langs == nil {
		langs = []string{}
	}
	util.Success(ctx, langs)
}

// QuizLanguageStatus godoc
// @Summary 查询测验某语言的翻译覆盖率
// @Tags 翻译
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测验ID"
// @Param   lang query string true "语言代码"
// @Success 200 {object} util.Response{data=object}
// @Router /api/quizzes/{id}/languages/status [get]
func (c *TranslationController) QuizLanguageStatus(ctx *gin.Context) {
	lang := ctx.Query("lang")
	if lang == "" {
		util.BadRequest(ctx, "lang is required")
		return
	}
	translated, total, err := c.TranslationService.QuizLanguageStatus(ctx.Param("id"), lang)
	if err != nil {
		c.translateError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"language": lang, "translated": translated, "total": total})
}

// FixQuizLanguage godoc
// @Summary 原子清除测验某语言的全部译文
// @Tags 翻译
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "测验ID"
// @Param   lang query string true "语言代码"
// @Success 200 {object} util.Response{data=object} "返回删除行数"
// @Router /api/quizzes/{id}/languages [delete]
func (c *TranslationController) FixQuizLanguage(ctx *gin.Context) {
	lang := ctx.Query("lang")
	if lang == "" {
		util.BadRequest(ctx, "lang is required")
		return
	}
	deleted, err := c.TranslationService.FixQuizLanguage(ctx.Param("id"), lang)
	if err != nil {
		c.translateError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": deleted})
}
