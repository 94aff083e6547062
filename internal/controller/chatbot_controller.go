package controller

import (
	"solo_edu_backend/internal/service"
	"solo_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ChatbotController struct {
	ChatbotService *service.ChatbotService
}

func NewChatbotController(chatbotService *service.ChatbotService) *ChatbotController {
	return &ChatbotController{ChatbotService: chatbotService}
}

// Chat godoc
// @Summary 课程内容问答
// @Description 无状态单轮应答，会话历史由前端携带
// @Tags 聊天
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.ChatRequest true "用户消息与上下文"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/chat [post]
func (c *ChatbotController) Chat(ctx *gin.Context) {
	var req service.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.ChatbotService.Chat(ctx.Request.Context(), req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"answer": answer})
}
