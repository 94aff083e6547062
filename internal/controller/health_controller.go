package controller

import (
	"net/http"

	"solo_edu_backend/internal/service"
	"solo_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB     *gorm.DB
	Broker *service.AIBroker
}

func NewHealthController(db *gorm.DB, broker *service.AIBroker) *HealthController {
	return &HealthController{DB: db, Broker: broker}
}

// @Summary 健康检查
// @Description 检查数据库连接与AI密钥池状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.Ping(); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database":        "up",
			"aiExhaustedKeys": c.Broker.ExhaustedKeyCount(),
		},
	})
}
