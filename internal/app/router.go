package app

import (
	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/middleware"
	"solo_edu_backend/internal/model"
	"solo_edu_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		// 课程与课时浏览，学生可读
		authGroup.GET("/courses", c.course.List)
		authGroup.GET("/courses/:courseId", c.course.Get)
		authGroup.GET("/courses/:courseId/lessons", c.lesson.List)
		authGroup.GET("/courses/:courseId/quizzes", c.quiz.ListByCourse)
		authGroup.GET("/courses/:courseId/ontology/export", c.ontology.ExportCourse)
		authGroup.GET("/lessons/:id", c.lesson.Get)
		authGroup.GET("/lessons/:id/status", c.lesson.Status)
		authGroup.GET("/lessons/:id/questions", c.question.ListByLesson)
		authGroup.GET("/lessons/:id/ontology/export", c.ontology.ExportLesson)
		authGroup.GET("/quizzes/:id", c.quiz.Get)
		authGroup.GET("/quizzes/:id/languages", c.translation.QuizLanguages)
		authGroup.GET("/quizzes/:id/languages/status", c.translation.QuizLanguageStatus)

		// 课程内容问答
		authGroup.POST("/chat", c.chatbot.Chat)

		// 教学管理接口
		teacher := authGroup.Group("/")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.POST("/courses", c.course.Create)
			teacher.PUT("/courses/:courseId", c.course.Update)
			teacher.DELETE("/courses/:courseId", c.course.Delete)

			teacher.POST("/courses/:courseId/lessons", c.lesson.Upload)
			teacher.POST("/lessons/:id/cancel", c.lesson.Cancel)
			teacher.POST("/lessons/:id/reextract", c.lesson.Reextract)
			teacher.DELETE("/lessons/:id", c.lesson.Delete)

			teacher.POST("/lessons/:id/ontology/rebuild", c.ontology.Rebuild)

			teacher.POST("/questions/generate", c.question.Generate)
			teacher.PUT("/questions/:id", c.question.Update)
			teacher.DELETE("/questions/:id", c.question.Delete)

			teacher.POST("/quizzes", c.quiz.Create)
			teacher.POST("/quizzes/:id/questions", c.quiz.AddQuestions)
			teacher.DELETE("/quizzes/:id", c.quiz.Delete)

			teacher.POST("/questions/:id/translate", c.translation.TranslateQuestion)
			teacher.POST("/lessons/:id/translate", c.translation.TranslateLesson)
			teacher.POST("/lessons/:id/sections/translate", c.translation.TranslateSections)
			teacher.POST("/quizzes/:id/translate", c.translation.TranslateQuiz)
			teacher.DELETE("/quizzes/:id/languages", c.translation.FixQuizLanguage)
		}
	}
}
