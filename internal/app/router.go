package app

import (
	"examhub_backend/docs"
	"examhub_backend/internal/config"
	"examhub_backend/internal/middleware"
	"examhub_backend/internal/model"
	"examhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/me", c.auth.Me)

	// 课程
	rg.GET("/courses", c.course.ListEnrolledCourses)
	rg.GET("/courses/:id", c.course.GetCourse)
	rg.POST("/courses/:id/enroll", c.course.Enroll)
	rg.GET("/courses/:id/assessments", c.assessment.ListCourseAssessments)

	// 作答流程
	rg.GET("/assessments/:id/attempt-status", c.attempt.GetStatus)
	rg.POST("/assessments/:id/attempts", c.attempt.Start)
	rg.GET("/attempts/:id", c.attempt.GetDetail)
	rg.PUT("/attempts/:id/draft", c.attempt.SaveDraft)
	rg.POST("/attempts/:id/submit", c.attempt.Submit)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		// 课程管理
		teacher.POST("/courses", c.course.CreateCourse)
		teacher.GET("/courses", c.course.ListTeacherCourses)
		teacher.PUT("/courses/:id", c.course.UpdateCourse)
		teacher.DELETE("/courses/:id", c.course.DeleteCourse)
		teacher.GET("/courses/:id/students", c.course.ListStudents)

		// 测试管理
		teacher.POST("/assessments", c.assessment.CreateAssessment)
		teacher.GET("/assessments/:id", c.assessment.GetTeacherSummary)
		teacher.PUT("/assessments/:id", c.assessment.UpdateAssessment)
		teacher.DELETE("/assessments/:id", c.assessment.DeleteAssessment)
		teacher.POST("/assessments/:id/publish", c.assessment.Publish)
		teacher.POST("/assessments/:id/release-results", c.assessment.ReleaseResults)

		// 题目管理
		teacher.GET("/assessments/:id/questions", c.assessment.ListQuestions)
		teacher.POST("/questions", c.assessment.AddQuestion)
		teacher.PUT("/questions/:id", c.assessment.UpdateQuestion)
		teacher.DELETE("/questions/:id", c.assessment.DeleteQuestion)
		teacher.POST("/questions/:id/attachment", c.assessment.UploadAttachment)

		// 批阅与评分
		teacher.GET("/assessments/:id/attempts", c.grading.ListAttempts)
		teacher.GET("/attempts/:id/answers", c.grading.GetAttemptAnswers)
		teacher.PUT("/answers/:id/score", c.grading.UpdateScore)
		teacher.PUT("/answers/scores", c.grading.BatchUpdateScores)
		teacher.POST("/answers/:id/evaluate", c.grading.EvaluateAnswer)
		teacher.POST("/assessments/:id/evaluate-all", c.grading.EvaluateAll)
	}
}
