package app

import (
	"questionnaire_backend/internal/config"
	"questionnaire_backend/internal/middleware"
	"questionnaire_backend/internal/model"
	"questionnaire_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// public routes
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// authenticated respondent routes
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		sessions := authGroup.Group("/sessions")
		{
			sessions.POST("", c.session.StartSession)
			sessions.GET("/:id", c.session.GetProgress)
			sessions.PUT("/:id/answers/:questionId", c.session.SaveAnswer)
			sessions.POST("/:id/answers/:questionId/file", c.session.UploadAnswerFile)
			sessions.GET("/:id/navigate", c.session.Navigate)
			sessions.POST("/:id/complete", c.session.Complete)
			sessions.POST("/:id/submit", c.session.Submit)
			sessions.POST("/:id/cancel", c.session.Cancel)
			sessions.POST("/:id/reopen", c.session.Reopen)
			sessions.POST("/:id/reset", c.session.Reset)
			sessions.GET("/:id/results", c.session.Results)
		}

		// reviewer routes
		review := authGroup.Group("/review")
		review.Use(middleware.RoleMiddleware(model.Reviewer))
		{
			review.GET("/assessments/:id/sessions", c.marking.ListSessions)
			review.POST("/assessments/:id/mark", c.marking.MarkAssessment)
			review.POST("/sessions/:id/review", c.marking.SendForReview)
			review.POST("/sessions/:id/queue-marking", c.marking.QueueMarking)
			review.POST("/sessions/:id/mark", c.marking.Mark)
			review.POST("/sessions/:id/publish", c.marking.PublishResults)
			review.POST("/sessions/:id/expire", c.marking.Expire)
			review.GET("/sessions/:id/scores", c.marking.SessionScores)
			review.POST("/sessions/:id/responses/:questionId/score", c.marking.GradeResponse)
		}

		// admin authoring routes
		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.POST("/assessments", c.catalog.CreateAssessment)
			admin.GET("/assessments", c.catalog.ListAssessments)
			admin.GET("/assessments/:id", c.catalog.GetAssessment)
			admin.PUT("/assessments/:id", c.catalog.UpdateAssessment)
			admin.DELETE("/assessments/:id", c.catalog.DeleteAssessment)
			admin.POST("/assessments/:id/sections", c.catalog.CreateSection)
			admin.POST("/assessments/:id/schemes", c.catalog.CreateScheme)
			admin.GET("/assessments/:id/schemes", c.catalog.ListSchemes)

			admin.PUT("/sections/:id", c.catalog.UpdateSection)
			admin.DELETE("/sections/:id", c.catalog.DeleteSection)
			admin.POST("/sections/:id/questions", c.catalog.CreateQuestion)

			admin.GET("/questions/:id", c.catalog.GetQuestion)
			admin.PUT("/questions/:id", c.catalog.UpdateQuestion)
			admin.DELETE("/questions/:id", c.catalog.DeleteQuestion)
			admin.POST("/questions/:id/options", c.catalog.CreateOption)

			admin.PUT("/options/:id", c.catalog.UpdateOption)
			admin.DELETE("/options/:id", c.catalog.DeleteOption)

			admin.PUT("/schemes/:id", c.catalog.UpdateScheme)
			admin.DELETE("/schemes/:id", c.catalog.DeleteScheme)
			admin.POST("/schemes/:id/activate", c.catalog.ActivateScheme)
			admin.POST("/schemes/:id/rules", c.catalog.CreateRule)
			admin.GET("/schemes/:id/rules", c.catalog.ListRules)

			admin.PUT("/rules/:id", c.catalog.UpdateRule)
			admin.DELETE("/rules/:id", c.catalog.DeleteRule)
		}
	}
}
