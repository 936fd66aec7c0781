package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/handler"
	"github.com/stemsi/examguard-backend/internal/logger"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/tracing"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	Exam          *handler.ExamHandler
	Question      *handler.QuestionHandler
	StudentPortal *handler.StudentPortalHandler
	Violation     *handler.ViolationHandler
	Result        *handler.ResultHandler
	Analytics     *handler.AnalyticsHandler
	Monitor       *handler.MonitorHandler
	Health        *handler.HealthHandler
}

// Limiters are the per-client rate limiters applied to public and hot routes.
type Limiters struct {
	Auth      *middleware.RateLimiter
	Violation *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.Authenticator,
	handlers *Handlers,
	limiters Limiters,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the logger and every envelope can read it.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.GinMiddleware(log))
	router.Use(tracing.GinMiddleware())
	router.Use(metrics.MetricsMiddleware())

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", metrics.PrometheusHandler())

	requireAuth := middleware.RequireAuth(auth)
	can := middleware.RequirePermission

	api := router.Group("/api/v1")
	api.Use(middleware.NoStore(), middleware.Brotli())

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authGroup := api.Group("/auth")
	{
		limited := authGroup.Group("", limiters.Auth.Middleware())
		limited.POST("/register/student", handlers.Auth.RegisterStudent)
		limited.POST("/register/admin", handlers.Auth.RegisterAdmin)
		limited.POST("/login", handlers.Auth.Login)
		limited.POST("/forgot-password", handlers.Auth.ForgotPassword)
		limited.POST("/reset-password", handlers.Auth.ResetPassword)

		authGroup.POST("/logout", requireAuth, handlers.Auth.Logout)
		authGroup.GET("/me", requireAuth, handlers.Auth.Me)
	}

	// ─── 2. Student Group ──────────────────────────────────────────────
	studentAPI := api.Group("/student", requireAuth)
	{
		studentAPI.GET("/exams", can(model.PermissionSessionsTake), handlers.StudentPortal.ListExams)
		studentAPI.POST("/exams/:id/start", can(model.PermissionSessionsTake), handlers.StudentPortal.StartExam)
		studentAPI.POST("/sessions/:id/submit", can(model.PermissionSessionsTake), handlers.StudentPortal.SubmitExam)
		studentAPI.GET("/results", can(model.PermissionResultsReadOwn), handlers.StudentPortal.ListMyResults)
		studentAPI.GET("/results/:id", can(model.PermissionResultsReadOwn), handlers.StudentPortal.GetMyResult)
	}

	// ─── 3. Violations (proctoring client) ─────────────────────────────
	violations := api.Group("/violations", requireAuth)
	{
		violations.POST("",
			limiters.Violation.Middleware(),
			can(model.PermissionViolationsWrite),
			handlers.Violation.RecordViolation,
		)
		// Ownership is checked by the service.
		violations.GET("/session/:id", handlers.Violation.ListSessionViolations)
	}

	// ─── 4. Results (admin: all, student: own) ─────────────────────────
	results := api.Group("/results", requireAuth,
		middleware.RequireAnyPermission(model.PermissionResultsReadAll, model.PermissionResultsReadOwn))
	{
		results.GET("", handlers.Result.ListResults)
		results.GET("/:id", handlers.Result.GetResult)
	}

	// ─── 5. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := api.Group("/admin", requireAuth)
	{
		// Exam management
		adminAPI.GET("/exams", can(model.PermissionExamsRead), handlers.Exam.ListExams)
		adminAPI.POST("/exams", can(model.PermissionExamsWrite), handlers.Exam.CreateExam)
		adminAPI.GET("/exams/:id", can(model.PermissionExamsRead), handlers.Exam.GetExam)
		adminAPI.PUT("/exams/:id", can(model.PermissionExamsWrite), handlers.Exam.UpdateExam)
		adminAPI.DELETE("/exams/:id", can(model.PermissionExamsWrite), handlers.Exam.DeleteExam)
		adminAPI.GET("/exams/:id/results", can(model.PermissionResultsReadAll), handlers.Exam.ListExamResults)

		// Question management
		adminAPI.POST("/exams/:id/questions", can(model.PermissionQuestionsWrite), handlers.Question.AddQuestion)
		adminAPI.PUT("/questions/:id", can(model.PermissionQuestionsWrite), handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/questions/:id", can(model.PermissionQuestionsWrite), handlers.Question.DeleteQuestion)

		// Analytics
		adminAPI.GET("/analytics", can(model.PermissionAnalyticsRead), handlers.Analytics.Overview)
		adminAPI.GET("/exams/:id/analytics", can(model.PermissionAnalyticsRead), handlers.Analytics.ExamAnalytics)
	}

	// The monitor streams; it must bypass the compressing writer.
	monitor := router.Group("/api/v1/admin", middleware.NoStore(), requireAuth)
	monitor.GET("/exams/:id/monitor", can(model.PermissionAnalyticsRead), handlers.Monitor.MonitorExamSSE)

	return router
}
