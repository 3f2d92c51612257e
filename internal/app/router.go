package app

import (
	"progression_backend/docs"
	"progression_backend/internal/config"
	"progression_backend/internal/middleware"
	"progression_backend/internal/model"
	"progression_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, repos)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerLearnerRoutes(authGroup, c)
		a.registerInstructorRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, repos *repositories) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		// 课程浏览允许游客，登录用户能看到自己解锁的内容
		public.GET("/courses", c.catalog.ListCourses)
		public.GET("/courses/:id", middleware.TryAuthMiddleware(a.Config), c.catalog.GetCourse)
	}
}

func (a *App) registerLearnerRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/profile", c.auth.GetProfile)

	group.POST("/courses/:id/enroll", c.enrollment.Enroll)
	group.GET("/courses/:id/accessible", c.catalog.GetAccessible)

	group.GET("/enrollments", c.enrollment.ListMine)
	group.GET("/enrollments/:id", c.enrollment.GetEnrollment)
	group.POST("/enrollments/:id/withdraw", c.enrollment.Withdraw)
	group.POST("/enrollments/:id/complete", c.enrollment.Complete)
	group.GET("/enrollments/:id/certificate", c.enrollment.GetCertificate)

	group.POST("/enrollments/:id/progress", c.progress.RecordCompletion)
	group.GET("/enrollments/:id/progress", c.progress.GetSnapshot)
	group.GET("/enrollments/:id/history", c.progress.GetHistory)
}

func (a *App) registerInstructorRoutes(group *gin.RouterGroup, c *controllers) {
	instructor := group.Group("/instructor")
	instructor.Use(middleware.RoleMiddleware(model.Instructor))
	{
		instructor.POST("/courses", c.catalog.CreateCourse)
		instructor.POST("/courses/:id/publish", c.catalog.PublishCourse)
		instructor.POST("/courses/:id/archive", c.catalog.ArchiveCourse)
		instructor.POST("/courses/:id/cover", c.catalog.UploadCover)
		instructor.POST("/courses/:id/modules", c.catalog.CreateModule)
		instructor.GET("/courses/:id/stats", c.catalog.ModuleStats)
		instructor.GET("/courses/:id/enrollments", c.enrollment.ListForCourse)

		instructor.PUT("/modules/:id/status", c.catalog.SetModuleStatus)
		instructor.PUT("/modules/:id/lock", c.catalog.SetModuleLock)
		instructor.DELETE("/modules/:id", c.catalog.DeleteModule)
		instructor.POST("/modules/:id/lessons", c.catalog.CreateLesson)

		instructor.POST("/lessons/:id/quizzes", c.catalog.CreateQuiz)
		instructor.POST("/lessons/:id/assignments", c.catalog.CreateAssignment)
		instructor.POST("/lessons/:id/media", c.catalog.UploadLessonMedia)

		instructor.POST("/enrollments/:id/approve", c.enrollment.Approve)
		instructor.POST("/enrollments/:id/transition", c.enrollment.Transition)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", c.user.ListUsers)
		admin.PUT("/users/:id/disabled", c.user.SetDisabled)
	}
}
