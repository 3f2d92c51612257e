package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"progression_backend/internal/config"
	"progression_backend/internal/controller"
	"progression_backend/internal/repository"
	"progression_backend/internal/service"
	"progression_backend/pkg/database"
	"progression_backend/pkg/logger"
	"progression_backend/pkg/monitoring"
	"progression_backend/pkg/security"
	"progression_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	mailer          *service.MailerWorker
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	catalog     *repository.CatalogRepository
	enrollment  *repository.EnrollmentRepository
	certificate *repository.CertificateRepository
	progress    *repository.ProgressRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	catalog    *service.CatalogService
	enrollment *service.EnrollmentService
	ledger     *service.LedgerService
	aggregator *service.AggregatorService
	notifier   service.CompletionNotifier
}

type controllers struct {
	auth       *controller.AuthController
	catalog    *controller.CatalogController
	enrollment *controller.EnrollmentController
	progress   *controller.ProgressController
	user       *controller.UserController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 配置热加载回调入口（configwatcher 触发）
func (a *App) ReloadConfig(cfg *config.Config) {
	a.Config = cfg
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
	logger.Log.Info("configuration reloaded")
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		catalog:     repository.NewCatalogRepository(db, rdb),
		enrollment:  repository.NewEnrollmentRepository(db),
		certificate: repository.NewCertificateRepository(db),
		progress:    repository.NewProgressRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.notifier = service.NewRedisNotifier(rdb, &cfg.Notification)
	s.aggregator = service.NewAggregatorService(repos.catalog, repos.enrollment, repos.progress)
	s.enrollment = service.NewEnrollmentService(
		repos.enrollment,
		repos.catalog,
		repos.certificate,
		repos.user,
		s.aggregator,
		s.notifier,
	)
	s.ledger = service.NewLedgerService(repos.progress, repos.enrollment, repos.catalog)
	s.catalog = service.NewCatalogService(repos.catalog, repos.enrollment, s.storage, db)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth, repos.user),
		catalog:    controller.NewCatalogController(s.catalog, s.aggregator),
		enrollment: controller.NewEnrollmentController(s.enrollment),
		progress:   controller.NewProgressController(s.ledger, s.aggregator, s.enrollment),
		user:       controller.NewUserController(repos.user),
		health:     controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services, rdb *redis.Client) {
	// 定时模块解锁：到点把 publish_at_unlock 的模块发布出去
	go func() {
		ticker := time.NewTicker(time.Minute)
		for range ticker.C {
			if err := s.catalog.ProcessDueUnlocks(); err != nil {
				logger.Log.Error("scheduled unlock error", zap.Error(err))
			}
		}
	}()

	// 结课通知消费者
	a.mailer = service.NewMailerWorker(rdb, &a.Config.Notification)
	go a.mailer.Run()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, repos, db)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("progression-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
		router.Static("/api/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services, rdb)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 停掉通知消费者，避免丢半处理的消息
	if a.mailer != nil {
		a.mailer.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
