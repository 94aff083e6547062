package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/controller"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/service"
	"solo_edu_backend/pkg/database"
	"solo_edu_backend/pkg/logger"
	"solo_edu_backend/pkg/monitoring"
	"solo_edu_backend/pkg/security"
	"solo_edu_backend/pkg/tracing"

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
	backgroundStop  context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	lesson      *repository.LessonRepository
	ontology    *repository.OntologyRepository
	question    *repository.QuestionRepository
	quiz        *repository.QuizRepository
	translation *repository.TranslationRepository
}

type services struct {
	broker      *service.AIBroker
	pdf         *service.PDFService
	extraction  *service.ContentExtractionService
	storage     *service.StorageService
	status      *service.PipelineStatusService
	auth        *service.AuthService
	course      *service.CourseService
	lesson      *service.LessonService
	ontology    *service.OntologyService
	owlExport   *service.OWLExportService
	question    *service.QuestionService
	quiz        *service.QuizService
	translation *service.TranslationService
	chatbot     *service.ChatbotService
	maintenance *service.MaintenanceService
}

type controllers struct {
	auth        *controller.AuthController
	course      *controller.CourseController
	lesson      *controller.LessonController
	question    *controller.QuestionController
	quiz        *controller.QuizController
	ontology    *controller.OntologyController
	translation *controller.TranslationController
	chatbot     *controller.ChatbotController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 配置文件热更新入口，分发给注册的回调
func (a *App) ReloadConfig(cfg *config.Config) {
	a.Config = cfg
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
	logger.Log.Info("配置已热更新")
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		lesson:      repository.NewLessonRepository(db),
		ontology:    repository.NewOntologyRepository(db),
		question:    repository.NewQuestionRepository(db),
		quiz:        repository.NewQuizRepository(db),
		translation: repository.NewTranslationRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.broker = service.NewAIBroker(cfg.AI)
	s.pdf = service.NewPDFService()
	s.extraction = service.NewContentExtractionService(s.broker, cfg.AI.PromptBudgets)
	s.storage = service.NewStorageService(cfg)
	s.status = service.NewPipelineStatusService(rdb)

	s.auth = service.NewAuthService(repos.user, cfg)
	s.course = service.NewCourseService(repos.course)
	s.lesson = service.NewLessonService(cfg, s.pdf, s.extraction, s.storage, s.status, repos.lesson, repos.course, repos.translation)
	s.ontology = service.NewOntologyService(s.broker, cfg.AI.PromptBudgets, repos.lesson, repos.ontology)
	s.owlExport = service.NewOWLExportService(repos.course, repos.lesson, repos.ontology)
	s.question = service.NewQuestionService(s.broker, cfg.Generation, repos.question, repos.lesson, repos.ontology)
	s.quiz = service.NewQuizService(repos.quiz, repos.question, repos.course)
	s.translation = service.NewTranslationService(s.broker, cfg.Translation.Languages, repos.translation, repos.question, repos.lesson, repos.quiz)
	s.chatbot = service.NewChatbotService(s.broker, cfg.AI.PromptBudgets, repos.course, repos.lesson, repos.ontology)
	s.maintenance = service.NewMaintenanceService(repos.translation)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		course:      controller.NewCourseController(s.course),
		lesson:      controller.NewLessonController(s.lesson),
		question:    controller.NewQuestionController(s.question),
		quiz:        controller.NewQuizController(s.quiz),
		ontology:    controller.NewOntologyController(s.ontology, s.owlExport),
		translation: controller.NewTranslationController(s.translation),
		chatbot:     controller.NewChatbotController(s.chatbot),
		health:      controller.NewHealthController(db, s.broker),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
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

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 管道状态查询降级，服务本身照常启动
		logger.Log.Warn("Failed to initialize redis, pipeline status disabled", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("solo-edu-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	bgCtx, stop := context.WithCancel(context.Background())
	app.backgroundStop = stop
	services.maintenance.StartOrphanSweep(bgCtx)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.backgroundStop != nil {
		a.backgroundStop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
