package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/linguakurs/crm-api/api/swagger"
	"github.com/linguakurs/crm-api/internal/handler"
	"github.com/linguakurs/crm-api/internal/middleware"
	"github.com/linguakurs/crm-api/internal/repository"
	"github.com/linguakurs/crm-api/internal/service"
	"github.com/linguakurs/crm-api/internal/ws"
	"github.com/linguakurs/crm-api/pkg/cache"
	"github.com/linguakurs/crm-api/pkg/config"
	"github.com/linguakurs/crm-api/pkg/database"
	"github.com/linguakurs/crm-api/pkg/logger"
	corsmiddleware "github.com/linguakurs/crm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/linguakurs/crm-api/pkg/middleware/requestid"
)

// @title Linguakurs CRM API
// @version 1.0.0
// @description CRM backend for a language-course provider
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}

	// Repositories
	studentRepo := repository.NewStudentRepository(db)
	interviewRepo := repository.NewInterviewRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	boardRepo := repository.NewBoardRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	referralService := service.NewReferralService(studentRepo, paymentRepo, nil, logr, cfg.Referral.UnitAmount).
		WithMetrics(metricsService).
		WithReportCache(cacheRepo)
	studentService := service.NewStudentService(studentRepo, referralService, interviewRepo, quoteRepo, paymentRepo, nil, logr)
	interviewService := service.NewInterviewService(interviewRepo, studentRepo, nil, logr).
		WithReportCache(cacheRepo)
	quoteService := service.NewQuoteService(quoteRepo, studentRepo, nil, logr)
	reportService := service.NewReportService(interviewRepo, studentRepo, paymentRepo, userRepo, cacheRepo, metricsService, logr, cfg.Referral.UnitAmount, cfg.Reports.CacheTTL)
	boardHub := ws.NewHub(logr, metricsService, cfg.Board.ClientSendBuffer)
	boardService := service.NewBoardService(boardRepo, boardHub, metricsService, nil, logr, cfg.Board.MaxContentLength)
	teacherService := service.NewTeacherService(teacherRepo, nil, logr)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	studentHandler := handler.NewStudentHandler(studentService)
	interviewHandler := handler.NewInterviewHandler(interviewService)
	quoteHandler := handler.NewQuoteHandler(quoteService)
	referralHandler := handler.NewReferralHandler(referralService)
	reportHandler := handler.NewReportHandler(reportService)
	boardHandler := handler.NewBoardHandler(boardService)
	boardFeedHandler := handler.NewBoardFeedHandler(authService, boardHub, logr)
	teacherHandler := handler.NewTeacherHandler(teacherService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/ws/board", boardFeedHandler.Subscribe)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/students", studentHandler.List)
		authed.POST("/students", studentHandler.Create)
		authed.GET("/students/:id", studentHandler.Get)
		authed.PUT("/students/:id", studentHandler.Update)
		authed.DELETE("/students/:id", studentHandler.Delete)

		authed.GET("/students/:id/interviews", interviewHandler.ListByStudent)
		authed.POST("/students/:id/interviews", interviewHandler.Create)
		authed.GET("/students/:id/quotes", quoteHandler.ListByStudent)
		authed.POST("/students/:id/quotes", quoteHandler.Create)

		authed.GET("/students/:id/referrals", referralHandler.ReferredStudents)
		authed.GET("/students/:id/payments/:kind", referralHandler.ListPayments)
		authed.POST("/students/:id/payments/:kind", referralHandler.AddPayment)
		authed.GET("/students/:id/balance/:kind", referralHandler.Balance)
		authed.GET("/referral-codes/:code", referralHandler.LookupCode)

		authed.GET("/reports", reportHandler.Generate)
		authed.GET("/reports/export/csv", reportHandler.ExportCSV)
		authed.GET("/reports/export/pdf", reportHandler.ExportPDF)

		authed.GET("/board/messages", boardHandler.ListMessages)
		authed.POST("/board/messages", boardHandler.CreateMessage)
		authed.GET("/board/notes", boardHandler.ListNotes)
		authed.POST("/board/notes", boardHandler.CreateNote)
		authed.PUT("/board/notes/:id", boardHandler.UpdateNote)
		authed.DELETE("/board/notes/:id", boardHandler.DeleteNote)

		authed.GET("/teachers", teacherHandler.List)
		authed.POST("/teachers", teacherHandler.Create)
		authed.PUT("/teachers/:id/active", teacherHandler.SetActive)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
