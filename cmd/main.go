package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/Margays/config"
	"github.com/lshigami/Margays/database"
	_ "github.com/lshigami/Margays/docs" // Swagger docs - auto-generated
	proctorctrl "github.com/lshigami/Margays/internal/controller/proctor"
	studentctrl "github.com/lshigami/Margays/internal/controller/student"
	"github.com/lshigami/Margays/internal/logger"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/lshigami/Margays/internal/service"
	"github.com/rs/zerolog/log" // Global zerolog instance
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Proctored Exam Integrity API
// @version 1.0
// @description Server-anchored exam timing, violation classification and incident reporting for proctored exam attempts.
// @contact.name API Support
// @contact.url http://example.com/support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init() // Call this early

	app := fx.New(
		// Core Application Components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,    // Provides *gorm.DB
			database.NewRedisClient, // Provides *redis.Client
			NewGinEngine,            // Provides *gin.Engine
		),

		// Repositories Layer
		fx.Provide(
			repository.NewAttemptRepository,
			repository.NewViolationRepository,
			repository.NewSessionRepository,
			repository.NewExamRepository,
		),

		// Timing and Proctoring Core
		fx.Provide(
			service.NewCountdownManager,
			func(cfg *config.Config) *service.ClassifierRegistry {
				return service.NewClassifierRegistry(time.Duration(cfg.Proctor.SignalRateWindowSec) * time.Second)
			},
			service.NewTeardownRegistry,
			service.NewStartLocker,
			service.NewPresenceStore,
			service.NewTimerSyncService,
			service.NewIncidentReporter,
		),

		// Services Layer
		fx.Provide(
			studentctrl.NewMonitorHub,
			// The hub is the notifier; binding it through the interface keeps
			// the service layer free of websocket imports.
			func(hub *studentctrl.MonitorHub) service.AttemptNotifier { return hub },
			service.NewAttemptLifecycleService,
			service.NewViolationService,
			service.NewIntegrityReportService,
		),

		// API Controllers Layer
		fx.Provide(
			studentctrl.NewAttemptController,
			studentctrl.NewLiveController,
			proctorctrl.NewProctorController,
		),

		// Invokers - Functions that are executed by Fx
		fx.Invoke(AutoMigrateDB),
		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(RecoverAttemptsOnStart),
	)

	// Start the application
	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Wait for a shutdown signal
	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.DebugMode)

	r := gin.New()

	// Route gin's request log through zerolog so everything lands in one stream.
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return "" // Returning empty string to avoid double logging if Gin's default logger is also active
	}))
	r.Use(gin.Recovery())

	// CORS Configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Be more specific in production
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger UI
	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	attemptCtrl *studentctrl.AttemptController,
	liveCtrl *studentctrl.LiveController,
	proctorCtrl *proctorctrl.ProctorController,
	lifecycle service.AttemptLifecycleService,
	reporter service.IncidentReporter,
) {
	// Student Routes (prefixed with /api/v1)
	apiGroup := router.Group("/api/v1")
	{
		apiGroup.POST("/sessions/:session_id/attempts", attemptCtrl.StartAttempt)

		attempts := apiGroup.Group("/attempts/:attempt_id")
		attempts.POST("/resume", attemptCtrl.ResumeAttempt)
		attempts.POST("/submit", attemptCtrl.SubmitAttempt)
		attempts.GET("/timer", attemptCtrl.GetTimer)
		attempts.POST("/signals", attemptCtrl.ReportSignal)
		attempts.POST("/heartbeat", attemptCtrl.Heartbeat)
		attempts.POST("/teardown", attemptCtrl.TeardownAttempt)
		attempts.GET("/result", attemptCtrl.GetResult)
		attempts.GET("/live", liveCtrl.Live)
	}

	// Proctor Routes (prefixed with /api/v1/proctor)
	proctorGroup := router.Group("/api/v1/proctor")
	{
		proctorAttempts := proctorGroup.Group("/attempts/:attempt_id")
		proctorAttempts.GET("/violations", proctorCtrl.ListViolations)
		proctorAttempts.GET("/presence", proctorCtrl.GetPresence)
		proctorAttempts.POST("/pause", proctorCtrl.PauseAttempt)
		proctorAttempts.POST("/unpause", proctorCtrl.UnpauseAttempt)
		proctorAttempts.POST("/flag", proctorCtrl.FlagAttempt)
		proctorAttempts.GET("/report", proctorCtrl.GetIntegrityReport)

		proctorGroup.POST("/sessions/:session_id/disable-camera", proctorCtrl.DisableSessionCamera)
	}

	// HTTP Server Setup and Lifecycle
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Proctoring API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := server.Shutdown(shutdownCtx)
			// Remaining time is checkpointed before the queue drains so a
			// restart resumes every countdown where it left off.
			lifecycle.Shutdown()
			reporter.Stop()
			return err
		},
	})
}

// RecoverAttemptsOnStart re-arms countdown engines for attempts that were in
// progress when the previous process died. Attempts that ran out while the
// server was down are submitted immediately.
func RecoverAttemptsOnStart(lc fx.Lifecycle, lifecycle service.AttemptLifecycleService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return lifecycle.RecoverActiveAttempts()
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Exam{},
		&model.ExamSession{},
		&model.ExamAttempt{},
		&model.ViolationEvent{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
