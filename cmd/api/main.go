package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/config"
	"github.com/noah-isme/school-records-api/internal/database"
	"github.com/noah-isme/school-records-api/internal/handler"
	"github.com/noah-isme/school-records-api/internal/middleware"
	"github.com/noah-isme/school-records-api/internal/observability"
	"github.com/noah-isme/school-records-api/internal/repository"
	"github.com/noah-isme/school-records-api/internal/router"
	"github.com/noah-isme/school-records-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to access database handle: %v", err)
	}
	defer sqlDB.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, student results cache disabled")
	}

	var natsConn *nats.Conn
	natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats url not set, domain events disabled")
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())

	studyYearRepo := repository.NewStudyYearRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	quarterRepo := repository.NewQuarterRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	markRepo := repository.NewMarkRepository(db)
	monitoringRepo := repository.NewMonitoringRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	cache := service.NewStudentResultsCache(redisClient, cfg.StudentCacheTTL, logger)
	events := service.NewEventPublisher(natsConn, logger)
	activityService := service.NewActivityService(activityRepo, logger)

	studyYearService := service.NewStudyYearService(studyYearRepo, logger)
	rolloverService := service.NewRolloverService(repository.NewRolloverStore(db), cache, events, activityService, logger)
	gradeService := service.NewGradeService(gradeRepo, cache, logger)
	subjectService := service.NewSubjectService(subjectRepo, cache)
	quarterService := service.NewQuarterService(quarterRepo, studyYearRepo)
	studentService := service.NewStudentService(service.StudentDependencies{
		Students:    studentRepo,
		Grades:      gradeRepo,
		StudyYears:  studyYearRepo,
		Marks:       markRepo,
		Monitorings: monitoringRepo,
		Cache:       cache,
		Events:      events,
		Activity:    activityService,
		Validator:   validate,
	}, logger)
	markService := service.NewMarkService(service.MarkDependencies{
		Marks:     markRepo,
		Students:  studentRepo,
		Subjects:  subjectRepo,
		Quarters:  quarterRepo,
		Cache:     cache,
		Events:    events,
		Activity:  activityService,
		Validator: validate,
		ChunkSize: cfg.BulkChunkSize,
	}, logger)
	monitoringService := service.NewMonitoringService(service.MonitoringDependencies{
		Monitorings: monitoringRepo,
		Students:    studentRepo,
		Subjects:    subjectRepo,
		StudyYears:  studyYearRepo,
		Cache:       cache,
		Events:      events,
		Activity:    activityService,
		Validator:   validate,
		ChunkSize:   cfg.BulkChunkSize,
	}, logger)
	adminAuthService := service.NewAdminAuthService(adminRepo, validate, cfg.JWTSecret, cfg.JWTTTL, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		StudyYearHandler:  handler.NewStudyYearHandler(studyYearService, rolloverService, logger),
		GradeHandler:      handler.NewGradeHandler(gradeService, logger),
		SubjectHandler:    handler.NewSubjectHandler(subjectService, logger),
		QuarterHandler:    handler.NewQuarterHandler(quarterService, logger),
		StudentHandler:    handler.NewStudentHandler(studentService, logger),
		MarkHandler:       handler.NewMarkHandler(markService, logger),
		MonitoringHandler: handler.NewMonitoringHandler(monitoringService, logger),
		AdminAuthHandler:  handler.NewAdminAuthHandler(adminAuthService, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		HealthCheck:       handler.HealthCheck(cfg, sqlDB),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Msg("school records api started")
	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
