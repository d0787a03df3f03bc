package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/okulsight/attendance-api/api/swagger"
	"github.com/okulsight/attendance-api/internal/handler"
	"github.com/okulsight/attendance-api/internal/middleware"
	"github.com/okulsight/attendance-api/internal/repository"
	"github.com/okulsight/attendance-api/internal/service"
	"github.com/okulsight/attendance-api/pkg/cache"
	"github.com/okulsight/attendance-api/pkg/config"
	"github.com/okulsight/attendance-api/pkg/database"
	"github.com/okulsight/attendance-api/pkg/logger"
	corsmiddleware "github.com/okulsight/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/okulsight/attendance-api/pkg/middleware/requestid"
	"github.com/okulsight/attendance-api/pkg/storage"
	"github.com/okulsight/attendance-api/pkg/vision"
)

// @title Classroom Attendance API
// @version 0.1.0
// @description Face-recognition attendance with class emotion summaries
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, roster caching disabled", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close() //nolint:errcheck
	}

	photos, err := storage.NewLocalStorage(cfg.Storage.PhotoDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init photo storage", "error", err)
	}

	faceClient := vision.NewClient(cfg.Recognition.ExtractorURL, cfg.Recognition.Timeout)
	emotionClient := vision.NewClient(cfg.Emotion.ExtractorURL, cfg.Emotion.Timeout)

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	rosterCache := repository.NewRosterCache(redisClient, cfg.Roster.CacheTTL, logr)

	metricsSvc := service.NewMetricsService()
	matcher := service.NewMatcher(cfg.Recognition.MatchPolicy, cfg.Recognition.Tolerance)
	emotionSvc := service.NewEmotionService(emotionClient, logr)
	enrollmentSvc := service.NewFaceEnrollmentService(studentRepo, faceClient, photos, rosterCache, cfg.Recognition.EmbeddingDim, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, courseRepo, rosterCache, faceClient, emotionSvc, matcher, photos, metricsSvc, nil, logr)

	studentHandler := handler.NewStudentHandler(enrollmentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	r.Static("/static/faces", photos.Path(""))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		api.POST("/students/:id/face", studentHandler.RegisterFace)
		api.DELETE("/students/:id/face", studentHandler.RemoveFace)

		api.POST("/courses/:courseId/attendance", attendanceHandler.Take)
		api.GET("/courses/:courseId/attendance", attendanceHandler.ListByCourse)
		api.GET("/attendance/:id", attendanceHandler.Get)
		api.PUT("/attendance/:id/records/:studentId", attendanceHandler.UpsertRecord)
		api.DELETE("/attendance/:id", attendanceHandler.Delete)
		api.GET("/attendance/:id/export", attendanceHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
