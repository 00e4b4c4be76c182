package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/travel-behavior-backend-go/internal/analysis"
	"github.com/jengzang/travel-behavior-backend-go/internal/handler"
	"github.com/jengzang/travel-behavior-backend-go/internal/middleware"
	"github.com/jengzang/travel-behavior-backend-go/internal/repository"
	"github.com/jengzang/travel-behavior-backend-go/internal/service"
)

// SetupRouter 设置路由
// The returned task service owns background analysis runs; callers wait on it at shutdown.
func SetupRouter(deps analysis.Dependencies) (*gin.Engine, *service.AnalysisTaskService) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(deps.Logger))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	tripRepo := repository.NewTripRepository(deps.DB)
	snapshotRepo := repository.NewSnapshotRepository(deps.DB, deps.Logger)
	taskRepo := repository.NewAnalysisTaskRepository(deps.DB)

	tripHandler := handler.NewTripHandler(service.NewTripService(tripRepo))
	snapshotHandler := handler.NewSnapshotHandler(service.NewSnapshotService(snapshotRepo))
	taskService := service.NewAnalysisTaskService(taskRepo, deps)
	taskHandler := handler.NewAnalysisTaskHandler(taskService)

	auth := middleware.Auth(deps.Config.JWTSecret)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Travel Behavior API is running",
			"skills":  analysis.RegisteredSkills(),
		})
	})

	// API 路由组
	v1 := r.Group("/api/v1")
	{
		trips := v1.Group("/trips")
		{
			trips.GET("", tripHandler.GetTrips)
			trips.GET("/:id", tripHandler.GetTripByID)
		}

		v1.GET("/users/:userId/trip-summary", tripHandler.GetSummary)

		users := v1.Group("/users/:userId", auth)
		{
			users.POST("/snapshots", snapshotHandler.IngestSnapshots)
			users.POST("/device-snapshots", snapshotHandler.IngestDeviceSnapshots)
		}
	}

	admin := r.Group("/api/admin", auth, middleware.RateLimit(middleware.NewRateLimiter(30, time.Minute)))
	{
		tasks := admin.Group("/analysis/tasks")
		{
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.DELETE("/:id", taskHandler.CancelTask)
		}
	}

	return r, taskService
}
