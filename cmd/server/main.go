package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/travel-behavior-backend-go/internal/analysis"
	_ "github.com/jengzang/travel-behavior-backend-go/internal/analysis/behavior"
	"github.com/jengzang/travel-behavior-backend-go/internal/api"
	"github.com/jengzang/travel-behavior-backend-go/internal/config"
	"github.com/jengzang/travel-behavior-backend-go/internal/database"
	"github.com/jengzang/travel-behavior-backend-go/internal/logging"
	"github.com/jengzang/travel-behavior-backend-go/internal/spatial"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)

	// 初始化数据库
	if err := database.Init(database.Config{Path: cfg.DBPath}, logger); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(database.GetDB(), logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	resolver, err := spatial.NewTZFResolver(cfg.Processing.TimezoneCacheSize)
	if err != nil {
		return err
	}

	// 初始化路由
	router, tasks := api.SetupRouter(analysis.Dependencies{
		DB:       database.GetDB(),
		Config:   cfg,
		Resolver: resolver,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	tasks.Wait()
	return nil
}
