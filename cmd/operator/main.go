// Команда operator запускает операторский HTTP API
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

	"go.uber.org/zap"

	"vcautotrade/internal/api"
	"vcautotrade/internal/config"
	"vcautotrade/internal/repository"
	"vcautotrade/internal/service"
	"vcautotrade/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	defer logger.Sync()

	if err := cfg.ValidateOperator(); err != nil {
		logger.Fatal("invalid operator config", zap.Error(err))
	}

	db, err := repository.OpenDB(context.Background(), cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	store := repository.NewPostgresStore(db)
	contextService := service.NewContextService(
		repository.NewContextRepository(store),
		repository.NewLivenessRepository(store),
		repository.NewTradeReportRepository(store),
		repository.NewOrderRepository(store),
		logger,
	)

	router := api.SetupRoutes(&api.Dependencies{
		ContextService:    contextService,
		OperatorTokenHash: cfg.Security.OperatorTokenHash,
		Logger:            logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting operator server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
