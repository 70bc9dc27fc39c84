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

	"translate-bridge/internal/api"
	"translate-bridge/internal/services"
	"translate-bridge/pkg/logger"
	"translate-bridge/pkg/types"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration from environment variables
	globalConfig, err := types.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(globalConfig.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer log.Sync()

	svc, err := services.NewServices(context.Background(), globalConfig, log)
	if err != nil {
		log.Fatal("failed to initialize services", zap.Error(err))
	}
	defer svc.Close()

	if svc.Settings().Provider(globalConfig.Translation.PrimaryProvider).Credential == "" {
		log.Warn("primary provider has no API key configured",
			zap.String("provider", string(globalConfig.Translation.PrimaryProvider)))
	}

	// Start the HTTP server
	runServer(log, globalConfig, svc)
}

func runServer(logger *zap.Logger, cfg *types.Config, svc *services.Services) {
	apiServer := api.NewGinServer(logger, svc)
	defer apiServer.Close()

	addr := cfg.Server.GetServerAddress()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer.GetRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", zap.String("address", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Notify on SIGINT (Ctrl+C) and SIGTERM (kill command)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
