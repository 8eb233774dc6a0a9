package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/config"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/api"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/app"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/broker"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting checkout reconciler",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	tp, err := util.InitTracer(cfg.Observ.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer a.Close()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	confirmations := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicConfirmations, cfg.Kafka.ConsumerGroup, a.Executor)
	webhookWorker := worker.NewWebhookWorker(confirmations, a.Reconciler, a.Dispatcher)
	go func() {
		if err := webhookWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Webhook worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var carts api.CartStasher
	checks := map[string]api.Pinger{"postgres": a.Store}
	if a.Redis != nil {
		carts = a.Redis
		checks["redis"] = a.Redis
	}

	router := gin.New()
	handler := api.NewHandler(a.FrontDoor, a.Store, carts, cfg.Orders.CartTTL, checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := webhookWorker.Stop(); err != nil {
		logger.Warn("Error stopping webhook worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
