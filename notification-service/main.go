package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vrushab-bit/mini-shop/clients/rest"
	"github.com/vrushab-bit/mini-shop/config"
	"github.com/vrushab-bit/mini-shop/logger"
	"github.com/vrushab-bit/mini-shop/middleware"
	"github.com/vrushab-bit/mini-shop/notification-service/kafka"
	"github.com/vrushab-bit/mini-shop/notification-service/notifier"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "notification-service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.Options{Service: serviceName, Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	shutdown, err := middleware.InitTracing(serviceName, cfg.Tracing.Endpoint())
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	saramaConsumer, err := kafka.NewSaramaConsumer(cfg.Kafka.Broker, log)
	if err != nil {
		log.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer saramaConsumer.Close()

	users := rest.NewUserClient(cfg.Upstream.UserURL, cfg.Upstream.CallTimeout, log)
	consumer := kafka.NewConsumer(saramaConsumer, cfg.Kafka.Topic, notifier.New(users, log).OrderCreated, log)

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		if err := consumer.Run(ctx); err != nil {
			log.Error("Kafka consumer stopped", zap.Error(err))
		}
	}()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/metrics", middleware.PrometheusHandler())

	srv := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	log.Info("Notification Service started", zap.String("addr", srv.Addr), zap.String("topic", cfg.Kafka.Topic))

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	<-consumed

	log.Info("Server exited")
}
