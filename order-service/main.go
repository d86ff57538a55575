package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vrushab-bit/mini-shop/clients/grpc"
	"github.com/vrushab-bit/mini-shop/clients/rest"
	"github.com/vrushab-bit/mini-shop/config"
	"github.com/vrushab-bit/mini-shop/database"
	"github.com/vrushab-bit/mini-shop/logger"
	"github.com/vrushab-bit/mini-shop/middleware"
	"github.com/vrushab-bit/mini-shop/order-service/handlers"
	"github.com/vrushab-bit/mini-shop/order-service/kafka"
	"github.com/vrushab-bit/mini-shop/order-service/repository"
	"github.com/vrushab-bit/mini-shop/order-service/service"
	"github.com/vrushab-bit/mini-shop/order-service/validator"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "order-service"

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

	decimal.MarshalJSONWithoutQuotes = true

	shutdown, err := middleware.InitTracing(serviceName, cfg.Tracing.Endpoint())
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database.DSN(), repository.Schema, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	grpcOpts := grpc.Options{
		Timeout:      cfg.Upstream.CallTimeout,
		MaxFailures:  cfg.Breaker.MaxFailures,
		ResetTimeout: cfg.Breaker.ResetTimeout,
	}
	userGRPC, err := grpc.NewUserClient(cfg.Upstream.UserGRPC, grpcOpts, log)
	if err != nil {
		log.Fatal("Failed to initialize User gRPC client", zap.Error(err))
	}
	defer userGRPC.Close()

	productGRPC, err := grpc.NewProductClient(cfg.Upstream.ProductGRPC, grpcOpts, log)
	if err != nil {
		log.Fatal("Failed to initialize Product gRPC client", zap.Error(err))
	}
	defer productGRPC.Close()

	userHTTP := rest.NewUserClient(cfg.Upstream.UserURL, cfg.Upstream.CallTimeout, log)
	productHTTP := rest.NewProductClient(cfg.Upstream.ProductURL, cfg.Upstream.CallTimeout, log)

	var events service.EventPublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewSyncProducer(cfg.Kafka.Broker, log)
		if err != nil {
			log.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		publisher := kafka.NewPublisher(producer, cfg.Kafka.Topic, log)
		defer publisher.Close()
		events = publisher
	}

	orderService := service.NewOrderService(
		repository.NewOrderRepository(db),
		validator.NewUserValidator(userGRPC, userHTTP, log),
		validator.NewProductValidator(productGRPC, productHTTP, log),
		events,
		log,
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", middleware.DBHealthCheck(serviceName, db))
	router.GET("/metrics", middleware.PrometheusHandler())
	handlers.NewOrderHandler(orderService, log).Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Order Service started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
