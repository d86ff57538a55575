package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vrushab-bit/mini-shop/circuitbreaker"
	"github.com/vrushab-bit/mini-shop/config"
	"github.com/vrushab-bit/mini-shop/database"
	"github.com/vrushab-bit/mini-shop/logger"
	"github.com/vrushab-bit/mini-shop/middleware"
	"github.com/vrushab-bit/mini-shop/product-service/cache"
	"github.com/vrushab-bit/mini-shop/product-service/handlers"
	"github.com/vrushab-bit/mini-shop/product-service/repository"
	"github.com/vrushab-bit/mini-shop/product-service/store"
	"github.com/vrushab-bit/mini-shop/proto/product"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const serviceName = "product-service"

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

	shutdownTracing, err := middleware.InitTracing(serviceName, cfg.Tracing.Endpoint())
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database.DSN(), repository.Schema, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// the catalog keeps serving from Postgres when redis is down
	var productCache *cache.ProductCache
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, log)
	if err != nil {
		log.Warn("Redis unavailable, caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		productCache = cache.NewProductCache(redisClient, cfg.Redis.TTL)
	}

	catalog := store.New(
		repository.NewProductRepository(db),
		productCache,
		circuitbreaker.NewCircuitBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.ResetTimeout),
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
	handlers.NewProductHandler(catalog, log).Register(router)

	restSrv := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		if err := restSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	log.Info("Product Service REST API started", zap.String("addr", restSrv.Addr))

	grpcListener, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		log.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	product.RegisterProductServiceServer(grpcServer, handlers.NewProductGRPCServer(catalog, log))

	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	log.Info("Product Service gRPC server started", zap.String("addr", grpcListener.Addr().String()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	gracefulShutdown(restSrv, grpcServer, log)
}

func gracefulShutdown(restSrv *http.Server, grpcServer *grpc.Server, log *zap.Logger) {
	log.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := restSrv.Shutdown(ctx); err != nil {
		log.Error("REST server forced to shutdown", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		grpcServer.Stop()
	}

	log.Info("Servers exited")
}
