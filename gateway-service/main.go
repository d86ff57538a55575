package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vrushab-bit/mini-shop/clients/grpc"
	"github.com/vrushab-bit/mini-shop/config"
	"github.com/vrushab-bit/mini-shop/gateway-service/handlers"
	"github.com/vrushab-bit/mini-shop/gateway-service/proxy"
	"github.com/vrushab-bit/mini-shop/logger"
	"github.com/vrushab-bit/mini-shop/middleware"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "gateway-service"

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

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowOrigins))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log))

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/metrics", middleware.PrometheusHandler())

	routes := []proxy.Route{
		{Resource: "users", Target: cfg.Upstream.UserURL},
		{Resource: "products", Target: cfg.Upstream.ProductURL},
		{Resource: "orders", Target: cfg.Upstream.OrderURL},
	}
	if err := proxy.Register(router, routes, cfg.Upstream.CallTimeout, log); err != nil {
		log.Fatal("Failed to initialize proxy routes", zap.Error(err))
	}
	handlers.NewGRPCHandler(userGRPC, productGRPC, log).Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Gateway started",
		zap.String("addr", srv.Addr),
		zap.String("user_url", cfg.Upstream.UserURL),
		zap.String("product_url", cfg.Upstream.ProductURL),
		zap.String("order_url", cfg.Upstream.OrderURL),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
