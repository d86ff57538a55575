package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vrushab-bit/mini-shop/config"
	"github.com/vrushab-bit/mini-shop/database"
	"github.com/vrushab-bit/mini-shop/logger"
	"github.com/vrushab-bit/mini-shop/middleware"
	"github.com/vrushab-bit/mini-shop/proto/user"
	"github.com/vrushab-bit/mini-shop/user-service/handlers"
	"github.com/vrushab-bit/mini-shop/user-service/repository"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const serviceName = "user-service"

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

	db, err := database.Open(context.Background(), cfg.Database.DSN(), repository.Schema, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewUserRepository(db)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", middleware.DBHealthCheck(serviceName, db))
	router.GET("/metrics", middleware.PrometheusHandler())
	handlers.NewUserHandler(repo, log).Register(router)

	restSrv := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		if err := restSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	log.Info("User Service REST API started", zap.String("addr", restSrv.Addr))

	grpcListener, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		log.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	user.RegisterUserServiceServer(grpcServer, handlers.NewUserGRPCServer(repo, log))

	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	log.Info("User Service gRPC server started", zap.String("addr", grpcListener.Addr().String()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := restSrv.Shutdown(ctx); err != nil {
		log.Error("REST server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	log.Info("Servers exited")
}
