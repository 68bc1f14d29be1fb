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

	"library-service/config"
	"library-service/internal/api"
	"library-service/internal/broker"
	"library-service/internal/redisclient"
	"library-service/internal/service"
	"library-service/internal/store"
	"library-service/internal/util"
	"library-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting library service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("library-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	ctx := context.Background()
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database schema up to date")
	}

	readiness := map[string]api.Pinger{"postgres": db}

	// Redis backs caching and idempotency only; the service runs without it.
	txnOpts := service.TransactionServiceOptions{
		CacheTTL:       cfg.Business.CacheTTL,
		IdempotencyTTL: cfg.Business.IdempotencyTTL,
	}
	var cache service.Cache
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache and idempotency", zap.Error(err))
	} else {
		defer redisClient.Close()
		logger.Info("Redis connected")
		cache = redisClient
		txnOpts.Cache = redisClient
		txnOpts.Idempotency = redisClient
		readiness["redis"] = redisClient
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicLibrary)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)
	txnOpts.Events = eventPublisher

	transactionService := service.NewTransactionService(db, txnOpts)
	bookService := service.NewBookService(db, cache, eventPublisher, cfg.Business.CacheTTL)
	genreService := service.NewGenreService(db)
	authService := service.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if cfg.Database.SeedGenres {
		if err := genreService.SeedDefaultGenres(ctx); err != nil {
			logger.Error("Failed to seed genres", zap.Error(err))
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	cacheConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicLibrary, cfg.Kafka.ConsumerGroup)
	cacheWorker := worker.NewCacheWorker(cacheConsumer, transactionService, bookService)
	go func() {
		if err := cacheWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Cache worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Transactions: transactionService,
		Books:        bookService,
		Genres:       genreService,
		Auth:         authService,
		Readiness:    readiness,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := cacheWorker.Stop(); err != nil {
		logger.Warn("Error stopping cache worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
