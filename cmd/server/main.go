package main

import (
	"cicdassess/internal/cache"
	"cicdassess/internal/config"
	"cicdassess/internal/logger"
	"cicdassess/internal/observability"
	"cicdassess/internal/repository"
	"cicdassess/internal/service"
	"cicdassess/internal/transport/rest"
	"cicdassess/internal/transport/ws"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Mode, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	observability.InitMetrics()
	shutdownTracing := observability.InitTracing(ctx, log, cfg.Tracing, cfg.Server.Mode)

	if cfg.AI.IsEnabled() {
		log.Info("AI gateway configured", "model", cfg.AI.Model, "endpoint", cfg.AI.Endpoint())
	} else {
		log.Warn("AI_GATEWAY_API_KEY not set, using mock generator")
	}

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}
	log.Info("Connected to MongoDB", "database", cfg.Mongo.Database)

	db := mongoClient.Database(cfg.Mongo.Database)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis", "error", err)
	}
	log.Info("Connected to Redis", "addr", cfg.Redis.Addr())

	// Initialize WebSocket hub
	wsHub := ws.NewHub(log)

	// Initialize repositories
	feedbackRepo := repository.NewFeedbackRepo(db)
	analysisRepo := repository.NewAnalysisRepo(db)

	idxCtx, idxCancel := context.WithTimeout(ctx, 10*time.Second)
	defer idxCancel()
	if err := feedbackRepo.EnsureIndexes(idxCtx); err != nil {
		log.Fatal("Failed to create feedback indexes", "error", err)
	}

	// Initialize caches
	analysisCache := cache.NewAnalysisCache(rdb)
	refreshQueue := cache.NewRefreshQueue(rdb)

	// Initialize services
	generator := service.NewTextGenerator(cfg.AI)
	authSvc := service.NewAuthService(cfg.Auth)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, refreshQueue, cfg.Survey, log)
	analysisSvc := service.NewAnalysisService(feedbackRepo, analysisRepo, analysisCache, generator, cfg.AI.Concurrency(), log)
	exportSvc := service.NewExportService(feedbackSvc, analysisSvc)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	feedbackSvc.SetBroadcaster(wsHub)
	analysisSvc.SetBroadcaster(wsHub)

	workerCtx, stopWorker := context.WithCancel(ctx)
	worker := service.NewRefreshWorker(refreshQueue, analysisSvc, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	router := rest.NewRouter(&rest.Container{
		AuthService:     authSvc,
		FeedbackService: feedbackSvc,
		AnalysisService: analysisSvc,
		ExportService:   exportSvc,
		WSHub:           wsHub,
		CORS:            cfg.CORS,
		Logger:          log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port, "mode", cfg.Server.Mode, "host", cfg.Auth.HostUsername)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe failed", "error", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	stopWorker()
	<-workerDone

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Tracer shutdown failed", "error", err)
	}

	log.Info("Server exited")
}
