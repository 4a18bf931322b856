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

	"github.com/gin-gonic/gin"

	"reimbursement-service/config"
	"reimbursement-service/internal/api"
	"reimbursement-service/internal/broker"
	"reimbursement-service/internal/provider"
	"reimbursement-service/internal/redisclient"
	"reimbursement-service/internal/service"
	"reimbursement-service/internal/store"
	"reimbursement-service/internal/util"
	"reimbursement-service/internal/worker"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting reimbursement service")

	if err := cfg.ValidateProvider(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	tp, err := util.InitTracer("reimbursement-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicClaims)
	defer producer.Close()

	syncProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSync)
	defer syncProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(producer)
	syncPublisher := broker.NewEventPublisher(syncProducer)

	providerClient, err := provider.NewClient(cfg.Provider.Endpoint, provider.Credentials{
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		RefreshToken: cfg.Provider.RefreshToken,
		Marketplace:  cfg.Provider.Marketplace,
	})
	if err != nil {
		log.Fatalf("Failed to initialize provider client: %v", err)
	}

	fetcher := provider.NewFetcher(providerClient, cfg.Sync.PollInterval, cfg.Sync.PollTimeout)
	ingestor := service.NewEventIngestor(db)
	analyzer := service.NewClaimAnalyzer(db, eventPublisher)
	orchestrator := service.NewSyncOrchestrator(fetcher, ingestor, analyzer, db, redisClient, eventPublisher)
	refresher := service.NewStatusRefresher(db, cfg.Sync.RetentionDays)
	claimService := service.NewClaimService(db, redisClient, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	refresherWorker := worker.NewRefresherWorker(refresher, cfg.Sync.RefreshInterval)
	go func() {
		if err := refresherWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Refresher worker error: %v", err)
		}
	}()

	syncConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSync, cfg.Kafka.ConsumerGroup)
	syncWorker := worker.NewSyncRequestWorker(syncConsumer, orchestrator)
	go func() {
		if err := syncWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Sync request worker error: %v", err)
		}
	}()

	scheduledWorker := worker.NewScheduledSyncWorker(orchestrator, cfg.Sync.ScheduleInterval, 30*24*time.Hour)
	go func() {
		if err := scheduledWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Scheduled sync worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(orchestrator, claimService, syncPublisher)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	syncWorker.Stop()

	log.Println("Server exited")
}
