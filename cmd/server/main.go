package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quillsign/quillsign-server/internal/api"
	"github.com/quillsign/quillsign-server/internal/config"
	"github.com/quillsign/quillsign-server/internal/identity"
	"github.com/quillsign/quillsign-server/internal/jobs"
	"github.com/quillsign/quillsign-server/internal/notify"
	"github.com/quillsign/quillsign-server/internal/observ"
	"github.com/quillsign/quillsign-server/internal/repository"
	"github.com/quillsign/quillsign-server/internal/service"
	"github.com/quillsign/quillsign-server/internal/storage"
	"github.com/quillsign/quillsign-server/internal/token"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	defer logger.Sync()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	ctx := context.Background()

	// Email queue. Without a Redis address, jobs go straight to the log.
	var dispatcher notify.Dispatcher
	var worker *notify.Worker
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		dispatcher = notify.NewRedisDispatcher(redisClient, cfg.Redis.Queue, logger)
		worker = notify.NewWorker(redisClient, cfg.Redis.Queue, &notify.LogSender{Logger: logger}, logger)
	} else {
		dispatcher = &notify.LogDispatcher{Logger: logger}
	}

	templates, err := notify.LoadTemplates(nil)
	if err != nil {
		log.Fatalf("Failed to load email templates: %v", err)
	}

	// Object storage for drawn and uploaded signatures. Without an
	// endpoint, signatures stay in process memory.
	var objects storage.ObjectStore
	if cfg.Storage.Endpoint != "" {
		store, err := storage.NewMinioStore(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			log.Fatalf("Failed to set up object storage: %v", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("Failed to ensure storage bucket: %v", err)
		}
		objects = store
	} else {
		objects = storage.NewMemoryStore()
	}

	tokens := token.NewIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.EmailTokenTTLHours)*time.Hour)
	idp := &identity.LogProvider{Logger: logger}

	// Create service
	svc := service.NewDefaultService(repo, dispatcher, templates, tokens, objects, idp, logger, service.Options{
		JWTSecret:         cfg.Auth.JWTSecret,
		BaseURL:           cfg.BaseURL,
		DeletionGraceDays: cfg.Jobs.DeletionGraceDays,
	})

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Background workers
	if worker != nil {
		go worker.Run(ctx)
	}
	scheduler := jobs.NewScheduler(
		svc,
		logger,
		time.Duration(cfg.Jobs.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Jobs.ReminderAgeHours)*time.Hour,
	)
	go scheduler.Run(ctx)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
