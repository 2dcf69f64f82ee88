package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hibiken/asynq"

	"github.com/Djiouwairia/RED-Product/internal/api"
	"github.com/Djiouwairia/RED-Product/internal/authz"
	"github.com/Djiouwairia/RED-Product/internal/cache"
	"github.com/Djiouwairia/RED-Product/internal/config"
	"github.com/Djiouwairia/RED-Product/internal/db"
	"github.com/Djiouwairia/RED-Product/internal/email"
	"github.com/Djiouwairia/RED-Product/internal/services"
	"github.com/Djiouwairia/RED-Product/internal/storage"
	"github.com/Djiouwairia/RED-Product/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'worker', 'all' (default)")

func mustPolicy(variant string) authz.Policy {
	policy, err := authz.ForVariant(variant)
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	return policy
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	ctxIdx, cancelIdx := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(ctxIdx, mongoDb); err != nil {
		cancelIdx()
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIdx()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	taskClient := tasks.NewClient(redisClient)

	var wg sync.WaitGroup
	var apiSrv *http.Server
	var workerSrv *asynq.Server

	log.Printf("Starting application in '%s' mode", cfg.RunMode)

	apiMode := func() {
		router := api.SetupRouter(cfg, mongoDb, redisClient, taskClient)
		apiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("API listening on :%s", cfg.ApiPort)
			if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("API ListenAndServe error: %v", err)
			}
			log.Println("API server stopped")
		}()
	}

	workerMode := func() {
		// Email sender: Redis mock for end-to-end tests, SMTP (or logging)
		// otherwise, plus an optional file logger.
		var primarySender email.Sender
		if os.Getenv("MOCK_SERVICES") == "true" {
			log.Println("MOCK_SERVICES enabled: Using Redis email sender")
			primarySender = email.NewRedisSender(redisClient, cfg)
		} else {
			primarySender = email.NewSMTPSender(cfg)
		}
		compositeSender := email.NewCompositeEmailSender(primarySender)
		if cfg.EmailLogFile != "" {
			fileSender, err := email.NewFileEmailSender(cfg.EmailLogFile)
			if err != nil {
				log.Printf("WARNING: Failed to initialize file email sender: %v", err)
			} else {
				compositeSender.AddSender(fileSender)
			}
		}

		var s3Client *s3.Client
		if cfg.AwsS3Bucket != "" {
			s3Client, err = storage.NewS3Client(cfg)
			if err != nil {
				log.Fatalf("Failed to initialize S3 client for worker: %v", err)
			}
		}

		// The worker applies processed images through the hotel service. No
		// policy check happens on that path, so the variant does not matter
		// here; the default is fine.
		hotelService := services.NewHotelService(mongoDb, mustPolicy(cfg.HotelWritePolicy), nil, taskClient)
		processor := tasks.NewTaskProcessor(cfg, compositeSender, s3Client, hotelService)

		srv, mux := tasks.SetupServer(redisClient, processor)
		workerSrv = srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Println("Background worker starting")
			if err := srv.Run(mux); err != nil {
				log.Fatalf("Background worker error: %v", err)
			}
			log.Println("Background worker stopped")
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "worker":
		workerMode()
	case "all":
		apiMode()
		workerMode()
	default:
		log.Fatalf("Invalid run mode: %s", cfg.RunMode)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal: %s. Shutting down gracefully...", sig)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if apiSrv != nil {
		if err := apiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
	}
	if workerSrv != nil {
		workerSrv.Shutdown()
	}

	wg.Wait()
	log.Println("Shutdown complete")
}
