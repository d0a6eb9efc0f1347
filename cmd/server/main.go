package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hyra-backend/internal/config"
	"hyra-backend/internal/database"
	"hyra-backend/internal/events"
	"hyra-backend/internal/handlers"
	"hyra-backend/internal/logger"
	"hyra-backend/internal/middleware"
	"hyra-backend/internal/repository"
	"hyra-backend/internal/router"
	"hyra-backend/internal/services"
	"hyra-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("starting hyra backend", "env", cfg.Env, "store", cfg.StoreDriver)

	// ──── Step 2: Initialize Quiz Store ────
	var store services.QuizStore
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres connection failed", "error", err)
		}
		defer pool.Close()

		if err := database.RunMigrations(pool, cfg.MigrationsDir, log); err != nil {
			log.Fatal("database migration failed", "error", err)
		}
		store = repository.NewQuizRepo(pool)
		log.Info("postgres connected, migrations applied")

	case config.StoreMongo:
		client, err := database.NewMongoClient(cfg.MongoURI)
		if err != nil {
			log.Fatal("mongo connection failed", "error", err)
		}
		defer database.DisconnectMongo(client)

		db := client.Database(cfg.MongoDatabase)
		if err := database.EnsureMongoIndexes(db); err != nil {
			log.Fatal("mongo index creation failed", "error", err)
		}
		store = repository.NewMongoQuizRepo(db)
		log.Info("mongo connected", "database", cfg.MongoDatabase)

	case config.StoreMemory:
		store = repository.NewMemoryQuizRepo()
		log.Warn("using in-memory quiz store, data is lost on restart")
	}

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	// ──── Step 3: Initialize Event Publishers ────
	var publishers events.Fanout
	var wsHub *websocket.Hub

	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatal("redis connection failed", "error", err)
		}
		defer redisClients.Close()

		publishers = append(publishers, events.NewRedisNotifier(redisClients.Publisher))
		wsHub = websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL, log)
		log.Info("redis connected, websocket push enabled")
	} else {
		wsHub = websocket.NewHub(nil, jwtAuth, cfg.FrontendURL, log)
		publishers = append(publishers, wsHub)
		log.Info("REDIS_URL not set, websocket events delivered in-process")
	}
	defer wsHub.Close()

	if cfg.RabbitMQURI != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQURI, cfg.RabbitMQExchange)
		if err != nil {
			log.Fatal("rabbitmq connection failed", "error", err)
		}
		defer amqpPublisher.Close()

		publishers = append(publishers, amqpPublisher)
		log.Info("rabbitmq connected", "exchange", cfg.RabbitMQExchange)
	}

	// ──── Step 4: Initialize Services & Handlers ────
	quizService := services.NewQuizService(store, publishers, log, cfg.ReviewHideAnswers)
	quizHandler := handlers.NewQuizHandler(quizService, log)

	// ──── Step 5: Start HTTP Server ────
	r, stopRouter := router.New(jwtAuth, quizHandler, wsHub, log, router.Options{
		FrontendURL:     cfg.FrontendURL,
		StoreDriver:     cfg.StoreDriver,
		SubmitRateLimit: cfg.SubmitRateLimit,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		stopRouter()
	}()

	log.Info("hyra backend ready", "addr", server.Addr, "api", "/api/v1", "ws", "/api/v1/ws")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", "error", err)
	}
	<-shutdownDone
}
