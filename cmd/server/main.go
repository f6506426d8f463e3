package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/covenant-ai/be-contracts/internal/cache"
	"github.com/covenant-ai/be-contracts/internal/client"
	"github.com/covenant-ai/be-contracts/internal/config"
	"github.com/covenant-ai/be-contracts/internal/database"
	"github.com/covenant-ai/be-contracts/internal/events"
	"github.com/covenant-ai/be-contracts/internal/handler"
	"github.com/covenant-ai/be-contracts/internal/logger"
	"github.com/covenant-ai/be-contracts/internal/repository"
	"github.com/covenant-ai/be-contracts/internal/service"
	"github.com/covenant-ai/be-contracts/internal/signature"
	"github.com/covenant-ai/be-contracts/internal/worker/expiry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting contracts service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run migrations and connect to the database
	if err := database.Migrate(cfg.Database.URL); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	db, err := database.New(ctx, database.Config{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Repositories
	contractRepo := repository.NewContractRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Read-through contract cache
	var contractCache cache.ContractCache = cache.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		contractCache = cache.NewRedisCache(redisClient, log.Logger)
		log.Info().Str("redis_addr", cfg.Redis.Addr).Msg("Redis contract cache enabled")
	}
	store := service.NewCachedStore(contractRepo, contractCache)

	// Domain event dispatcher
	dispatcher := events.NewDispatcher(log.Logger)
	if cfg.NATS.URL != "" {
		publisher, err := client.NewEventPublisher(cfg.NATS.URL, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer publisher.Close()
		dispatcher.Register(publisher)
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("NATS event publishing enabled")
	}

	// Signature verification
	verifier := signature.NewVerifier(signature.NewStaticKeyResolver())

	// Lifecycle engine. Template rendering, notification delivery and final
	// artifact generation are external collaborators; none is wired in this
	// deployment, so template-backed creation fails cleanly and the other two
	// side effects are skipped.
	contractService := service.NewContractService(
		store, auditRepo, verifier, nil, nil, nil, dispatcher, log)

	// Background expiry sweep
	go expiry.Run(ctx, contractService, cfg.Sweep.Interval, log)
	log.Info().Dur("interval", cfg.Sweep.Interval).Msg("Expiry sweeper started")

	// HTTP server
	httpHandler := handler.NewHTTPHandler(contractService, log)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
