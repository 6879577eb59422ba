package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"typed-todo/internal/cache"
	"typed-todo/internal/config"
	"typed-todo/internal/database"
	"typed-todo/internal/queue"
	"typed-todo/internal/repository"
	"typed-todo/internal/routes"
	"typed-todo/internal/service"
	"typed-todo/internal/worker"
	"typed-todo/pkg/logger"
)

func main() {
	config.LoadEnvFile(".env")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Get()
	logger.SetLevel(cfg.LogLevel)

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "Database not available; exiting", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Error(ctx, "Schema migration failed", "error", err)
		os.Exit(1)
	}

	// Redis is optional: without it every read goes to the database.
	var todoCache service.Cache
	var evictor *cache.TodoCache
	if cfg.RedisURL != "" {
		client, err := cache.NewClient(ctx, cfg.RedisURL, cfg.RedisPoolSize)
		if err != nil {
			logger.Warn(ctx, "Redis unavailable; running without cache", "error", err)
		} else {
			defer client.Close()
			evictor = cache.New(client, cfg.CacheTTLDuration())
			todoCache = evictor
		}
	}

	// Kafka is optional as well: change events feed the delayed cache eviction.
	var events service.Publisher
	workerRunning := false
	queue.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaPartitions)
	if pub := queue.NewPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic); pub != nil {
		defer pub.Close()
		events = pub
		if evictor != nil {
			w := worker.New(evictor, cfg.EvictionDelay())
			go w.Run(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
			workerRunning = true
		}
	}

	var opts []service.Option
	if evictor != nil && !workerRunning {
		// Cache without the Kafka worker: the service repeats its own evictions.
		opts = append(opts, service.WithDelayedEviction(cfg.EvictionDelay()))
	}
	svc := service.NewTodoService(repository.NewTodos(db), todoCache, events, opts...)

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: routes.Router(routes.Deps{
			Service:        svc,
			DB:             db,
			JWTSecret:      cfg.JWTSecret,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort, "auth", cfg.JWTSecret != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Shutting down server")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Server shutdown error", "error", err)
	}
	logger.Info(ctx, "Server stopped")
}
