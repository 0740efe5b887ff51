package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"order-processing-system/internal/alert"
	"order-processing-system/internal/config"
	"order-processing-system/internal/database"
	"order-processing-system/internal/handlers"
	"order-processing-system/internal/metrics"
	"order-processing-system/internal/order"
	"order-processing-system/internal/queue"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	redisQueue, err := queue.NewRedisQueue(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisQueue.Close()

	metricsCollector := metrics.New()
	circuitBreaker := alert.NewCircuitBreaker()
	rateLimiter := alert.NewRateLimiter(100, time.Minute)

	dispatcher := alert.NewDispatcher(db, redisQueue, metricsCollector, circuitBreaker, rateLimiter, logger, cfg.AlertWebhookURL)

	if err := dispatcher.RecoverPendingAlerts(context.Background()); err != nil {
		logger.Warn("failed to recover pending alerts", zap.Error(err))
	}

	orderService := order.NewService(db, redisQueue, metricsCollector, logger)
	orderWorker := order.NewWorker(orderService, redisQueue, logger)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	for i := 0; i < cfg.WorkerCount; i++ {
		go dispatcher.StartWorker(workerCtx, i)
	}
	for i := 0; i < cfg.OrderWorkers; i++ {
		go orderWorker.Run(workerCtx, i)
	}

	h := handlers.New(db, orderService, redisQueue, dispatcher, metricsCollector, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/orders", h.CreateOrder)
	r.Post("/orders/async", h.CreateOrderAsync)
	r.Get("/orders/{id}", h.GetOrder)

	r.Post("/products", h.CreateProduct)
	r.Get("/products/{id}", h.GetProduct)
	r.Put("/products/{id}", h.UpdateProduct)
	r.Delete("/products/{id}", h.DeleteProduct)
	r.Get("/products", h.ListProducts)

	r.Post("/ingredients", h.CreateIngredient)
	r.Get("/ingredients/{id}", h.GetIngredient)
	r.Put("/ingredients/{id}", h.UpdateIngredient)
	r.Post("/ingredients/{id}/restock", h.RestockIngredient)
	r.Delete("/ingredients/{id}", h.DeleteIngredient)
	r.Get("/ingredients", h.ListIngredients)

	r.Get("/alerts", h.ListAlerts)
	r.Post("/alerts/{id}/replay", h.ReplayAlert)

	r.Get("/metrics", h.GetMetrics)
	r.Get("/health", h.HealthCheck)
	r.Post("/admin/seed", h.Seed)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancelWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
