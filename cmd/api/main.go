package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/punchamoorthee/vendingops/internal/api"
	"github.com/punchamoorthee/vendingops/internal/config"
	"github.com/punchamoorthee/vendingops/internal/events"
	"github.com/punchamoorthee/vendingops/internal/service"
	"github.com/punchamoorthee/vendingops/internal/session"
	"github.com/punchamoorthee/vendingops/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Layers
	db, err := store.NewStore(cfg.DBSource)
	if err != nil {
		logger.Fatal("unable to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema bootstrap failed", zap.Error(err))
	}

	var lease session.Lease = session.NewGuard()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("unable to reach redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		lease = session.NewRedisGuard(rdb, cfg.MachineID, cfg.SessionLeaseTTL)
		logger.Info("session lease stored in redis", zap.String("machine_id", cfg.MachineID))
	}
	hub := session.NewHub(lease, logger.Named("session"), cfg.AllowedOrigins...)

	observers := []service.SettlementObserver{hub}
	if cfg.KafkaBrokers != "" {
		publisher := events.NewPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), logger.Named("events"))
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("event publisher close failed", zap.Error(err))
			}
		}()
		observers = append(observers, publisher)
		logger.Info("publishing order events", zap.String("topic", cfg.KafkaTopic))
	}

	payments := service.NewPaymentService(db, logger.Named("payments"),
		service.WithObservers(observers...),
		service.WithTimeout(cfg.SettlementTimeout),
	)
	handler := api.NewHandler(payments, db, logger.Named("http"))
	limiter := rate.NewLimiter(rate.Limit(cfg.PaymentRateLimit), cfg.PaymentRateBurst)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler, hub, limiter, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
