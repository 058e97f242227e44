package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/plugup/shipment-tracking/pkg/common/config"
	"github.com/plugup/shipment-tracking/pkg/common/database"
	"github.com/plugup/shipment-tracking/pkg/common/kafka"
	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/observability/metrics"
	"github.com/plugup/shipment-tracking/pkg/reconcile"
)

func main() {
	logger.Init("tracking-store")
	cfg := config.Load()

	db, err := database.OpenPostgres("tracking-store", cfg.Store)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.Close(db)

	repo := reconcile.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate tracking tables")
	}

	var locker reconcile.Locker
	rdb, err := database.NewRedis(cfg)
	if err != nil {
		logger.Log.WithError(err).Warn("redis unavailable, falling back to in-process order locks")
		rdb.Close()
		locker = reconcile.NewLocalLocker()
	} else {
		defer rdb.Close()
		locker = reconcile.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
	}

	var events reconcile.Publisher
	if cfg.TrackingEventsTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.TrackingEventsTopic)
		defer producer.Close()
		events = producer
	}

	gate := reconcile.NewGate(repo, locker, events, cfg.StoreWorkers)
	if cfg.TrackingStoreToken == "" {
		logger.Log.Warn("TRACKING_STORE_TOKEN not set, bearer authentication disabled")
	}
	handler := reconcile.NewHTTPHandler(gate, repo, cfg.TrackingStoreToken, cfg.MaxRequestBody)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TrackingDLQTopic != "" {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.TrackingDLQTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		replayer := reconcile.NewReplayer(gate)
		go func() {
			if err := consumer.Consume(ctx, replayer.Handle); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Error("dead-letter consumer stopped")
			}
		}()
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	handler.Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.StorePort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.StorePort,
		}).Info("Tracking Store started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Tracking Store...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Tracking Store stopped")
}
