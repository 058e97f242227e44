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
	"github.com/plugup/shipment-tracking/pkg/company"
	"github.com/plugup/shipment-tracking/pkg/dispatch"
	"github.com/plugup/shipment-tracking/pkg/observability/metrics"
	"github.com/plugup/shipment-tracking/pkg/pipeline"
	"github.com/plugup/shipment-tracking/pkg/status"
	"github.com/plugup/shipment-tracking/pkg/tracking"
	"github.com/plugup/shipment-tracking/pkg/warehouse"
)

func main() {
	logger.Init("tracking-sync")
	cfg := config.Load()
	if err := cfg.ValidateSync(); err != nil {
		logger.Log.WithError(err).Fatal("invalid configuration")
	}

	marketplaces, err := tracking.ParseMarketplaces(cfg.Marketplaces)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid MARKETPLACES")
	}

	table, err := status.LoadTable(cfg.StatusTablePath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load status table")
	}
	normalizer, err := status.NewNormalizer(table)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid status table")
	}
	companies, err := company.Load(cfg.CompanyMappingPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load company mapping")
	}

	db, err := database.OpenPostgres("warehouse", cfg.Warehouse)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to warehouse")
	}
	defer database.Close(db)

	reader, err := warehouse.NewReader(db, cfg.WarehouseTable)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid WAREHOUSE_TABLE")
	}

	var dlq dispatch.Publisher
	if cfg.TrackingDLQTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.TrackingDLQTopic)
		defer producer.Close()
		dlq = producer
	}

	dispatcher := dispatch.New(dispatch.Options{
		BaseURL:    cfg.TrackingStoreURL,
		Token:      cfg.TrackingStoreToken,
		Timeout:    cfg.TrackingStoreTimeout,
		BatchSize:  cfg.BatchSize,
		MaxRetries: cfg.MaxRetryAttempts,
		BaseDelay:  cfg.RetryBaseDelay,
		DLQ:        dlq,
	})

	transformer := pipeline.NewTransformer(normalizer, companies, cfg.Lookback)
	svc := pipeline.NewService(reader, transformer, dispatcher, marketplaces, cfg.Lookback)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	pipeline.NewHTTPHandler(svc).Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.SyncPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.SyncPort,
		}).Info("Tracking Sync started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	go schedule(ctx, svc, cfg.SyncInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Tracking Sync...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Tracking Sync stopped")
}

// schedule runs a sync immediately and then every interval. A zero interval
// leaves runs to the HTTP trigger.
func schedule(ctx context.Context, svc *pipeline.Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	runOnce(ctx, svc)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runOnce(ctx, svc)
		case <-ctx.Done():
			return
		}
	}
}

func runOnce(ctx context.Context, svc *pipeline.Service) {
	if _, err := svc.Run(ctx); err != nil {
		logger.Log.WithError(err).Warn("scheduled sync run did not complete")
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
