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
	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/observability/metrics"
	"github.com/plugup/shipment-tracking/pkg/orders"
	"github.com/plugup/shipment-tracking/pkg/tracking"
	"github.com/plugup/shipment-tracking/pkg/warehouse"
)

func main() {
	logger.Init("order-sync")
	cfg := config.Load()
	if err := cfg.ValidateOrderSync(); err != nil {
		logger.Log.WithError(err).Fatal("invalid configuration")
	}

	marketplaces, err := tracking.ParseMarketplaces(cfg.Marketplaces)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid MARKETPLACES")
	}

	db, err := database.OpenPostgres("warehouse", cfg.Warehouse)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to warehouse")
	}
	defer database.Close(db)

	reader, err := warehouse.NewOrderItemReader(db, cfg.OrderItemsTable)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid WAREHOUSE_ORDER_ITEMS_TABLE")
	}

	sender := orders.NewSender(orders.Options{
		URL:        cfg.OrderWebhookURL,
		Token:      cfg.OrderWebhookToken,
		Timeout:    cfg.OrderWebhookTimeout,
		MaxRetries: cfg.MaxRetryAttempts,
		BaseDelay:  cfg.RetryBaseDelay,
	})
	svc := orders.NewService(reader, sender, marketplaces, cfg.OrderLookback)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	orders.NewHTTPHandler(svc).Register(router)

	// a run posts orders one by one, so it can outlast the default write timeout
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.OrderSyncPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.OrderSyncPort,
		}).Info("Order Sync started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	go schedule(ctx, svc, cfg.OrderSyncInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Order Sync...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Order Sync stopped")
}

// schedule runs immediately and then every interval. A zero interval leaves
// runs to the HTTP trigger.
func schedule(ctx context.Context, svc *orders.Service, interval time.Duration) {
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

func runOnce(ctx context.Context, svc *orders.Service) {
	if _, err := svc.Run(ctx); err != nil {
		logger.Log.WithError(err).Warn("scheduled order sync did not complete")
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
