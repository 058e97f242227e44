package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRACKING_STORE_URL", "")
	t.Setenv("MARKETPLACES", "")

	cfg := Load()
	assert.Equal(t, 20*time.Minute, cfg.Lookback)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxRetryAttempts)
	assert.Equal(t, []string{"meli", "fala", "walm", "cenc"}, cfg.Marketplaces)
	assert.Equal(t, 65*time.Minute, cfg.OrderLookback)
	assert.Equal(t, time.Hour, cfg.OrderSyncInterval)
	assert.Equal(t, 30*time.Second, cfg.OrderWebhookTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOOKBACK_MINUTES", "45")
	t.Setenv("MARKETPLACES", "walm, cenc ,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TRACKING_STORE_URL", "https://store.example.com/")

	cfg := Load()
	assert.Equal(t, 45*time.Minute, cfg.Lookback)
	assert.Equal(t, []string{"walm", "cenc"}, cfg.Marketplaces)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "https://store.example.com", cfg.TrackingStoreURL)
}

func TestValidateSyncListsAllMissing(t *testing.T) {
	cfg := &Config{BatchSize: 100}
	err := cfg.ValidateSync()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRACKING_STORE_URL")
	assert.Contains(t, err.Error(), "TRACKING_STORE_TOKEN")

	cfg.TrackingStoreURL = "https://store"
	cfg.TrackingStoreToken = "secret"
	assert.NoError(t, cfg.ValidateSync())
}

func TestValidateOrderSyncListsAllMissing(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateOrderSync()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDER_WEBHOOK_URL")
	assert.Contains(t, err.Error(), "ORDER_WEBHOOK_TOKEN")

	cfg.OrderWebhookURL = "https://hooks.example.com/orders"
	cfg.OrderWebhookToken = "secret"
	assert.NoError(t, cfg.ValidateOrderSync())
}
