package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Postgres describes one PostgreSQL connection.
type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
}

func (p Postgres) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		p.Host, p.User, p.Password, p.DB, p.Port, p.SSLMode,
	)
}

type Config struct {
	// Server
	ServerHost     string
	SyncPort       string
	StorePort      string
	OrderSyncPort  string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Warehouse (enriched marketplace orders)
	Warehouse      Postgres
	WarehouseTable string

	// Tracking store database
	Store Postgres

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
	LockWait      time.Duration

	// Kafka
	KafkaBrokers        []string
	KafkaGroupID        string
	TrackingDLQTopic    string
	TrackingEventsTopic string

	// Tracking store endpoint
	TrackingStoreURL     string
	TrackingStoreToken   string
	TrackingStoreTimeout time.Duration
	MaxRetryAttempts     int
	RetryBaseDelay       time.Duration

	// Sync run
	Lookback     time.Duration
	BatchSize    int
	SyncInterval time.Duration
	Marketplaces []string

	// Order webhook sync
	OrderItemsTable     string
	OrderWebhookURL     string
	OrderWebhookToken   string
	OrderWebhookTimeout time.Duration
	OrderLookback       time.Duration
	OrderSyncInterval   time.Duration

	// Editable tables
	StatusTablePath    string
	CompanyMappingPath string

	StoreWorkers int
}

func Load() *Config {
	return &Config{
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		SyncPort:       getEnv("SYNC_PORT", "8090"),
		StorePort:      getEnv("STORE_PORT", "8091"),
		OrderSyncPort:  getEnv("ORDER_SYNC_PORT", "8092"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		Warehouse: Postgres{
			Host:     getEnv("WAREHOUSE_POSTGRES_HOST", "localhost"),
			Port:     getEnv("WAREHOUSE_POSTGRES_PORT", "5432"),
			User:     getEnv("WAREHOUSE_POSTGRES_USER", "warehouse"),
			Password: getEnv("WAREHOUSE_POSTGRES_PASSWORD", ""),
			DB:       getEnv("WAREHOUSE_POSTGRES_DB", "warehouse"),
			SSLMode:  getEnv("WAREHOUSE_POSTGRES_SSLMODE", "disable"),
		},
		WarehouseTable: getEnv("WAREHOUSE_TABLE", "marketplace_orders_enriched"),

		Store: Postgres{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "tracking"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DB:       getEnv("POSTGRES_DB", "tracking"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		LockTTL:       getDuration("LOCK_TTL", 30*time.Second),
		LockWait:      getDuration("LOCK_WAIT", 5*time.Second),

		KafkaBrokers:        getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "shipment-tracking"),
		TrackingDLQTopic:    getEnv("TRACKING_DLQ_TOPIC", "shipment-tracking-dlq"),
		TrackingEventsTopic: getEnv("TRACKING_EVENTS_TOPIC", "shipment-tracking-events"),

		TrackingStoreURL:     strings.TrimRight(getEnv("TRACKING_STORE_URL", ""), "/"),
		TrackingStoreToken:   getEnv("TRACKING_STORE_TOKEN", ""),
		TrackingStoreTimeout: getDuration("TRACKING_STORE_TIMEOUT", 30*time.Second),
		MaxRetryAttempts:     getIntEnv("MAX_RETRY_ATTEMPTS", 3),
		RetryBaseDelay:       getDuration("RETRY_BASE_DELAY", time.Second),

		Lookback:     time.Duration(getIntEnv("LOOKBACK_MINUTES", 20)) * time.Minute,
		BatchSize:    getIntEnv("BATCH_SIZE", 100),
		SyncInterval: getDuration("SYNC_INTERVAL", 15*time.Minute),
		Marketplaces: getStringSliceEnv("MARKETPLACES", []string{"meli", "fala", "walm", "cenc"}),

		OrderItemsTable:     getEnv("WAREHOUSE_ORDER_ITEMS_TABLE", "marketplace_order_items"),
		OrderWebhookURL:     getEnv("ORDER_WEBHOOK_URL", ""),
		OrderWebhookToken:   getEnv("ORDER_WEBHOOK_TOKEN", ""),
		OrderWebhookTimeout: getDuration("ORDER_WEBHOOK_TIMEOUT", 30*time.Second),
		OrderLookback:       time.Duration(getIntEnv("ORDER_LOOKBACK_MINUTES", 65)) * time.Minute,
		OrderSyncInterval:   getDuration("ORDER_SYNC_INTERVAL", time.Hour),

		StatusTablePath:    getEnv("STATUS_TABLE_PATH", ""),
		CompanyMappingPath: getEnv("COMPANY_MAPPING_PATH", ""),

		StoreWorkers: getIntEnv("STORE_WORKERS", 8),
	}
}

// ValidateSync reports every variable the sync job cannot run without.
func (c *Config) ValidateSync() error {
	var missing []string
	if c.TrackingStoreURL == "" {
		missing = append(missing, "TRACKING_STORE_URL")
	}
	if c.TrackingStoreToken == "" {
		missing = append(missing, "TRACKING_STORE_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	return nil
}

// ValidateOrderSync reports every variable the order sync cannot run without.
func (c *Config) ValidateOrderSync() error {
	var missing []string
	if c.OrderWebhookURL == "" {
		missing = append(missing, "ORDER_WEBHOOK_URL")
	}
	if c.OrderWebhookToken == "" {
		missing = append(missing, "ORDER_WEBHOOK_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
