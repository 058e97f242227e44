package database

import (
	"context"
	"fmt"
	"time"

	"github.com/plugup/shipment-tracking/pkg/common/config"
	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// NewRedis returns a client and an error when the first ping fails.
// The client is returned either way so callers may decide to degrade.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Error("Failed to connect to Redis")
		return client, err
	}
	logger.Log.Info("Connected to Redis")
	return client, nil
}
