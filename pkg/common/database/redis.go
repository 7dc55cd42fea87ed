package database

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/medisetu/platform/pkg/common/config"
	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

const (
	connectTimeout = 5 * time.Second
	ioTimeout      = 3 * time.Second
)

var (
	redisClient *redis.Client
	redisErr    error
	redisOnce   sync.Once
)

// NewRedis dials a client for the portal store and checks it answers PING.
func NewRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	addr := net.JoinHostPort(cfg.RedisHost, cfg.RedisPort)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  connectTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"addr": addr,
		"db":   cfg.RedisDB,
	}).Info("Connected to Redis")
	return client, nil
}

// GetRedis returns the process-wide client. The first call dials it; a
// failed dial is remembered and returned to every caller.
func GetRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	redisOnce.Do(func() {
		redisClient, redisErr = NewRedis(ctx, cfg)
	})
	return redisClient, redisErr
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
