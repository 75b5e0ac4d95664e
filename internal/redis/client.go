package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/config"
)

const (
	pingAttempts    = 3
	pingBackoff     = 500 * time.Millisecond
	defaultPoolSize = 10
)

func poolSize(n int) int {
	if n <= 0 {
		return defaultPoolSize
	}
	return n
}

// NewRedisClient connects with the credentials from cfg. Startup retries the ping a few times
// so the api can come up alongside a redis container that is still booting.
func NewRedisClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     poolSize(cfg.RedisPoolSize),
		MinIdleConns: 1,
	})

	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return rdb, nil
		}
		if attempt == pingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(pingBackoff * time.Duration(attempt)):
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("ping redis at %s after %d attempts: %w", cfg.RedisAddr, pingAttempts, err)
}
