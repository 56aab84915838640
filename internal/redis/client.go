package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis only carries doctor-lock traffic here: tiny SETNX/EVALSHA
// commands on the reserve hot path. The pool stays small and warm, and
// timeouts are tight so a sick Redis surfaces as a quick busy error
// instead of queueing reservations.
func lockClientOptions(addr, username, password string) *redis.Options {
	return &redis.Options{
		Addr:            addr,
		Username:        username,
		Password:        password,
		DB:              0,
		DialTimeout:     2 * time.Second,
		ReadTimeout:     500 * time.Millisecond,
		WriteTimeout:    500 * time.Millisecond,
		PoolSize:        16,
		MinIdleConns:    2,
		PoolTimeout:     time.Second,
		MaxRetries:      1,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(lockClientOptions(addr, username, password))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
