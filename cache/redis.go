package cache

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisCtx    = context.Background()
	initOnce    sync.Once
	initialized bool
)

// InitRedis connects to Redis using REDIS_ADDR / REDIS_PASSWORD / REDIS_DB.
// When Redis is unreachable the service stays up: rate limiting falls back
// to the in-process limiter and the sweep runs without a distributed lock.
func InitRedis() error {
	initOnce.Do(func() {
		redisAddr := os.Getenv("REDIS_ADDR")
		redisPassword := os.Getenv("REDIS_PASSWORD")
		redisDB := 0
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				redisDB = db
			}
		}
		if redisAddr == "" {
			redisAddr = "localhost:6379"
		}

		client := redis.NewClient(&redis.Options{
			Addr:        redisAddr,
			Password:    redisPassword,
			DB:          redisDB,
			DialTimeout: 3 * time.Second,
			ReadTimeout: 3 * time.Second,
			PoolSize:    10,
		})

		if _, err := client.Ping(redisCtx).Result(); err != nil {
			log.Printf("redis unreachable at %s: %v (running without redis)", redisAddr, err)
			return
		}

		redisClient = client
		initialized = true
		log.Printf("redis connected: %s", redisAddr)
	})
	return nil
}

// GetClient returns the Redis client, or ErrRedisNotAvailable when running
// without Redis.
func GetClient() (*redis.Client, error) {
	if !initialized || redisClient == nil {
		return nil, ErrRedisNotAvailable
	}
	return redisClient, nil
}

// Available reports whether a live Redis connection exists.
func Available() bool {
	return initialized && redisClient != nil
}

// CloseRedis closes the Redis connection if one was established.
func CloseRedis() {
	if redisClient == nil {
		return
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("failed to close redis connection: %v", err)
		return
	}
	log.Println("redis connection closed")
}
