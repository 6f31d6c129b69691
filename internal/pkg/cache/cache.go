package cache

import (
	"context"
	"log"
	"time"

	"github.com/ManuelReschke/CoinFox/internal/pkg/config"
	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
)

// SetupCache connects to the Redis compatible cache (Dragonfly in production).
// A failed ping is logged; callers degrade to lock-free, counter-free
// operation instead of refusing to start.
func SetupCache(cfg config.CacheConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to cache at %s: %v", cfg.Addr(), err)
	} else {
		log.Printf("Successfully connected to cache: %s", pong)
	}
	return client
}

// NewFiberStorage returns a fiber.Storage on the same cache, used by the
// rate limiter so limits hold across instances. The storage pings on
// creation and panics when the cache is down; nil is returned instead and
// fiber falls back to in-memory storage.
func NewFiberStorage(cfg config.CacheConfig) (storage fiber.Storage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: Could not create cache storage for rate limiting: %v", r)
			storage = nil
		}
	}()
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: cfg.DB,
		Reset:    false,
	})
}
