package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/beryozskin/studio-bot/internal/booking"
	appconfig "github.com/beryozskin/studio-bot/internal/config"
	"github.com/beryozskin/studio-bot/internal/loyalty"
	"github.com/beryozskin/studio-bot/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildSessionStore returns the Redis-backed session store when Redis is
// available and an in-process store otherwise. The in-process fallback loses
// sessions on restart, which only costs users an in-flight booking dialog.
func BuildSessionStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) booking.SessionStore {
	if redisClient == nil {
		if logger != nil {
			logger.Warn("redis disabled, booking sessions held in memory")
		}
		return booking.NewMemorySessionStore()
	}
	return booking.NewRedisSessionStore(redisClient, cfg.SessionTTL)
}

// BuildLoyaltyStore picks the loyalty backend: Redis when available, a JSON
// file when configured, an empty file store otherwise.
func BuildLoyaltyStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) loyalty.Store {
	if redisClient != nil {
		return loyalty.NewRedisStore(redisClient)
	}
	if logger != nil {
		logger.Warn("redis disabled, loyalty balances file-backed", "file", cfg.LoyaltyFile)
	}
	return loyalty.NewFileStore(cfg.LoyaltyFile)
}
