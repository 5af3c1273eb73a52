package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisOpTimeout = 3 * time.Second

// ConnectRedis parses redisURL, connects and pings once.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// MonitorRedis pings the client every interval until ctx is done and logs when
// the connection drops or recovers. go-redis reconnects on its own; this only
// makes the outage visible.
func MonitorRedis(ctx context.Context, client *redis.Client, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()

		switch {
		case err != nil && healthy:
			log.Warn().Err(err).Msg("redis connection lost")
			healthy = false
		case err == nil && !healthy:
			log.Info().Msg("redis connection restored")
			healthy = true
		}
	}
}

// TryReserveKey marks key as used with SetNX. It returns true the first time
// the key is seen and false while an earlier reservation is still alive. The
// key expires after ttl.
func TryReserveKey(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (bool, error) {
	if client == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	set, err := client.SetNX(timeoutCtx, key, "reserved", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return set, nil
}

// ReleaseKey removes a reservation so the same key can be retried.
func ReleaseKey(ctx context.Context, client *redis.Client, key string) error {
	if client == nil {
		return fmt.Errorf("redis client is nil")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := client.Del(timeoutCtx, key).Err(); err != nil {
		return fmt.Errorf("redis Del failed: %w", err)
	}
	return nil
}
