package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"campaign_workflow/utils"

	"github.com/redis/go-redis/v9"
)

type idempotencyKeyCtx struct{}

// WithIdempotencyKey attaches a caller-supplied idempotency key to ctx. The
// service reserves it before mutating and refuses a second call that carries
// the same key for the same campaign and operation.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKeyFrom returns the key attached by WithIdempotencyKey, if any.
func IdempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

// IdempotencyGuard reserves idempotency keys. Reserve returns false when the
// key is already held.
type IdempotencyGuard interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

func idempotencyScope(tenantID, campaignID, op, key string) string {
	if campaignID == "" {
		campaignID = "-"
	}
	return fmt.Sprintf("idem:%s:%s:%s:%s", tenantID, campaignID, op, key)
}

// RedisIdempotencyGuard keeps reservations in Redis so they hold across
// service instances.
type RedisIdempotencyGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyGuard(client *redis.Client, ttl time.Duration) *RedisIdempotencyGuard {
	return &RedisIdempotencyGuard{client: client, ttl: ttl}
}

func (g *RedisIdempotencyGuard) Reserve(ctx context.Context, key string) (bool, error) {
	return utils.TryReserveKey(ctx, g.client, key, g.ttl)
}

func (g *RedisIdempotencyGuard) Release(ctx context.Context, key string) error {
	return utils.ReleaseKey(ctx, g.client, key)
}

// MemoryIdempotencyGuard keeps reservations in process memory. It is installed
// whenever REDIS_URL is unset, whatever the store driver; reservations are then
// not shared between instances.
type MemoryIdempotencyGuard struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	keys map[string]time.Time // key -> expiry
}

func NewMemoryIdempotencyGuard(ttl time.Duration) *MemoryIdempotencyGuard {
	return &MemoryIdempotencyGuard{ttl: ttl, now: time.Now, keys: make(map[string]time.Time)}
}

func (g *MemoryIdempotencyGuard) Reserve(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiry, ok := g.keys[key]; ok && now.Before(expiry) {
		return false, nil
	}
	g.keys[key] = now.Add(g.ttl)

	// Expired keys are swept on write; the map stays bounded by live keys.
	for k, expiry := range g.keys {
		if !now.Before(expiry) {
			delete(g.keys, k)
		}
	}
	return true, nil
}

func (g *MemoryIdempotencyGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.keys, key)
	g.mu.Unlock()
	return nil
}
