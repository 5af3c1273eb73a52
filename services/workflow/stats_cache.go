package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"campaign_workflow/services/versionstore"
	"campaign_workflow/utils"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// =====================================================================================
// TENANT STATISTICS CACHE
// =====================================================================================
// getStatistics aggregates over every campaign of a tenant, so dashboards polling it
// would otherwise run one aggregation per request.
// - L1: in-process map with a short TTL
// - L2: Redis, shared between instances (optional)
// Every committed revision invalidates both layers for its tenant, so a reader only
// sees stale numbers for writes committed by another instance within the TTL.
// =====================================================================================

// StatsCache caches per-tenant statistics. Readers take the Generation before
// reading the store and hand it to Set, which drops the numbers when an
// Invalidate ran in between.
type StatsCache interface {
	Get(ctx context.Context, tenantID string) (*versionstore.Statistics, bool)
	Generation(tenantID string) uint64
	Set(ctx context.Context, tenantID string, generation uint64, stats *versionstore.Statistics)
	Invalidate(ctx context.Context, tenantID string)
}

const statsRedisTimeout = 500 * time.Millisecond

type cachedStats struct {
	stats     *versionstore.Statistics
	expiresAt time.Time
}

// TieredStatsCache is a memory + Redis StatsCache. A nil Redis client makes it
// memory only.
type TieredStatsCache struct {
	memory  sync.Map // tenantID -> *cachedStats
	redis   *redis.Client

	mu          sync.Mutex
	generations map[string]uint64

	ttl     time.Duration
	now     func() time.Time
	metrics *utils.Metrics
	log     zerolog.Logger
}

func NewTieredStatsCache(client *redis.Client, ttl time.Duration, metrics *utils.Metrics, log zerolog.Logger) *TieredStatsCache {
	return &TieredStatsCache{
		redis:       client,
		generations: make(map[string]uint64),
		ttl:         ttl,
		now:         time.Now,
		metrics:     metrics,
		log:         log.With().Str("component", "stats_cache").Logger(),
	}
}

func statsRedisKey(tenantID string) string {
	return "campaign:stats:" + tenantID
}

func (c *TieredStatsCache) Get(ctx context.Context, tenantID string) (*versionstore.Statistics, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	if cached, ok := c.memory.Load(tenantID); ok {
		entry := cached.(*cachedStats)
		if c.now().Before(entry.expiresAt) {
			c.metrics.StatsCacheHits.WithLabelValues("memory").Inc()
			return copyStats(entry.stats), true
		}
		c.memory.Delete(tenantID)
	}

	if c.redis != nil {
		generation := c.Generation(tenantID)
		redisCtx, cancel := context.WithTimeout(ctx, statsRedisTimeout)
		defer cancel()

		data, err := c.redis.Get(redisCtx, statsRedisKey(tenantID)).Bytes()
		if err == nil {
			var stats versionstore.Statistics
			if err := json.Unmarshal(data, &stats); err == nil {
				c.mu.Lock()
				if c.generations[tenantID] == generation {
					c.storeMemory(tenantID, &stats)
				}
				c.mu.Unlock()
				c.metrics.StatsCacheHits.WithLabelValues("redis").Inc()
				return copyStats(&stats), true
			}
		} else if err != redis.Nil {
			c.log.Debug().Err(err).Str("tenant_id", tenantID).Msg("redis read failed, treating as miss")
		}
	}

	c.metrics.StatsCacheMisses.Inc()
	return nil, false
}

func (c *TieredStatsCache) Generation(tenantID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[tenantID]
}

func (c *TieredStatsCache) Set(ctx context.Context, tenantID string, generation uint64, stats *versionstore.Statistics) {
	if c.ttl <= 0 || stats == nil {
		return
	}
	c.mu.Lock()
	if c.generations[tenantID] != generation {
		c.mu.Unlock()
		return
	}
	c.storeMemory(tenantID, stats)
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	redisCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsRedisTimeout)
	defer cancel()
	if err := c.redis.Set(redisCtx, statsRedisKey(tenantID), data, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Str("tenant_id", tenantID).Msg("redis write failed")
		return
	}
	// An Invalidate that ran during the write may have deleted the key before
	// it was set.
	if c.Generation(tenantID) != generation {
		c.redis.Del(redisCtx, statsRedisKey(tenantID))
	}
}

func (c *TieredStatsCache) Invalidate(ctx context.Context, tenantID string) {
	c.mu.Lock()
	c.generations[tenantID]++
	c.memory.Delete(tenantID)
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	redisCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsRedisTimeout)
	defer cancel()
	if err := c.redis.Del(redisCtx, statsRedisKey(tenantID)).Err(); err != nil {
		c.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to invalidate cached statistics")
	}
}

func (c *TieredStatsCache) storeMemory(tenantID string, stats *versionstore.Statistics) {
	c.memory.Store(tenantID, &cachedStats{
		stats:     copyStats(stats),
		expiresAt: c.now().Add(c.ttl),
	})
}

func copyStats(in *versionstore.Statistics) *versionstore.Statistics {
	out := *in
	out.ByStatus = make(map[string]int64, len(in.ByStatus))
	for k, v := range in.ByStatus {
		out.ByStatus[k] = v
	}
	return &out
}
