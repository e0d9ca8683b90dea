package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/chriskrajewski/rptracker/internal/domain"
	"github.com/chriskrajewski/rptracker/internal/metrics"
)

const (
	ruleCachePrefix = "rule_cache:"
	ruleCacheTTL    = 5 * time.Minute
)

// RuleCacheRepo provides read-through rule caching: Redis → PostgreSQL.
// Intended for config-style reads that tolerate five minutes of
// staleness. The live aggregation path queries the repository directly
// so rule edits take effect on the next poll cycle.
type RuleCacheRepo struct {
	rdb   goredis.Cmdable
	rules domain.RuleRepository
}

// NewRuleCacheRepo creates a new read-through rule cache.
func NewRuleCacheRepo(rdb goredis.Cmdable, rules domain.RuleRepository) *RuleCacheRepo {
	return &RuleCacheRepo{rdb: rdb, rules: rules}
}

// GetActiveRules looks up the rule batch with read-through caching.
// Read path: Redis GET → PostgreSQL query → populate Redis cache.
// Redis failures fall through to PostgreSQL rather than erroring.
func (r *RuleCacheRepo) GetActiveRules(ctx context.Context, platform domain.Platform, serverIDs []string) (map[string][]domain.SearchRule, error) {
	key := cacheKey(platform, serverIDs)

	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var cached map[string][]domain.SearchRule
		if err := json.Unmarshal(data, &cached); err != nil {
			slog.Warn("Failed to unmarshal cached rules, falling through to PostgreSQL",
				"platform", platform, "error", err)
		} else {
			metrics.RuleCacheRedisHits.Inc()
			return cached, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		slog.Warn("Redis rule cache GET failed, falling through to PostgreSQL",
			"platform", platform, "error", err)
	}

	rules, err := r.rules.GetActiveRules(ctx, platform, serverIDs)
	if err != nil {
		return nil, fmt.Errorf("rule lookup failed: %w", err)
	}

	metrics.RuleCachePostgresHits.Inc()

	// Populate Redis cache (best-effort)
	if encoded, err := json.Marshal(rules); err == nil {
		if err := r.rdb.Set(ctx, key, encoded, ruleCacheTTL).Err(); err != nil {
			slog.Warn("Failed to populate Redis rule cache",
				"platform", platform, "error", err)
		}
	}

	return rules, nil
}

// Invalidate removes a cached rule batch. Exposed so the admin surface
// can force a refresh after editing rules.
func (r *RuleCacheRepo) Invalidate(ctx context.Context, platform domain.Platform, serverIDs []string) error {
	if err := r.rdb.Del(ctx, cacheKey(platform, serverIDs)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate rule cache: %w", err)
	}
	return nil
}

// cacheKey is order-insensitive over server IDs so equivalent batches
// share one entry.
func cacheKey(platform domain.Platform, serverIDs []string) string {
	ids := make([]string, len(serverIDs))
	copy(ids, serverIDs)
	sort.Strings(ids)
	return ruleCachePrefix + string(platform) + ":" + strings.Join(ids, ",")
}
