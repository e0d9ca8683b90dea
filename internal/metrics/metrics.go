// Package metrics defines the Prometheus instrumentation for the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream API Metrics
var (
	// UpstreamRequestsTotal tracks outbound platform API calls by platform, operation and status
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total upstream platform API requests by platform, operation and status",
		},
		[]string{"platform", "operation", "status"},
	)

	// UpstreamRequestDuration tracks upstream request latency in seconds
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream platform API request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"platform", "operation"},
	)

	// StreamPagesFetched tracks pages fetched per live-pool request
	StreamPagesFetched = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stream_pages_fetched",
			Help:    "Pages fetched per live stream pool request",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"platform"},
	)
)

// Cache Metrics
var (
	// CacheHits tracks TTL cache hits by cache name
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttl_cache_hits_total",
			Help: "TTL cache hits by cache name",
		},
		[]string{"cache"},
	)

	// CacheMisses tracks TTL cache misses by cache name
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttl_cache_misses_total",
			Help: "TTL cache misses by cache name",
		},
		[]string{"cache"},
	)

	// RuleCacheRedisHits tracks rule lookups served from Redis
	RuleCacheRedisHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rule_cache_redis_hits_total",
			Help: "Rule config lookups served from the Redis cache",
		},
	)

	// RuleCachePostgresHits tracks rule lookups that fell through to Postgres
	RuleCachePostgresHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rule_cache_postgres_hits_total",
			Help: "Rule config lookups that fell through to PostgreSQL",
		},
	)
)

// Aggregation Metrics
var (
	// ServersAggregated tracks servers processed per aggregation request
	ServersAggregated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servers_aggregated_total",
			Help: "Servers processed by the live aggregation endpoints, by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	// MatchedStreams tracks streams matched per aggregation request
	MatchedStreams = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matched_streams_total",
			Help: "Streams matched by the rule matcher, by platform",
		},
		[]string{"platform"},
	)

	// PollerCycles tracks poller fetch cycles by outcome
	PollerCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poller_cycles_total",
			Help: "Client poller fetch cycles by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)
)

// ObserveUpstream records one upstream API call outcome and latency.
func ObserveUpstream(platform, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(platform, operation, status).Inc()
	UpstreamRequestDuration.WithLabelValues(platform, operation).Observe(time.Since(start).Seconds())
}
