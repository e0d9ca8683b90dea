// Package live orchestrates the per-platform live aggregation flow:
// authenticate once, resolve the platform game context once, fetch the
// stream pool once, load rule config once for the whole batch, then
// apply the matcher per server. Auth and pool fetches are never
// repeated per server; that batching is the efficiency core of the
// design.
package live

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chriskrajewski/rptracker/internal/domain"
	apperrors "github.com/chriskrajewski/rptracker/internal/errors"
	"github.com/chriskrajewski/rptracker/internal/match"
	"github.com/chriskrajewski/rptracker/internal/metrics"
)

// CacheControl is the edge-cache contract for the aggregation
// endpoints: a 30 second shared TTL with stale-while-revalidate. This
// is a documented contract, not an incidental header.
const CacheControl = "public, s-maxage=30, stale-while-revalidate=60"

// errNoConfig is the per-server error string reported when a server has
// no active search rules. The batch still succeeds for its siblings.
const errNoConfig = "no stream search configuration found"

// Response is the envelope returned by the aggregation endpoints.
type Response struct {
	Servers   map[string]domain.ServerSummary `json:"servers"`
	Timestamp time.Time                       `json:"timestamp"`
}

// TwitchAPI is the slice of the Twitch client the aggregator needs.
type TwitchAPI interface {
	Configured() bool
	Authenticate(ctx context.Context) (string, error)
	ResolveGameID(ctx context.Context, token, gameName string) (string, error)
	FetchStreams(ctx context.Context, token, gameID string) ([]domain.Stream, error)
}

// TwitchAggregator builds per-server live summaries from the Twitch
// stream pool.
type TwitchAggregator struct {
	client   TwitchAPI
	rules    domain.RuleRepository
	gameName string
	clock    clockwork.Clock
}

func NewTwitchAggregator(client TwitchAPI, rules domain.RuleRepository, gameName string, clock clockwork.Clock) *TwitchAggregator {
	return &TwitchAggregator{
		client:   client,
		rules:    rules,
		gameName: gameName,
		clock:    clock,
	}
}

// Aggregate runs the batched aggregation flow for the requested
// servers. Missing credentials, auth failure and game resolution
// failure abort the whole request; everything downstream degrades
// per server instead.
func (a *TwitchAggregator) Aggregate(ctx context.Context, serverIDs []string) (*Response, error) {
	if !a.client.Configured() {
		return nil, apperrors.ConfigurationError("twitch credentials not configured", domain.ErrPlatformDisabled)
	}

	token, err := a.client.Authenticate(ctx)
	if err != nil {
		return nil, apperrors.InternalError("twitch authentication failed", err)
	}

	gameID, err := a.client.ResolveGameID(ctx, token, a.gameName)
	if err != nil {
		return nil, apperrors.InternalError("failed to resolve game", err).WithField("game", a.gameName)
	}

	// Pool fetch failures degrade to an empty pool so the batch can
	// still report per-server no-config conditions.
	pool, err := a.client.FetchStreams(ctx, token, gameID)
	if err != nil {
		slog.Warn("Twitch stream pool fetch failed, continuing with empty pool", "error", err)
		pool = nil
	}

	rulesByServer := a.loadRules(ctx, serverIDs)

	now := a.clock.Now()
	servers := make(map[string]domain.ServerSummary, len(serverIDs))
	for _, serverID := range serverIDs {
		rs := match.Compile(rulesByServer[serverID])
		if rs.Empty() {
			servers[serverID] = noConfigSummary(now)
			metrics.ServersAggregated.WithLabelValues("twitch", "no_config").Inc()
			continue
		}

		matches := match.Streams(pool, rs)
		servers[serverID] = match.Summarize(matches, true, now)
		metrics.ServersAggregated.WithLabelValues("twitch", "ok").Inc()
		metrics.MatchedStreams.WithLabelValues("twitch").Add(float64(len(matches)))
	}

	return &Response{Servers: servers, Timestamp: now}, nil
}

// loadRules loads the batch config with a single query. An unreachable
// store yields an empty map so every server reports an explicit
// no-config condition rather than silently matching everything.
func (a *TwitchAggregator) loadRules(ctx context.Context, serverIDs []string) map[string][]domain.SearchRule {
	rulesByServer, err := a.rules.GetActiveRules(ctx, domain.PlatformTwitch, serverIDs)
	if err != nil {
		slog.Error("Failed to load twitch search rules", "error", err)
		return map[string][]domain.SearchRule{}
	}
	return rulesByServer
}

func noConfigSummary(now time.Time) domain.ServerSummary {
	return domain.ServerSummary{
		StreamCount: 0,
		ViewerCount: 0,
		TopStreams:  []domain.MatchedStream{},
		LastUpdated: now,
		Error:       errNoConfig,
	}
}
