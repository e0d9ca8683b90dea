package live

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/chriskrajewski/rptracker/internal/domain"
	apperrors "github.com/chriskrajewski/rptracker/internal/errors"
	"github.com/chriskrajewski/rptracker/internal/match"
	"github.com/chriskrajewski/rptracker/internal/metrics"
)

// KickAPI is the slice of the Kick client the aggregator needs.
type KickAPI interface {
	Configured() bool
	Authenticate(ctx context.Context) (string, error)
	ResolveCategoryID(ctx context.Context, token, name string) (int64, error)
	StreamsByCategory(ctx context.Context, token string, categoryID int64) ([]domain.Stream, error)
	TopStreams(ctx context.Context, token string) ([]domain.Stream, error)
}

// KickAggregator builds per-server live summaries from the Kick API.
//
// Kick has no single pool fetch. When a server has category rules, its
// candidate pool is the merge of every category rule's lookup,
// deduplicated by channel slug, and every pool member counts as a
// match. When it only has title rules, the pool is the unscoped top
// streams and a stream must satisfy at least one include keyword and
// zero exclude keywords. Category pools and the top pool are fetched at
// most once per request and shared across servers.
type KickAggregator struct {
	client KickAPI
	rules  domain.RuleRepository
	clock  clockwork.Clock
}

func NewKickAggregator(client KickAPI, rules domain.RuleRepository, clock clockwork.Clock) *KickAggregator {
	return &KickAggregator{
		client: client,
		rules:  rules,
		clock:  clock,
	}
}

// Aggregate runs the batched aggregation flow for the requested servers.
func (a *KickAggregator) Aggregate(ctx context.Context, serverIDs []string) (*Response, error) {
	if !a.client.Configured() {
		return nil, apperrors.ConfigurationError("kick credentials not configured", domain.ErrPlatformDisabled)
	}

	token, err := a.client.Authenticate(ctx)
	if err != nil {
		return nil, apperrors.InternalError("kick authentication failed", err)
	}

	rulesByServer := a.loadRules(ctx, serverIDs)

	fetch := newKickFetchCache(a.client, token)

	now := a.clock.Now()
	servers := make(map[string]domain.ServerSummary, len(serverIDs))
	for _, serverID := range serverIDs {
		rs := match.Compile(rulesByServer[serverID])
		if rs.Empty() {
			servers[serverID] = noConfigSummary(now)
			metrics.ServersAggregated.WithLabelValues("kick", "no_config").Inc()
			continue
		}

		var matches []domain.Stream
		if len(rs.Category) > 0 {
			matches = match.Dedupe(fetch.categoryPool(ctx, rs.Category))
		} else {
			matches = match.TitleInclude(fetch.topPool(ctx), rs)
		}

		servers[serverID] = match.Summarize(matches, false, now)
		metrics.ServersAggregated.WithLabelValues("kick", "ok").Inc()
		metrics.MatchedStreams.WithLabelValues("kick").Add(float64(len(matches)))
	}

	return &Response{Servers: servers, Timestamp: now}, nil
}

func (a *KickAggregator) loadRules(ctx context.Context, serverIDs []string) map[string][]domain.SearchRule {
	rulesByServer, err := a.rules.GetActiveRules(ctx, domain.PlatformKick, serverIDs)
	if err != nil {
		slog.Error("Failed to load kick search rules", "error", err)
		return map[string][]domain.SearchRule{}
	}
	return rulesByServer
}

// kickFetchCache memoizes per-request pool fetches so servers sharing a
// category (or the unscoped top pool) do not trigger repeat upstream
// calls within one aggregation request.
type kickFetchCache struct {
	client KickAPI
	token  string

	byCategory map[string][]domain.Stream
	top        []domain.Stream
	topFetched bool
}

func newKickFetchCache(client KickAPI, token string) *kickFetchCache {
	return &kickFetchCache{
		client:     client,
		token:      token,
		byCategory: make(map[string][]domain.Stream),
	}
}

// categoryPool merges the lookups for every category keyword. A failed
// category lookup is skipped so the remaining categories still
// contribute; any fetch failure yields fewer candidates, never an error.
func (f *kickFetchCache) categoryPool(ctx context.Context, categories []string) []domain.Stream {
	var pool []domain.Stream
	for _, name := range categories {
		streams, ok := f.byCategory[name]
		if !ok {
			streams = f.fetchCategory(ctx, name)
			f.byCategory[name] = streams
		}
		pool = append(pool, streams...)
	}
	return pool
}

func (f *kickFetchCache) fetchCategory(ctx context.Context, name string) []domain.Stream {
	categoryID, err := f.client.ResolveCategoryID(ctx, f.token, name)
	if err != nil {
		slog.Warn("Kick category resolution failed", "category", name, "error", err)
		return nil
	}
	streams, err := f.client.StreamsByCategory(ctx, f.token, categoryID)
	if err != nil {
		slog.Warn("Kick category stream fetch failed", "category", name, "error", err)
		return nil
	}
	return streams
}

func (f *kickFetchCache) topPool(ctx context.Context) []domain.Stream {
	if f.topFetched {
		return f.top
	}
	f.topFetched = true

	streams, err := f.client.TopStreams(ctx, f.token)
	if err != nil {
		slog.Warn("Kick top stream fetch failed, continuing with empty pool", "error", err)
		return nil
	}
	f.top = streams
	return f.top
}
