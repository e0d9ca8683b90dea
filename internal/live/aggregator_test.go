package live

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriskrajewski/rptracker/internal/domain"
	apperrors "github.com/chriskrajewski/rptracker/internal/errors"
)

type fakeTwitchAPI struct {
	configured bool
	authErr    error
	gameErr    error
	fetchErr   error
	pool       []domain.Stream

	authCalls  int
	gameCalls  int
	fetchCalls int
}

func (f *fakeTwitchAPI) Configured() bool { return f.configured }

func (f *fakeTwitchAPI) Authenticate(_ context.Context) (string, error) {
	f.authCalls++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "token", nil
}

func (f *fakeTwitchAPI) ResolveGameID(_ context.Context, _, _ string) (string, error) {
	f.gameCalls++
	if f.gameErr != nil {
		return "", f.gameErr
	}
	return "32982", nil
}

func (f *fakeTwitchAPI) FetchStreams(_ context.Context, _, _ string) ([]domain.Stream, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.pool, nil
}

type fakeRuleRepo struct {
	rules map[string][]domain.SearchRule
	err   error
	calls int
}

func (f *fakeRuleRepo) GetActiveRules(_ context.Context, _ domain.Platform, serverIDs []string) (map[string][]domain.SearchRule, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string][]domain.SearchRule, len(serverIDs))
	for _, id := range serverIDs {
		out[id] = f.rules[id]
	}
	return out, nil
}

func titleRule(serverID, keyword string) domain.SearchRule {
	return domain.SearchRule{
		ServerID: serverID,
		Platform: domain.PlatformTwitch,
		Keyword:  keyword,
		RuleType: domain.RuleTitle,
		Active:   true,
	}
}

func categoryRule(serverID, keyword string) domain.SearchRule {
	return domain.SearchRule{
		ServerID: serverID,
		Platform: domain.PlatformKick,
		Keyword:  keyword,
		RuleType: domain.RuleCategory,
		Active:   true,
	}
}

func TestTwitchAggregate_EndToEnd(t *testing.T) {
	client := &fakeTwitchAPI{
		configured: true,
		pool: []domain.Stream{
			{StreamerID: "alice", StreamerName: "Alice", Title: "NoPixel RP Live", ViewerCount: 120},
			{StreamerID: "bob", StreamerName: "Bob", Title: "Random Stream", ViewerCount: 80},
		},
	}
	rules := &fakeRuleRepo{rules: map[string][]domain.SearchRule{
		"A": {titleRule("A", "nopixel")},
	}}
	agg := NewTwitchAggregator(client, rules, "Grand Theft Auto V", clockwork.NewFakeClock())

	resp, err := agg.Aggregate(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, resp.Servers, 2)

	a := resp.Servers["A"]
	assert.Equal(t, 1, a.StreamCount)
	assert.Equal(t, 120, a.ViewerCount)
	require.Len(t, a.TopStreams, 1)
	assert.Equal(t, "Alice", a.TopStreams[0].Name)
	assert.Empty(t, a.Error)

	// A server with no configuration is reported individually; the
	// batch as a whole still succeeds.
	b := resp.Servers["B"]
	assert.Equal(t, 0, b.StreamCount)
	assert.NotEmpty(t, b.Error)
}

func TestTwitchAggregate_FetchesOncePerBatch(t *testing.T) {
	client := &fakeTwitchAPI{configured: true}
	rules := &fakeRuleRepo{rules: map[string][]domain.SearchRule{
		"A": {titleRule("A", "a")},
		"B": {titleRule("B", "b")},
		"C": {titleRule("C", "c")},
	}}
	agg := NewTwitchAggregator(client, rules, "Grand Theft Auto V", clockwork.NewFakeClock())

	_, err := agg.Aggregate(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)

	// Auth, game resolution, pool fetch and rule load all happen once
	// for the whole batch, never per server.
	assert.Equal(t, 1, client.authCalls)
	assert.Equal(t, 1, client.gameCalls)
	assert.Equal(t, 1, client.fetchCalls)
	assert.Equal(t, 1, rules.calls)
}

func TestTwitchAggregate_Unconfigured(t *testing.T) {
	agg := NewTwitchAggregator(&fakeTwitchAPI{}, &fakeRuleRepo{}, "GTA V", clockwork.NewFakeClock())

	_, err := agg.Aggregate(context.Background(), []string{"A"})
	require.Error(t, err)

	appErr, ok := apperrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 500, appErr.HTTPStatus())
}

func TestTwitchAggregate_AuthFailure(t *testing.T) {
	client := &fakeTwitchAPI{configured: true, authErr: errors.New("denied")}
	agg := NewTwitchAggregator(client, &fakeRuleRepo{}, "GTA V", clockwork.NewFakeClock())

	_, err := agg.Aggregate(context.Background(), []string{"A"})
	assert.Error(t, err)
}

func TestTwitchAggregate_GameResolutionFailure(t *testing.T) {
	client := &fakeTwitchAPI{configured: true, gameErr: domain.ErrGameNotFound}
	agg := NewTwitchAggregator(client, &fakeRuleRepo{}, "GTA V", clockwork.NewFakeClock())

	_, err := agg.Aggregate(context.Background(), []string{"A"})
	assert.Error(t, err)
}

func TestTwitchAggregate_RuleStoreUnreachable(t *testing.T) {
	client := &fakeTwitchAPI{configured: true, pool: []domain.Stream{
		{StreamerID: "alice", StreamerName: "Alice", Title: "NoPixel", ViewerCount: 10},
	}}
	rules := &fakeRuleRepo{err: errors.New("connection refused")}
	agg := NewTwitchAggregator(client, rules, "GTA V", clockwork.NewFakeClock())

	resp, err := agg.Aggregate(context.Background(), []string{"A", "B"})
	require.NoError(t, err)

	// Nothing matches silently when config is unavailable: every
	// server reports an explicit no-config condition instead.
	for _, id := range []string{"A", "B"} {
		assert.Equal(t, 0, resp.Servers[id].StreamCount)
		assert.NotEmpty(t, resp.Servers[id].Error)
	}
}

func TestTwitchAggregate_PoolFetchFailureDegrades(t *testing.T) {
	client := &fakeTwitchAPI{configured: true, fetchErr: errors.New("timeout")}
	rules := &fakeRuleRepo{rules: map[string][]domain.SearchRule{
		"A": {titleRule("A", "nopixel")},
	}}
	agg := NewTwitchAggregator(client, rules, "GTA V", clockwork.NewFakeClock())

	resp, err := agg.Aggregate(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Servers["A"].StreamCount)
	assert.Empty(t, resp.Servers["A"].Error)
}
