package live

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriskrajewski/rptracker/internal/domain"
)

type fakeKickAPI struct {
	configured bool
	authErr    error

	categories map[string]int64
	byCategory map[int64][]domain.Stream
	top        []domain.Stream

	authCalls     int
	categoryCalls int
	streamCalls   int
	topCalls      int
}

func (f *fakeKickAPI) Configured() bool { return f.configured }

func (f *fakeKickAPI) Authenticate(_ context.Context) (string, error) {
	f.authCalls++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "token", nil
}

func (f *fakeKickAPI) ResolveCategoryID(_ context.Context, _, name string) (int64, error) {
	f.categoryCalls++
	id, ok := f.categories[name]
	if !ok {
		return 0, domain.ErrCategoryNotFound
	}
	return id, nil
}

func (f *fakeKickAPI) StreamsByCategory(_ context.Context, _ string, categoryID int64) ([]domain.Stream, error) {
	f.streamCalls++
	return f.byCategory[categoryID], nil
}

func (f *fakeKickAPI) TopStreams(_ context.Context, _ string) ([]domain.Stream, error) {
	f.topCalls++
	return f.top, nil
}

func kickTitleRule(serverID, keyword string) domain.SearchRule {
	rule := titleRule(serverID, keyword)
	rule.Platform = domain.PlatformKick
	return rule
}

func TestKickAggregate_CategoryPool(t *testing.T) {
	client := &fakeKickAPI{
		configured: true,
		categories: map[string]int64{"gta rp": 15, "gta v": 16},
		byCategory: map[int64][]domain.Stream{
			15: {
				{StreamerID: "alice", StreamerName: "alice", Title: "rp", ViewerCount: 50},
				{StreamerID: "bob", StreamerName: "bob", Title: "rp", ViewerCount: 30},
			},
			16: {
				// Duplicate slug across categories collapses to one entry.
				{StreamerID: "alice", StreamerName: "alice", Title: "rp", ViewerCount: 50},
				{StreamerID: "carol", StreamerName: "carol", Title: "driving", ViewerCount: 20},
			},
		},
	}
	rules := &fakeRuleRepo{rules: map[string][]domain.SearchRule{
		"A": {categoryRule("A", "GTA RP"), categoryRule("A", "GTA V")},
	}}
	agg := NewKickAggregator(client, rules, clockwork.NewFakeClock())

	resp, err := agg.Aggregate(context.Background(), []string{"A"})
	require.NoError(t, err)

	a := resp.Servers["A"]
	assert.Equal(t, 3, a.StreamCount)
	assert.Equal(t, 100, a.ViewerCount)
	require.NotEmpty(t, a.TopStreams)
	assert.Equal(t, "alice", a.TopStreams[0].Name)
	// Kick summaries omit game info fields.
	assert.Empty(t, a.TopStreams[0].GameName)
}

func TestKickAggregate_TitleIncludeExclude(t *testing.T) {
	client := &fakeKickAPI{
		configured: true,
		top: []domain.Stream{
			{StreamerID: "alice", StreamerName: "alice", Title: "NoPixel grind", ViewerCount: 40},
			{StreamerID: "bob", StreamerName: "bob", Title: "NoPixel public lobby", ViewerCount: 90},
			{StreamerID: "carol", StreamerName: "carol", Title: "cooking", ViewerCount: 10},
		},
	}
	rules := &fakeRuleRepo{rules: map[string][]domain.SearchRule{
		"A": {kickTitleRule("A", "nopixel"), kickTitleRule("A", "!public")},
	}}
	agg := NewKickAggregator(client, rules, clockwork.NewFakeClock())

	resp, err := agg.Aggregate(context.Background(), []string{"A"})
	require.NoError(t, err)

	a := resp.Servers["A"]
	require.Equal(t, 1, a.StreamCount)
	assert.Equal(t, "alice", a.TopStreams[0].Name)
}

func TestKickAggregate_SharesPoolsAcrossServers(t *testing.T) {
	client := &fakeKickAPI{
		configured: true,
		categories: map[string]int64{"gta rp": 15},
		byCategory: map[int64][]domain.Stream{15: {{StreamerID: "alice", StreamerName: "alice"}}},
		top:        []domain.Stream{{StreamerID: "bob", StreamerName: "bob", Title: "nopixel"}},
	}
	rules := &fakeRuleRepo{rules: map[string][]domain.SearchRule{
		"A": {categoryRule("A", "GTA RP")},
		"B": {categoryRule("B", "GTA RP")},
		"C": {kickTitleRule("C", "nopixel")},
		"D": {kickTitleRule("D", "nopixel")},
	}}
	agg := NewKickAggregator(client, rules, clockwork.NewFakeClock())

	_, err := agg.Aggregate(context.Background(), []string{"A", "B", "C", "D"})
	require.NoError(t, err)

	// One auth, one category resolution and one fetch per distinct
	// pool, regardless of how many servers share it.
	assert.Equal(t, 1, client.authCalls)
	assert.Equal(t, 1, client.categoryCalls)
	assert.Equal(t, 1, client.streamCalls)
	assert.Equal(t, 1, client.topCalls)
}

func TestKickAggregate_CategoryLookupFailureSkipsCategory(t *testing.T) {
	client := &fakeKickAPI{
		configured: true,
		categories: map[string]int64{"gta rp": 15},
		byCategory: map[int64][]domain.Stream{
			15: {{StreamerID: "alice", StreamerName: "alice", ViewerCount: 10}},
		},
	}
	rules := &fakeRuleRepo{rules: map[string][]domain.SearchRule{
		"A": {categoryRule("A", "GTA RP"), categoryRule("A", "Unknown Category")},
	}}
	agg := NewKickAggregator(client, rules, clockwork.NewFakeClock())

	resp, err := agg.Aggregate(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Servers["A"].StreamCount)
}

func TestKickAggregate_NoConfigIsolation(t *testing.T) {
	client := &fakeKickAPI{
		configured: true,
		top:        []domain.Stream{{StreamerID: "alice", StreamerName: "alice", Title: "nopixel", ViewerCount: 5}},
	}
	rules := &fakeRuleRepo{rules: map[string][]domain.SearchRule{
		"A": {kickTitleRule("A", "nopixel")},
	}}
	agg := NewKickAggregator(client, rules, clockwork.NewFakeClock())

	resp, err := agg.Aggregate(context.Background(), []string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Servers["A"].StreamCount)
	assert.Empty(t, resp.Servers["A"].Error)
	assert.Equal(t, 0, resp.Servers["B"].StreamCount)
	assert.NotEmpty(t, resp.Servers["B"].Error)
}

func TestKickAggregate_Unconfigured(t *testing.T) {
	agg := NewKickAggregator(&fakeKickAPI{}, &fakeRuleRepo{}, clockwork.NewFakeClock())

	_, err := agg.Aggregate(context.Background(), []string{"A"})
	assert.Error(t, err)
}

func TestKickAggregate_AuthFailure(t *testing.T) {
	client := &fakeKickAPI{configured: true, authErr: errors.New("denied")}
	agg := NewKickAggregator(client, &fakeRuleRepo{}, clockwork.NewFakeClock())

	_, err := agg.Aggregate(context.Background(), []string{"A"})
	assert.Error(t, err)
}
