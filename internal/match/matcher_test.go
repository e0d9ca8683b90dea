package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriskrajewski/rptracker/internal/domain"
)

func titleRule(keyword string) domain.SearchRule {
	return domain.SearchRule{Keyword: keyword, RuleType: domain.RuleTitle, Active: true}
}

func categoryRule(keyword string) domain.SearchRule {
	return domain.SearchRule{Keyword: keyword, RuleType: domain.RuleCategory, Active: true}
}

func tagRule(keyword string) domain.SearchRule {
	return domain.SearchRule{Keyword: keyword, RuleType: domain.RuleTag, Active: true}
}

func stream(name, title string, viewers int) domain.Stream {
	return domain.Stream{
		StreamerID:   name,
		StreamerName: name,
		Title:        title,
		ViewerCount:  viewers,
	}
}

func TestCompile_NormalizesKeywords(t *testing.T) {
	rs := Compile([]domain.SearchRule{
		titleRule("  NoPixel  "),
		titleRule(""),
		titleRule("   "),
		categoryRule("GTA RP"),
		tagRule("Roleplay"),
	})

	assert.Equal(t, []string{"nopixel"}, rs.Title)
	assert.Equal(t, []string{"gta rp"}, rs.Category)
	assert.Equal(t, []string{"roleplay"}, rs.Tag)
	assert.Empty(t, rs.Exclude)
}

func TestCompile_ExcludePrefix(t *testing.T) {
	rs := Compile([]domain.SearchRule{
		titleRule("nopixel"),
		titleRule("!public"),
		titleRule("!"),
	})

	assert.Equal(t, []string{"nopixel"}, rs.Title)
	assert.Equal(t, []string{"public"}, rs.Exclude)
}

func TestCompile_SkipsInactiveRules(t *testing.T) {
	rule := titleRule("nopixel")
	rule.Active = false

	rs := Compile([]domain.SearchRule{rule})
	assert.True(t, rs.Empty())
}

func TestCompile_ExcludeOnlyIsEmpty(t *testing.T) {
	rs := Compile([]domain.SearchRule{titleRule("!public")})
	assert.True(t, rs.Empty())
}

func TestStreams_TitleSubstringCaseInsensitive(t *testing.T) {
	pool := []domain.Stream{
		stream("alice", "NOPIXEL 4.0 grind", 100),
		stream("bob", "Random Stream", 50),
		stream("carol", "chilling on NoPixel tonight", 25),
	}

	matches := Streams(pool, Compile([]domain.SearchRule{titleRule("nopixel")}))

	require.Len(t, matches, 2)
	assert.Equal(t, "alice", matches[0].StreamerName)
	assert.Equal(t, "carol", matches[1].StreamerName)
}

func TestStreams_CategoryRequiresExactMatch(t *testing.T) {
	pool := []domain.Stream{
		{StreamerID: "alice", StreamerName: "alice", Title: "x", CategoryName: "GTA RP Extended"},
		{StreamerID: "bob", StreamerName: "bob", Title: "y", CategoryName: "GTA RP"},
	}
	rs := Compile([]domain.SearchRule{categoryRule("gta rp")})

	matches := Streams(pool, rs)

	// Superstring categories must not match: only exact equality counts.
	require.Len(t, matches, 1)
	assert.Equal(t, "bob", matches[0].StreamerName)
}

func TestStreams_TagRequiresExactMatch(t *testing.T) {
	pool := []domain.Stream{
		{StreamerID: "alice", StreamerName: "alice", Tags: []string{"NoPixelPublic"}},
		{StreamerID: "bob", StreamerName: "bob", Tags: []string{"NoPixel", "RP"}},
	}
	rs := Compile([]domain.SearchRule{tagRule("nopixel")})

	matches := Streams(pool, rs)

	require.Len(t, matches, 1)
	assert.Equal(t, "bob", matches[0].StreamerName)
}

func TestStreams_FirstBucketWinsNoDoubleCount(t *testing.T) {
	// One stream satisfying title, category and tag rules matches once.
	pool := []domain.Stream{{
		StreamerID:   "alice",
		StreamerName: "alice",
		Title:        "NoPixel grind",
		CategoryName: "nopixel",
		Tags:         []string{"nopixel"},
	}}
	rs := Compile([]domain.SearchRule{
		titleRule("nopixel"),
		categoryRule("nopixel"),
		tagRule("nopixel"),
	})

	matches := Streams(pool, rs)
	assert.Len(t, matches, 1)
}

func TestStreams_DedupesByStreamerIdentity(t *testing.T) {
	pool := []domain.Stream{
		stream("Alice", "NoPixel morning", 10),
		stream("alice", "NoPixel evening", 99),
		stream("bob", "NoPixel", 5),
	}

	matches := Streams(pool, Compile([]domain.SearchRule{titleRule("nopixel")}))

	require.Len(t, matches, 2)
	// First occurrence wins.
	assert.Equal(t, "Alice", matches[0].StreamerName)
	assert.Equal(t, 10, matches[0].ViewerCount)
}

func TestStreams_Idempotent(t *testing.T) {
	pool := []domain.Stream{
		stream("alice", "NoPixel A", 10),
		stream("bob", "NoPixel B", 20),
		stream("carol", "other", 30),
	}
	rs := Compile([]domain.SearchRule{titleRule("nopixel")})

	first := Streams(pool, rs)
	second := Streams(pool, rs)

	assert.Equal(t, first, second)
}

func TestTitleInclude_ExcludeKeywordRejects(t *testing.T) {
	pool := []domain.Stream{
		stream("alice", "NoPixel grind", 10),
		stream("bob", "NoPixel public lobby", 20),
		stream("carol", "something else", 30),
	}
	rs := Compile([]domain.SearchRule{
		titleRule("nopixel"),
		titleRule("!public"),
	})

	matches := TitleInclude(pool, rs)

	require.Len(t, matches, 1)
	assert.Equal(t, "alice", matches[0].StreamerName)
}

func TestTitleInclude_RequiresIncludeHit(t *testing.T) {
	pool := []domain.Stream{
		stream("alice", "just chatting", 10),
	}
	rs := Compile([]domain.SearchRule{titleRule("nopixel")})

	assert.Empty(t, TitleInclude(pool, rs))
}

func TestDedupe_FirstOccurrenceWins(t *testing.T) {
	pool := []domain.Stream{
		stream("Alpha", "first", 1),
		stream("alpha", "second", 2),
		stream("beta", "third", 3),
	}

	out := Dedupe(pool)

	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Title)
}

func TestSummarize_CountsFullSetTruncatesTopFive(t *testing.T) {
	matches := []domain.Stream{
		stream("a", "t", 10),
		stream("b", "t", 70),
		stream("c", "t", 30),
		stream("d", "t", 50),
		stream("e", "t", 20),
		stream("f", "t", 60),
		stream("g", "t", 40),
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	summary := Summarize(matches, false, now)

	assert.Equal(t, 7, summary.StreamCount)
	assert.Equal(t, 280, summary.ViewerCount)
	require.Len(t, summary.TopStreams, TopStreamLimit)
	assert.GreaterOrEqual(t, summary.StreamCount, len(summary.TopStreams))

	// Descending by viewers.
	viewers := []int{}
	for _, s := range summary.TopStreams {
		viewers = append(viewers, s.Viewers)
	}
	assert.Equal(t, []int{70, 60, 50, 40, 30}, viewers)
	assert.Equal(t, now, summary.LastUpdated)
}

func TestSummarize_GameInfoOnlyWhenRequested(t *testing.T) {
	matches := []domain.Stream{{
		StreamerID:   "alice",
		StreamerName: "alice",
		Title:        "t",
		ViewerCount:  10,
		CategoryName: "Grand Theft Auto V",
		Tags:         []string{"RP"},
	}}

	withInfo := Summarize(matches, true, time.Now())
	require.Len(t, withInfo.TopStreams, 1)
	assert.Equal(t, "Grand Theft Auto V", withInfo.TopStreams[0].GameName)
	assert.Equal(t, []string{"RP"}, withInfo.TopStreams[0].Tags)

	withoutInfo := Summarize(matches, false, time.Now())
	require.Len(t, withoutInfo.TopStreams, 1)
	assert.Empty(t, withoutInfo.TopStreams[0].GameName)
	assert.Empty(t, withoutInfo.TopStreams[0].Tags)
}

func TestSummarize_EmptyMatchSet(t *testing.T) {
	summary := Summarize(nil, true, time.Now())

	assert.Equal(t, 0, summary.StreamCount)
	assert.Equal(t, 0, summary.ViewerCount)
	assert.NotNil(t, summary.TopStreams)
	assert.Empty(t, summary.TopStreams)
}

func TestSummarize_StableOrderForEqualViewers(t *testing.T) {
	matches := []domain.Stream{
		stream("first", "t", 10),
		stream("second", "t", 10),
	}

	summary := Summarize(matches, false, time.Now())

	require.Len(t, summary.TopStreams, 2)
	assert.Equal(t, "first", summary.TopStreams[0].Name)
	assert.Equal(t, "second", summary.TopStreams[1].Name)
}
