// Package match implements the rule-based stream matcher.
//
// All functions are pure: deterministic outputs from their inputs, no
// I/O, no clock reads. The aggregation endpoints feed them the fetched
// stream pool and the per-server rule set.
package match

import (
	"sort"
	"strings"
	"time"

	"github.com/chriskrajewski/rptracker/internal/domain"
)

// TopStreamLimit caps the topStreams list exposed per server. Stream and
// viewer counts are still computed over the full deduplicated match set.
const TopStreamLimit = 5

// RuleSet holds compiled keywords partitioned by rule type. All keywords
// are trimmed and lower-cased; empty keywords are discarded at compile
// time. Exclude holds title keywords that were prefixed with "!".
type RuleSet struct {
	Title    []string
	Exclude  []string
	Category []string
	Tag      []string
}

// Empty reports whether the rule set contains no usable keywords.
// Exclude keywords alone cannot produce matches.
func (rs RuleSet) Empty() bool {
	return len(rs.Title) == 0 && len(rs.Category) == 0 && len(rs.Tag) == 0
}

// Compile partitions rules by type into a RuleSet. Input order is
// preserved within each bucket, so priority ordering from the store
// carries through. Inactive rules are skipped defensively even though
// the store filters them.
func Compile(rules []domain.SearchRule) RuleSet {
	var rs RuleSet
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if keyword == "" {
			continue
		}
		switch rule.RuleType {
		case domain.RuleTitle:
			if rest, ok := strings.CutPrefix(keyword, "!"); ok {
				if rest != "" {
					rs.Exclude = append(rs.Exclude, rest)
				}
				continue
			}
			rs.Title = append(rs.Title, keyword)
		case domain.RuleCategory:
			rs.Category = append(rs.Category, keyword)
		case domain.RuleTag:
			rs.Tag = append(rs.Tag, keyword)
		}
	}
	return rs
}

// Streams applies the rule set against the candidate pool and returns
// the deduplicated matches in pool order.
//
// Per stream, buckets are evaluated in order: title substring, category
// exact, tag exact. The first satisfied bucket wins and evaluation
// short-circuits, so a stream matching several buckets is counted once.
// Title matching is case-insensitive substring containment; category
// and tag matching require exact case-insensitive equality so that a
// misconfigured broad keyword cannot silently match the entire pool.
func Streams(pool []domain.Stream, rs RuleSet) []domain.Stream {
	var matches []domain.Stream
	for _, stream := range pool {
		if matchesRules(stream, rs) {
			matches = append(matches, stream)
		}
	}
	return Dedupe(matches)
}

func matchesRules(stream domain.Stream, rs RuleSet) bool {
	title := strings.ToLower(stream.Title)
	for _, keyword := range rs.Title {
		if strings.Contains(title, keyword) {
			return true
		}
	}

	category := strings.ToLower(stream.CategoryName)
	for _, keyword := range rs.Category {
		if category == keyword {
			return true
		}
	}

	for _, tag := range stream.Tags {
		tag = strings.ToLower(tag)
		for _, keyword := range rs.Tag {
			if tag == keyword {
				return true
			}
		}
	}

	return false
}

// TitleInclude filters the pool down to streams whose title contains at
// least one include keyword and none of the exclude keywords. This is
// the Kick title path: the pool is the unscoped top streams, so a
// positive include hit is required and any exclude hit rejects.
func TitleInclude(pool []domain.Stream, rs RuleSet) []domain.Stream {
	var matches []domain.Stream
	for _, stream := range pool {
		title := strings.ToLower(stream.Title)

		included := false
		for _, keyword := range rs.Title {
			if strings.Contains(title, keyword) {
				included = true
				break
			}
		}
		if !included {
			continue
		}

		excluded := false
		for _, keyword := range rs.Exclude {
			if strings.Contains(title, keyword) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		matches = append(matches, stream)
	}
	return Dedupe(matches)
}

// Dedupe removes duplicate streams by case-insensitive streamer
// identity; the first occurrence wins.
func Dedupe(streams []domain.Stream) []domain.Stream {
	if len(streams) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(streams))
	var out []domain.Stream
	for _, stream := range streams {
		key := strings.ToLower(stream.StreamerID)
		if key == "" {
			key = strings.ToLower(stream.StreamerName)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, stream)
	}
	return out
}

// Summarize builds the per-server summary from a deduplicated match
// set. StreamCount and ViewerCount cover every match; TopStreams is the
// top TopStreamLimit entries by descending viewer count. The sort is
// stable so equal viewer counts keep pool order. When includeGameInfo
// is false the gameName/tags fields are left empty (Kick responses).
func Summarize(matches []domain.Stream, includeGameInfo bool, now time.Time) domain.ServerSummary {
	summary := domain.ServerSummary{
		StreamCount: len(matches),
		TopStreams:  []domain.MatchedStream{},
		LastUpdated: now,
	}
	for _, stream := range matches {
		summary.ViewerCount += stream.ViewerCount
	}

	ranked := make([]domain.Stream, len(matches))
	copy(ranked, matches)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ViewerCount > ranked[j].ViewerCount
	})

	if len(ranked) > TopStreamLimit {
		ranked = ranked[:TopStreamLimit]
	}

	for _, stream := range ranked {
		matched := domain.MatchedStream{
			Name:    stream.StreamerName,
			Viewers: stream.ViewerCount,
			Title:   stream.Title,
		}
		if includeGameInfo {
			matched.GameName = stream.CategoryName
			matched.Tags = stream.Tags
		}
		summary.TopStreams = append(summary.TopStreams, matched)
	}

	return summary
}
