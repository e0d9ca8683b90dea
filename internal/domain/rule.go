package domain

import (
	"context"
	"time"
)

// RuleType determines which stream attribute a search rule is matched against.
type RuleType string

const (
	RuleTitle    RuleType = "title"
	RuleCategory RuleType = "category"
	RuleTag      RuleType = "tag"
)

// SearchRule is one operator-configured matching rule for a server/platform pair.
// Rules are created and edited through the admin surface; the live path only reads them.
type SearchRule struct {
	ID        int64     `db:"id"`
	ServerID  string    `db:"server_id"`
	Platform  Platform  `db:"platform"`
	Keyword   string    `db:"keyword"`
	RuleType  RuleType  `db:"rule_type"`
	Active    bool      `db:"is_active"`
	Priority  int       `db:"priority"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RuleRepository loads active search rules for a batch of servers.
//
// Implementations must return an entry for every requested server ID,
// mapping servers without rules to an empty slice so callers can treat
// "no config" uniformly as "no matches possible". Rules are ordered by
// descending priority within each server.
type RuleRepository interface {
	GetActiveRules(ctx context.Context, platform Platform, serverIDs []string) (map[string][]SearchRule, error)
}
