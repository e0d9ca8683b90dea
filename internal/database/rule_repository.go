package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chriskrajewski/rptracker/internal/domain"
)

// RuleRepo reads search rules from PostgreSQL. It is the single source
// of truth for matching configuration: there are no hardcoded fallback
// keyword tables anywhere in the service.
type RuleRepo struct {
	pool *pgxpool.Pool
}

func NewRuleRepo(pool *pgxpool.Pool) *RuleRepo {
	return &RuleRepo{pool: pool}
}

// GetActiveRules loads the active rules for a batch of servers with a
// single query, ordered by descending priority. Every requested server
// ID gets a map entry; servers without rules map to an empty slice.
func (r *RuleRepo) GetActiveRules(ctx context.Context, platform domain.Platform, serverIDs []string) (map[string][]domain.SearchRule, error) {
	rulesByServer := make(map[string][]domain.SearchRule, len(serverIDs))
	for _, id := range serverIDs {
		rulesByServer[id] = []domain.SearchRule{}
	}
	if len(serverIDs) == 0 {
		return rulesByServer, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, server_id, platform, keyword, rule_type, is_active, priority, created_at, updated_at
		FROM stream_search_config
		WHERE is_active AND platform = $1 AND server_id = ANY($2)
		ORDER BY priority DESC, id
	`, string(platform), serverIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query search rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rule domain.SearchRule
		if err := rows.Scan(
			&rule.ID, &rule.ServerID, &rule.Platform, &rule.Keyword,
			&rule.RuleType, &rule.Active, &rule.Priority,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan search rule: %w", err)
		}
		rulesByServer[rule.ServerID] = append(rulesByServer[rule.ServerID], rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rules: %w", err)
	}

	return rulesByServer, nil
}
