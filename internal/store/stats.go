package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/user/tickerd/internal/types"
)

// Stats gathers operator-facing counters in one pass.
func (s *SQLite) Stats(ctx context.Context) (*types.Stats, error) {
	st := &types.Stats{ByCategory: make(map[types.Category]int64)}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM items`,
	).Scan(&st.TotalItems, &st.ActiveItems)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM items WHERE is_active = 1 GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c types.Category
			n int64
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		st.ByCategory[c] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var lastRefresh sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_enabled), 0), MAX(last_fetch_at) FROM sources`,
	).Scan(&st.TotalSources, &st.EnabledSources, &lastRefresh)
	if err != nil {
		return nil, fmt.Errorf("count sources: %w", err)
	}
	st.LastRefreshAt = fromNullUnix(lastRefresh)

	return st, nil
}
