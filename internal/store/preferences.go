package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/user/tickerd/internal/types"
)

// GetPreferences returns the user's stored preferences, or the defaults
// when no row exists.
func (s *SQLite) GetPreferences(ctx context.Context, userID types.UserID) (*types.Preferences, error) {
	var (
		p          types.Preferences
		categories string
		filters    sql.NullString
		createdAt  int64
		updatedAt  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, enabled_categories, priority_threshold,
		       custom_filters_json, created_at, updated_at
		FROM preferences WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &categories, &p.PriorityThreshold, &filters, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return types.DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	if err := json.Unmarshal([]byte(categories), &p.EnabledCategories); err != nil {
		return nil, fmt.Errorf("unmarshal enabled categories: %w", err)
	}
	p.CustomFilters, err = unmarshalMap(filters)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

// PutPreferences creates or replaces the user's preference row.
func (s *SQLite) PutPreferences(ctx context.Context, p *types.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}

	categories, err := json.Marshal(p.EnabledCategories)
	if err != nil {
		return fmt.Errorf("marshal enabled categories: %w", err)
	}
	filters, err := marshalMap(p.CustomFilters)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, enabled_categories, priority_threshold,
			custom_filters_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			enabled_categories = excluded.enabled_categories,
			priority_threshold = excluded.priority_threshold,
			custom_filters_json = excluded.custom_filters_json,
			updated_at = excluded.updated_at`,
		p.UserID, string(categories), p.PriorityThreshold, filters, now, now,
	)
	if err != nil {
		return fmt.Errorf("put preferences: %w", err)
	}
	return nil
}
