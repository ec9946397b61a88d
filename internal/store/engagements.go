package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/tickerd/internal/types"
)

// RecordEngagement appends one interaction record. Engagements are never
// updated or deleted.
func (s *SQLite) RecordEngagement(ctx context.Context, e *types.Engagement) error {
	if !e.Action.Valid() {
		return &types.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", e.Action)}
	}
	if e.UserID == "" {
		return &types.ValidationError{Field: "user_id", Reason: "required"}
	}
	if e.ItemID == "" {
		return &types.ValidationError{Field: "item_id", Reason: "required"}
	}

	metadata, err := marshalMap(e.Metadata)
	if err != nil {
		return err
	}

	id := e.ID
	if id == "" {
		id = types.NewEngagementID()
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO engagements (id, user_id, item_id, action, at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, e.UserID, e.ItemID, e.Action, at.Unix(), metadata,
	)
	if err != nil {
		return fmt.Errorf("insert engagement: %w", err)
	}
	return nil
}

// CountEngagements aggregates the user's positive interactions (views,
// clicks, shares) with each of the given items. Dismissals do not count.
func (s *SQLite) CountEngagements(ctx context.Context, userID types.UserID, itemIDs []types.ItemID) (map[types.ItemID]types.EngagementCounts, error) {
	counts := make(map[types.ItemID]types.EngagementCounts, len(itemIDs))
	if userID == "" || len(itemIDs) == 0 {
		return counts, nil
	}

	ph := strings.Repeat("?, ", len(itemIDs))
	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, userID)
	for _, id := range itemIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, action, COUNT(*)
		FROM engagements
		WHERE user_id = ? AND item_id IN (`+ph[:len(ph)-2]+`)
		  AND action IN ('view', 'click', 'share')
		GROUP BY item_id, action`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("count engagements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID types.ItemID
			action types.Action
			n      int64
		)
		if err := rows.Scan(&itemID, &action, &n); err != nil {
			return nil, fmt.Errorf("scan engagement count: %w", err)
		}
		c := counts[itemID]
		switch action {
		case types.ActionView:
			c.Views = n
		case types.ActionClick:
			c.Clicks = n
		case types.ActionShare:
			c.Shares = n
		}
		counts[itemID] = c
	}
	return counts, rows.Err()
}
