package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/user/tickerd/internal/types"
)

const itemColumns = `id, category, title, description, icon, display_type, priority,
	payload_json, origin, external_id, expires_at, is_active, created_at, updated_at`

// UpsertItem inserts the draft as a new item, or updates the existing row
// sharing the draft's natural key (origin + external id). Updates refresh
// the display fields and payload but keep id and created_at, so repeated
// ingestion of the same upstream item neither duplicates it nor resets its
// recency decay.
func (s *SQLite) UpsertItem(ctx context.Context, draft *types.ItemDraft) (*types.Item, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var existingID types.ItemID
	if draft.ExternalID != "" {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM items WHERE origin = ? AND external_id = ?`,
			draft.Origin, draft.ExternalID,
		).Scan(&existingID)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("probe natural key: %w", err)
		}
	}

	payload, err := marshalMap(draft.Payload)
	if err != nil {
		return nil, err
	}

	displayType := draft.Type
	if displayType == "" {
		displayType = types.DisplayInfo
	}

	id := existingID
	if existingID != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE items
			SET title = ?, description = ?, icon = ?, display_type = ?,
			    priority = ?, payload_json = ?, expires_at = ?, is_active = 1,
			    updated_at = ?
			WHERE id = ?`,
			draft.Title, draft.Description, draft.Icon, displayType,
			draft.Priority, payload, toNullUnix(draft.ExpiresAt),
			now.Unix(), existingID,
		)
		if err != nil {
			return nil, fmt.Errorf("update item: %w", err)
		}
	} else {
		id = types.NewItemID()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			id, draft.Category, draft.Title, draft.Description, draft.Icon,
			displayType, draft.Priority, payload, draft.Origin, draft.ExternalID,
			toNullUnix(draft.ExpiresAt), now.Unix(), now.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("insert item: %w", err)
		}
	}

	item, err := getItemTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return item, nil
}

// GetItem returns the item with the given ID.
func (s *SQLite) GetItem(ctx context.Context, id types.ItemID) (*types.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item not found: %s", id)
	}
	return item, err
}

// UpdateItem applies an admin update to an existing item.
func (s *SQLite) UpdateItem(ctx context.Context, id types.ItemID, upd *types.ItemUpdate) (*types.Item, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Unix()}
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *upd.Priority)
	}
	if upd.Active != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, boolToInt(*upd.Active))
	}
	if upd.ExpiresAt != nil {
		sets = append(sets, "expires_at = ?")
		args = append(args, upd.ExpiresAt.Unix())
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("item not found: %s", id)
	}
	return s.GetItem(ctx, id)
}

// QueryItems runs a filtered, ordered, limited read over the items table.
// Relevance ordering is resolved upstream by the composer; here it fetches
// the most recent candidates for scoring.
func (s *SQLite) QueryItems(ctx context.Context, q types.ItemQuery) ([]*types.Item, error) {
	var where []string
	var args []any

	if !q.IncludeInactive {
		where = append(where, "is_active = 1")
	}
	if len(q.Categories) > 0 {
		ph := strings.Repeat("?, ", len(q.Categories))
		where = append(where, "category IN ("+ph[:len(ph)-2]+")")
		for _, c := range q.Categories {
			args = append(args, c)
		}
	}
	if q.MaxPriority > 0 {
		where = append(where, "priority <= ?")
		args = append(args, q.MaxPriority)
	}
	if !q.IncludeExpired {
		now := q.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		where = append(where, "(expires_at IS NULL OR expires_at > ?)")
		args = append(args, now.Unix())
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	switch q.Order {
	case types.SortPriority:
		query += " ORDER BY priority ASC, created_at DESC"
	default:
		// created_at and relevance both read newest-first.
		query += " ORDER BY created_at DESC"
	}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []*types.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NewestCreatedAt returns the created_at of the newest active item in the
// category, or the zero time when the category is empty.
func (s *SQLite) NewestCreatedAt(ctx context.Context, category types.Category) (time.Time, error) {
	var newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM items WHERE category = ? AND is_active = 1`,
		category,
	).Scan(&newest)
	if err != nil {
		return time.Time{}, fmt.Errorf("newest created_at: %w", err)
	}
	if !newest.Valid {
		return time.Time{}, nil
	}
	return time.Unix(newest.Int64, 0).UTC(), nil
}

// CleanupExpired deactivates items whose expiry has passed. Readers filter
// on expiry themselves, so running this concurrently with reads is safe.
func (s *SQLite) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET is_active = 0, updated_at = ?
		WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at <= ?`,
		now.UTC().Unix(), now.UTC().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*types.Item, error) {
	var (
		item      types.Item
		payload   sql.NullString
		expiresAt sql.NullInt64
		active    int
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&item.ID, &item.Category, &item.Title, &item.Description, &item.Icon,
		&item.Type, &item.Priority, &payload, &item.Origin, &item.ExternalID,
		&expiresAt, &active, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}

	item.Payload, err = unmarshalMap(payload)
	if err != nil {
		return nil, err
	}
	item.ExpiresAt = fromNullUnix(expiresAt)
	item.Active = active != 0
	item.CreatedAt = time.Unix(createdAt, 0).UTC()
	item.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &item, nil
}

func getItemTx(ctx context.Context, tx *sql.Tx, id types.ItemID) (*types.Item, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
