package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/user/tickerd/internal/types"
)

// maxLastErrorLen bounds the stored fetch error message.
const maxLastErrorLen = 500

const sourceColumns = `id, category, name, source_type, endpoint, config_json,
	refresh_minutes, is_enabled, last_fetch_at, last_success_at,
	fetch_count, error_count, last_error, created_at, updated_at`

// CreateSource registers a new source. The (category, name) pair must be
// unique.
func (s *SQLite) CreateSource(ctx context.Context, src *types.Source) (*types.Source, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	config, err := marshalMap(src.Config)
	if err != nil {
		return nil, err
	}

	id := types.NewSourceID()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sources (id, category, name, source_type, endpoint,
			config_json, refresh_minutes, is_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, src.Category, src.Name, src.Type, src.Endpoint,
		config, src.RefreshMinutes, boolToInt(src.Enabled), now.Unix(), now.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, &types.ValidationError{Field: "name", Reason: fmt.Sprintf("source %q already exists in category %q", src.Name, src.Category)}
		}
		return nil, fmt.Errorf("insert source: %w", err)
	}
	return s.getSource(ctx, id)
}

// ListSources returns every registered source.
func (s *SQLite) ListSources(ctx context.Context) ([]*types.Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY category, name`)
}

// EnabledSources returns the enabled sources for one category.
func (s *SQLite) EnabledSources(ctx context.Context, category types.Category) ([]*types.Source, error) {
	return s.querySources(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE category = ? AND is_enabled = 1 ORDER BY name`,
		category)
}

// SetSourceEnabled flips the admin-controlled enabled flag.
func (s *SQLite) SetSourceEnabled(ctx context.Context, id types.SourceID, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET is_enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("set source enabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source not found: %s", id)
	}
	return nil
}

// RecordFetch records the outcome of one fetch attempt. Every attempt bumps
// fetch_count and last_fetch_at; failures additionally bump error_count and
// store the truncated error. Counters only ever increase, and the enabled
// flag is never touched here.
func (s *SQLite) RecordFetch(ctx context.Context, id types.SourceID, success bool, errMsg string) error {
	now := time.Now().UTC().Unix()

	var res sql.Result
	var err error
	if success {
		res, err = s.db.ExecContext(ctx, `
			UPDATE sources
			SET fetch_count = fetch_count + 1, last_fetch_at = ?,
			    last_success_at = ?, updated_at = ?
			WHERE id = ?`,
			now, now, now, id,
		)
	} else {
		if len(errMsg) > maxLastErrorLen {
			errMsg = errMsg[:maxLastErrorLen]
		}
		res, err = s.db.ExecContext(ctx, `
			UPDATE sources
			SET fetch_count = fetch_count + 1, last_fetch_at = ?,
			    error_count = error_count + 1, last_error = ?, updated_at = ?
			WHERE id = ?`,
			now, errMsg, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("record fetch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source not found: %s", id)
	}
	return nil
}

func (s *SQLite) getSource(ctx context.Context, id types.SourceID) (*types.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("source not found: %s", id)
	}
	return src, err
}

func (s *SQLite) querySources(ctx context.Context, query string, args ...any) ([]*types.Source, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []*types.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func scanSource(row rowScanner) (*types.Source, error) {
	var (
		src         types.Source
		config      sql.NullString
		enabled     int
		lastFetch   sql.NullInt64
		lastSuccess sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(
		&src.ID, &src.Category, &src.Name, &src.Type, &src.Endpoint, &config,
		&src.RefreshMinutes, &enabled, &lastFetch, &lastSuccess,
		&src.FetchCount, &src.ErrorCount, &src.LastError, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}

	src.Config, err = unmarshalMap(config)
	if err != nil {
		return nil, err
	}
	src.Enabled = enabled != 0
	src.LastFetchAt = fromNullUnix(lastFetch)
	src.LastSuccessAt = fromNullUnix(lastSuccess)
	src.CreatedAt = time.Unix(createdAt, 0).UTC()
	src.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &src, nil
}
