// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

type ItemStore interface {
	// UpsertItem inserts the draft, or updates the existing row when the
	// draft carries a natural key (origin + external id) that is already
	// present. CreatedAt is preserved on update so recency decay is not
	// reset by re-ingestion.
	UpsertItem(ctx context.Context, draft *ItemDraft) (*Item, error)
	GetItem(ctx context.Context, id ItemID) (*Item, error)
	UpdateItem(ctx context.Context, id ItemID, upd *ItemUpdate) (*Item, error)
	QueryItems(ctx context.Context, q ItemQuery) ([]*Item, error)
	// NewestCreatedAt returns the created_at of the newest active item in
	// the category, or the zero time when the category is empty.
	NewestCreatedAt(ctx context.Context, category Category) (time.Time, error)
	// CleanupExpired deactivates items whose expiry has passed and returns
	// how many rows were affected.
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type SourceStore interface {
	CreateSource(ctx context.Context, src *Source) (*Source, error)
	ListSources(ctx context.Context) ([]*Source, error)
	EnabledSources(ctx context.Context, category Category) ([]*Source, error)
	SetSourceEnabled(ctx context.Context, id SourceID, enabled bool) error
	// RecordFetch bumps fetch_count and last_fetch_at; on success it also
	// sets last_success_at, on failure it bumps error_count and stores the
	// truncated error message. Counters never decrease.
	RecordFetch(ctx context.Context, id SourceID, success bool, errMsg string) error
}

type EngagementStore interface {
	RecordEngagement(ctx context.Context, e *Engagement) error
	// CountEngagements aggregates the user's positive interactions with
	// each of the given items.
	CountEngagements(ctx context.Context, userID UserID, itemIDs []ItemID) (map[ItemID]EngagementCounts, error)
}

type PreferenceStore interface {
	// GetPreferences returns the stored row, or defaults when none exists.
	GetPreferences(ctx context.Context, userID UserID) (*Preferences, error)
	PutPreferences(ctx context.Context, p *Preferences) error
}

// Store is the full persistence surface the engine depends on.
type Store interface {
	ItemStore
	SourceStore
	EngagementStore
	PreferenceStore
	Stats(ctx context.Context) (*Stats, error)
}
