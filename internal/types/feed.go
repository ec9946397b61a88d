// internal/types/feed.go
package types

import (
	"fmt"
	"time"
)

// SortOrder selects how a feed read is ordered.
type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortCreatedAt SortOrder = "created_at"
	SortPriority  SortOrder = "priority"
)

func (s SortOrder) Valid() bool {
	switch s {
	case SortRelevance, SortCreatedAt, SortPriority:
		return true
	}
	return false
}

const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 200
)

// FeedFilter describes one feed read. A zero PriorityThreshold means no
// priority cut-off; empty Categories means all categories.
type FeedFilter struct {
	Limit             int        `json:"limit"`
	Categories        []Category `json:"categories,omitempty"`
	PriorityThreshold int        `json:"priority_filter,omitempty"`
	IncludeExpired    bool       `json:"include_expired"`
	SortBy            SortOrder  `json:"sort_by"`
}

// Normalize applies defaults and validates the filter in place.
func (f *FeedFilter) Normalize() error {
	if f.Limit == 0 {
		f.Limit = DefaultFeedLimit
	}
	if f.Limit < 1 || f.Limit > MaxFeedLimit {
		return &ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxFeedLimit)}
	}
	if f.SortBy == "" {
		f.SortBy = SortRelevance
	}
	if !f.SortBy.Valid() {
		return &ValidationError{Field: "sort_by", Reason: fmt.Sprintf("unknown sort order %q", f.SortBy)}
	}
	if f.PriorityThreshold != 0 && (f.PriorityThreshold < MinPriority || f.PriorityThreshold > MaxPriority) {
		return &ValidationError{Field: "priority_filter", Reason: fmt.Sprintf("must be between %d and %d", MinPriority, MaxPriority)}
	}
	for _, c := range f.Categories {
		if !c.Valid() {
			return &ValidationError{Field: "categories", Reason: fmt.Sprintf("unknown category %q", c)}
		}
	}
	return nil
}

// FeedPage is the result of one feed composition. Degraded marks a page
// that came back empty because the store faulted rather than because no
// items matched; the feed stays available either way.
type FeedPage struct {
	Items       []*Item    `json:"items"`
	TotalCount  int        `json:"total_count"`
	HasMore     bool       `json:"has_more"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Degraded    bool       `json:"degraded,omitempty"`
}

// ItemQuery is the store-level predicate behind a feed read. Now anchors
// the expiry check so a whole composition sees one consistent instant.
type ItemQuery struct {
	Categories      []Category
	MaxPriority     int // 0 = no cut-off
	IncludeExpired  bool
	IncludeInactive bool
	Order           SortOrder
	Limit           int
	Now             time.Time
}

// RefreshTally counts persisted candidates for one category during a
// refresh cycle.
type RefreshTally struct {
	Succeeded int `json:"success"`
	Failed    int `json:"failed"`
}

// RefreshReport summarises one RefreshAll run.
type RefreshReport struct {
	General     RefreshTally `json:"general"`
	Insights    RefreshTally `json:"insights"`
	Performance RefreshTally `json:"performance"`
	CleanedUp   int64        `json:"cleaned_up"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// Tally returns the tally bucket for the given category.
func (r *RefreshReport) Tally(c Category) *RefreshTally {
	switch c {
	case CategoryInsights:
		return &r.Insights
	case CategoryPerformance:
		return &r.Performance
	default:
		return &r.General
	}
}

// Stats are operator-facing counters over the whole system.
type Stats struct {
	TotalItems     int64              `json:"total_items"`
	ActiveItems    int64              `json:"active_items"`
	ByCategory     map[Category]int64 `json:"categories"`
	TotalSources   int64              `json:"total_sources"`
	EnabledSources int64              `json:"enabled_sources"`
	LastRefreshAt  *time.Time         `json:"last_refresh,omitempty"`
}
