// internal/types/models.go
package types

import (
	"fmt"
	"time"
)

// Category partitions the feed into independently refreshed streams.
type Category string

const (
	CategoryGeneral     Category = "general"
	CategoryInsights    Category = "insights"
	CategoryPerformance Category = "performance"
)

// Categories lists all known categories in display order.
func Categories() []Category {
	return []Category{CategoryGeneral, CategoryInsights, CategoryPerformance}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryInsights, CategoryPerformance:
		return true
	}
	return false
}

// DisplayType drives visual styling in the dashboard; the engine never
// interprets it beyond validation.
type DisplayType string

const (
	DisplaySuccess DisplayType = "success"
	DisplayInfo    DisplayType = "info"
	DisplayWarning DisplayType = "warning"
	DisplayUpdate  DisplayType = "update"
)

func (d DisplayType) Valid() bool {
	switch d {
	case DisplaySuccess, DisplayInfo, DisplayWarning, DisplayUpdate:
		return true
	}
	return false
}

// Action is a recorded user interaction with an item.
type Action string

const (
	ActionView    Action = "view"
	ActionClick   Action = "click"
	ActionDismiss Action = "dismiss"
	ActionShare   Action = "share"
)

func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionClick, ActionDismiss, ActionShare:
		return true
	}
	return false
}

// SourceType describes how a source is fetched.
type SourceType string

const (
	SourceAPI      SourceType = "api"
	SourceFeed     SourceType = "feed"
	SourceWebhook  SourceType = "webhook"
	SourceInternal SourceType = "internal"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceAPI, SourceFeed, SourceWebhook, SourceInternal:
		return true
	}
	return false
}

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 500
	MinPriority       = 1 // highest
	MaxPriority       = 5 // lowest
)

// Item is a single feed entry. Relevance is computed per read and never
// persisted.
type Item struct {
	ID          ItemID         `json:"id"`
	Category    Category       `json:"category"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Icon        string         `json:"icon_name"`
	Type        DisplayType    `json:"type"`
	Priority    int            `json:"priority"`
	Payload     map[string]any `json:"source_data,omitempty"`
	Origin      string         `json:"origin,omitempty"`
	ExternalID  string         `json:"external_id,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Active      bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Relevance   float64        `json:"relevance_score,omitempty"`
}

// Expired reports whether the item has a set expiry in the past.
func (i *Item) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}

// ItemDraft is the payload for creating (or idempotently upserting) an item.
// Origin plus ExternalID form the natural key used for deduplication across
// repeated ingestion cycles; drafts without an ExternalID always insert.
type ItemDraft struct {
	Category    Category       `json:"category"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Icon        string         `json:"icon_name"`
	Type        DisplayType    `json:"type"`
	Priority    int            `json:"priority"`
	Payload     map[string]any `json:"source_data,omitempty"`
	Origin      string         `json:"origin,omitempty"`
	ExternalID  string         `json:"external_id,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
}

// Validate checks the draft against the item constraints. It returns a
// *ValidationError describing the first violation found.
func (d *ItemDraft) Validate() error {
	if !d.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", d.Category)}
	}
	if d.Title == "" || len(d.Title) > MaxTitleLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("must be 1-%d characters", MaxTitleLen)}
	}
	if d.Description == "" || len(d.Description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("must be 1-%d characters", MaxDescriptionLen)}
	}
	if d.Type != "" && !d.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown display type %q", d.Type)}
	}
	if d.Priority < MinPriority || d.Priority > MaxPriority {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("must be between %d and %d", MinPriority, MaxPriority)}
	}
	return nil
}

// ItemUpdate carries the mutable fields of an admin item update. Nil fields
// are left untouched.
type ItemUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	Active      *bool      `json:"is_active,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Validate checks the set fields against the item constraints.
func (u *ItemUpdate) Validate() error {
	if u.Title != nil && (*u.Title == "" || len(*u.Title) > MaxTitleLen) {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("must be 1-%d characters", MaxTitleLen)}
	}
	if u.Description != nil && (*u.Description == "" || len(*u.Description) > MaxDescriptionLen) {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("must be 1-%d characters", MaxDescriptionLen)}
	}
	if u.Priority != nil && (*u.Priority < MinPriority || *u.Priority > MaxPriority) {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("must be between %d and %d", MinPriority, MaxPriority)}
	}
	return nil
}

// Source is a configured origin of items with tracked fetch health.
// Counters only ever increase; enabled is admin-controlled and never
// flipped automatically on failure.
type Source struct {
	ID             SourceID       `json:"id"`
	Category       Category       `json:"category"`
	Name           string         `json:"name"`
	Type           SourceType     `json:"type"`
	Endpoint       string         `json:"endpoint,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
	RefreshMinutes int            `json:"refresh_interval_minutes"`
	Enabled        bool           `json:"is_enabled"`
	LastFetchAt    *time.Time     `json:"last_fetch_at,omitempty"`
	LastSuccessAt  *time.Time     `json:"last_success_at,omitempty"`
	FetchCount     int64          `json:"fetch_count"`
	ErrorCount     int64          `json:"error_count"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Validate checks a source definition before registration.
func (s *Source) Validate() error {
	if !s.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s.Category)}
	}
	if s.Name == "" || len(s.Name) > 100 {
		return &ValidationError{Field: "name", Reason: "must be 1-100 characters"}
	}
	if !s.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown source type %q", s.Type)}
	}
	if s.RefreshMinutes < 1 || s.RefreshMinutes > 1440 {
		return &ValidationError{Field: "refresh_interval_minutes", Reason: "must be between 1 and 1440"}
	}
	return nil
}

// Engagement is an append-only record of a user interaction.
type Engagement struct {
	ID       EngagementID   `json:"id"`
	UserID   UserID         `json:"user_id"`
	ItemID   ItemID         `json:"item_id"`
	Action   Action         `json:"action"`
	At       time.Time      `json:"action_timestamp"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EngagementCounts aggregates a user's positive interactions with one item.
// Dismissals are deliberately excluded.
type EngagementCounts struct {
	Views  int64
	Clicks int64
	Shares int64
}

// Preferences is the per-user feed configuration.
type Preferences struct {
	UserID            UserID         `json:"user_id"`
	EnabledCategories []Category     `json:"enabled_categories"`
	PriorityThreshold int            `json:"priority_threshold"`
	CustomFilters     map[string]any `json:"custom_filters,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DefaultPreferences returns the preferences applied to users with no
/// stored row: all categories, no priority cut-off.
func DefaultPreferences(userID UserID) *Preferences {
	return &Preferences{
		UserID:            userID,
		EnabledCategories: Categories(),
		PriorityThreshold: MaxPriority,
	}
}

// Validate checks preference bounds.
func (p *Preferences) Validate() error {
	if p.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	if p.PriorityThreshold < MinPriority || p.PriorityThreshold > MaxPriority {
		return &ValidationError{Field: "priority_threshold", Reason: fmt.Sprintf("must be between %d and %d", MinPriority, MaxPriority)}
	}
	for _, c := range p.EnabledCategories {
		if !c.Valid() {
			return &ValidationError{Field: "enabled_categories", Reason: fmt.Sprintf("unknown category %q", c)}
		}
	}
	return nil
}

// Finding is a candidate produced by an insight or performance generator.
// Confidence and ActionItems are carried through into the item payload
// untouched; the engine never acts on them.
type Finding struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	Priority    int            `json:"priority"`
	Kind        string         `json:"kind"`
	Confidence  float64        `json:"confidence"`
	ActionItems []string       `json:"action_items,omitempty"`
	Severity    string         `json:"severity,omitempty"`
	Positive    bool           `json:"is_positive,omitempty"`
	Metrics     map[string]any `json:"metrics,omitempty"`
}

// ValidationError reports malformed create/update input. It is the only
// error class surfaced to administrative callers as a client fault.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
