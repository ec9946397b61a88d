// Package feed filters, scores, orders, and paginates items for one read.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/user/tickerd/internal/scoring"
	"github.com/user/tickerd/internal/types"
)

// Composer turns a feed filter into an ordered page of items. A store
// fault degrades the read to an empty page marked Degraded instead of an
// error: the feed stays available even when persistence is not.
type Composer struct {
	items       types.ItemStore
	engagements types.EngagementStore
	prefs       types.PreferenceStore
	now         func() time.Time
}

// New creates a Composer over the given stores.
func New(items types.ItemStore, engagements types.EngagementStore, prefs types.PreferenceStore) *Composer {
	return &Composer{
		items:       items,
		engagements: engagements,
		prefs:       prefs,
		now:         time.Now,
	}
}

// Compose runs one feed read. userID may be empty for anonymous reads;
// when set, stored preferences narrow the filter and the user's positive
// engagements feed the relevance score.
func (c *Composer) Compose(ctx context.Context, filter types.FeedFilter, userID types.UserID) (*types.FeedPage, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}
	now := c.now().UTC()

	if userID != "" {
		if !c.applyPreferences(ctx, &filter, userID) {
			// Every requested category is disabled for this user.
			return &types.FeedPage{Items: []*types.Item{}}, nil
		}
	}

	q := types.ItemQuery{
		Categories:     filter.Categories,
		MaxPriority:    filter.PriorityThreshold,
		IncludeExpired: filter.IncludeExpired,
		Order:          filter.SortBy,
		Limit:          filter.Limit,
		Now:            now,
	}

	items, err := c.items.QueryItems(ctx, q)
	if err != nil {
		slog.Error("feed read degraded, store fault", "error", err)
		return &types.FeedPage{Items: []*types.Item{}, Degraded: true}, nil
	}

	if filter.SortBy == types.SortRelevance {
		c.rankByRelevance(ctx, items, userID, now)
		if len(items) > filter.Limit {
			items = items[:filter.Limit]
		}
	}

	page := &types.FeedPage{
		Items:      items,
		TotalCount: len(items),
		HasMore:    len(items) == filter.Limit,
	}
	for _, it := range items {
		if page.LastUpdated == nil || it.CreatedAt.After(*page.LastUpdated) {
			ts := it.CreatedAt
			page.LastUpdated = &ts
		}
	}
	if page.Items == nil {
		page.Items = []*types.Item{}
	}
	return page, nil
}

// applyPreferences narrows the filter by the user's stored preferences:
// requested categories are intersected with the enabled set, and the
// priority threshold tightens to the stricter of the two. It returns false
// when the intersection is empty. Preference lookup failures leave the
// filter untouched.
func (c *Composer) applyPreferences(ctx context.Context, filter *types.FeedFilter, userID types.UserID) bool {
	prefs, err := c.prefs.GetPreferences(ctx, userID)
	if err != nil {
		slog.Warn("preference lookup failed, using request filter as-is", "user_id", userID, "error", err)
		return true
	}

	enabled := make(map[types.Category]bool, len(prefs.EnabledCategories))
	for _, cat := range prefs.EnabledCategories {
		enabled[cat] = true
	}

	requested := filter.Categories
	if len(requested) == 0 {
		requested = types.Categories()
	}
	var kept []types.Category
	for _, cat := range requested {
		if enabled[cat] {
			kept = append(kept, cat)
		}
	}
	if len(kept) == 0 {
		return false
	}
	filter.Categories = kept

	if prefs.PriorityThreshold > 0 &&
		(filter.PriorityThreshold == 0 || prefs.PriorityThreshold < filter.PriorityThreshold) {
		filter.PriorityThreshold = prefs.PriorityThreshold
	}
	return true
}

// rankByRelevance scores every candidate and sorts descending, breaking
// ties by newer created_at. Scores are attached to the items for the
// transport layer but are never persisted.
func (c *Composer) rankByRelevance(ctx context.Context, items []*types.Item, userID types.UserID, now time.Time) {
	counts := map[types.ItemID]types.EngagementCounts{}
	if userID != "" && len(items) > 0 {
		ids := make([]types.ItemID, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}
		var err error
		counts, err = c.engagements.CountEngagements(ctx, userID, ids)
		if err != nil {
			slog.Warn("engagement lookup failed, scoring without boost", "user_id", userID, "error", err)
			counts = map[types.ItemID]types.EngagementCounts{}
		}
	}

	for _, it := range items {
		it.Relevance = scoring.Score(it, now, counts[it.ID])
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Relevance != items[j].Relevance {
			return items[i].Relevance > items[j].Relevance
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
