// Package ticker is the engine's front door: one service object that
// transports and commands call into. It composes feeds, accepts admin
// writes, tracks engagement, and schedules background refreshes when a
// read finds the general stream stale.
package ticker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/tickerd/internal/feed"
	"github.com/user/tickerd/internal/refresh"
	"github.com/user/tickerd/internal/source"
	"github.com/user/tickerd/internal/types"
)

// Service bundles the store, composer, and refresh machinery behind one
// API. Construct it with New and start it before serving reads; a zero
// Service is not usable.
type Service struct {
	store        types.Store
	composer     *feed.Composer
	orchestrator *refresh.Orchestrator
	queue        *refresh.Queue
	window       time.Duration
	now          func() time.Time
}

// New wires a service over the given store and refresh machinery. The
// queue's processor is claimed by the service; callers only Start and
// Stop it through the service.
func New(store types.Store, composer *feed.Composer, orchestrator *refresh.Orchestrator, queue *refresh.Queue) *Service {
	s := &Service{
		store:        store,
		composer:     composer,
		orchestrator: orchestrator,
		queue:        queue,
		window:       refresh.DefaultStalenessWindow,
		now:          time.Now,
	}
	if queue != nil {
		queue.SetProcessor(s.processRefresh)
	}
	return s
}

// SetStalenessWindow overrides how old the newest general item may be
// before a read schedules a background refresh.
func (s *Service) SetStalenessWindow(d time.Duration) {
	s.window = d
}

// Start begins background refresh processing.
func (s *Service) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop drains in-flight background refreshes.
func (s *Service) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// GetFeed composes one feed page. When the read covers the general
// category and its newest item is stale, a background refresh is
// scheduled without blocking; the stale page is returned immediately.
func (s *Service) GetFeed(ctx context.Context, filter types.FeedFilter, userID types.UserID) (*types.FeedPage, error) {
	s.maybeScheduleRefresh(ctx, filter)
	return s.composer.Compose(ctx, filter, userID)
}

// maybeScheduleRefresh enqueues a general refresh if the read touches
// general and the stream is stale. Never blocks and never fails the read.
func (s *Service) maybeScheduleRefresh(ctx context.Context, filter types.FeedFilter) {
	if s.queue == nil || !touchesGeneral(filter.Categories) {
		return
	}
	newest, err := s.store.NewestCreatedAt(ctx, types.CategoryGeneral)
	if err != nil {
		slog.Warn("staleness check failed", "error", err)
		return
	}
	if !refresh.ShouldRefresh(newest, s.now().UTC(), s.window) {
		return
	}
	if err := s.queue.Enqueue(types.CategoryGeneral); err != nil {
		// A full lane means a refresh is already pending.
		slog.Debug("staleness refresh already pending", "error", err)
	}
}

// touchesGeneral reports whether a category selection includes general.
// An empty selection means all categories.
func touchesGeneral(categories []types.Category) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if c == types.CategoryGeneral {
			return true
		}
	}
	return false
}

// CreateItem validates and persists an admin-submitted draft.
func (s *Service) CreateItem(ctx context.Context, draft *types.ItemDraft) (*types.Item, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return s.store.UpsertItem(ctx, draft)
}

// GetItem fetches one item by id.
func (s *Service) GetItem(ctx context.Context, id types.ItemID) (*types.Item, error) {
	return s.store.GetItem(ctx, id)
}

// UpdateItem applies an admin update to an item's mutable fields.
func (s *Service) UpdateItem(ctx context.Context, id types.ItemID, upd *types.ItemUpdate) (*types.Item, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	return s.store.UpdateItem(ctx, id, upd)
}

// TrackEngagement records one user interaction with an item.
func (s *Service) TrackEngagement(ctx context.Context, userID types.UserID, itemID types.ItemID, action types.Action, metadata map[string]any) error {
	return s.store.RecordEngagement(ctx, &types.Engagement{
		UserID:   userID,
		ItemID:   itemID,
		Action:   action,
		Metadata: metadata,
	})
}

// GetPreferences returns the user's stored preferences, or defaults.
func (s *Service) GetPreferences(ctx context.Context, userID types.UserID) (*types.Preferences, error) {
	return s.store.GetPreferences(ctx, userID)
}

// PutPreferences validates and stores the user's preferences.
func (s *Service) PutPreferences(ctx context.Context, p *types.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.store.PutPreferences(ctx, p)
}

// TriggerRefresh schedules a full background refresh cycle and returns
// immediately. A refresh already pending counts as accepted.
func (s *Service) TriggerRefresh() error {
	if s.queue == nil {
		return fmt.Errorf("background refresh not configured")
	}
	if err := s.queue.Enqueue(types.CategoryGeneral); err != nil {
		slog.Debug("refresh already pending", "error", err)
	}
	return nil
}

// RefreshNow runs a full refresh cycle synchronously. Intended for CLI
// use; the HTTP path goes through TriggerRefresh.
func (s *Service) RefreshNow(ctx context.Context) (*types.RefreshReport, error) {
	return s.orchestrator.RefreshAll(ctx)
}

// RefreshUser runs the generators for one user synchronously.
func (s *Service) RefreshUser(ctx context.Context, userID types.UserID) (*types.RefreshReport, error) {
	return s.orchestrator.RefreshForUser(ctx, userID)
}

// CreateSource validates and registers a new source. The fetch config is
// parsed here, at registration time, so a bad config is rejected up front
// instead of failing every refresh cycle.
func (s *Service) CreateSource(ctx context.Context, src *types.Source) (*types.Source, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if _, err := source.ParseFetchConfig(src.Config); err != nil {
		return nil, err
	}
	return s.store.CreateSource(ctx, src)
}

// ListSources returns all registered sources.
func (s *Service) ListSources(ctx context.Context) ([]*types.Source, error) {
	return s.store.ListSources(ctx)
}

// SetSourceEnabled toggles a source on or off.
func (s *Service) SetSourceEnabled(ctx context.Context, id types.SourceID, enabled bool) error {
	return s.store.SetSourceEnabled(ctx, id, enabled)
}

// Stats returns operator-facing counters.
func (s *Service) Stats(ctx context.Context) (*types.Stats, error) {
	return s.store.Stats(ctx)
}

// processRefresh handles one dequeued background request. Only the
// general category refreshes without a user context; generator
// categories are user-scoped and run through RefreshUser.
func (s *Service) processRefresh(ctx context.Context, c types.Category) error {
	if c != types.CategoryGeneral {
		slog.Debug("skipping user-scoped background refresh", "category", c)
		return nil
	}
	_, err := s.orchestrator.RefreshAll(ctx)
	return err
}
