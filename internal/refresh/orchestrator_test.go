package refresh

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/tickerd/internal/generate"
	"github.com/user/tickerd/internal/source"
	"github.com/user/tickerd/internal/types"
)

// fakeStore implements types.Store in memory with upsert-by-natural-key
// semantics matching the sqlite store.
type fakeStore struct {
	mu        sync.Mutex
	items     map[types.ItemID]*types.Item
	sources   []*types.Source
	fetches   []fetchRecord
	upsertErr error
}

type fetchRecord struct {
	id      types.SourceID
	success bool
	errMsg  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[types.ItemID]*types.Item)}
}

func (s *fakeStore) UpsertItem(_ context.Context, draft *types.ItemDraft) (*types.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if draft.ExternalID != "" {
		for _, it := range s.items {
			if it.Origin == draft.Origin && it.ExternalID == draft.ExternalID {
				it.Title = draft.Title
				it.Description = draft.Description
				it.Priority = draft.Priority
				it.Payload = draft.Payload
				it.UpdatedAt = time.Now()
				return it, nil
			}
		}
	}
	item := &types.Item{
		ID:          types.NewItemID(),
		Category:    draft.Category,
		Title:       draft.Title,
		Description: draft.Description,
		Icon:        draft.Icon,
		Type:        draft.Type,
		Priority:    draft.Priority,
		Payload:     draft.Payload,
		Origin:      draft.Origin,
		ExternalID:  draft.ExternalID,
		ExpiresAt:   draft.ExpiresAt,
		Active:      true,
		CreatedAt:   time.Now(),
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *fakeStore) GetItem(context.Context, types.ItemID) (*types.Item, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) UpdateItem(context.Context, types.ItemID, *types.ItemUpdate) (*types.Item, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) QueryItems(context.Context, types.ItemQuery) ([]*types.Item, error) {
	return nil, nil
}

func (s *fakeStore) NewestCreatedAt(context.Context, types.Category) (time.Time, error) {
	return time.Time{}, nil
}

func (s *fakeStore) CleanupExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, it := range s.items {
		if it.Active && it.Expired(now) {
			it.Active = false
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CreateSource(_ context.Context, src *types.Source) (*types.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src.ID = types.NewSourceID()
	s.sources = append(s.sources, src)
	return src, nil
}

func (s *fakeStore) ListSources(context.Context) ([]*types.Source, error) {
	return s.sources, nil
}

func (s *fakeStore) EnabledSources(_ context.Context, category types.Category) ([]*types.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Source
	for _, src := range s.sources {
		if src.Enabled && src.Category == category {
			out = append(out, src)
		}
	}
	return out, nil
}

func (s *fakeStore) SetSourceEnabled(context.Context, types.SourceID, bool) error { return nil }

func (s *fakeStore) RecordFetch(_ context.Context, id types.SourceID, success bool, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = append(s.fetches, fetchRecord{id: id, success: success, errMsg: errMsg})
	return nil
}

func (s *fakeStore) RecordEngagement(context.Context, *types.Engagement) error { return nil }

func (s *fakeStore) CountEngagements(context.Context, types.UserID, []types.ItemID) (map[types.ItemID]types.EngagementCounts, error) {
	return nil, nil
}

func (s *fakeStore) GetPreferences(_ context.Context, userID types.UserID) (*types.Preferences, error) {
	return types.DefaultPreferences(userID), nil
}

func (s *fakeStore) PutPreferences(context.Context, *types.Preferences) error { return nil }

func (s *fakeStore) Stats(context.Context) (*types.Stats, error) { return &types.Stats{}, nil }

func (s *fakeStore) itemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// stubAdapter returns canned drafts or a canned error, optionally
// blocking until its release channel closes.
type stubAdapter struct {
	name   string
	drafts []*types.ItemDraft
	err    error
	block  chan struct{}
}

func (a *stubAdapter) Name() string        { return a.name }
func (a *stubAdapter) Description() string { return "stub" }

func (a *stubAdapter) Fetch(ctx context.Context, _ source.FetchConfig) ([]*types.ItemDraft, error) {
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.drafts, a.err
}

func generalDraft(title, externalID string) *types.ItemDraft {
	return &types.ItemDraft{
		Category:    types.CategoryGeneral,
		Title:       title,
		Description: "from upstream",
		Priority:    3,
		Origin:      "stub",
		ExternalID:  externalID,
	}
}

func addSource(t *testing.T, s *fakeStore, name string, enabled bool) *types.Source {
	t.Helper()
	src := &types.Source{
		Category:       types.CategoryGeneral,
		Name:           name,
		Type:           types.SourceAPI,
		RefreshMinutes: 15,
		Enabled:        enabled,
	}
	created, err := s.CreateSource(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	return created
}

func TestRefreshGeneralFetchesEnabledSources(t *testing.T) {
	store := newFakeStore()
	addSource(t, store, "alpha", true)
	addSource(t, store, "beta", false)

	adapters := source.NewRegistry()
	adapters.Register(&stubAdapter{name: "alpha", drafts: []*types.ItemDraft{
		generalDraft("one", "1"),
		generalDraft("two", "2"),
	}})
	adapters.Register(&stubAdapter{name: "beta", drafts: []*types.ItemDraft{
		generalDraft("never", "3"),
	}})

	o := NewOrchestrator(store, adapters, generate.NewRegistry(), nil)
	drafts, err := o.RefreshGeneral(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 candidates from the enabled source, got %d", len(drafts))
	}
	if len(store.fetches) != 1 || !store.fetches[0].success {
		t.Errorf("expected one successful fetch record, got %+v", store.fetches)
	}
}

func TestRefreshGeneralRecordsFailures(t *testing.T) {
	store := newFakeStore()
	addSource(t, store, "broken", true)
	addSource(t, store, "healthy", true)

	adapters := source.NewRegistry()
	adapters.Register(&stubAdapter{name: "broken", err: errors.New("connection refused")})
	adapters.Register(&stubAdapter{name: "healthy", drafts: []*types.ItemDraft{generalDraft("ok", "1")}})

	o := NewOrchestrator(store, adapters, generate.NewRegistry(), nil)
	drafts, err := o.RefreshGeneral(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 1 {
		t.Fatalf("one source failing must not abort the batch, got %d drafts", len(drafts))
	}

	var failures, successes int
	for _, f := range store.fetches {
		if f.success {
			successes++
		} else {
			failures++
			if !strings.Contains(f.errMsg, "connection refused") {
				t.Errorf("failure record should carry the error, got %q", f.errMsg)
			}
		}
	}
	if failures != 1 || successes != 1 {
		t.Errorf("expected 1 failure and 1 success recorded, got %d/%d", failures, successes)
	}
}

func TestRefreshGeneralBadConfigRecordedAsFailure(t *testing.T) {
	store := newFakeStore()
	src := addSource(t, store, "alpha", true)
	src.Config = map[string]any{"item_limit": "lots"}

	adapters := source.NewRegistry()
	adapters.Register(&stubAdapter{name: "alpha", drafts: []*types.ItemDraft{generalDraft("x", "1")}})

	o := NewOrchestrator(store, adapters, generate.NewRegistry(), nil)
	drafts, err := o.RefreshGeneral(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 0 {
		t.Errorf("rejected config should skip the source, got %d drafts", len(drafts))
	}
	if len(store.fetches) != 1 || store.fetches[0].success {
		t.Errorf("expected one failure record, got %+v", store.fetches)
	}
}

func TestRefreshGeneralLeaseNoOp(t *testing.T) {
	store := newFakeStore()
	addSource(t, store, "slow", true)

	release := make(chan struct{})
	adapters := source.NewRegistry()
	adapters.Register(&stubAdapter{
		name:   "slow",
		drafts: []*types.ItemDraft{generalDraft("late", "1")},
		block:  release,
	})

	o := NewOrchestrator(store, adapters, generate.NewRegistry(), nil)

	first := make(chan []*types.ItemDraft)
	go func() {
		drafts, _ := o.RefreshGeneral(context.Background())
		first <- drafts
	}()

	// Wait for the first refresh to hold the lease, then overlap it.
	deadline := time.After(2 * time.Second)
	for {
		if !o.leases.TryAcquire(types.CategoryGeneral) {
			break
		}
		o.leases.Release(types.CategoryGeneral)
		select {
		case <-deadline:
			t.Fatal("first refresh never acquired the lease")
		case <-time.After(time.Millisecond):
		}
	}

	drafts, err := o.RefreshGeneral(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if drafts != nil {
		t.Errorf("overlapping refresh should be a no-op, got %d drafts", len(drafts))
	}

	close(release)
	if got := <-first; len(got) != 1 {
		t.Errorf("first refresh should complete normally, got %d drafts", len(got))
	}
}

func TestRefreshAllPersistsAndCleansUp(t *testing.T) {
	store := newFakeStore()
	addSource(t, store, "alpha", true)

	adapters := source.NewRegistry()
	adapters.Register(&stubAdapter{name: "alpha", drafts: []*types.ItemDraft{
		generalDraft("one", "1"),
		generalDraft("two", "2"),
		{Category: types.CategoryGeneral, Title: "bad", Description: "", Priority: 3}, // fails validation
	}})

	// Seed an already-expired item for cleanup.
	past := time.Now().Add(-time.Hour)
	if _, err := store.UpsertItem(context.Background(), &types.ItemDraft{
		Category:    types.CategoryGeneral,
		Title:       "old news",
		Description: "long gone",
		Priority:    4,
		ExpiresAt:   &past,
	}); err != nil {
		t.Fatal(err)
	}

	o := NewOrchestrator(store, adapters, generate.NewRegistry(), nil)
	report, err := o.RefreshAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.General.Succeeded != 2 || report.General.Failed != 1 {
		t.Errorf("tally = %+v, want 2 succeeded 1 failed", report.General)
	}
	if report.CleanedUp != 1 {
		t.Errorf("expected 1 cleaned up item, got %d", report.CleanedUp)
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("finished_at before started_at")
	}
}

func TestRefreshAllIdempotentPersistence(t *testing.T) {
	store := newFakeStore()
	addSource(t, store, "alpha", true)

	adapters := source.NewRegistry()
	adapters.Register(&stubAdapter{name: "alpha", drafts: []*types.ItemDraft{generalDraft("one", "1")}})

	o := NewOrchestrator(store, adapters, generate.NewRegistry(), nil)
	for i := 0; i < 2; i++ {
		if _, err := o.RefreshAll(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if n := store.itemCount(); n != 1 {
		t.Errorf("re-fetching the same external item should not duplicate it, got %d rows", n)
	}
}

func TestRefreshForUserMapsFindings(t *testing.T) {
	store := newFakeStore()

	generators := generate.NewRegistry()
	generators.Register(generate.NewCampaignAlert())
	generators.Register(generate.NewPerformanceTrend())

	signals := func(context.Context, types.UserID) (generate.Inputs, error) {
		return generate.Inputs{Campaigns: []generate.CampaignMetric{
			{Campaign: "Spring Launch", Metric: "conversions", Current: 60, Previous: 100}, // -40%: alert, high severity
			{Campaign: "Evergreen", Metric: "ctr", Current: 130, Previous: 100},            // +30%: alert + opportunity
		}}, nil
	}

	o := NewOrchestrator(store, source.NewRegistry(), generators, signals)
	report, err := o.RefreshForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if report.Performance.Succeeded != 2 {
		t.Errorf("performance tally = %+v, want 2 succeeded", report.Performance)
	}
	if report.Insights.Succeeded != 1 {
		t.Errorf("insights tally = %+v, want 1 succeeded", report.Insights)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, it := range store.items {
		switch it.Category {
		case types.CategoryPerformance:
			if it.ExpiresAt == nil {
				t.Errorf("performance finding %q should expire", it.Title)
			}
		case types.CategoryInsights:
			if it.ExpiresAt != nil {
				t.Errorf("insight %q should not expire", it.Title)
			}
			if it.Type != types.DisplaySuccess {
				t.Errorf("positive insight should display as success, got %q", it.Type)
			}
		default:
			t.Errorf("unexpected category %q", it.Category)
		}
		if name, _ := it.Payload["generator"].(string); name == "" {
			t.Errorf("finding %q missing generator in payload", it.Title)
		}
	}
}

func TestRefreshForUserSeverityDisplay(t *testing.T) {
	store := newFakeStore()

	generators := generate.NewRegistry()
	generators.Register(generate.NewSystemHealth())

	signals := func(context.Context, types.UserID) (generate.Inputs, error) {
		return generate.Inputs{System: &generate.SystemStatus{ErrorRate: 0.5, P99Latency: 100}}, nil
	}

	o := NewOrchestrator(store, source.NewRegistry(), generators, signals)
	if _, err := o.RefreshForUser(context.Background(), "user-1"); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(store.items))
	}
	for _, it := range store.items {
		if it.Type != types.DisplayWarning {
			t.Errorf("high severity finding should display as warning, got %q", it.Type)
		}
	}
}

func TestRefreshForUserRerunUpdatesInPlace(t *testing.T) {
	store := newFakeStore()

	generators := generate.NewRegistry()
	generators.Register(generate.NewContentGap())

	signals := func(context.Context, types.UserID) (generate.Inputs, error) {
		return generate.Inputs{Content: []generate.ContentStat{
			{Format: "article", Published: 40, EngagementRate: 0.02},
			{Format: "video", Published: 3, EngagementRate: 0.09},
		}}, nil
	}

	o := NewOrchestrator(store, source.NewRegistry(), generators, signals)
	for i := 0; i < 3; i++ {
		if _, err := o.RefreshForUser(context.Background(), "user-1"); err != nil {
			t.Fatal(err)
		}
	}
	if n := store.itemCount(); n != 1 {
		t.Errorf("re-running a generator should update its finding, got %d rows", n)
	}
}

func TestRefreshForUserNoSignals(t *testing.T) {
	o := NewOrchestrator(newFakeStore(), source.NewRegistry(), generate.NewRegistry(), nil)
	report, err := o.RefreshForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if report.Insights.Succeeded != 0 || report.Performance.Succeeded != 0 {
		t.Errorf("expected empty report without signals, got %+v", report)
	}
}

func TestShouldRefresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{"never populated", time.Time{}, true},
		{"twenty minutes old", now.Add(-20 * time.Minute), true},
		{"ten minutes old", now.Add(-10 * time.Minute), false},
		{"exactly at window", now.Add(-DefaultStalenessWindow), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRefresh(tt.last, now, DefaultStalenessWindow); got != tt.want {
				t.Errorf("ShouldRefresh = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLease(t *testing.T) {
	l := newLease()
	if !l.TryAcquire(types.CategoryGeneral) {
		t.Fatal("first acquire should succeed")
	}
	if l.TryAcquire(types.CategoryGeneral) {
		t.Error("second acquire of a held category should fail")
	}
	if !l.TryAcquire(types.CategoryInsights) {
		t.Error("other categories are independent")
	}
	l.Release(types.CategoryGeneral)
	if !l.TryAcquire(types.CategoryGeneral) {
		t.Error("acquire after release should succeed")
	}
}
