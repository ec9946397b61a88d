package ticker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/tickerd/internal/feed"
	"github.com/user/tickerd/internal/generate"
	"github.com/user/tickerd/internal/refresh"
	"github.com/user/tickerd/internal/source"
	"github.com/user/tickerd/internal/store"
	"github.com/user/tickerd/internal/types"
)

// countingAdapter serves canned drafts and counts fetches.
type countingAdapter struct {
	drafts  []*types.ItemDraft
	fetches atomic.Int32
}

func (a *countingAdapter) Name() string        { return "counting" }
func (a *countingAdapter) Description() string { return "test adapter" }

func (a *countingAdapter) Fetch(context.Context, source.FetchConfig) ([]*types.ItemDraft, error) {
	a.fetches.Add(1)
	return a.drafts, nil
}

type harness struct {
	svc     *Service
	store   *store.SQLite
	adapter *countingAdapter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	adapter := &countingAdapter{drafts: []*types.ItemDraft{{
		Category:    types.CategoryGeneral,
		Title:       "fetched headline",
		Description: "fresh from upstream",
		Priority:    3,
		Origin:      "counting",
		ExternalID:  "c-1",
	}}}
	adapters := source.NewRegistry()
	adapters.Register(adapter)

	generators := generate.NewRegistry()
	generators.Register(generate.NewSystemHealth())

	signals := func(context.Context, types.UserID) (generate.Inputs, error) {
		return generate.Inputs{System: &generate.SystemStatus{ErrorRate: 0.5, P99Latency: 100}}, nil
	}

	orch := refresh.NewOrchestrator(st, adapters, generators, signals)
	composer := feed.New(st, st, st)
	queue := refresh.NewQueue(2)

	svc := New(st, composer, orch, queue)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	if _, err := svc.CreateSource(context.Background(), &types.Source{
		Category:       types.CategoryGeneral,
		Name:           "counting",
		Type:           types.SourceAPI,
		RefreshMinutes: 15,
		Enabled:        true,
	}); err != nil {
		t.Fatal(err)
	}

	return &harness{svc: svc, store: st, adapter: adapter}
}

func createItem(t *testing.T, svc *Service, title string) *types.Item {
	t.Helper()
	item, err := svc.CreateItem(context.Background(), &types.ItemDraft{
		Category:    types.CategoryGeneral,
		Title:       title,
		Description: "seeded",
		Priority:    3,
	})
	if err != nil {
		t.Fatal(err)
	}
	return item
}

func TestGetFeedSchedulesRefreshWhenStale(t *testing.T) {
	h := newHarness(t)
	createItem(t, h.svc, "old headline")

	// A zero window makes any existing item stale.
	h.svc.SetStalenessWindow(0)

	page, err := h.svc.GetFeed(context.Background(), types.FeedFilter{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("stale data should be returned immediately, got %d items", len(page.Items))
	}

	waitForFetches(t, h.adapter, 1)
}

func TestGetFeedFreshDataNoRefresh(t *testing.T) {
	h := newHarness(t)
	createItem(t, h.svc, "recent headline")

	if _, err := h.svc.GetFeed(context.Background(), types.FeedFilter{}, ""); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if n := h.adapter.fetches.Load(); n != 0 {
		t.Errorf("fresh general stream should not trigger a refresh, got %d fetches", n)
	}
}

func TestGetFeedNonGeneralReadSkipsStalenessCheck(t *testing.T) {
	h := newHarness(t)

	filter := types.FeedFilter{Categories: []types.Category{types.CategoryInsights}}
	if _, err := h.svc.GetFeed(context.Background(), filter, ""); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if n := h.adapter.fetches.Load(); n != 0 {
		t.Errorf("insights-only read should not refresh general, got %d fetches", n)
	}
}

func TestGetFeedEmptyStoreSchedulesRefresh(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.GetFeed(context.Background(), types.FeedFilter{}, ""); err != nil {
		t.Fatal(err)
	}
	waitForFetches(t, h.adapter, 1)
}

func TestCreateItemValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateItem(context.Background(), &types.ItemDraft{
		Category:    types.CategoryGeneral,
		Title:       "",
		Description: "no title",
		Priority:    3,
	})
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "title" {
		t.Errorf("expected title violation, got %q", verr.Field)
	}
}

func TestTrackEngagementAffectsRelevance(t *testing.T) {
	h := newHarness(t)
	a := createItem(t, h.svc, "first headline")
	b := createItem(t, h.svc, "second headline")

	for i := 0; i < 5; i++ {
		if err := h.svc.TrackEngagement(context.Background(), "user-1", b.ID, types.ActionClick, nil); err != nil {
			t.Fatal(err)
		}
	}

	page, err := h.svc.GetFeed(context.Background(), types.FeedFilter{}, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	if page.Items[0].ID != b.ID || page.Items[1].ID != a.ID {
		t.Errorf("clicked item should rank first, got %q then %q", page.Items[0].Title, page.Items[1].Title)
	}
}

func TestRefreshNowPersistsCandidates(t *testing.T) {
	h := newHarness(t)

	report, err := h.svc.RefreshNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.General.Succeeded != 1 {
		t.Errorf("tally = %+v, want 1 succeeded", report.General)
	}

	page, err := h.svc.GetFeed(context.Background(), types.FeedFilter{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].Origin != "counting" {
		t.Errorf("fetched candidate should be in the feed, got %+v", page.Items)
	}
}

func TestRefreshUserPersistsFindings(t *testing.T) {
	h := newHarness(t)

	report, err := h.svc.RefreshUser(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if report.Performance.Succeeded != 1 {
		t.Errorf("performance tally = %+v, want 1 succeeded", report.Performance)
	}

	filter := types.FeedFilter{Categories: []types.Category{types.CategoryPerformance}}
	page, err := h.svc.GetFeed(context.Background(), filter, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected the finding in the performance feed, got %d items", len(page.Items))
	}
	if page.Items[0].Type != types.DisplayWarning {
		t.Errorf("high severity finding should display as warning, got %q", page.Items[0].Type)
	}
}

func TestTriggerRefreshAccepted(t *testing.T) {
	h := newHarness(t)

	if err := h.svc.TriggerRefresh(); err != nil {
		t.Fatal(err)
	}
	waitForFetches(t, h.adapter, 1)

	// A second trigger while one is pending is still accepted.
	if err := h.svc.TriggerRefresh(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateSourceRejectsBadFetchConfig(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateSource(context.Background(), &types.Source{
		Category:       types.CategoryGeneral,
		Name:           "misconfigured",
		Type:           types.SourceAPI,
		RefreshMinutes: 15,
		Enabled:        true,
		Config:         map[string]any{"item_limit": -3},
	})
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for bad fetch config, got %v", err)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	h := newHarness(t)

	prefs, err := h.svc.GetPreferences(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(prefs.EnabledCategories) != len(types.Categories()) {
		t.Errorf("unknown user should get defaults, got %+v", prefs)
	}

	prefs.EnabledCategories = []types.Category{types.CategoryInsights}
	prefs.PriorityThreshold = 2
	if err := h.svc.PutPreferences(context.Background(), prefs); err != nil {
		t.Fatal(err)
	}

	got, err := h.svc.GetPreferences(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.EnabledCategories) != 1 || got.EnabledCategories[0] != types.CategoryInsights {
		t.Errorf("stored preferences not returned, got %+v", got)
	}
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	createItem(t, h.svc, "counted headline")

	stats, err := h.svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 1 || stats.ActiveItems != 1 {
		t.Errorf("stats = %+v, want 1 total 1 active", stats)
	}
	if stats.TotalSources != 1 {
		t.Errorf("expected the harness source counted, got %d", stats.TotalSources)
	}
}

func waitForFetches(t *testing.T, a *countingAdapter, want int32) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if a.fetches.Load() >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected %d fetches, got %d", want, a.fetches.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
