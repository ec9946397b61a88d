package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/tickerd/internal/generate"
	"github.com/user/tickerd/internal/source"
	"github.com/user/tickerd/internal/types"
)

// DefaultFetchTimeout bounds one adapter call so a slow upstream cannot
// stall a whole refresh cycle.
const DefaultFetchTimeout = 30 * time.Second

// SignalFunc gathers the domain signals generators analyze for one user.
type SignalFunc func(ctx context.Context, userID types.UserID) (generate.Inputs, error)

// Orchestrator drives refresh cycles: it fans out to source adapters,
// runs generators, persists candidates through the store, and cleans up
// expired items. Failures local to one source or generator are recorded
// and skipped; a refresh always produces partial results over none.
type Orchestrator struct {
	store        types.Store
	adapters     *source.Registry
	generators   *generate.Registry
	health       *source.HealthTracker
	signals      SignalFunc
	leases       *lease
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewOrchestrator wires an orchestrator over the given store and
// registries. signals may be nil when no generator inputs are available;
// RefreshForUser then produces an empty report.
func NewOrchestrator(store types.Store, adapters *source.Registry, generators *generate.Registry, signals SignalFunc) *Orchestrator {
	return &Orchestrator{
		store:        store,
		adapters:     adapters,
		generators:   generators,
		health:       source.NewHealthTracker(store),
		signals:      signals,
		leases:       newLease(),
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
}

// SetFetchTimeout overrides the per-adapter timeout.
func (o *Orchestrator) SetFetchTimeout(d time.Duration) {
	o.fetchTimeout = d
}

// RefreshGeneral fetches candidates from every enabled general source.
// Health is recorded per source regardless of outcome and nothing is
// persisted here. When a general refresh is already in flight the call
// is a no-op and returns no candidates.
func (o *Orchestrator) RefreshGeneral(ctx context.Context) ([]*types.ItemDraft, error) {
	if !o.leases.TryAcquire(types.CategoryGeneral) {
		slog.Debug("refresh already in flight", "category", types.CategoryGeneral)
		return nil, nil
	}
	defer o.leases.Release(types.CategoryGeneral)

	sources, err := o.store.EnabledSources(ctx, types.CategoryGeneral)
	if err != nil {
		return nil, fmt.Errorf("list enabled sources: %w", err)
	}

	var drafts []*types.ItemDraft
	for _, src := range sources {
		adapter, ok := o.adapters.Get(adapterName(src))
		if !ok {
			slog.Warn("no adapter registered for source", "source", src.Name, "adapter", adapterName(src))
			continue
		}

		cfg, err := source.ParseFetchConfig(src.Config)
		if err != nil {
			slog.Error("source config rejected", "source", src.Name, "error", err)
			o.health.Failed(ctx, src.ID, err)
			continue
		}
		cfg.Endpoint = src.Endpoint

		fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
		candidates, err := adapter.Fetch(fetchCtx, cfg)
		cancel()
		if err != nil {
			slog.Error("source fetch failed", "source", src.Name, "error", err)
			o.health.Failed(ctx, src.ID, err)
			continue
		}

		o.health.Succeeded(ctx, src.ID)
		drafts = append(drafts, candidates...)
		slog.Info("source fetched", "source", src.Name, "candidates", len(candidates))
	}
	return drafts, nil
}

// RefreshAll runs a full cycle: general sources, persistence of their
// candidates, and expiration cleanup. The report tallies persisted and
// failed candidates per category plus the cleanup count.
func (o *Orchestrator) RefreshAll(ctx context.Context) (*types.RefreshReport, error) {
	report := &types.RefreshReport{StartedAt: o.now().UTC()}

	drafts, err := o.RefreshGeneral(ctx)
	if err != nil {
		slog.Error("general refresh failed", "error", err)
	}
	o.persist(ctx, drafts, report)

	if n, err := o.store.CleanupExpired(ctx, o.now().UTC()); err != nil {
		slog.Error("expiration cleanup failed", "error", err)
	} else {
		report.CleanedUp = n
	}

	report.FinishedAt = o.now().UTC()
	slog.Info("refresh cycle finished",
		"general_ok", report.General.Succeeded,
		"general_failed", report.General.Failed,
		"cleaned_up", report.CleanedUp,
		"took", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// RefreshForUser runs every registered generator against the user's
// signals and persists the findings as insights or performance items.
// Categories whose lease is already held are skipped.
func (o *Orchestrator) RefreshForUser(ctx context.Context, userID types.UserID) (*types.RefreshReport, error) {
	report := &types.RefreshReport{StartedAt: o.now().UTC()}
	if o.signals == nil {
		report.FinishedAt = o.now().UTC()
		return report, nil
	}

	in, err := o.signals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("gather signals for %s: %w", userID, err)
	}

	held := make(map[types.Category]bool)
	for _, c := range []types.Category{types.CategoryInsights, types.CategoryPerformance} {
		if o.leases.TryAcquire(c) {
			held[c] = true
			defer o.leases.Release(c)
		}
	}

	for _, g := range o.generators.All() {
		if !held[g.Category()] {
			continue
		}
		findings, err := g.Generate(ctx, userID, in)
		if err != nil {
			slog.Error("generator failed", "generator", g.Name(), "error", err)
			report.Tally(g.Category()).Failed++
			continue
		}
		for _, f := range findings {
			draft := o.draftFromFinding(g, userID, f)
			tally := report.Tally(draft.Category)
			if _, err := o.store.UpsertItem(ctx, draft); err != nil {
				slog.Error("persist finding failed", "generator", g.Name(), "title", f.Title, "error", err)
				tally.Failed++
				continue
			}
			tally.Succeeded++
		}
	}

	report.FinishedAt = o.now().UTC()
	return report, nil
}

// persist upserts drafts and tallies the outcome per category. A failed
// upsert never aborts the batch.
func (o *Orchestrator) persist(ctx context.Context, drafts []*types.ItemDraft, report *types.RefreshReport) {
	for _, d := range drafts {
		tally := report.Tally(d.Category)
		if _, err := o.store.UpsertItem(ctx, d); err != nil {
			slog.Error("persist candidate failed", "title", d.Title, "origin", d.Origin, "error", err)
			tally.Failed++
			continue
		}
		tally.Succeeded++
	}
}

// draftFromFinding maps a generator finding onto a canonical item draft.
// The natural key is generator name plus user and title, so re-running a
// generator updates its earlier finding instead of duplicating it.
func (o *Orchestrator) draftFromFinding(g generate.Generator, userID types.UserID, f types.Finding) *types.ItemDraft {
	display := types.DisplayUpdate
	switch {
	case f.Severity == "high":
		display = types.DisplayWarning
	case f.Positive:
		display = types.DisplaySuccess
	}

	payload := map[string]any{
		"generator":  g.Name(),
		"kind":       f.Kind,
		"confidence": f.Confidence,
	}
	if len(f.ActionItems) > 0 {
		payload["action_items"] = f.ActionItems
	}
	if len(f.Metrics) > 0 {
		payload["metrics"] = f.Metrics
	}

	draft := &types.ItemDraft{
		Category:    g.Category(),
		Title:       f.Title,
		Description: f.Description,
		Icon:        f.Icon,
		Type:        display,
		Priority:    f.Priority,
		Payload:     payload,
		Origin:      g.Name(),
		ExternalID:  fmt.Sprintf("%s/%s", userID, f.Title),
	}

	// Performance findings describe a moment; they age out instead of
	// lingering in the feed.
	if g.Category() == types.CategoryPerformance {
		exp := o.now().UTC().Add(24 * time.Hour)
		draft.ExpiresAt = &exp
	}
	return draft
}

// adapterName resolves which registered adapter serves a source. Sources
// may name a shared adapter explicitly in config (several RSS sources all
// using the feed adapter); otherwise the source name is the adapter name.
func adapterName(src *types.Source) string {
	if src.Config != nil {
		if name, ok := src.Config["adapter"].(string); ok && name != "" {
			return name
		}
	}
	return src.Name
}
