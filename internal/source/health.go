package source

import (
	"context"
	"log/slog"

	"github.com/user/tickerd/internal/types"
)

// HealthTracker records fetch outcomes against source rows. It is pure
// bookkeeping: repeated failures accumulate counters for operators but
// never disable a source. The enabled flag stays admin-controlled.
type HealthTracker struct {
	sources types.SourceStore
}

// NewHealthTracker creates a tracker backed by the given source store.
func NewHealthTracker(sources types.SourceStore) *HealthTracker {
	return &HealthTracker{sources: sources}
}

// Succeeded records a successful fetch attempt.
func (h *HealthTracker) Succeeded(ctx context.Context, id types.SourceID) {
	if err := h.sources.RecordFetch(ctx, id, true, ""); err != nil {
		slog.Error("record fetch success failed", "source_id", id, "error", err)
	}
}

// Failed records a failed fetch attempt with its error.
func (h *HealthTracker) Failed(ctx context.Context, id types.SourceID, fetchErr error) {
	msg := ""
	if fetchErr != nil {
		msg = fetchErr.Error()
	}
	if err := h.sources.RecordFetch(ctx, id, false, msg); err != nil {
		slog.Error("record fetch failure failed", "source_id", id, "error", err)
	}
}
