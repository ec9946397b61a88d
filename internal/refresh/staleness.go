// Package refresh decides when source adapters and generators run,
// persists their candidates idempotently, and retires expired items. It
// owns the per-category refresh lease, the background queue, and the
// cron driver; all actual I/O happens through the store and adapter
// boundaries.
package refresh

import "time"

// DefaultStalenessWindow is how old the newest item in a category may be
// before a read should schedule a background refresh.
const DefaultStalenessWindow = 15 * time.Minute

// ShouldRefresh reports whether a category whose newest item was created
// at lastItemTime is stale at now. A zero lastItemTime means the category
// has never been populated and is always stale.
func ShouldRefresh(lastItemTime, now time.Time, window time.Duration) bool {
	if lastItemTime.IsZero() {
		return true
	}
	return now.Sub(lastItemTime) > window
}
