package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/tickerd/internal/types"
)

// DefaultPollInterval is how often the poller reads the feed.
const DefaultPollInterval = 30 * time.Second

// FeedReader is the slice of the ticker service the poller depends on.
type FeedReader interface {
	GetFeed(ctx context.Context, filter types.FeedFilter, userID types.UserID) (*types.FeedPage, error)
}

// Poller reads the feed on an interval and delivers items created after
// the last delivered timestamp. Items that existed before the poller
// started are never replayed.
type Poller struct {
	feed     FeedReader
	registry *Registry
	interval time.Duration
	since    time.Time
	now      func() time.Time
}

// NewPoller creates a Poller pushing to the given registry.
func NewPoller(feed FeedReader, registry *Registry, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		feed:     feed,
		registry: registry,
		interval: interval,
		now:      time.Now,
	}
}

// Run polls until the context is cancelled. It blocks; run it in its own
// goroutine.
func (p *Poller) Run(ctx context.Context) {
	p.since = p.now().UTC()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// poll runs one delivery pass. Failures are logged and retried implicitly
// on the next tick; since only advances past items actually delivered.
func (p *Poller) poll(ctx context.Context) {
	page, err := p.feed.GetFeed(ctx, types.FeedFilter{SortBy: types.SortCreatedAt}, "")
	if err != nil {
		slog.Error("delivery poll failed", "error", err)
		return
	}

	// Newest first from the store; deliver oldest first so sinks see
	// items in creation order.
	var fresh []*types.Item
	for _, item := range page.Items {
		if item.CreatedAt.After(p.since) {
			fresh = append(fresh, item)
		}
	}
	for i := len(fresh) - 1; i >= 0; i-- {
		item := fresh[i]
		if err := p.registry.Deliver(ctx, item); err != nil {
			slog.Error("delivery failed", "item_id", string(item.ID), "error", err)
			return
		}
		p.since = item.CreatedAt
	}
}
