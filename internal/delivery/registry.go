// Package delivery streams feed items to outbound channels. It is a thin
// client of the ticker service: a poller reads the feed on an interval
// and pushes items newer than the last delivery to registered sinks.
package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/tickerd/internal/types"
)

// Sink pushes one feed item to an outbound channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, item *types.Item) error
}

// Registry holds the registered sinks.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRegistry creates an empty sink registry.
func NewRegistry() *Registry {
	return &Registry{
		sinks: make(map[string]Sink),
	}
}

// Register adds a sink under its name.
func (r *Registry) Register(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[s.Name()] = s
}

// Deliver pushes the item to every registered sink. One sink failing does
// not stop delivery to the others; the first error is returned.
func (r *Registry) Deliver(ctx context.Context, item *types.Item) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var firstErr error
	for name, sink := range r.sinks {
		if err := sink.Deliver(ctx, item); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sink %s: %w", name, err)
		}
	}
	return firstErr
}

// Len returns the number of registered sinks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}
