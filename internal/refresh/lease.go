package refresh

import (
	"sync"

	"github.com/user/tickerd/internal/types"
)

// lease serializes refreshes per category. Persistence is idempotent, so
// the lease is about not re-fetching the same sources twice in parallel,
// not about correctness of the stored data.
type lease struct {
	mu   sync.Mutex
	held map[types.Category]bool
}

func newLease() *lease {
	return &lease{held: make(map[types.Category]bool)}
}

// TryAcquire claims the category if it is free. It never blocks; a false
// return means a refresh for the category is already in flight and the
// caller should treat its own attempt as a no-op.
func (l *lease) TryAcquire(c types.Category) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[c] {
		return false
	}
	l.held[c] = true
	return true
}

func (l *lease) Release(c types.Category) {
	l.mu.Lock()
	delete(l.held, c)
	l.mu.Unlock()
}
