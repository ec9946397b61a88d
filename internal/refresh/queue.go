package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/tickerd/internal/types"
)

// laneBuffer bounds how many pending refresh requests one category can
// hold. Staleness triggers fire on every stale read, so the buffer stays
// small and extra requests are dropped.
const laneBuffer = 4

// Queue runs background refreshes with one FIFO lane per category and a
// global concurrency semaphore. A category's lane processes sequentially,
// so a category never refreshes concurrently with itself, while the
// semaphore caps how many categories refresh at once.
type Queue struct {
	lanes     map[types.Category]chan struct{}
	semaphore *semaphore.Weighted
	processor func(ctx context.Context, c types.Category) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewQueue creates a Queue that allows up to maxConcurrent category
// refreshes to execute simultaneously.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[types.Category]chan struct{}),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// SetProcessor sets the function invoked for each dequeued refresh
// request. Must be set before Start.
func (q *Queue) SetProcessor(fn func(ctx context.Context, c types.Category) error) {
	q.processor = fn
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for
// in-flight refreshes to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.lanes = make(map[types.Category]chan struct{})
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue requests a background refresh of the category, creating its
// lane on first use. It never blocks; when the lane's buffer is full the
// request is redundant and an error is returned.
func (q *Queue) Enqueue(c types.Category) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, exists := q.lanes[c]
	if !exists {
		lane = make(chan struct{}, laneBuffer)
		q.lanes[c] = lane
		q.wg.Add(1)
		go q.processLane(c, lane)
	}

	select {
	case lane <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("refresh queue full for category %s", c)
	}
}

// processLane drains one category lane, acquiring a semaphore slot before
// running the processor synchronously. Strict FIFO within the lane keeps
// a category serial; the semaphore limits cross-category parallelism.
func (q *Queue) processLane(c types.Category, lane chan struct{}) {
	defer q.wg.Done()
	for {
		select {
		case _, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			if q.processor != nil {
				q.active.Add(1)
				if err := q.processor(q.ctx, c); err != nil {
					slog.Error("background refresh failed", "category", c, "error", err)
				}
				q.active.Add(-1)
			}
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

// WaitIdle blocks until no refreshes are actively being processed, or
// the timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
