package devnode

import (
	"context"
	"sync"
	"time"

	"github.com/blockberries/cookiejar/types"
)

type tracked struct {
	status types.BatchStatus
	// Closed once the status is terminal.
	done chan struct{}
}

// tracker records the status of every batch the node accepted and lets
// readers wait for a batch to leave PENDING.
type tracker struct {
	mu      sync.Mutex
	batches map[string]*tracked
}

func newTracker() *tracker {
	return &tracker{batches: make(map[string]*tracked)}
}

// add starts tracking id as PENDING. It returns false if id is already
// known.
func (t *tracker) add(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.batches[id]; ok {
		return false
	}
	t.batches[id] = &tracked{
		status: types.BatchStatus{ID: id, Status: types.StatusPending},
		done:   make(chan struct{}),
	}
	return true
}

// set records a terminal status and wakes every waiter.
func (t *tracker) set(st types.BatchStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.batches[st.ID]
	if !ok || b.status.Status.Terminal() {
		return
	}
	b.status = st
	if st.Status.Terminal() {
		close(b.done)
	}
}

// get returns the status of id, UNKNOWN if it was never accepted.
func (t *tracker) get(id string) types.BatchStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.batches[id]; ok {
		return b.status
	}
	return types.BatchStatus{ID: id, Status: types.StatusUnknown}
}

// wait blocks until every id is terminal or unknown, wait elapses or
// ctx is done, and returns the statuses in the order of ids.
func (t *tracker) wait(ctx context.Context, ids []string, wait time.Duration) []types.BatchStatus {
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
	loop:
		for _, id := range ids {
			done := t.doneChan(id)
			if done == nil {
				continue
			}
			select {
			case <-done:
			case <-timer.C:
				break loop
			case <-ctx.Done():
				break loop
			}
		}
	}

	out := make([]types.BatchStatus, len(ids))
	for i, id := range ids {
		out[i] = t.get(id)
	}
	return out
}

func (t *tracker) doneChan(id string) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.batches[id]; ok {
		return b.done
	}
	return nil
}
