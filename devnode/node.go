// Package devnode is a single-process development node: it accepts
// signed batches over the REST gateway protocol, runs them through a
// transaction processor one at a time in submission order and commits
// their writes to a state store.
//
// It never produces blocks or talks to peers. A batch is committed as a
// whole or not at all. A processor fault leaves the batch PENDING and
// is retried with backoff; a batch that keeps failing is abandoned and
// stays PENDING for good.
package devnode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/envelope"
	"github.com/blockberries/cookiejar/processor"
	"github.com/blockberries/cookiejar/statestore"
	"github.com/blockberries/cookiejar/types"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when the queue has no room for
// every new batch of a list. Nothing of the list is accepted.
var ErrQueueFull = errors.New("devnode: batch queue is full")

const (
	DefaultQueueSize  = 1024
	DefaultRetryLimit = 5
)

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(n *Node) { n.log = log }
}

// WithQueueSize bounds the number of batches waiting for execution.
func WithQueueSize(size int) Option {
	return func(n *Node) { n.queueSize = size }
}

// WithRetry sets how often a batch is executed again after a processor
// fault, and the delay bounds between attempts. A zero delay keeps the
// default.
func WithRetry(limit int, initial, max time.Duration) Option {
	return func(n *Node) {
		n.retryLimit = limit
		if initial > 0 {
			n.retryInitial = initial
		}
		if max > 0 {
			n.retryMax = max
		}
	}
}

type job struct {
	batch   types.Batch
	headers []types.TransactionHeader
}

// Node is a development node.
type Node struct {
	exec     *executor
	store    statestore.Store
	tracker  *tracker
	hub      *Hub
	registry *prometheus.Registry
	metrics  *metrics
	log      *zap.Logger

	queueSize int
	queue     chan job
	// Serializes Submit so queue room checked for a list stays free.
	submitMu sync.Mutex

	retryLimit   int
	retryInitial time.Duration
	retryMax     time.Duration

	// Commit position of the last committed batch. Owned by Run.
	sequence uint64
}

// New creates a node that executes batches through conn and keeps state
// in store. The node owns neither: the caller closes both after Run
// returns.
func New(conn cookiejar.Connection, store statestore.Store, opts ...Option) (*Node, error) {
	n := &Node{
		store:        store,
		tracker:      newTracker(),
		registry:     prometheus.NewRegistry(),
		log:          zap.NewNop(),
		queueSize:    DefaultQueueSize,
		retryLimit:   DefaultRetryLimit,
		retryInitial: 100 * time.Millisecond,
		retryMax:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.queue = make(chan job, n.queueSize)
	n.exec = newExecutor(conn, store, n.log)
	n.hub = newHub(n.log)

	m, err := newMetrics(n.registry, func() float64 { return float64(len(n.queue)) })
	if err != nil {
		return nil, err
	}
	n.metrics = m
	return n, nil
}

// Hub returns the state-change event hub.
func (n *Node) Hub() *Hub { return n.hub }

// Gatherer returns the node's metrics.
func (n *Node) Gatherer() prometheus.Gatherer { return n.registry }

// Submit verifies every batch of list and queues the new ones for
// execution. A list with any invalid batch, or with more new batches
// than the queue has room for, is refused as a whole. Batches already
// known are ignored. It returns the ids of all batches in list.
func (n *Node) Submit(list types.BatchList) ([]string, error) {
	if len(list.Batches) == 0 {
		return nil, cookiejar.NewInvalidTransaction("no batches submitted")
	}
	jobs := make([]job, len(list.Batches))
	ids := make([]string, len(list.Batches))
	for i, b := range list.Batches {
		_, headers, err := envelope.VerifyBatch(b)
		if err != nil {
			return nil, err
		}
		jobs[i] = job{batch: b, headers: headers}
		ids[i] = b.ID()
	}

	n.submitMu.Lock()
	defer n.submitMu.Unlock()

	fresh := make([]job, 0, len(jobs))
	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		id := j.batch.ID()
		if seen[id] || n.tracker.get(id).Status != types.StatusUnknown {
			n.log.Debug("ignoring duplicate batch", zap.String("batch", id))
			continue
		}
		seen[id] = true
		fresh = append(fresh, j)
	}
	// Only the worker takes from the queue, so the room can only grow
	// while the lock is held.
	if room := cap(n.queue) - len(n.queue); len(fresh) > room {
		return nil, fmt.Errorf("%w: %d new batches, room for %d", ErrQueueFull, len(fresh), room)
	}
	for _, j := range fresh {
		n.tracker.add(j.batch.ID())
		n.queue <- j
		n.metrics.submitted.Inc()
	}
	return ids, nil
}

// Status returns the status of batch id.
func (n *Node) Status(id string) types.BatchStatus { return n.tracker.get(id) }

// Wait returns the statuses of ids once all are terminal or unknown, or
// when wait elapses.
func (n *Node) Wait(ctx context.Context, ids []string, wait time.Duration) []types.BatchStatus {
	return n.tracker.wait(ctx, ids, wait)
}

// State returns the committed value at addr.
func (n *Node) State(addr string) ([]byte, bool, error) {
	return n.store.Get(addr)
}

// Run registers with the processor and executes queued batches until
// ctx is done.
func (n *Node) Run(ctx context.Context) error {
	if err := n.exec.handshake(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-n.queue:
			if err := n.process(ctx, j); err != nil && ctx.Err() != nil {
				return nil
			}
		}
	}
}

// process executes and commits one batch, retrying processor faults in
// place so later batches never overtake it.
func (n *Node) process(ctx context.Context, j job) error {
	id := j.batch.ID()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.retryInitial
	b.MaxInterval = n.retryMax
	b.MaxElapsedTime = 0

	op := func() error {
		err := n.apply(ctx, j)
		if errors.Is(err, processor.ErrNotRegistered) {
			if herr := n.exec.handshake(ctx); herr != nil {
				n.log.Warn("processor handshake failed", zap.Error(herr))
			}
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		n.metrics.retries.Inc()
		n.log.Warn("batch execution failed, retrying",
			zap.String("batch", id),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(n.retryLimit)), ctx), notify)
	if err != nil && ctx.Err() == nil {
		n.metrics.abandoned.Inc()
		n.log.Error("abandoning batch, it stays pending",
			zap.String("batch", id),
			zap.Int("retries", n.retryLimit),
			zap.Error(err),
		)
	}
	return err
}

func (n *Node) apply(ctx context.Context, j job) error {
	if _, err := n.exec.execute(ctx, j.batch, j.headers); err != nil {
		return err
	}
	out, err := n.exec.commit()
	if err != nil {
		return err
	}

	st := out.status()
	n.tracker.set(st)
	if st.Status == types.StatusInvalid {
		n.metrics.invalid.Inc()
		n.log.Info("batch invalid",
			zap.String("batch", out.batchID),
			zap.String("reason", out.invalid.Message),
		)
		return nil
	}

	n.sequence++
	n.metrics.committed.Inc()
	n.log.Info("batch committed",
		zap.String("batch", out.batchID),
		zap.Uint64("sequence", n.sequence),
		zap.Int("writes", len(out.writes)),
	)
	n.hub.Publish(types.StateChangeEvent{
		Sequence:     n.sequence,
		BatchID:      out.batchID,
		StateChanges: changes(out.writes),
	})
	return nil
}

func changes(writes []types.StateEntry) []types.StateChange {
	out := make([]types.StateChange, len(writes))
	for i, w := range writes {
		if len(w.Data) == 0 {
			out[i] = types.StateChange{Type: types.ChangeDelete, Address: w.Address}
			continue
		}
		out[i] = types.StateChange{Type: types.ChangeSet, Address: w.Address, Value: w.Data}
	}
	return out
}

// Close disconnects event subscribers.
func (n *Node) Close() error {
	n.hub.Close()
	return nil
}
