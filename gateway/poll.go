package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/types"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var errPending = errors.New("batch pending")

// Result is the terminal outcome of a submitted batch.
type Result struct {
	BatchID             string
	Status              types.Status
	InvalidTransactions []types.InvalidTransactionInfo
}

// Committed returns true if the batch was committed.
func (r Result) Committed() bool { return r.Status == types.StatusCommitted }

// Err returns an *cookiejar.InvalidTransaction describing why the batch
// was rejected, or nil if it was committed.
func (r Result) Err() error {
	if r.Status != types.StatusInvalid {
		return nil
	}
	if len(r.InvalidTransactions) == 0 {
		return cookiejar.NewInvalidTransaction("batch %s rejected", r.BatchID)
	}
	msgs := make([]string, len(r.InvalidTransactions))
	for i, it := range r.InvalidTransactions {
		msgs[i] = it.Message
	}
	return &cookiejar.InvalidTransaction{Reason: strings.Join(msgs, "; ")}
}

// Poll waits until the batch id reaches a terminal status or timeout
// elapses. Status requests carry a server-side wait hint and are spaced
// by an exponential backoff. Requests that fail in transit or with a
// server error are retried within the same budget; a client error ends
// the wait. When the budget runs out the result is a
// *cookiejar.TimeoutError: the batch may still be committed and may be
// polled again. Cancelling ctx stops the wait but never the batch.
func (c *Client) Poll(ctx context.Context, id string, timeout time.Duration) (Result, error) {
	start := time.Now()
	deadline := start.Add(timeout)
	pctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0

	var (
		last    types.BatchStatus
		lastErr error
	)
	op := func() error {
		st, err := c.BatchStatus(pctx, id, c.waitHint(deadline))
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			// A request cut short by the deadline is not a failure of
			// the node.
			if pctx.Err() == nil {
				lastErr = err
				c.log.Debug("batch status failed, retrying", zap.String("batch", id), zap.Error(err))
			}
			return err
		}
		last, lastErr = st, nil
		if !st.Status.Terminal() {
			c.log.Debug("batch not yet terminal", zap.String("batch", id), zap.String("status", string(st.Status)))
			return errPending
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, pctx))
	switch {
	case err == nil:
		return Result{
			BatchID:             id,
			Status:              last.Status,
			InvalidTransactions: last.InvalidTransactions,
		}, nil
	case ctx.Err() != nil:
		return Result{}, ctx.Err()
	case pctx.Err() != nil || errors.Is(err, errPending):
		return Result{BatchID: id, Status: types.StatusPending}, &cookiejar.TimeoutError{
			BatchID: id,
			Waited:  time.Since(start).Round(time.Millisecond),
			Last:    lastErr,
		}
	default:
		return Result{}, err
	}
}

// retryable reports whether a failed status request may succeed later:
// the node was unreachable or answered with a server error.
func retryable(err error) bool {
	if _, ok := cookiejar.IsTransport(err); ok {
		return true
	}
	if h, ok := cookiejar.IsHTTP(err); ok {
		return h.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// SubmitAndWait submits a serialized batch list holding the batch id and
// polls it to a terminal status.
func (c *Client) SubmitAndWait(ctx context.Context, batchList []byte, id string, timeout time.Duration) (Result, error) {
	if _, err := c.Submit(ctx, batchList); err != nil {
		return Result{}, err
	}
	return c.Poll(ctx, id, timeout)
}

// waitHint is the server-side wait for the next status request: the
// configured wait, capped at MaxWait and at the remaining budget.
func (c *Client) waitHint(deadline time.Time) time.Duration {
	wait := min(c.wait, MaxWait, time.Until(deadline))
	if wait < time.Second {
		return 0
	}
	return wait
}
