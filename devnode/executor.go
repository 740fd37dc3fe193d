package devnode

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/statestore"
	"github.com/blockberries/cookiejar/types"

	"go.uber.org/zap"
)

// committedPrefix keys the record of each committed transaction id in
// the store. Storage addresses are lowercase hex, so the keys never
// collide with state and are unreachable through GET /state.
const committedPrefix = "committed/"

func committedKey(txnID string) string { return committedPrefix + txnID }

// outcome is the result of running one batch through the processor.
type outcome struct {
	batchID string
	// Transaction ids recorded as committed along with writes.
	txnIDs []string
	// Coalesced writes in first-write order. Empty when invalid.
	writes []types.StateEntry
	// Set when a transaction rejected the batch.
	invalid *types.InvalidTransactionInfo
}

func (o *outcome) status() types.BatchStatus {
	if o.invalid != nil {
		return types.BatchStatus{
			ID:                  o.batchID,
			Status:              types.StatusInvalid,
			InvalidTransactions: []types.InvalidTransactionInfo{*o.invalid},
		}
	}
	return types.BatchStatus{ID: o.batchID, Status: types.StatusCommitted}
}

// executor runs batches through a processor connection and commits
// their outcome to the store, one batch at a time.
type executor struct {
	conn  cookiejar.Connection
	store statestore.Store
	guard *phaseGuard
	log   *zap.Logger

	mu   sync.Mutex
	info types.ProcessorInfo
	// Outcome held between execute and commit.
	last *outcome
}

func newExecutor(conn cookiejar.Connection, store statestore.Store, log *zap.Logger) *executor {
	return &executor{
		conn:  conn,
		store: store,
		guard: newPhaseGuard(),
		log:   log,
	}
}

// handshake registers with the processor and learns which family it
// serves.
func (e *executor) handshake(ctx context.Context) error {
	info, err := e.conn.Info(ctx, types.InfoRequest{})
	if err != nil {
		return fmt.Errorf("processor handshake: %w", err)
	}
	e.guard.handshake()

	e.mu.Lock()
	e.info = info
	e.mu.Unlock()

	e.log.Info("processor connected",
		zap.String("family", info.FamilyName),
		zap.Strings("versions", info.FamilyVersions),
		zap.Strings("namespaces", info.Namespaces),
	)
	return nil
}

func (e *executor) serves(h types.TransactionHeader) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return h.FamilyName == e.info.FamilyName && slices.Contains(e.info.FamilyVersions, h.FamilyVersion)
}

// execute runs every transaction of b in order. A rejected transaction
// ends the batch with an invalid outcome. A processor fault returns an
// error and leaves nothing held, so the batch can be retried.
func (e *executor) execute(ctx context.Context, b types.Batch, headers []types.TransactionHeader) (*outcome, error) {
	e.guard.acquireExecute()

	out, err := e.run(ctx, b, headers)
	if err != nil {
		e.guard.failExecute()
		return nil, err
	}

	e.mu.Lock()
	e.last = out
	e.mu.Unlock()

	e.guard.completeExecute()
	return out, nil
}

func (e *executor) run(ctx context.Context, b types.Batch, headers []types.TransactionHeader) (*outcome, error) {
	// Writes of earlier transactions in this batch, visible to later ones.
	pending := make(map[string][]byte)
	var order []string
	txnIDs := make([]string, 0, len(b.Transactions))

	for i, txn := range b.Transactions {
		h := headers[i]
		if slices.Contains(txnIDs, txn.ID()) {
			return &outcome{batchID: b.ID(), invalid: &types.InvalidTransactionInfo{
				ID:      txn.ID(),
				Message: fmt.Sprintf("transaction %s appears twice in the batch", txn.ID()),
			}}, nil
		}
		committed, err := e.committed(txn.ID())
		if err != nil {
			return nil, err
		}
		if committed {
			return &outcome{batchID: b.ID(), invalid: &types.InvalidTransactionInfo{
				ID:      txn.ID(),
				Message: fmt.Sprintf("transaction %s was already committed", txn.ID()),
			}}, nil
		}
		txnIDs = append(txnIDs, txn.ID())

		if !e.serves(h) {
			return &outcome{batchID: b.ID(), invalid: &types.InvalidTransactionInfo{
				ID:      txn.ID(),
				Message: fmt.Sprintf("no processor for family %s version %s", h.FamilyName, h.FamilyVersion),
			}}, nil
		}

		inputs, err := e.prefetch(h.Inputs, pending)
		if err != nil {
			return nil, err
		}
		resp, err := e.conn.Process(ctx, types.ProcessRequest{
			Header:    txn.Header,
			Payload:   txn.Payload,
			Signature: txn.HeaderSignature,
			Inputs:    inputs,
		})
		if err != nil {
			return nil, cookiejar.NewInternalError(err, "process transaction %s", txn.ID())
		}

		switch resp.Status {
		case types.ProcessOK:
			for _, w := range resp.Writes {
				if _, seen := pending[w.Address]; !seen {
					order = append(order, w.Address)
				}
				pending[w.Address] = w.Data
			}
		case types.ProcessInvalidTransaction:
			e.log.Debug("transaction rejected",
				zap.String("batch", b.ID()),
				zap.String("transaction", txn.ID()),
				zap.String("reason", resp.Message),
			)
			return &outcome{batchID: b.ID(), invalid: &types.InvalidTransactionInfo{
				ID:      txn.ID(),
				Message: resp.Message,
			}}, nil
		default:
			return nil, cookiejar.NewInternalError(nil, "transaction %s: %s: %s", txn.ID(), resp.Status, resp.Message)
		}
	}

	writes := make([]types.StateEntry, len(order))
	for i, addr := range order {
		writes[i] = types.StateEntry{Address: addr, Data: pending[addr]}
	}
	return &outcome{batchID: b.ID(), txnIDs: txnIDs, writes: writes}, nil
}

// committed reports whether a transaction with txnID was committed by
// an earlier batch.
func (e *executor) committed(txnID string) (bool, error) {
	_, ok, err := e.store.Get(committedKey(txnID))
	if err != nil {
		return false, cookiejar.NewInternalError(err, "look up transaction %s", txnID)
	}
	return ok, nil
}

// prefetch loads the current values of the declared inputs. Only full
// addresses are loaded; prefix declarations grant access without
// prefetching. Absent entries are omitted.
func (e *executor) prefetch(inputs []string, pending map[string][]byte) ([]types.StateEntry, error) {
	var out []types.StateEntry
	seen := make(map[string]bool, len(inputs))
	for _, addr := range inputs {
		if seen[addr] || address.Validate(addr) != nil {
			continue
		}
		seen[addr] = true

		data, ok := pending[addr]
		if !ok {
			var err error
			data, ok, err = e.store.Get(addr)
			if err != nil {
				return nil, cookiejar.NewInternalError(err, "read %s", addr)
			}
		}
		if ok && len(data) > 0 {
			out = append(out, types.StateEntry{Address: addr, Data: data})
		}
	}
	return out, nil
}

// commit writes the held outcome to the store together with the ids of
// its transactions. An invalid outcome writes nothing. On a store
// failure nothing is written and the batch must be executed again.
func (e *executor) commit() (*outcome, error) {
	e.guard.acquireCommit()
	defer e.guard.completeCommit()

	e.mu.Lock()
	out := e.last
	e.last = nil
	e.mu.Unlock()

	if out.invalid == nil {
		writes := slices.Clip(out.writes)
		for _, id := range out.txnIDs {
			writes = append(writes, types.StateEntry{Address: committedKey(id), Data: []byte{1}})
		}
		if err := e.store.Apply(writes); err != nil {
			return nil, cookiejar.NewInternalError(err, "commit batch %s", out.batchID)
		}
	}
	return out, nil
}

// lastOutcome returns the outcome held between execute and commit, or
// nil.
func (e *executor) lastOutcome() *outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}
