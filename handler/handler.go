// Package handler implements the cookiejar transaction family: one
// non-negative counter per signing identity, stored as decimal ASCII at
// the identity's storage address.
//
// State per address is either absent or present(v). The transitions are
//
//	absent      increment(n)  present(n)
//	absent      decrement(n)  rejected, nothing to subtract from
//	absent      reset         present(0)
//	present(v)  increment(n)  present(v+n), rejected on overflow
//	present(v)  decrement(n)  present(v-n), rejected if n > v
//	present(v)  reset         present(0)
//
// A successful apply writes exactly once. A rejected one never writes.
package handler

import (
	"context"
	"math"
	"strconv"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/envelope"
	"github.com/blockberries/cookiejar/types"

	"go.uber.org/zap"
)

// Compile-time interface check.
var _ cookiejar.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// Handler is the cookiejar family handler.
type Handler struct {
	log *zap.Logger
}

// New creates a cookiejar handler.
func New(opts ...Option) *Handler {
	h := &Handler{log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) FamilyName() string { return cookiejar.FamilyName }

func (h *Handler) FamilyVersions() []string { return []string{cookiejar.FamilyVersion} }

func (h *Handler) Namespaces() []string {
	return []string{address.Namespace(cookiejar.FamilyName)}
}

// Apply decodes the payload of req and applies it to the signer's jar.
func (h *Handler) Apply(_ context.Context, req *types.TransactionRequest, state cookiejar.Context) error {
	payload, err := envelope.DecodePayload(req.Payload)
	if err != nil {
		h.log.Debug("malformed payload", zap.Error(err))
		return err
	}
	signer := req.Header.SignerPublicKey
	if err := Apply(payload.Action, payload.Amount, signer, state); err != nil {
		h.log.Debug("transaction not applied",
			zap.String("action", payload.Action),
			zap.Uint64("amount", payload.Amount),
			zap.String("signer", signer),
			zap.Error(err),
		)
		return err
	}
	h.log.Debug("transaction applied",
		zap.String("action", payload.Action),
		zap.Uint64("amount", payload.Amount),
		zap.String("signer", signer),
	)
	return nil
}

// Apply applies (action, amount) to the jar of signer in state. It reads
// the jar once and, on success, writes it exactly once.
func Apply(action string, amount uint64, signer string, state cookiejar.Context) error {
	act, err := ParseAction(action)
	if err != nil {
		return err
	}
	addr := address.Cookiejar(signer)
	current, present, err := load(state, addr)
	if err != nil {
		return err
	}
	next, err := Transition(current, present, act, amount)
	if err != nil {
		return err
	}
	return store(state, addr, next)
}

// Transition computes the new jar value. present reports whether the jar
// holds a value; current is ignored when it does not.
func Transition(current uint64, present bool, act Action, amount uint64) (uint64, error) {
	switch act {
	case Increment:
		if !present {
			return amount, nil
		}
		if amount > math.MaxUint64-current {
			return 0, cookiejar.NewInvalidTransaction("jar overflow: %d + %d", current, amount)
		}
		return current + amount, nil
	case Decrement:
		if !present {
			return 0, cookiejar.NewInvalidTransaction("nothing to subtract from")
		}
		if amount > current {
			return 0, cookiejar.NewInvalidTransaction("insufficient balance: have %d, want %d", current, amount)
		}
		return current - amount, nil
	case Reset:
		return 0, nil
	default:
		return 0, cookiejar.NewInvalidTransaction("unknown action %s", act)
	}
}

// Encode returns the stored form of a jar value.
func Encode(v uint64) []byte {
	return []byte(strconv.FormatUint(v, 10))
}

// Decode parses the stored form of a jar value.
func Decode(data []byte) (uint64, error) {
	return strconv.ParseUint(string(data), 10, 64)
}

func load(state cookiejar.Context, addr string) (uint64, bool, error) {
	entries, err := state.GetState(addr)
	if err != nil {
		return 0, false, storageError(err, "read %s", addr)
	}
	for _, e := range entries {
		if e.Address != addr || len(e.Data) == 0 {
			continue
		}
		v, err := Decode(e.Data)
		if err != nil {
			return 0, false, cookiejar.NewInternalError(err, "stored value at %s is not a counter", addr)
		}
		return v, true, nil
	}
	return 0, false, nil
}

func store(state cookiejar.Context, addr string, v uint64) error {
	written, err := state.SetState(types.StateEntry{Address: addr, Data: Encode(v)})
	if err != nil {
		return storageError(err, "write %s", addr)
	}
	if len(written) == 0 {
		return cookiejar.NewInternalError(nil, "write to %s reported no addresses", addr)
	}
	return nil
}

// storageError passes rejections raised by the state context through
// unchanged and reports every other failure as internal.
func storageError(err error, format string, args ...any) error {
	if _, ok := cookiejar.IsInvalidTransaction(err); ok {
		return err
	}
	if _, ok := cookiejar.IsInternal(err); ok {
		return err
	}
	return cookiejar.NewInternalError(err, format, args...)
}
