// Package cookiejar defines the boundary between a validating node and
// the cookiejar transaction family: a deterministic state transition
// handler that keeps one non-negative counter per signing identity.
//
// The core [Handler] interface is what a transaction family implements.
// A node never calls a handler directly; it talks to a [Processor]
// through a [Connection], which is either in-process (package local) or
// remote (package grpc).
package cookiejar

import (
	"context"

	"github.com/blockberries/cookiejar/types"
)

const (
	// FamilyName is the transaction family name committed to by every
	// cookiejar transaction header.
	FamilyName = "cookiejar"
	// FamilyVersion is the only family version this module speaks.
	FamilyVersion = "1.0"
)

// Context is the view of global state a handler gets while applying a
// single transaction.
//
// Reads are limited to the addresses the transaction declared as
// inputs and writes to the addresses it declared as outputs. A read
// after a write in the same transaction observes the write.
type Context interface {
	// GetState returns the entries stored at the given addresses.
	// Addresses with no stored value are omitted from the result, so
	// an empty result means "absent", not an error.
	GetState(addresses ...string) ([]types.StateEntry, error)

	// SetState writes the given entries and returns the addresses that
	// were written. A successful write of N entries returns N addresses.
	SetState(entries ...types.StateEntry) ([]string, error)
}

// Handler is implemented by every transaction family.
//
// Apply MUST be deterministic: every node applying the same transaction
// against the same state must reach the same result. Returning an
// *InvalidTransaction or *EncodingError rejects the transaction; any
// other error is treated as an internal fault of the node.
type Handler interface {
	// FamilyName is the family this handler processes.
	FamilyName() string
	// FamilyVersions lists the header versions this handler accepts.
	FamilyVersions() []string
	// Namespaces lists the address prefixes this handler may touch.
	Namespaces() []string
	// Apply applies a single transaction against state.
	Apply(ctx context.Context, req *types.TransactionRequest, state Context) error
}

// Processor is the node-facing side of a transaction processor.
//
// The node calls Info once after connecting and then Process for every
// transaction addressed to one of the registered families. Process may be
// called concurrently for transactions with disjoint address sets.
type Processor interface {
	// Info reports the families, versions and namespaces served.
	Info(ctx context.Context, req types.InfoRequest) (types.ProcessorInfo, error)

	// Process applies one transaction against the prefetched input
	// entries carried by the request and reports the writes it made.
	// Rejections are reported through ProcessResponse.Status, not
	// through the error return, which is reserved for transport and
	// lifecycle faults.
	Process(ctx context.Context, req types.ProcessRequest) (types.ProcessResponse, error)
}

// Connection represents a transport-agnostic connection from a node to
// a processor. Both gRPC clients and in-process adapters implement this.
type Connection interface {
	Processor

	// Close terminates the connection.
	Close() error
}
