package types

import "fmt"

// InfoRequest is the (empty) request sent once after connecting to a
// processor.
type InfoRequest struct{}

// ProcessorInfo is a processor's registration: which family, versions
// and namespaces it serves.
type ProcessorInfo struct {
	FamilyName     string   `cramberry:"1"`
	FamilyVersions []string `cramberry:"2"`
	Namespaces     []string `cramberry:"3"`
}

// ProcessRequest carries one transaction and the current values of its
// declared inputs.
type ProcessRequest struct {
	// Serialized TransactionHeader, exactly as signed.
	Header    []byte `cramberry:"1"`
	Payload   []byte `cramberry:"2"`
	Signature string `cramberry:"3"`
	// Stored entries for the declared inputs. Absent addresses are
	// omitted.
	Inputs []StateEntry `cramberry:"4"`
}

// ProcessStatus is the verdict of a processor on one transaction.
type ProcessStatus uint8

const (
	// ProcessOK means the transaction applied; Writes holds its effect.
	ProcessOK ProcessStatus = 1
	// ProcessInvalidTransaction means the submitter caused the failure.
	// Every node reaches the same verdict.
	ProcessInvalidTransaction ProcessStatus = 2
	// ProcessInternalError means the processor hit a fault that the
	// transaction did not cause. The node may retry.
	ProcessInternalError ProcessStatus = 3
)

func (s ProcessStatus) String() string {
	switch s {
	case ProcessOK:
		return "OK"
	case ProcessInvalidTransaction:
		return "INVALID_TRANSACTION"
	case ProcessInternalError:
		return "INTERNAL_ERROR"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// ProcessResponse is a processor's reply to a ProcessRequest.
type ProcessResponse struct {
	Status ProcessStatus `cramberry:"1"`
	// Rejection or fault reason (debugging only).
	Message string `cramberry:"2"`
	// Writes in the order they were made.
	Writes []StateEntry `cramberry:"3"`
}

// OK returns true if the transaction applied.
func (r ProcessResponse) OK() bool { return r.Status == ProcessOK }
