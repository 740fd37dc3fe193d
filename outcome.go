package cookiejar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is the user-visible category of a failure. Front ends map it to
// exit codes and messages.
type Kind uint8

const (
	// KindOK means the request was committed.
	KindOK Kind = iota
	// KindRejected means the service rejected the request.
	KindRejected
	// KindUnreachable means the service could not be reached.
	KindUnreachable
	// KindTimedOut means the outcome is not known yet; the request may
	// still land.
	KindTimedOut
	// KindInternal means a local or node-internal fault.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRejected:
		return "rejected"
	case KindUnreachable:
		return "unreachable"
	case KindTimedOut:
		return "timed-out"
	case KindInternal:
		return "internal-error"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// ExitCode returns the process exit status for k.
func (k Kind) ExitCode() int {
	switch k {
	case KindOK:
		return 0
	case KindRejected:
		return 2
	case KindUnreachable:
		return 3
	case KindTimedOut:
		return 4
	default:
		return 1
	}
}

// Classify maps an error returned by this module onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOK
	}
	if _, ok := IsTimeout(err); ok {
		return KindTimedOut
	}
	if _, ok := IsInvalidTransaction(err); ok {
		return KindRejected
	}
	if _, ok := IsEncoding(err); ok {
		return KindRejected
	}
	if h, ok := IsHTTP(err); ok {
		if h.StatusCode >= http.StatusBadRequest && h.StatusCode < http.StatusInternalServerError {
			return KindRejected
		}
		return KindUnreachable
	}
	if _, ok := IsTransport(err); ok {
		return KindUnreachable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimedOut
	}
	return KindInternal
}
