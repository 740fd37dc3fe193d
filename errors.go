package cookiejar

import (
	"errors"
	"fmt"
	"time"
)

// KeyLoadError signals that signing key material could not be read or
// parsed. It is raised before any signing is attempted.
type KeyLoadError struct {
	Path string
	Err  error
}

func (e *KeyLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to load private key: %v", e.Err)
	}
	return fmt.Sprintf("failed to load private key %s: %v", e.Path, e.Err)
}

func (e *KeyLoadError) Unwrap() error { return e.Err }

// EncodingError signals a malformed payload, header or address. The
// request is rejected before any state is read.
type EncodingError struct {
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err == nil {
		return "encoding error: " + e.Reason
	}
	return fmt.Sprintf("encoding error: %s: %v", e.Reason, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// NewEncodingError creates a new EncodingError wrapping err.
func NewEncodingError(err error, format string, args ...any) *EncodingError {
	return &EncodingError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// InvalidTransaction signals a business rule violation. Every node
// reaches the same verdict for the same transaction and state.
type InvalidTransaction struct {
	Reason string
}

func (e *InvalidTransaction) Error() string {
	return "invalid transaction: " + e.Reason
}

// NewInvalidTransaction creates a new InvalidTransaction.
func NewInvalidTransaction(format string, args ...any) *InvalidTransaction {
	return &InvalidTransaction{Reason: fmt.Sprintf(format, args...)}
}

// InternalError signals a fault of the node environment, such as stored
// bytes that do not parse or a write that reports no address. It is never
// attributable to the submitter and must not be reported as a rejection.
type InternalError struct {
	Reason string
	Err    error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return "internal error: " + e.Reason
	}
	return fmt.Sprintf("internal error: %s: %v", e.Reason, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// NewInternalError creates a new InternalError wrapping err.
func NewInternalError(err error, format string, args ...any) *InternalError {
	return &InternalError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// TransportError signals that the gateway could not be reached at all
// (DNS failure, refused or reset connection). The whole submission may
// be retried.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError signals that the gateway answered with a non-success status.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("error %d from %s: %s", e.StatusCode, e.URL, e.Status)
	}
	return fmt.Sprintf("error %d from %s: %s: %s", e.StatusCode, e.URL, e.Status, e.Message)
}

// TimeoutError signals that a batch did not reach a terminal status
// within the wait budget. The outcome is unknown: the batch may still be
// committed, and the caller may poll again with the same batch id.
type TimeoutError struct {
	BatchID string
	Waited  time.Duration
	// Last is the failure of the final status request, if it failed.
	Last error
}

func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("batch %s still pending after %s: %v", e.BatchID, e.Waited, e.Last)
	}
	return fmt.Sprintf("batch %s still pending after %s", e.BatchID, e.Waited)
}

func (e *TimeoutError) Unwrap() error { return e.Last }

// IsKeyLoad checks whether an error is a KeyLoadError and returns it.
func IsKeyLoad(err error) (*KeyLoadError, bool) { return as[*KeyLoadError](err) }

// IsEncoding checks whether an error is an EncodingError and returns it.
func IsEncoding(err error) (*EncodingError, bool) { return as[*EncodingError](err) }

// IsInvalidTransaction checks whether an error is an InvalidTransaction
// and returns it.
func IsInvalidTransaction(err error) (*InvalidTransaction, bool) {
	return as[*InvalidTransaction](err)
}

// IsInternal checks whether an error is an InternalError and returns it.
func IsInternal(err error) (*InternalError, bool) { return as[*InternalError](err) }

// IsTransport checks whether an error is a TransportError and returns it.
func IsTransport(err error) (*TransportError, bool) { return as[*TransportError](err) }

// IsHTTP checks whether an error is an HTTPError and returns it.
func IsHTTP(err error) (*HTTPError, bool) { return as[*HTTPError](err) }

// IsTimeout checks whether an error is a TimeoutError and returns it.
func IsTimeout(err error) (*TimeoutError, bool) { return as[*TimeoutError](err) }

func as[E error](err error) (E, bool) {
	var target E
	if errors.As(err, &target) {
		return target, true
	}
	return target, false
}
