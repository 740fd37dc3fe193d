package gateway

import "github.com/blockberries/cookiejar/types"

// JSON bodies exchanged with the REST gateway. Byte slices travel as
// standard base64.

// SubmitResponse is the body of a 202 answer to POST /batches.
type SubmitResponse struct {
	Link string `json:"link"`
}

// StateResponse is the body of GET /state/{address}.
type StateResponse struct {
	Data []byte `json:"data"`
	Link string `json:"link,omitempty"`
}

// BatchStatusResponse is the body of GET /batch_statuses.
type BatchStatusResponse struct {
	Data []types.BatchStatus `json:"data"`
	Link string              `json:"link,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-success answer.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
