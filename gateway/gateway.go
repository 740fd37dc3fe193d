// Package gateway is the client side of a node's REST gateway: it
// submits serialized batch lists, reads state entries and resolves
// batch statuses into a synchronous result.
//
// Failures to reach the gateway are reported as
// *cookiejar.TransportError, non-success answers as *cookiejar.HTTPError
// and an exhausted wait budget as *cookiejar.TimeoutError, so callers
// can tell "could not reach the service" from "the service said no"
// from "we do not know yet".
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/types"

	"go.uber.org/zap"
)

const (
	// DefaultURL is where a local REST gateway listens.
	DefaultURL = "http://localhost:8008"

	// ContentTypeBatchList marks a serialized BatchList body.
	ContentTypeBatchList = "application/octet-stream"

	// MaxWait is the largest server-side wait hint sent with a status
	// request.
	MaxWait = 30 * time.Second

	maxErrorBody = 64 << 10
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The default is a client
// without an overall timeout, as every request carries a context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithBackoff sets the bounds of the delay between status requests
// while polling.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		c.initialInterval = initial
		c.maxInterval = max
	}
}

// WithWait sets the server-side wait hint sent with each status request
// while polling. It is capped at MaxWait and at the remaining budget.
func WithWait(wait time.Duration) Option {
	return func(c *Client) { c.wait = wait }
}

// Client talks to one REST gateway.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger

	wait            time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration
}

// New creates a client for the gateway at baseURL. A missing scheme
// defaults to http, and an empty URL to DefaultURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:            normalize(baseURL),
		http:            &http.Client{},
		log:             zap.NewNop(),
		wait:            5 * time.Second,
		initialInterval: 100 * time.Millisecond,
		maxInterval:     2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized gateway URL.
func (c *Client) BaseURL() string { return c.base }

// Submit posts a serialized BatchList and returns the status link the
// gateway answered with.
func (c *Client) Submit(ctx context.Context, batchList []byte) (string, error) {
	var resp SubmitResponse
	status, err := c.do(ctx, http.MethodPost, "/batches", nil, batchList, &resp)
	if err != nil {
		return "", err
	}
	c.log.Debug("batch list submitted", zap.Int("status", status), zap.String("link", resp.Link))
	return resp.Link, nil
}

// State returns the bytes stored at addr, or nil when nothing is
// stored there. An absent entry is a meaningful answer, not an error.
func (c *Client) State(ctx context.Context, addr string) ([]byte, error) {
	if err := address.Validate(addr); err != nil {
		return nil, err
	}
	var resp StateResponse
	_, err := c.do(ctx, http.MethodGet, "/state/"+addr, nil, nil, &resp)
	if herr, ok := cookiejar.IsHTTP(err); ok && herr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data, nil
}

// BatchStatus asks for the status of one batch. A positive wait asks the
// gateway to hold the answer until the batch leaves PENDING or wait
// elapses.
func (c *Client) BatchStatus(ctx context.Context, id string, wait time.Duration) (types.BatchStatus, error) {
	q := url.Values{"id": {id}}
	if secs := int(wait / time.Second); secs > 0 {
		q.Set("wait", fmt.Sprint(secs))
	}
	var resp BatchStatusResponse
	if _, err := c.do(ctx, http.MethodGet, "/batch_statuses", q, nil, &resp); err != nil {
		return types.BatchStatus{}, err
	}
	for _, st := range resp.Data {
		if st.ID == id {
			return st, nil
		}
	}
	return types.BatchStatus{ID: id, Status: types.StatusUnknown}, nil
}

// do performs one request and decodes a JSON success body into out. It
// returns the HTTP status code of successful answers.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) (int, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, cookiejar.NewEncodingError(err, "build request for %s", u)
	}
	if body != nil {
		req.Header.Set("Content-Type", ContentTypeBatchList)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("gateway unreachable", zap.String("url", u), zap.Error(err))
		return 0, &cookiejar.TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, httpError(u, resp)
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, &cookiejar.TransportError{URL: u, Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.StatusCode, nil
}

func httpError(u string, resp *http.Response) error {
	herr := &cookiejar.HTTPError{
		URL:        u,
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body ErrorResponse
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		herr.Message = body.Error.Message
	} else {
		herr.Message = strings.TrimSpace(string(raw))
	}
	return herr
}

func normalize(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return DefaultURL
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return strings.TrimRight(base, "/")
}
