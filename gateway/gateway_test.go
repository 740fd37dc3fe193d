package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/types"

	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func fastClient(url string) *Client {
	return New(url, WithBackoff(5*time.Millisecond, 20*time.Millisecond), WithWait(0))
}

func TestNew_Normalize(t *testing.T) {
	require.Equal(t, DefaultURL, New("").BaseURL())
	require.Equal(t, "http://rest-api:8008", New("rest-api:8008").BaseURL())
	require.Equal(t, "https://node.example", New("https://node.example/").BaseURL())
}

func TestSubmit(t *testing.T) {
	body := []byte{0x0A, 0x02, 0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/batches", r.URL.Path)
		require.Equal(t, ContentTypeBatchList, r.Header.Get("Content-Type"))
		got, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, body, got)
		writeJSON(w, http.StatusAccepted, SubmitResponse{Link: "http://node/batch_statuses?id=abc"})
	}))
	defer srv.Close()

	link, err := New(srv.URL).Submit(context.Background(), body)
	require.NoError(t, err)
	require.Equal(t, "http://node/batch_statuses?id=abc", link)
}

func TestSubmit_HTTPErrors(t *testing.T) {
	for _, tc := range []struct {
		code int
		kind cookiejar.Kind
	}{
		{http.StatusBadRequest, cookiejar.KindRejected},
		{http.StatusTooManyRequests, cookiejar.KindRejected},
		{http.StatusInternalServerError, cookiejar.KindUnreachable},
		{http.StatusServiceUnavailable, cookiejar.KindUnreachable},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.code, ErrorResponse{Error: ErrorBody{Code: 34, Title: "No batches", Message: "batch list was empty"}})
		}))

		_, err := New(srv.URL).Submit(context.Background(), []byte{0x01})
		herr, ok := cookiejar.IsHTTP(err)
		require.True(t, ok, "expected HTTPError, got %v", err)
		require.Equal(t, tc.code, herr.StatusCode)
		require.Equal(t, "batch list was empty", herr.Message)
		require.Contains(t, herr.URL, srv.URL)
		require.Equal(t, tc.kind, cookiejar.Classify(err))
		srv.Close()
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Submit(context.Background(), []byte{0x01})
	terr, ok := cookiejar.IsTransport(err)
	require.True(t, ok, "expected TransportError, got %v", err)
	require.Contains(t, terr.URL, url)
	require.Equal(t, cookiejar.KindUnreachable, cookiejar.Classify(err))

	_, err = New(url).State(context.Background(), address.Cookiejar("02aa"))
	_, ok = cookiejar.IsTransport(err)
	require.True(t, ok, "expected TransportError, got %v", err)
}

func TestState(t *testing.T) {
	present := address.Cookiejar("02aa")
	absent := address.Cookiejar("02bb")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/state/" + present:
			// []byte fields travel as base64.
			writeJSON(w, http.StatusOK, map[string]string{"data": "NQ=="})
		default:
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: ErrorBody{Code: 75, Title: "State Not Found"}})
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	data, err := c.State(context.Background(), present)
	require.NoError(t, err)
	require.Equal(t, "5", string(data))

	data, err = c.State(context.Background(), absent)
	require.NoError(t, err)
	require.Nil(t, data)

	_, err = c.State(context.Background(), "a4d219")
	_, ok := cookiejar.IsEncoding(err)
	require.True(t, ok, "expected EncodingError, got %v", err)
}

func TestBatchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/batch_statuses", r.URL.Path)
		require.Equal(t, "abc", r.URL.Query().Get("id"))
		require.Equal(t, "3", r.URL.Query().Get("wait"))
		writeJSON(w, http.StatusOK, BatchStatusResponse{Data: []types.BatchStatus{{ID: "abc", Status: types.StatusCommitted}}})
	}))
	defer srv.Close()

	st, err := New(srv.URL).BatchStatus(context.Background(), "abc", 3*time.Second)
	require.NoError(t, err)
	require.Equal(t, types.StatusCommitted, st.Status)
}

func TestPoll_Committed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := types.StatusPending
		if calls.Add(1) >= 3 {
			status = types.StatusCommitted
		}
		writeJSON(w, http.StatusOK, BatchStatusResponse{Data: []types.BatchStatus{{ID: "abc", Status: status}}})
	}))
	defer srv.Close()

	res, err := fastClient(srv.URL).Poll(context.Background(), "abc", 5*time.Second)
	require.NoError(t, err)
	require.True(t, res.Committed())
	require.NoError(t, res.Err())
	require.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestPoll_Invalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, BatchStatusResponse{Data: []types.BatchStatus{{
			ID:     "abc",
			Status: types.StatusInvalid,
			InvalidTransactions: []types.InvalidTransactionInfo{
				{ID: "t1", Message: "insufficient balance: have 2, want 10"},
			},
		}}})
	}))
	defer srv.Close()

	res, err := fastClient(srv.URL).Poll(context.Background(), "abc", 5*time.Second)
	require.NoError(t, err)
	require.False(t, res.Committed())
	ierr, ok := cookiejar.IsInvalidTransaction(res.Err())
	require.True(t, ok)
	require.Contains(t, ierr.Reason, "insufficient balance")
	require.Equal(t, cookiejar.KindRejected, cookiejar.Classify(res.Err()))
}

func TestPoll_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, BatchStatusResponse{Data: []types.BatchStatus{{ID: "abc", Status: types.StatusPending}}})
	}))
	defer srv.Close()

	start := time.Now()
	res, err := fastClient(srv.URL).Poll(context.Background(), "abc", 200*time.Millisecond)
	elapsed := time.Since(start)

	terr, ok := cookiejar.IsTimeout(err)
	require.True(t, ok, "expected TimeoutError, got %v", err)
	require.Equal(t, "abc", terr.BatchID)
	require.Equal(t, types.StatusPending, res.Status)
	require.False(t, res.Committed())
	require.Equal(t, cookiejar.KindTimedOut, cookiejar.Classify(err))
	require.Less(t, elapsed, 2*time.Second, "poll must respect its budget")
}

func TestPoll_TimeoutDuringLongPoll(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := fastClient(srv.URL).Poll(context.Background(), "abc", 150*time.Millisecond)
	_, ok := cookiejar.IsTimeout(err)
	require.True(t, ok, "expected TimeoutError, got %v", err)
}

func TestPoll_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			http.Error(w, "restarting", http.StatusServiceUnavailable)
		case 2:
			// Drop the connection without an answer.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
		default:
			writeJSON(w, http.StatusOK, BatchStatusResponse{Data: []types.BatchStatus{{ID: "abc", Status: types.StatusCommitted}}})
		}
	}))
	defer srv.Close()

	res, err := fastClient(srv.URL).Poll(context.Background(), "abc", 5*time.Second)
	require.NoError(t, err)
	require.True(t, res.Committed())
	require.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestPoll_ClientErrorEndsWait(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad id", http.StatusBadRequest)
	}))
	defer srv.Close()

	start := time.Now()
	_, err := fastClient(srv.URL).Poll(context.Background(), "abc", 5*time.Second)
	herr, ok := cookiejar.IsHTTP(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, http.StatusBadRequest, herr.StatusCode)
	_, ok = cookiejar.IsTimeout(err)
	require.False(t, ok)
	require.Equal(t, int32(1), calls.Load())
	require.Less(t, time.Since(start), time.Second)
}

func TestPoll_TimeoutKeepsLastFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Poll(context.Background(), "abc", 200*time.Millisecond)
	terr, ok := cookiejar.IsTimeout(err)
	require.True(t, ok, "expected TimeoutError, got %v", err)
	herr, ok := cookiejar.IsHTTP(terr.Last)
	require.True(t, ok, "expected the last HTTPError, got %v", terr.Last)
	require.Equal(t, http.StatusServiceUnavailable, herr.StatusCode)
	require.Equal(t, cookiejar.KindTimedOut, cookiejar.Classify(err))
}

func TestPoll_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, BatchStatusResponse{Data: []types.BatchStatus{{ID: "abc", Status: types.StatusPending}}})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := fastClient(srv.URL).Poll(ctx, "abc", 10*time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitHint(t *testing.T) {
	c := New("", WithWait(time.Minute))
	require.Equal(t, MaxWait, c.waitHint(time.Now().Add(time.Hour)))
	require.Zero(t, c.waitHint(time.Now().Add(500*time.Millisecond)))

	hint := c.waitHint(time.Now().Add(10 * time.Second))
	require.LessOrEqual(t, hint, 10*time.Second)
	require.Greater(t, hint, 9*time.Second)
}
