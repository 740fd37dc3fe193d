package devnode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/envelope"
	"github.com/blockberries/cookiejar/gateway"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Largest accepted batch list body.
	maxBatchListSize    = 10 << 20
	shutdownGracePeriod = 5 * time.Second
)

// Error codes of the REST gateway protocol.
const (
	codeInternal       = 10
	codeQueueFull      = 31
	codeNoBatches      = 34
	codeInvalidBatch   = 35
	codeWrongContent   = 43
	codeInvalidAddress = 62
	codeMissingID      = 66
	codeInvalidWait    = 67
	codeStateNotFound  = 75
)

// Handler returns the node's REST gateway.
func (n *Node) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/batches", n.postBatches).Methods(http.MethodPost)
	r.HandleFunc("/state/{address}", n.getState).Methods(http.MethodGet)
	r.HandleFunc("/batch_statuses", n.getBatchStatuses).Methods(http.MethodGet)
	r.Handle("/subscriptions", n.hub).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves the gateway on addr and runs the node until ctx
// is done or either fails.
func (n *Node) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           n.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.Run(gctx)
	})
	g.Go(func() error {
		n.log.Info("gateway listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		n.hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func (n *Node) postBatches(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != gateway.ContentTypeBatchList {
		n.writeError(w, http.StatusBadRequest, codeWrongContent, "Wrong Content Type",
			"batches must be submitted as "+gateway.ContentTypeBatchList)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchListSize+1))
	if err != nil {
		n.writeError(w, http.StatusBadRequest, codeInvalidBatch, "Submitted Batches Invalid", err.Error())
		return
	}
	if len(body) > maxBatchListSize {
		n.writeError(w, http.StatusRequestEntityTooLarge, codeInvalidBatch, "Submitted Batches Invalid", "batch list too large")
		return
	}
	list, err := envelope.Unmarshal(body)
	if err != nil {
		n.writeError(w, http.StatusBadRequest, codeInvalidBatch, "Submitted Batches Invalid", err.Error())
		return
	}

	ids, err := n.Submit(list)
	switch {
	case err == nil:
	case errors.Is(err, ErrQueueFull):
		n.writeError(w, http.StatusTooManyRequests, codeQueueFull, "Unable to Accept Batches", err.Error())
		return
	case len(list.Batches) == 0:
		n.writeError(w, http.StatusBadRequest, codeNoBatches, "No Batches Submitted", err.Error())
		return
	case cookiejar.Classify(err) == cookiejar.KindRejected:
		n.writeError(w, http.StatusBadRequest, codeInvalidBatch, "Submitted Batches Invalid", err.Error())
		return
	default:
		n.writeError(w, http.StatusInternalServerError, codeInternal, "Internal Error", err.Error())
		return
	}

	n.writeJSON(w, http.StatusAccepted, gateway.SubmitResponse{Link: statusLink(r, ids)})
}

func (n *Node) getState(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	if err := address.Validate(addr); err != nil {
		n.writeError(w, http.StatusBadRequest, codeInvalidAddress, "Invalid State Address", err.Error())
		return
	}
	data, ok, err := n.State(addr)
	if err != nil {
		n.log.Error("state read failed", zap.String("address", addr), zap.Error(err))
		n.writeError(w, http.StatusInternalServerError, codeInternal, "Internal Error", err.Error())
		return
	}
	if !ok {
		n.writeError(w, http.StatusNotFound, codeStateNotFound, "State Not Found",
			"there is no state data at address "+addr)
		return
	}
	n.writeJSON(w, http.StatusOK, gateway.StateResponse{Data: data, Link: absolute(r)})
}

func (n *Node) getBatchStatuses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var ids []string
	for _, v := range q["id"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		n.writeError(w, http.StatusBadRequest, codeMissingID, "Id Query Invalid or Missing",
			"batch status requests need an id query parameter")
		return
	}

	var wait time.Duration
	if v := q.Get("wait"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			n.writeError(w, http.StatusBadRequest, codeInvalidWait, "Invalid Wait Query", "wait must be a non-negative number of seconds")
			return
		}
		wait = min(time.Duration(secs)*time.Second, gateway.MaxWait)
	}

	statuses := n.Wait(r.Context(), ids, wait)
	n.writeJSON(w, http.StatusOK, gateway.BatchStatusResponse{Data: statuses, Link: absolute(r)})
}

func (n *Node) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		n.log.Debug("unable to write response", zap.Error(err))
	}
}

func (n *Node) writeError(w http.ResponseWriter, status, code int, title, msg string) {
	n.writeJSON(w, status, gateway.ErrorResponse{Error: gateway.ErrorBody{
		Code:    code,
		Title:   title,
		Message: msg,
	}})
}

func absolute(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func statusLink(r *http.Request, ids []string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	q := url.Values{"id": {strings.Join(ids, ",")}}
	return scheme + "://" + r.Host + "/batch_statuses?" + q.Encode()
}
