package processor

import (
	"context"
	"slices"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/envelope"
	"github.com/blockberries/cookiejar/types"

	"go.uber.org/zap"
)

// Compile-time interface check.
var _ cookiejar.Connection = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// Server wraps a family handler with lifecycle enforcement and error
// mapping. A node interacts with the handler exclusively through this
// server, either in-process or behind a transport.
type Server struct {
	handler cookiejar.Handler
	guard   *Guard
	log     *zap.Logger
}

// New creates a Server hosting handler.
func New(handler cookiejar.Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		guard:   NewGuard(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Info reports the hosted family and moves the server to Ready.
func (s *Server) Info(_ context.Context, _ types.InfoRequest) (types.ProcessorInfo, error) {
	if err := s.guard.Register(); err != nil {
		return types.ProcessorInfo{}, err
	}
	info := types.ProcessorInfo{
		FamilyName:     s.handler.FamilyName(),
		FamilyVersions: s.handler.FamilyVersions(),
		Namespaces:     s.handler.Namespaces(),
	}
	s.log.Info("processor registered",
		zap.String("family", info.FamilyName),
		zap.Strings("versions", info.FamilyVersions),
		zap.Strings("namespaces", info.Namespaces),
	)
	return info, nil
}

// Process applies one transaction. Safe for concurrent use.
func (s *Server) Process(ctx context.Context, req types.ProcessRequest) (types.ProcessResponse, error) {
	if err := s.guard.Enter(); err != nil {
		return types.ProcessResponse{}, err
	}
	defer s.guard.Leave()

	h, err := envelope.DecodeHeader(req.Header)
	if err != nil {
		return s.respond(err, nil), nil
	}
	if h.FamilyName != s.handler.FamilyName() {
		return s.respond(cookiejar.NewInvalidTransaction("family %q is not served here", h.FamilyName), nil), nil
	}
	if !slices.Contains(s.handler.FamilyVersions(), h.FamilyVersion) {
		return s.respond(cookiejar.NewInvalidTransaction("family %s has no version %q", h.FamilyName, h.FamilyVersion), nil), nil
	}

	state := newBoundedContext(h, req.Inputs)
	err = s.apply(ctx, &types.TransactionRequest{
		Header:    h,
		Payload:   req.Payload,
		Signature: req.Signature,
	}, state)
	return s.respond(err, state.writes), nil
}

// Close stops admitting transactions and waits for in-flight ones.
func (s *Server) Close() error {
	s.guard.Close()
	return nil
}

// State returns the lifecycle state of the server.
func (s *Server) State() string { return s.guard.State() }

func (s *Server) apply(ctx context.Context, req *types.TransactionRequest, state cookiejar.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cookiejar.NewInternalError(nil, "handler panicked: %v", r)
		}
	}()
	return s.handler.Apply(ctx, req, state)
}

// respond maps the outcome of an apply onto a ProcessResponse. Encoding
// errors and rule violations are the submitter's fault; everything else
// is internal and may be retried by the node.
func (s *Server) respond(err error, writes []types.StateEntry) types.ProcessResponse {
	if err == nil {
		return types.ProcessResponse{Status: types.ProcessOK, Writes: writes}
	}
	if _, ok := cookiejar.IsInvalidTransaction(err); ok {
		return types.ProcessResponse{Status: types.ProcessInvalidTransaction, Message: err.Error()}
	}
	if _, ok := cookiejar.IsEncoding(err); ok {
		return types.ProcessResponse{Status: types.ProcessInvalidTransaction, Message: err.Error()}
	}
	s.log.Error("internal error while processing transaction", zap.Error(err))
	return types.ProcessResponse{Status: types.ProcessInternalError, Message: err.Error()}
}
