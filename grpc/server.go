package cookiejargrpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/processor"
	"github.com/blockberries/cookiejar/types"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Compile-time interface check.
var _ TransactionProcessorServer = (*GRPCServer)(nil)

// GRPCServer exposes a family handler as a gRPC processor service.
type GRPCServer struct {
	srv *processor.Server
	log *zap.Logger
}

// NewGRPCServer creates a gRPC server hosting handler.
func NewGRPCServer(handler cookiejar.Handler, log *zap.Logger) *GRPCServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPCServer{
		srv: processor.New(handler, processor.WithLogger(log)),
		log: log,
	}
}

// Register adds the processor service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterTransactionProcessorServer(gs, s)
}

// NewServer returns a grpc.Server with the service registered and call
// logging installed.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnaryInterceptor(s.logCalls))
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	return s.NewServer(opts...).Serve(lis)
}

// Server returns the underlying processor server.
func (s *GRPCServer) Server() *processor.Server {
	return s.srv
}

func (s *GRPCServer) Info(ctx context.Context, req *types.InfoRequest) (*types.ProcessorInfo, error) {
	info, err := s.srv.Info(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &info, nil
}

func (s *GRPCServer) Process(ctx context.Context, req *types.ProcessRequest) (*types.ProcessResponse, error) {
	resp, err := s.srv.Process(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

func (s *GRPCServer) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("elapsed", time.Since(start)),
	}
	if pr, ok := resp.(*types.ProcessResponse); ok {
		fields = append(fields, zap.Stringer("status", pr.Status))
	}
	if err != nil {
		s.log.Warn("rpc failed", append(fields, zap.Error(err))...)
	} else {
		s.log.Debug("rpc", fields...)
	}
	return resp, err
}

// toStatus maps lifecycle errors onto gRPC status codes so the client
// can restore them.
func toStatus(err error) error {
	switch {
	case errors.Is(err, processor.ErrNotRegistered):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, processor.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
