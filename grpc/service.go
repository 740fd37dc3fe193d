package cookiejargrpc

import (
	"context"
	"fmt"

	"github.com/blockberries/cookiejar/types"

	"google.golang.org/grpc"
)

const serviceName = "cookiejar.v1.TransactionProcessor"

// TransactionProcessorServer is the server-side interface of the
// processor gRPC service.
type TransactionProcessorServer interface {
	Info(context.Context, *types.InfoRequest) (*types.ProcessorInfo, error)
	Process(context.Context, *types.ProcessRequest) (*types.ProcessResponse, error)
}

// RegisterTransactionProcessorServer registers srv on a gRPC server.
func RegisterTransactionProcessorServer(s *grpc.Server, srv TransactionProcessorServer) {
	s.RegisterService(&serviceDesc, srv)
}

func handlerInfo(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.InfoRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransactionProcessorServer).Info(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Info")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(TransactionProcessorServer).Info(ctx, req.(*types.InfoRequest))
	})
}

func handlerProcess(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.ProcessRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransactionProcessorServer).Process(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Process")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(TransactionProcessorServer).Process(ctx, req.(*types.ProcessRequest))
	})
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TransactionProcessorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Info", Handler: handlerInfo},
		{MethodName: "Process", Handler: handlerProcess},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cookiejar/v1/processor.cram",
}
