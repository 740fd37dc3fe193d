package cookiejargrpc

import (
	"context"
	"fmt"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/processor"
	"github.com/blockberries/cookiejar/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Compile-time interface check.
var _ cookiejar.Connection = (*Client)(nil)

// Client implements cookiejar.Connection for remote processors over
// gRPC using cramberry serialization.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a remote processor.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("processor client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) Info(ctx context.Context, req types.InfoRequest) (types.ProcessorInfo, error) {
	resp := new(types.ProcessorInfo)
	if err := c.cc.Invoke(ctx, fullMethod("Info"), &req, resp); err != nil {
		return types.ProcessorInfo{}, fromStatus(err)
	}
	return *resp, nil
}

func (c *Client) Process(ctx context.Context, req types.ProcessRequest) (types.ProcessResponse, error) {
	resp := new(types.ProcessResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Process"), &req, resp); err != nil {
		return types.ProcessResponse{}, fromStatus(err)
	}
	return *resp, nil
}

// fromStatus restores the lifecycle errors mapped by the server.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return fmt.Errorf("%w (remote: %s)", processor.ErrNotRegistered, st.Message())
	case codes.Unavailable:
		if st.Message() == processor.ErrClosed.Error() {
			return fmt.Errorf("%w (remote)", processor.ErrClosed)
		}
	}
	return err
}
