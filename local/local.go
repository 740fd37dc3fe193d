// Package local provides an in-process processor connection.
//
// For handlers compiled into the same binary as the node, this adapter
// wraps the handler with lifecycle enforcement and error mapping, with
// no serialization overhead.
package local

import (
	"context"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/processor"
	"github.com/blockberries/cookiejar/types"
)

// Compile-time interface check.
var _ cookiejar.Connection = (*Connection)(nil)

// Connection wraps a local handler behind a processor server.
type Connection struct {
	srv *processor.Server
}

// NewConnection creates an in-process connection hosting handler.
func NewConnection(handler cookiejar.Handler, opts ...processor.Option) *Connection {
	return &Connection{srv: processor.New(handler, opts...)}
}

func (c *Connection) Info(ctx context.Context, req types.InfoRequest) (types.ProcessorInfo, error) {
	return c.srv.Info(ctx, req)
}

func (c *Connection) Process(ctx context.Context, req types.ProcessRequest) (types.ProcessResponse, error) {
	return c.srv.Process(ctx, req)
}

func (c *Connection) Close() error { return c.srv.Close() }

// Server returns the underlying server for advanced use cases.
func (c *Connection) Server() *processor.Server {
	return c.srv
}
