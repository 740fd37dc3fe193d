// Package client is the cookiejar workflow a user drives: build a signed
// request for their own jar, submit it and wait until it is final, or
// read the current count.
//
// Every error returned here classifies through cookiejar.Classify, so a
// front end can tell a rejection from an unreachable service from an
// outcome that is not known yet.
package client

import (
	"context"
	"time"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/config"
	"github.com/blockberries/cookiejar/envelope"
	"github.com/blockberries/cookiejar/events"
	"github.com/blockberries/cookiejar/gateway"
	"github.com/blockberries/cookiejar/handler"
	"github.com/blockberries/cookiejar/signing"

	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	log       *zap.Logger
	gateway   []gateway.Option
	envelopes []envelope.Option
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithGatewayOptions passes options to the gateway client.
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(o *options) { o.gateway = append(o.gateway, opts...) }
}

// WithEnvelopeOptions passes options to the envelope builder.
func WithEnvelopeOptions(opts ...envelope.Option) Option {
	return func(o *options) { o.envelopes = append(o.envelopes, opts...) }
}

// Client acts on the jar of one identity.
type Client struct {
	gw        *gateway.Client
	builder   *envelope.Builder
	wait      time.Duration
	eventsURL string
	log       *zap.Logger
}

// New creates a client for the jar of signer, talking to the gateway
// named by cfg.
func New(cfg config.Client, signer *signing.Signer, opts ...Option) *Client {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	wait := cfg.Wait
	if wait <= 0 {
		wait = gateway.MaxWait
	}
	return &Client{
		gw:        gateway.New(cfg.URL, append([]gateway.Option{gateway.WithLogger(o.log)}, o.gateway...)...),
		builder:   envelope.NewBuilder(signer, o.envelopes...),
		wait:      wait,
		eventsURL: cfg.EventsURL,
		log:       o.log,
	}
}

// Open loads the key named by cfg and creates a client for it.
func Open(cfg config.Client, opts ...Option) (*Client, error) {
	path, err := cfg.KeyPath()
	if err != nil {
		return nil, &cookiejar.KeyLoadError{Err: err}
	}
	signer, err := signing.LoadSigner(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, signer, opts...), nil
}

// PublicKey returns the hex public key of the identity.
func (c *Client) PublicKey() string { return c.builder.PublicKey() }

// Address returns the storage address of the identity's jar.
func (c *Client) Address() string { return c.builder.Address() }

// Bake adds n cookies to the jar.
func (c *Client) Bake(ctx context.Context, n uint64) (gateway.Result, error) {
	return c.Submit(ctx, handler.Increment.String(), n)
}

// Eat removes n cookies from the jar. It is rejected when the jar holds
// fewer than n.
func (c *Client) Eat(ctx context.Context, n uint64) (gateway.Result, error) {
	return c.Submit(ctx, handler.Decrement.String(), n)
}

// Clear empties the jar.
func (c *Client) Clear(ctx context.Context) (gateway.Result, error) {
	return c.Submit(ctx, handler.Reset.String(), 0)
}

// Submit sends one action for the jar and waits until its batch is
// final. A rejected batch is returned as an *cookiejar.InvalidTransaction
// along with its result.
func (c *Client) Submit(ctx context.Context, action string, amount uint64) (gateway.Result, error) {
	act, err := handler.ParseAction(action)
	if err != nil {
		return gateway.Result{}, err
	}
	batch, err := c.builder.Build(act.String(), amount)
	if err != nil {
		return gateway.Result{}, err
	}
	body, err := envelope.Marshal(batch)
	if err != nil {
		return gateway.Result{}, err
	}

	c.log.Debug("submitting batch",
		zap.String("batch", batch.ID()),
		zap.Stringer("action", act),
		zap.Uint64("amount", amount),
	)
	res, err := c.gw.SubmitAndWait(ctx, body, batch.ID(), c.wait)
	if err != nil {
		return res, err
	}
	return res, res.Err()
}

// Count returns the number of cookies in the jar. ok is false when the
// jar was never written.
func (c *Client) Count(ctx context.Context) (uint64, bool, error) {
	data, err := c.gw.State(ctx, c.Address())
	if err != nil {
		return 0, false, err
	}
	if data == nil {
		return 0, false, nil
	}
	v, err := handler.Decode(data)
	if err != nil {
		return 0, false, cookiejar.NewInternalError(err, "jar %s holds %q", c.Address(), data)
	}
	return v, true, nil
}

// Watch subscribes to changes of the jar.
func (c *Client) Watch(ctx context.Context) (*events.Listener, error) {
	uri := c.eventsURL
	if uri == "" {
		var err error
		if uri, err = events.URL(c.gw.BaseURL()); err != nil {
			return nil, err
		}
	}
	l, err := events.Dial(ctx, uri, c.Address())
	if err != nil {
		return nil, &cookiejar.TransportError{URL: uri, Err: err}
	}
	return l, nil
}
