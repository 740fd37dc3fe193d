// Package events subscribes to the state-change notifications a node
// publishes after every committed batch.
//
// A Listener is optional: the submit-then-poll workflow never depends on
// it. It exists for watching a jar change in real time.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/blockberries/cookiejar/types"

	"github.com/gorilla/websocket"
)

// Subscription actions understood by the node.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

const writeWait = 5 * time.Second

// Request is a subscription control message sent by the listener.
type Request struct {
	Action          string   `json:"action"`
	AddressPrefixes []string `json:"address_prefixes,omitempty"`
}

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("events: listener closed")

// Listener receives state-change events over a websocket.
type Listener struct {
	conn *websocket.Conn

	wl sync.Mutex // guards writes
	rl sync.Mutex // guards reads
	cl sync.Once

	closed chan struct{}
}

// URL turns a gateway base URL such as http://localhost:8008 into the
// websocket URL of its subscription endpoint.
func URL(base string) (string, error) {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/subscriptions"
	}
	return u.String(), nil
}

// Dial connects to the subscription endpoint at uri and subscribes to
// changes under the given address prefixes. No prefixes means every
// address.
func Dial(ctx context.Context, uri string, prefixes ...string) (*Listener, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", uri, err)
	}
	// not using resp
	resp.Body.Close()

	l := &Listener{conn: conn, closed: make(chan struct{})}
	if err := l.send(Request{Action: ActionSubscribe, AddressPrefixes: prefixes}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return l, nil
}

// Next blocks until the next event arrives. Cancelling ctx aborts the
// read and leaves the listener unusable; Close it afterwards.
func (l *Listener) Next(ctx context.Context) (types.StateChangeEvent, error) {
	l.rl.Lock()
	defer l.rl.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, msg, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-l.closed:
				return types.StateChangeEvent{}, ErrClosed
			default:
			}
			if ctx.Err() != nil {
				return types.StateChangeEvent{}, ctx.Err()
			}
			return types.StateChangeEvent{}, err
		}
		var ev types.StateChangeEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			return types.StateChangeEvent{}, fmt.Errorf("decode event: %w", err)
		}
		if ev.Sequence == 0 {
			// not an event
			continue
		}
		return ev, nil
	}
}

// Close unsubscribes and closes the connection.
func (l *Listener) Close() error {
	var err error
	l.cl.Do(func() {
		close(l.closed)
		_ = l.send(Request{Action: ActionUnsubscribe})
		l.wl.Lock()
		_ = l.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		l.wl.Unlock()
		err = l.conn.Close()
	})
	return err
}

func (l *Listener) send(req Request) error {
	l.wl.Lock()
	defer l.wl.Unlock()

	if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return l.conn.WriteJSON(req)
}
