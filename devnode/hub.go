package devnode

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/blockberries/cookiejar/events"
	"github.com/blockberries/cookiejar/types"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to a subscriber.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong from a subscriber.
	pongWait = 60 * time.Second
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Largest control message accepted from a subscriber.
	maxMessageSize = 64 << 10
	// Events buffered per subscriber before new ones are dropped.
	maxPendingMessages = 256
)

// Hub fans committed state changes out to websocket subscribers, each
// receiving only the changes under its address prefixes.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func newHub(log *zap.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the request and starts the subscriber's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("failed to upgrade", zap.Error(err))
		return
	}
	s := &subscriber{
		hub:  h,
		conn: conn,
		send: make(chan []byte, maxPendingMessages),
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go s.writePump()
	go s.readPump()
}

// Publish delivers ev to every subscriber with at least one matching
// change. Subscribers that fall behind lose events.
func (h *Hub) Publish(ev types.StateChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		changes, ok := s.filter(ev.StateChanges)
		if !ok || len(changes) == 0 {
			continue
		}
		msg, err := json.Marshal(types.StateChangeEvent{
			Sequence:     ev.Sequence,
			BatchID:      ev.BatchID,
			StateChanges: changes,
		})
		if err != nil {
			h.log.Error("unable to encode event", zap.Error(err))
			continue
		}
		select {
		case s.send <- msg:
		default:
			h.log.Debug("dropping event for slow subscriber", zap.Uint64("sequence", ev.Sequence))
		}
	}
}

// Subscribers returns the number of connections with an active
// subscription.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for s := range h.subs {
		if _, ok := s.filter(nil); ok {
			n++
		}
	}
	return n
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

type subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	// Closed by the hub when the subscriber is removed.
	send chan []byte

	mu         sync.Mutex
	subscribed bool
	prefixes   []string
}

// filter returns the changes under the subscriber's prefixes. ok is
// false when there is no active subscription.
func (s *subscriber) filter(changes []types.StateChange) ([]types.StateChange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.subscribed {
		return nil, false
	}
	if len(s.prefixes) == 0 {
		return changes, true
	}
	var out []types.StateChange
	for _, c := range changes {
		for _, p := range s.prefixes {
			if strings.HasPrefix(c.Address, p) {
				out = append(out, c)
				break
			}
		}
	}
	return out, true
}

func (s *subscriber) handle(req events.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch req.Action {
	case events.ActionSubscribe:
		s.subscribed = true
		s.prefixes = req.AddressPrefixes
	case events.ActionUnsubscribe:
		s.subscribed = false
		s.prefixes = nil
	default:
		s.hub.log.Debug("ignoring unknown subscription action", zap.String("action", req.Action))
	}
}

// readPump reads subscription requests. It is the only reader of the
// connection.
func (s *subscriber) readPump() {
	defer func() {
		s.hub.remove(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var req events.Request
		if err := s.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.log.Debug("unexpected close in websockets", zap.Error(err))
			}
			return
		}
		s.handle(req)
	}
}

// writePump writes queued events and pings. It is the only writer of
// the connection.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.hub.remove(s)
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.hub.log.Debug("closing the connection",
					zap.String("reason", "failed to write message"),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
