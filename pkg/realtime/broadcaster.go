package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/holdfast/internal/logging"
	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/observability"
	"github.com/aretw0/holdfast/pkg/ports"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultQueueSize is the number of frames buffered per connection.
	DefaultQueueSize = 16

	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Admitter validates admission tokens.
type Admitter interface {
	ValidateAndConsume(ctx context.Context, token string) (bool, error)
}

// Broadcaster admits WebSocket observers and fans bus events out to them.
type Broadcaster struct {
	bus         ports.EventSubscriber
	tokens      Admitter
	upgrader    websocket.Upgrader
	sendTimeout time.Duration
	queueSize   int
	logger      *slog.Logger

	mu     sync.Mutex
	conns  map[string]*conn
	closed bool
}

// Option configures the Broadcaster.
type Option func(*Broadcaster)

// WithSendTimeout sets the per-frame write deadline.
func WithSendTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		b.sendTimeout = d
	}
}

// WithQueueSize sets the per-connection buffer.
func WithQueueSize(n int) Option {
	return func(b *Broadcaster) {
		b.queueSize = n
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(b *Broadcaster) {
		b.upgrader.CheckOrigin = fn
	}
}

// WithLogger configures a logger for the Broadcaster.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

// NewBroadcaster creates a broadcaster that admits connections with tokens and
// subscribes each one to bus.
func NewBroadcaster(bus ports.EventSubscriber, tokens Admitter, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		bus:         bus,
		tokens:      tokens,
		sendTimeout: domain.DefaultSendTimeout,
		queueSize:   DefaultQueueSize,
		logger:      logging.NewNop(),
		conns:       make(map[string]*conn),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *conn) stop() {
	c.once.Do(func() { close(c.done) })
}

// ServeHTTP validates the token query parameter and upgrades the request.
// An invalid token is answered with 401 and never subscribes.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ok, err := b.tokens.ValidateAndConsume(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		b.logger.Error("Token validation failed", "err", err)
		http.Error(w, "token validation unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug("WebSocket upgrade failed", "err", err)
		return
	}

	c := &conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, b.queueSize),
		done: make(chan struct{}),
	}
	if !b.register(c) {
		_ = ws.Close()
		return
	}

	unsubscribe := b.bus.Subscribe(func(_ context.Context, event domain.Event) {
		b.enqueue(c, event)
	})
	defer func() {
		unsubscribe()
		b.unregister(c)
		_ = ws.Close()
		b.logger.Info("Observer disconnected", "conn_id", c.id)
	}()
	b.logger.Info("Observer connected", "conn_id", c.id)

	go b.readLoop(c)
	b.writeLoop(c)
}

func (b *Broadcaster) register(c *conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.conns[c.id] = c
	observability.Connections.Inc()
	return true
}

func (b *Broadcaster) unregister(c *conn) {
	c.stop()
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[c.id]; ok {
		delete(b.conns, c.id)
		observability.Connections.Dec()
	}
}

// enqueue runs on the publisher's goroutine and must not block.
func (b *Broadcaster) enqueue(c *conn, event domain.Event) {
	select {
	case <-c.done:
		return
	default:
	}

	frame, err := Encode(event)
	if err != nil {
		b.logger.Error("Failed to encode event", "type", event.Type, "err", err)
		return
	}

	select {
	case c.send <- frame:
	default:
		b.logger.Warn("Observer queue full, dropping connection", "conn_id", c.id)
		b.drop(c)
	}
}

func (b *Broadcaster) drop(c *conn) {
	observability.DroppedConnections.Inc()
	c.stop()
}

// readLoop consumes control frames so pongs and close frames are processed.
func (b *Broadcaster) readLoop(c *conn) {
	defer c.stop()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writeLoop(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(b.sendTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				b.logger.Warn("Send failed, dropping connection", "conn_id", c.id, "err", err)
				b.drop(c)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(b.sendTimeout)); err != nil {
				b.drop(c)
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// Count returns the number of open connections.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Close stops admitting connections and closes the open ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	conns := make([]*conn, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.stop()
	}
}
