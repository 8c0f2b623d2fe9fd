package ws

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/workerbridge/workerbridge/internal/bridge"
)

const (
	// writeTimeout is the deadline for a single write to the worker.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a transport-level pong before
	// treating the connection as dead. Orthogonal to the worker's
	// application heartbeats, which the bridge tracks itself.
	pongWait = 60 * time.Second

	// pingPeriod controls how often ping frames are sent. Must be less
	// than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize bounds one inbound frame. Operation payloads are
	// caller-supplied, so this is generous.
	maxFrameSize = 1 << 20

	// sendBufSize is the outgoing frame buffer depth per connection.
	sendBufSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The worker dials from wherever it runs — restrict origins at the
	// reverse proxy if needed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Sink receives transport events. *bridge.Bridge implements it.
type Sink interface {
	OnPhysicalConnect(ch bridge.Channel)
	OnFrame(ch bridge.Channel, raw []byte)
	OnDisconnect(ch bridge.Channel)
}

// Endpoint upgrades worker connections to WebSocket and feeds their frames
// into the sink. Attachment is decided by the sink on the handshake frame,
// not here — the endpoint accepts any number of physical connections and
// reports each one independently.
type Endpoint struct {
	sink Sink
	log  *slog.Logger
}

// New creates an Endpoint delivering events to sink.
func New(sink Sink, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{sink: sink, log: logger.With(slog.String("component", "ws"))}
}

// ServeHTTP upgrades the request and serves the connection. Blocks until
// the connection closes, then reports the disconnect to the sink.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &conn{
		ws:   wsConn,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
	e.log.Info("worker connection opened", "remote", wsConn.RemoteAddr().String())
	e.sink.OnPhysicalConnect(c)

	go c.writePump()
	c.readPump(e.sink) // blocks until the connection closes

	c.Close() //nolint:errcheck
	e.sink.OnDisconnect(c)
	e.log.Info("worker connection closed", "remote", wsConn.RemoteAddr().String())
}

// conn is one physical worker connection. It implements bridge.Channel.
type conn struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// Transmit queues one raw frame for delivery. It never blocks: a full
// buffer is an error, and the worker's missing heartbeats will surface the
// stall to the lifecycle manager.
func (c *conn) Transmit(raw []byte) error {
	select {
	case <-c.done:
		return errors.New("ws: connection closed")
	case c.send <- raw:
		return nil
	default:
		return errors.New("ws: send buffer full")
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// writePump drains the send buffer to the socket and keeps the
// transport-level ping going. Runs in its own goroutine per connection.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close() //nolint:errcheck
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))             //nolint:errcheck
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})             //nolint:errcheck
			return
		case raw := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump forwards every inbound frame to the sink. Blocks until the
// connection closes or errors.
func (c *conn) readPump(sink Sink) {
	defer c.ws.Close() //nolint:errcheck
	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		sink.OnFrame(c, raw)
	}
}
