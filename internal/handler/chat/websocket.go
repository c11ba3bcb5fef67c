package chat

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/parleychat/parley/internal/service/relay"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
	maxFrameSize = 64 * 1024
)

// WebSocketHandler upgrades client connections and feeds their frames
// into the hub.
type WebSocketHandler struct {
	hub       *relay.Hub
	queueSize int
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates the WebSocket entry point. queueSize
// buffers outbound frames per connection.
func NewWebSocketHandler(hub *relay.Hub, queueSize int) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		queueSize: queueSize,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes mounts the upgrade endpoint.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}

	c := &client{
		socket: socket,
		send:   make(chan []byte, h.queueSize),
		done:   make(chan struct{}),
	}
	sessionID := h.hub.Connect(c)

	go c.writePump()
	h.readLoop(sessionID, c)
}

// readLoop pulls frames off the socket and dispatches them until the
// transport closes, then tears the session down.
func (h *WebSocketHandler) readLoop(sessionID string, c *client) {
	defer func() {
		c.Close()
		h.hub.Disconnect(sessionID)
	}()

	c.socket.SetReadLimit(maxFrameSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error for %s: %v", sessionID, err)
			}
			return
		}
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		h.hub.Dispatch(sessionID, frame)
	}
}

// client owns one WebSocket connection. Outbound frames are queued on
// the send channel and drained by writePump, so the hub never blocks
// on a slow reader; a full queue drops the frame instead.
type client struct {
	socket *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

var (
	errClosed    = errors.New("connection closed")
	errQueueFull = errors.New("send queue full")
)

// Send implements relay.Conn without blocking.
func (c *client) Send(frame []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errQueueFull
	}
}

// Close implements relay.Conn. Closing the socket unblocks readLoop,
// which performs the session teardown.
func (c *client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.socket.Close()
	})
}

// writePump serializes all writes to the socket: queued frames plus
// keepalive pings. gorilla allows a single concurrent writer.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
