package ws

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

const (
	// sendBufferSize is the number of messages that can be queued per client.
	sendBufferSize = 16

	// writeTimeout is the max time to wait for a single write to complete.
	writeTimeout = 5 * time.Second
)

// client couples a websocket connection with its outbound queue.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc
}

// ConnManager tracks live connections by their transport-assigned IDs and
// owns their write pumps. Events are addressed to connection IDs, so the
// chat layer never touches a websocket directly.
type ConnManager struct {
	mu      sync.Mutex
	clients map[string]*client
	closed  bool

	droppedMessages atomic.Int64
}

// NewConnManager creates an empty connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		clients: make(map[string]*client),
	}
}

// Add registers a connection under the given ID and starts its write pump.
// The returned context is cancelled when the connection is removed or the
// manager shuts down; read loops should select on it. A cancelled context
// is returned immediately if the manager is already closed.
func (cm *ConnManager) Add(id string, conn *websocket.Conn) context.Context {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		cancel: cancel,
	}
	cm.clients[id] = c

	go cm.writePump(ctx, id, c)

	return ctx
}

// Remove stops the connection's write pump and forgets it.
func (cm *ConnManager) Remove(id string) {
	cm.mu.Lock()
	c, ok := cm.clients[id]
	if ok {
		delete(cm.clients, id)
	}
	cm.mu.Unlock()

	if ok {
		c.cancel()
		close(c.send)
	}
}

// Send queues a message for delivery to a connection. Returns false if the
// connection is unknown or its buffer is full (slow consumer).
func (cm *ConnManager) Send(id string, data []byte) bool {
	cm.mu.Lock()
	c, ok := cm.clients[id]
	cm.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		cm.droppedMessages.Add(1)
		log.Printf("ws: send buffer full for connection %s, dropping message", id)
		return false
	}
}

// Count returns the number of live connections.
func (cm *ConnManager) Count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.clients)
}

// DroppedMessages returns the number of messages dropped on full buffers.
func (cm *ConnManager) DroppedMessages() int64 {
	return cm.droppedMessages.Load()
}

// Shutdown closes every connection with StatusGoingAway and stops their
// write pumps. Connections added afterwards are rejected.
func (cm *ConnManager) Shutdown() {
	cm.mu.Lock()
	cm.closed = true
	clients := cm.clients
	cm.clients = make(map[string]*client)
	cm.mu.Unlock()

	for _, c := range clients {
		c.cancel()
		close(c.send)
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// writePump drains a connection's send channel, writing each message to
// the websocket. It exits when ctx is cancelled or the channel closes.
func (cm *ConnManager) writePump(ctx context.Context, id string, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				log.Printf("ws: write to connection %s failed: %v", id, err)
				return
			}
		}
	}
}
