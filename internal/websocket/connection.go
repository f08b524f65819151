package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"huddle/pkg/types"
)

// Connection wraps one replica's WebSocket link
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race
// conditions; a single writer goroutine owns the socket. The connection layer
// carries no session semantics - it only knows which session/slot identity it
// was authenticated as.
type Connection struct {
	conn          *websocket.Conn
	writeCh       chan []byte // FUNCTIONAL DISCOVERY: buffered to absorb fanout bursts without blocking the sequencer
	sessionID     string
	slot          types.Slot
	userID        string
	userName      string
	authenticated bool
	ctx           context.Context
	cancel        context.CancelFunc
	closeOnce     sync.Once
	mu            sync.RWMutex // Protect identity fields
}

// maxInboundFrameBytes caps a single inbound frame: the largest legal content
// payload plus headroom for the JSON envelope around it. Anything bigger
// fails the read and drops the connection before dispatch ever sees it.
const maxInboundFrameBytes = int64(2 * types.MaxContentBytes)

// NewConnection creates a new WebSocket connection wrapper and starts its
// writer goroutine
func NewConnection(conn *websocket.Conn) *Connection {
	conn.SetReadLimit(maxInboundFrameBytes)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		writeCh: make(chan []byte, 100),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

// ARCHITECTURAL DISCOVERY: Single writer goroutine pattern eliminates races.
// writeCh is never closed - context cancellation is the sole shutdown signal,
// so a WriteJSON racing a dying socket gets ErrConnectionClosed instead of a
// send on a closed channel. The sequencer goroutine calls WriteJSON directly
// during fanout; a panic here would take down ordering for every session.
func (c *Connection) writeLoop() {
	// A socket write failure must flip the connection to closed before this
	// goroutine exits, or queued senders would block until their timeout
	defer c.cancel()

	for {
		select {
		case data := <-c.writeCh:
			// FUNCTIONAL DISCOVERY: 5-second timeout balances responsiveness
			// against flaky home-network clients
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a JSON message for the writer goroutine
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts the connection down exactly once
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// SetIdentity records the validated session/slot identity for this connection
// TECHNICAL DISCOVERY: Identity is set immediately after join validation and
// before registration, so registry lookups never observe a half-built identity
func (c *Connection) SetIdentity(sessionID string, slot types.Slot, userID, userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionID = sessionID
	c.slot = slot
	c.userID = userID
	c.userName = userName
	c.authenticated = true
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) GetSessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Connection) GetSlot() types.Slot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slot
}

func (c *Connection) GetUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Connection) GetUserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userName
}
