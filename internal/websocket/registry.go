package websocket

import (
	"log"
	"sync"

	"huddle/pkg/types"
)

// Registry manages WebSocket connections with thread-safe operations
// ARCHITECTURAL DISCOVERY: Pure connection management without business logic.
// Two-level mapping gives O(1) lookup by user and by session/slot - the
// sequencer fans every action out to all of a session's connections, and the
// dispatch layer resolves the connection behind a slot.
type Registry struct {
	mu                sync.RWMutex
	globalConnections map[string]*Connection                // userID -> Connection
	sessionSlots      map[string]map[types.Slot]*Connection // sessionID -> slot -> Connection
}

// NewRegistry creates a new connection registry
// FUNCTIONAL DISCOVERY: Initialize all maps to prevent nil pointer access
// during concurrent operations
func NewRegistry() *Registry {
	return &Registry{
		globalConnections: make(map[string]*Connection),
		sessionSlots:      make(map[string]map[types.Slot]*Connection),
	}
}

// RegisterConnection adds a connection to all maps atomically
// ARCHITECTURAL DISCOVERY: Connection replacement pattern - a reconnecting
// user's stale connection is closed asynchronously so registration never
// deadlocks against the old writer goroutine
func (r *Registry) RegisterConnection(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}

	userID := conn.GetUserID()
	sessionID := conn.GetSessionID()
	slot := conn.GetSlot()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.globalConnections[userID]; exists {
		go func() {
			if err := existing.Close(); err != nil {
				log.Printf("Failed to close existing connection: %v", err)
			}
		}()
	}

	r.globalConnections[userID] = conn

	if r.sessionSlots[sessionID] == nil {
		r.sessionSlots[sessionID] = make(map[types.Slot]*Connection)
	}
	r.sessionSlots[sessionID][slot] = conn

	return nil
}

// UnregisterConnection removes a specific connection from all maps atomically
// FUNCTIONAL DISCOVERY: Idempotent, and removes only if this exact instance
// is the registered one - a closed predecessor must never unregister its
// replacement during cleanup
func (r *Registry) UnregisterConnection(conn *Connection) {
	if conn == nil {
		return
	}

	userID := conn.GetUserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.globalConnections[userID]
	if !exists || registered != conn {
		return
	}

	delete(r.globalConnections, userID)

	sessionID := conn.GetSessionID()
	if slots, ok := r.sessionSlots[sessionID]; ok {
		if slots[conn.GetSlot()] == conn {
			delete(slots, conn.GetSlot())
		}
		if len(slots) == 0 {
			delete(r.sessionSlots, sessionID)
		}
	}
}

// GetUserConnection returns the connection for a user ID
func (r *Registry) GetUserConnection(userID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.globalConnections[userID]
	return conn, exists
}

// GetSessionConnections returns all connections in a session
// FUNCTIONAL DISCOVERY: This is the sequencer's fanout set - every replica of
// the session, regardless of slot
func (r *Registry) GetSessionConnections(sessionID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connections []*Connection
	for _, conn := range r.sessionSlots[sessionID] {
		connections = append(connections, conn)
	}
	return connections
}

// GetSlotConnection returns the connection occupying a slot in a session
func (r *Registry) GetSlotConnection(sessionID string, slot types.Slot) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slots, ok := r.sessionSlots[sessionID]
	if !ok {
		return nil, false
	}
	conn, exists := slots[slot]
	return conn, exists
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.globalConnections),
		"active_sessions":   len(r.sessionSlots),
	}
}
