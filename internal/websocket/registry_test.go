package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"huddle/pkg/types"
)

// Functional Validation Tests
func TestRegistry_NewRegistryInitialization(t *testing.T) {
	registry := NewRegistry()

	if registry == nil {
		t.Fatal("NewRegistry returned nil")
	}

	stats := registry.GetStats()
	if stats["total_connections"] != 0 {
		t.Errorf("Expected 0 initial connections, got %d", stats["total_connections"])
	}
}

func TestRegistry_RegisterConnectionValidation(t *testing.T) {
	registry := NewRegistry()

	// Test nil connection
	err := registry.RegisterConnection(nil)
	if err != ErrNilConnection {
		t.Errorf("Expected ErrNilConnection, got %v", err)
	}

	// Test connection without identity
	wsConn := createTestWebSocketConnection(t)
	defer wsConn.Close()

	conn := NewConnection(wsConn)
	defer conn.Close()

	err = registry.RegisterConnection(conn)
	if err != ErrConnectionNotAuthenticated {
		t.Errorf("Expected ErrConnectionNotAuthenticated, got %v", err)
	}
}

func TestRegistry_RegisterConnectionSuccess(t *testing.T) {
	registry := NewRegistry()

	wsConn := createTestWebSocketConnection(t)
	defer wsConn.Close()

	conn := NewConnection(wsConn)
	defer conn.Close()

	conn.SetIdentity("session456", types.SlotPink, "user123", "Alice")

	err := registry.RegisterConnection(conn)
	if err != nil {
		t.Errorf("RegisterConnection failed: %v", err)
	}

	retrievedConn, exists := registry.GetUserConnection("user123")
	if !exists {
		t.Error("Connection not found after registration")
	}
	if retrievedConn != conn {
		t.Error("Retrieved connection does not match registered connection")
	}

	slotConn, exists := registry.GetSlotConnection("session456", types.SlotPink)
	if !exists {
		t.Error("Slot connection not found after registration")
	}
	if slotConn != conn {
		t.Error("Slot lookup returned wrong connection")
	}
}

func TestRegistry_ConnectionReplacement(t *testing.T) {
	registry := NewRegistry()

	// First connection for the user
	wsConn1 := createTestWebSocketConnection(t)
	defer wsConn1.Close()

	conn1 := NewConnection(wsConn1)
	defer conn1.Close()
	conn1.SetIdentity("session456", types.SlotPink, "user123", "Alice")

	registry.RegisterConnection(conn1)

	// Second connection for the same user reclaiming the same slot
	wsConn2 := createTestWebSocketConnection(t)
	defer wsConn2.Close()

	conn2 := NewConnection(wsConn2)
	defer conn2.Close()
	conn2.SetIdentity("session456", types.SlotPink, "user123", "Alice")

	err := registry.RegisterConnection(conn2)
	if err != nil {
		t.Errorf("Connection replacement failed: %v", err)
	}

	retrievedConn, exists := registry.GetUserConnection("user123")
	if !exists {
		t.Error("Connection not found after replacement")
	}
	if retrievedConn != conn2 {
		t.Error("Connection was not replaced properly")
	}

	// Give time for old connection cleanup
	time.Sleep(10 * time.Millisecond)
}

func TestRegistry_UnregisterConnection(t *testing.T) {
	registry := NewRegistry()

	wsConn := createTestWebSocketConnection(t)
	defer wsConn.Close()

	conn := NewConnection(wsConn)
	defer conn.Close()
	conn.SetIdentity("session456", types.SlotGreen, "user123", "Carol")

	registry.RegisterConnection(conn)

	_, exists := registry.GetUserConnection("user123")
	if !exists {
		t.Error("Connection should be registered")
	}

	registry.UnregisterConnection(conn)

	_, exists = registry.GetUserConnection("user123")
	if exists {
		t.Error("Connection should be unregistered")
	}

	_, exists = registry.GetSlotConnection("session456", types.SlotGreen)
	if exists {
		t.Error("Slot should be released after unregistration")
	}
}

func TestRegistry_UnregisterNonexistentConnection(t *testing.T) {
	registry := NewRegistry()

	// Should be idempotent - no error for nil connection
	registry.UnregisterConnection(nil)

	stats := registry.GetStats()
	if stats["total_connections"] != 0 {
		t.Error("Unregistering non-existent connection should not affect registry")
	}
}

func TestRegistry_UnregisterStaleConnection(t *testing.T) {
	registry := NewRegistry()

	wsConn1 := createTestWebSocketConnection(t)
	defer wsConn1.Close()
	conn1 := NewConnection(wsConn1)
	defer conn1.Close()
	conn1.SetIdentity("session456", types.SlotPink, "user123", "Alice")
	registry.RegisterConnection(conn1)

	wsConn2 := createTestWebSocketConnection(t)
	defer wsConn2.Close()
	conn2 := NewConnection(wsConn2)
	defer conn2.Close()
	conn2.SetIdentity("session456", types.SlotPink, "user123", "Alice")
	registry.RegisterConnection(conn2)

	// Unregistering the replaced connection must not evict the live one
	registry.UnregisterConnection(conn1)

	retrievedConn, exists := registry.GetUserConnection("user123")
	if !exists {
		t.Error("Live connection should survive stale unregister")
	}
	if retrievedConn != conn2 {
		t.Error("Stale unregister evicted the wrong connection")
	}
}

func TestRegistry_SessionConnectionLookups(t *testing.T) {
	registry := NewRegistry()

	// Two participants in the same session, each in their own slot
	wsConn1 := createTestWebSocketConnection(t)
	defer wsConn1.Close()

	pink := NewConnection(wsConn1)
	defer pink.Close()
	pink.SetIdentity("session123", types.SlotPink, "user1", "Alice")
	registry.RegisterConnection(pink)

	wsConn2 := createTestWebSocketConnection(t)
	defer wsConn2.Close()

	blue := NewConnection(wsConn2)
	defer blue.Close()
	blue.SetIdentity("session123", types.SlotBlue, "user2", "Bob")
	registry.RegisterConnection(blue)

	allConnections := registry.GetSessionConnections("session123")
	if len(allConnections) != 2 {
		t.Errorf("Expected 2 session connections, got %d", len(allConnections))
	}

	slotConn, exists := registry.GetSlotConnection("session123", types.SlotBlue)
	if !exists || slotConn != blue {
		t.Error("Slot lookup should return the blue participant's connection")
	}
}

func TestRegistry_EmptySessionLookups(t *testing.T) {
	registry := NewRegistry()

	allConnections := registry.GetSessionConnections("nonexistent")
	if len(allConnections) != 0 {
		t.Errorf("Expected 0 connections for non-existent session, got %d", len(allConnections))
	}

	_, exists := registry.GetSlotConnection("nonexistent", types.SlotPink)
	if exists {
		t.Error("Expected no slot connection for non-existent session")
	}
}

// Technical Validation Tests (Race Detection)
func TestRegistry_ConcurrentRegistration(t *testing.T) {
	registry := NewRegistry()

	const numConnections = 30
	var wg sync.WaitGroup
	wg.Add(numConnections)

	// Register multiple connections concurrently across distinct sessions
	for i := 0; i < numConnections; i++ {
		go func(id int) {
			defer wg.Done()

			wsConn := createTestWebSocketConnection(t)
			defer wsConn.Close()

			conn := NewConnection(wsConn)
			defer conn.Close()

			slot := types.AllSlots[id%len(types.AllSlots)]
			sessionID := fmt.Sprintf("session%d", id/len(types.AllSlots))
			conn.SetIdentity(sessionID, slot, fmt.Sprintf("user%d", id), "Tester")

			err := registry.RegisterConnection(conn)
			if err != nil {
				t.Errorf("Concurrent registration failed for user%d: %v", id, err)
			}
		}(i)
	}

	wg.Wait()

	stats := registry.GetStats()
	if stats["total_connections"] != numConnections {
		t.Errorf("Expected %d connections, got %d", numConnections, stats["total_connections"])
	}
}

func TestRegistry_ConcurrentLookup(t *testing.T) {
	registry := NewRegistry()

	// Register a full session first
	for i, slot := range types.AllSlots {
		wsConn := createTestWebSocketConnection(t)
		defer wsConn.Close()

		conn := NewConnection(wsConn)
		defer conn.Close()

		conn.SetIdentity("session123", slot, fmt.Sprintf("user%d", i), "Tester")
		registry.RegisterConnection(conn)
	}

	const numReaders = 50
	var wg sync.WaitGroup
	wg.Add(numReaders)

	// Concurrent lookups should be safe
	for i := 0; i < numReaders; i++ {
		go func() {
			defer wg.Done()

			registry.GetUserConnection("user3")
			registry.GetSessionConnections("session123")
			registry.GetSlotConnection("session123", types.SlotOrange)
			registry.GetStats()
		}()
	}

	wg.Wait()
}

func TestRegistry_ConcurrentRegistrationAndUnregistration(t *testing.T) {
	registry := NewRegistry()

	const numOperations = 60
	var wg sync.WaitGroup
	wg.Add(numOperations)

	for i := 0; i < numOperations; i++ {
		go func(id int) {
			defer wg.Done()

			if id%2 == 0 {
				wsConn := createTestWebSocketConnection(t)
				defer wsConn.Close()

				conn := NewConnection(wsConn)
				defer conn.Close()

				slot := types.AllSlots[id%len(types.AllSlots)]
				sessionID := fmt.Sprintf("session%d", id/len(types.AllSlots))
				conn.SetIdentity(sessionID, slot, fmt.Sprintf("user%d", id), "Tester")
				registry.RegisterConnection(conn)
			} else {
				userID := fmt.Sprintf("user%d", id-1)
				if conn, exists := registry.GetUserConnection(userID); exists {
					registry.UnregisterConnection(conn)
				}
			}
		}(i)
	}

	wg.Wait()

	// Registry should be in consistent state
	stats := registry.GetStats()
	if stats["total_connections"] < 0 {
		t.Error("Registry in inconsistent state after concurrent operations")
	}
}
