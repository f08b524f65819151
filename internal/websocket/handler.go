package websocket

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"huddle/pkg/interfaces"
	"huddle/pkg/types"
)

// WebSocket upgrader with production-ready settings
// ARCHITECTURAL DISCOVERY: Separate upgrader configuration enables reuse
// and consistent WebSocket settings across different handler instances
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// FUNCTIONAL DISCOVERY: Allow all origins for development
		// Production deployments should implement stricter origin checking
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler manages WebSocket connections for session replicas
// ARCHITECTURAL DISCOVERY: The handler is glue between transport and the
// action pipeline: it validates a join, replays the persisted action log so
// the new replica can catch up, then forwards every inbound frame to the
// dispatch layer. It never touches session state directly.
type Handler struct {
	registry       *Registry
	sessionManager interfaces.SessionManager
	dbManager      interfaces.DatabaseManager
	dispatcher     interfaces.ActionDispatcher
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(registry *Registry, sessionManager interfaces.SessionManager, dbManager interfaces.DatabaseManager, dispatcher interfaces.ActionDispatcher) *Handler {
	return &Handler{
		registry:       registry,
		sessionManager: sessionManager,
		dbManager:      dbManager,
		dispatcher:     dispatcher,
	}
}

// HandleWebSocket handles WebSocket connection requests with comprehensive validation
// ARCHITECTURAL DISCOVERY: Multi-stage validation (parameters -> capacity gate
// -> WebSocket upgrade -> registration -> join dispatch) ensures an occupied
// slot or a full session is rejected with a proper HTTP error before any
// action is constructed
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	slot := types.Slot(r.URL.Query().Get("slot"))
	userID := r.URL.Query().Get("user_id")
	userName := r.URL.Query().Get("name")

	if sessionID == "" || slot == "" || userID == "" || userName == "" {
		http.Error(w, "Missing required query parameters: session_id, slot, user_id, name", http.StatusBadRequest)
		return
	}

	// The pre-dispatch capacity gate: user-visible failures like "slot
	// unavailable" are produced here, never by the reducer
	if err := h.sessionManager.ValidateJoin(sessionID, slot, userID, userName); err != nil {
		switch err {
		case interfaces.ErrSessionNotFound:
			http.Error(w, "Session not found", http.StatusNotFound)
		case interfaces.ErrSessionEnded:
			http.Error(w, "Session has ended", http.StatusGone)
		case interfaces.ErrSlotTaken:
			http.Error(w, "Slot is already occupied", http.StatusConflict)
		case interfaces.ErrSessionFull:
			http.Error(w, "Session has no free slots", http.StatusConflict)
		case types.ErrInvalidSlot, types.ErrInvalidUserID, types.ErrInvalidUserName:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "Join validation failed", http.StatusInternalServerError)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn)
	wsConn.SetIdentity(sessionID, slot, userID, userName)

	// Register before dispatching the join so this replica receives its own
	// user_join through the same fanout as everyone else
	if err := h.registry.RegisterConnection(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	if err := h.dispatcher.DispatchJoin(sessionID, slot, userID, userName); err != nil {
		log.Printf("Failed to dispatch join for %s: %v", userID, err)
		h.registry.UnregisterConnection(wsConn)
		_ = wsConn.Close()
		return
	}

	// Send the persisted action log in the background
	// ARCHITECTURAL DISCOVERY: Replay overlaps with live fanout; every frame
	// carries its sequence number, so the client folds each seq exactly once
	// and the overlap is harmless
	go h.sendActionLog(wsConn)

	go h.handleConnection(wsConn)
}

// sendActionLog replays the session's persisted ordered action log so a late
// joiner's replica can fold its way to the current state
func (h *Handler) sendActionLog(conn *Connection) {
	sessionID := conn.GetSessionID()

	actions, err := h.dbManager.GetActionLog(context.Background(), sessionID)
	if err != nil {
		log.Printf("Failed to get action log: %v", err)
		errorMsg := map[string]interface{}{
			"type": "system",
			"content": map[string]interface{}{
				"event":   "replay_unavailable",
				"message": "Unable to load session history",
			},
		}
		if err := conn.WriteJSON(errorMsg); err != nil {
			log.Printf("Failed to send replay error message: %v", err)
		}
		return
	}

	for _, sequenced := range actions {
		if err := conn.WriteJSON(sequenced); err != nil {
			log.Printf("Failed to send replay action: %v", err)
			return
		}
	}

	// Explicit completion signal enables client-side loading states
	completeMsg := map[string]interface{}{
		"type": "system",
		"content": map[string]interface{}{
			"event":   "replay_complete",
			"message": "Session history loaded",
		},
	}
	if err := conn.WriteJSON(completeMsg); err != nil {
		log.Printf("Failed to send replay complete message: %v", err)
	}
}

// handleConnection manages the connection lifecycle with heartbeat monitoring
// ARCHITECTURAL DISCOVERY: Single goroutine per connection handles both
// heartbeat and frame reading to prevent goroutine proliferation
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// FUNCTIONAL DISCOVERY: A dropped socket is an implicit departure -
		// synthesize the user_leave here so the roster converges without
		// waiting for the liveness detector's timeout
		if err := h.dispatcher.DispatchLeave(conn.GetSessionID(), conn.GetSlot(), conn.GetUserID()); err != nil {
			log.Printf("Failed to dispatch leave for %s: %v", conn.GetUserID(), err)
		}
		h.registry.UnregisterConnection(conn)
		_ = conn.Close()
	}()

	// TECHNICAL DISCOVERY: 60-second read deadline with 30-second ping
	// interval provides reliable connection health monitoring
	if err := conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	// Read pump - every inbound text frame is a candidate action that the
	// dispatch layer validates, stamps, and submits for sequencing
	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if err := h.dispatcher.DispatchClientFrame(conn.GetSessionID(), conn.GetSlot(), conn.GetUserID(), conn.GetUserName(), data); err != nil {
			// FUNCTIONAL DISCOVERY: Frame rejection feedback goes only to the
			// sender; rejected frames never reach the action stream
			errorMsg := map[string]interface{}{
				"type": "system",
				"content": map[string]interface{}{
					"event":   "frame_rejected",
					"message": err.Error(),
				},
			}
			if writeErr := conn.WriteJSON(errorMsg); writeErr != nil {
				log.Printf("Failed to send frame rejection to %s: %v", conn.GetUserID(), writeErr)
			}
		}
	}
}
