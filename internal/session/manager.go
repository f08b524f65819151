package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"huddle/internal/reducer"
	"huddle/pkg/interfaces"
	"huddle/pkg/types"
)

// liveSession pairs a session's current replica state with its sequence
// counter. Both advance only under the manager's lock, only via Apply.
type liveSession struct {
	state types.SessionState
	seq   uint64
}

// Manager implements the SessionManager interface
// ARCHITECTURAL DISCOVERY: The manager owns the authoritative replica of each
// active session. Clients keep their own replicas by folding the same action
// stream; this one exists so the server can validate joins, serve snapshots
// over HTTP, and survive restarts by replaying the persisted action log.
type Manager struct {
	dbManager  interfaces.DatabaseManager
	reducer    *reducer.Reducer
	reducerCfg reducer.Config
	live       map[string]*liveSession // sessionID -> live replica
	mu         sync.RWMutex
}

// NewManager creates a new session manager
func NewManager(dbManager interfaces.DatabaseManager, reducerCfg reducer.Config) *Manager {
	return &Manager{
		dbManager:  dbManager,
		reducer:    reducer.New(reducerCfg),
		reducerCfg: reducerCfg,
		live:       make(map[string]*liveSession),
	}
}

// LoadActiveSessions rebuilds live replicas for all active sessions by
// replaying their persisted action logs
// FUNCTIONAL DISCOVERY: Restart recovery is just replay - the same fold that
// keeps replicas convergent reconstructs the server's own state from the log
func (m *Manager) LoadActiveSessions(ctx context.Context) error {
	sessions, err := m.dbManager.ListActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range sessions {
		logEntries, err := m.dbManager.GetActionLog(ctx, record.ID)
		if err != nil {
			return fmt.Errorf("failed to load action log for %s: %w", record.ID, err)
		}

		replica := &liveSession{state: types.NewSessionState()}
		for _, sequenced := range logEntries {
			replica.state = m.reducer.Reduce(replica.state, sequenced.Action)
			replica.seq = sequenced.Seq
		}
		m.live[record.ID] = replica
		log.Printf("Rebuilt session replica: id=%s actions=%d", record.ID, len(logEntries))
	}

	log.Printf("Loaded %d active sessions", len(sessions))
	return nil
}

// CreateSession creates a new session record and registers an empty live
// replica. The founding session_init action is dispatched separately so it
// lands in the action log like every other transition.
func (m *Manager) CreateSession(ctx context.Context, name string, createdBy string) (*types.Session, error) {
	if name == "" || len(name) > 200 {
		return nil, types.ErrInvalidSessionName
	}
	if !types.IsValidUserID(createdBy) {
		return nil, types.ErrInvalidUserID
	}

	session := &types.Session{
		ID:             uuid.New().String(),
		Name:           name,
		CreatedBy:      createdBy,
		ResourcePolicy: string(m.reducerCfg.Policy),
		StartTime:      time.Now(),
		Status:         types.SessionStatusActive,
	}

	if err := m.dbManager.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.mu.Lock()
	m.live[session.ID] = &liveSession{state: types.NewSessionState()}
	m.mu.Unlock()

	log.Printf("Created session: id=%s name=%s", session.ID, session.Name)
	return session, nil
}

// GetSession retrieves a session record by ID
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	return m.dbManager.GetSession(ctx, sessionID)
}

// EndSession ends an active session and drops its live replica
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	session, err := m.dbManager.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == types.SessionStatusEnded {
		return ErrSessionAlreadyEnded
	}

	now := time.Now()
	session.EndTime = &now
	session.Status = types.SessionStatusEnded

	if err := m.dbManager.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	m.mu.Lock()
	delete(m.live, sessionID)
	m.mu.Unlock()

	log.Printf("Ended session: id=%s name=%s", session.ID, session.Name)
	return nil
}

// ListActiveSessions returns all active session records
func (m *Manager) ListActiveSessions(ctx context.Context) ([]*types.Session, error) {
	return m.dbManager.ListActiveSessions(ctx)
}

// Snapshot returns the session's current replicated state
// TECHNICAL DISCOVERY: Returning the value without copying is safe - the
// reducer clones on every transition, so a handed-out snapshot is immutable
func (m *Manager) Snapshot(sessionID string) (types.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	replica, exists := m.live[sessionID]
	if !exists {
		return types.SessionState{}, interfaces.ErrSessionNotFound
	}
	return replica.state, nil
}

// LiveSessionIDs returns the ids of all sessions with live replicas
func (m *Manager) LiveSessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	return ids
}

// ValidateJoin is the pre-dispatch capacity gate for claiming a slot
// ARCHITECTURAL DISCOVERY: Capacity errors must be rejected before an action
// is constructed - an invalid join never enters the total order, so replicas
// never need a branch to disagree about. The reducer still guards against the
// raced-join case where two valid-looking joins get sequenced back to back.
func (m *Manager) ValidateJoin(sessionID string, slot types.Slot, userID, userName string) error {
	if !types.IsValidSlot(slot) {
		return types.ErrInvalidSlot
	}
	if !types.IsValidUserID(userID) {
		return types.ErrInvalidUserID
	}
	if !types.IsValidUserName(userName) {
		return types.ErrInvalidUserName
	}

	if live, err := m.validateJoinLive(sessionID, slot, userID); live {
		return err
	}

	// No live replica: distinguish an ended session from an unknown one so
	// the caller can report "come back never" instead of "check the id"
	record, err := m.dbManager.GetSession(context.Background(), sessionID)
	if err == nil && record.Status == types.SessionStatusEnded {
		return interfaces.ErrSessionEnded
	}
	return interfaces.ErrSessionNotFound
}

func (m *Manager) validateJoinLive(sessionID string, slot types.Slot, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	replica, exists := m.live[sessionID]
	if !exists {
		return false, nil
	}
	state := &replica.state
	if state.ParticipantByID(userID) >= 0 {
		return true, ErrAlreadyJoined
	}
	if state.FreeSlotCount() == 0 {
		return true, interfaces.ErrSessionFull
	}
	if !state.SlotFree(slot) {
		return true, interfaces.ErrSlotTaken
	}
	return true, nil
}

// Apply folds one action into a session's live replica and returns the new
// state with its assigned sequence number. The sequencer goroutine is the
// only caller, which is what makes the assigned order total.
func (m *Manager) Apply(sessionID string, action types.Action) (types.SessionState, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	replica, exists := m.live[sessionID]
	if !exists {
		return types.SessionState{}, 0, interfaces.ErrSessionNotFound
	}

	replica.seq++
	replica.state = m.reducer.Reduce(replica.state, action)
	return replica.state, replica.seq, nil
}
