package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"huddle/pkg/types"
)

// mockSessions serves snapshots for the moderator and sandbox gate tests
type mockSessions struct {
	mu      sync.Mutex
	records []*types.Session
	states  map[string]types.SessionState
}

func newMockSessions() *mockSessions {
	return &mockSessions{states: make(map[string]types.SessionState)}
}

func (m *mockSessions) setState(sessionID string, state types.SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionID] = state
	for _, r := range m.records {
		if r.ID == sessionID {
			return
		}
	}
	m.records = append(m.records, &types.Session{ID: sessionID, Status: types.SessionStatusActive})
}

func (m *mockSessions) CreateSession(ctx context.Context, name, createdBy string) (*types.Session, error) {
	return nil, errors.New("not implemented")
}
func (m *mockSessions) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	return nil, errors.New("not implemented")
}
func (m *mockSessions) EndSession(ctx context.Context, sessionID string) error {
	return errors.New("not implemented")
}
func (m *mockSessions) ListActiveSessions(ctx context.Context) ([]*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Session(nil), m.records...), nil
}
func (m *mockSessions) Snapshot(sessionID string) (types.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[sessionID]
	if !ok {
		return types.SessionState{}, errors.New("no such session")
	}
	return state, nil
}
func (m *mockSessions) ValidateJoin(sessionID string, slot types.Slot, userID, userName string) error {
	return nil
}
func (m *mockSessions) Apply(sessionID string, action types.Action) (types.SessionState, uint64, error) {
	return types.SessionState{}, 0, errors.New("not implemented")
}

// idleState builds an initialized one-participant state idle since the given stamp
func idleState(sessionID string, lastActivity int64, moderatorEnabled bool) types.SessionState {
	state := types.NewSessionState()
	state.SessionID = sessionID
	state.CreatedAt = lastActivity
	state.LastActivityAt = lastActivity
	state.AIModeratorEnabled = moderatorEnabled
	state.SlotAvailable[types.SlotPink] = false
	state.Participants = append(state.Participants, types.Participant{
		ID: "u1", DisplayName: "Alice", Slot: types.SlotPink, LastSeenAt: lastActivity,
	})
	return state
}

func TestModerator_NudgesIdleSession(t *testing.T) {
	sessions := newMockSessions()
	dispatcher := &mockDispatcher{}

	stale := time.Now().Add(-time.Hour).UnixMilli()
	sessions.setState("s1", idleState("s1", stale, true))

	moderator := NewModerator(sessions, dispatcher, 10*time.Millisecond, 50*time.Millisecond)
	if err := moderator.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer moderator.Stop()

	waitFor(t, func() bool { return dispatcher.messageCount() >= 1 }, "Moderator never nudged the idle session")

	msg := dispatcher.lastMessage()
	if msg.sessionID != "s1" || msg.context != "idle_nudge" {
		t.Errorf("Unexpected nudge: %+v", msg)
	}
}

func TestModerator_NoRenudgeWithoutNewActivity(t *testing.T) {
	sessions := newMockSessions()
	dispatcher := &mockDispatcher{}

	stale := time.Now().Add(-time.Hour).UnixMilli()
	sessions.setState("s1", idleState("s1", stale, true))

	moderator := NewModerator(sessions, dispatcher, 10*time.Millisecond, 50*time.Millisecond)
	if err := moderator.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer moderator.Stop()

	waitFor(t, func() bool { return dispatcher.messageCount() >= 1 }, "Moderator never nudged")

	// State never moves, so further ticks must not nudge again
	time.Sleep(100 * time.Millisecond)
	if dispatcher.messageCount() != 1 {
		t.Errorf("Expected exactly 1 nudge, got %d", dispatcher.messageCount())
	}
}

func TestModerator_RespectsDisabledFlag(t *testing.T) {
	sessions := newMockSessions()
	dispatcher := &mockDispatcher{}

	stale := time.Now().Add(-time.Hour).UnixMilli()
	sessions.setState("s1", idleState("s1", stale, false))

	moderator := NewModerator(sessions, dispatcher, 10*time.Millisecond, 50*time.Millisecond)
	if err := moderator.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer moderator.Stop()

	time.Sleep(100 * time.Millisecond)
	if dispatcher.messageCount() != 0 {
		t.Error("Moderator must not nudge when the session opted out")
	}
}

func TestModerator_SkipsActiveSessions(t *testing.T) {
	sessions := newMockSessions()
	dispatcher := &mockDispatcher{}

	fresh := time.Now().UnixMilli()
	sessions.setState("s1", idleState("s1", fresh, true))

	moderator := NewModerator(sessions, dispatcher, 10*time.Millisecond, time.Hour)
	if err := moderator.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer moderator.Stop()

	time.Sleep(100 * time.Millisecond)
	if dispatcher.messageCount() != 0 {
		t.Error("Moderator must not nudge a recently active session")
	}
}

func TestModerator_SkipsEmptySessions(t *testing.T) {
	sessions := newMockSessions()
	dispatcher := &mockDispatcher{}

	stale := time.Now().Add(-time.Hour).UnixMilli()
	state := idleState("s1", stale, true)
	state.Participants = nil
	state.SlotAvailable[types.SlotPink] = true
	sessions.setState("s1", state)

	moderator := NewModerator(sessions, dispatcher, 10*time.Millisecond, 50*time.Millisecond)
	if err := moderator.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer moderator.Stop()

	time.Sleep(100 * time.Millisecond)
	if dispatcher.messageCount() != 0 {
		t.Error("Moderator must not nudge an empty session")
	}
}
