package liveness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"huddle/pkg/types"
)

// mockSessions serves snapshots for detector tests
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

// mockDispatcher records synthesized leaves
type mockDispatcher struct {
	mu     sync.Mutex
	leaves []leaveCall
}

type leaveCall struct {
	sessionID string
	slot      types.Slot
	userID    string
}

func (m *mockDispatcher) DispatchSessionInit(sessionID string) error { return nil }
func (m *mockDispatcher) DispatchJoin(sessionID string, slot types.Slot, userID, userName string) error {
	return nil
}
func (m *mockDispatcher) DispatchLeave(sessionID string, slot types.Slot, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves = append(m.leaves, leaveCall{sessionID, slot, userID})
	return nil
}
func (m *mockDispatcher) DispatchClientFrame(sessionID string, slot types.Slot, userID, userName string, frame []byte) error {
	return nil
}
func (m *mockDispatcher) DispatchAIResponse(sessionID, interactionID, response string, toolRequests []types.ToolRequestSpec) error {
	return nil
}
func (m *mockDispatcher) DispatchModeratorMessage(sessionID, content, context string) error {
	return nil
}

func (m *mockDispatcher) leaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leaves)
}

func (m *mockDispatcher) firstLeave() leaveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaves[0]
}

func sessionWith(participants ...types.Participant) types.SessionState {
	state := types.NewSessionState()
	state.SessionID = "s1"
	state.CreatedAt = 1000
	state.LastActivityAt = 1000
	for _, p := range participants {
		state.SlotAvailable[p.Slot] = false
		state.Participants = append(state.Participants, p)
	}
	return state
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDetector_EvictsSilentParticipant(t *testing.T) {
	sessions := newMockSessions()
	dispatcher := &mockDispatcher{}

	stale := time.Now().Add(-time.Hour).UnixMilli()
	fresh := time.Now().UnixMilli()
	sessions.setState("s1", sessionWith(
		types.Participant{ID: "ghost", DisplayName: "Ghost", Slot: types.SlotPink, LastSeenAt: stale},
		types.Participant{ID: "alive", DisplayName: "Alive", Slot: types.SlotBlue, LastSeenAt: fresh},
	))

	detector := NewDetector(sessions, dispatcher, 10*time.Millisecond, 50*time.Millisecond)
	if err := detector.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer detector.Stop()

	waitFor(t, func() bool { return dispatcher.leaveCount() >= 1 }, "Detector never evicted the silent participant")

	leave := dispatcher.firstLeave()
	if leave.userID != "ghost" || leave.slot != types.SlotPink || leave.sessionID != "s1" {
		t.Errorf("Wrong eviction: %+v", leave)
	}

	// The live participant must not be evicted
	time.Sleep(50 * time.Millisecond)
	dispatcher.mu.Lock()
	for _, l := range dispatcher.leaves {
		if l.userID == "alive" {
			t.Error("Detector evicted a live participant")
		}
	}
	dispatcher.mu.Unlock()
}

func TestDetector_FreshHeartbeatsSurvive(t *testing.T) {
	sessions := newMockSessions()
	dispatcher := &mockDispatcher{}

	fresh := time.Now().UnixMilli()
	sessions.setState("s1", sessionWith(
		types.Participant{ID: "u1", DisplayName: "Alice", Slot: types.SlotPink, LastSeenAt: fresh},
	))

	detector := NewDetector(sessions, dispatcher, 10*time.Millisecond, time.Hour)
	if err := detector.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer detector.Stop()

	time.Sleep(100 * time.Millisecond)
	if dispatcher.leaveCount() != 0 {
		t.Errorf("Expected no evictions, got %d", dispatcher.leaveCount())
	}
}

func TestDetector_StartStopLifecycle(t *testing.T) {
	detector := NewDetector(newMockSessions(), &mockDispatcher{}, time.Second, time.Second)

	if err := detector.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := detector.Start(context.Background()); err != ErrDetectorAlreadyRunning {
		t.Errorf("Expected ErrDetectorAlreadyRunning, got %v", err)
	}
	if err := detector.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := detector.Stop(); err != ErrDetectorNotRunning {
		t.Errorf("Expected ErrDetectorNotRunning, got %v", err)
	}
}
