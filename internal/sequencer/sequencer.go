package sequencer

import (
	"context"
	"log"
	"sync"

	"huddle/internal/websocket"
	"huddle/pkg/interfaces"
	"huddle/pkg/types"
)

// pendingAction is an action waiting for its position in the total order
type pendingAction struct {
	sessionID string
	action    types.Action
}

// Sequencer assigns every submitted action its position in the per-session
// total order, persists it, and fans it out to all connected replicas.
// ARCHITECTURAL DISCOVERY: A single run goroutine performs apply, persist,
// and fanout for all sessions. That one goroutine IS the total order - no
// lock ordering, no per-session coordination, no interleaving to reason
// about. Throughput comes from the buffered submit channel absorbing bursts.
type Sequencer struct {
	// FUNCTIONAL DISCOVERY: 1000 buffer absorbs bursts from six participants
	// editing simultaneously without blocking their read pumps
	submitChannel   chan *pendingAction
	shutdownChannel chan struct{}

	sessions  interfaces.SessionManager
	dbManager interfaces.DatabaseManager
	registry  *websocket.Registry

	// taps receive every sequenced action after fanout; used by the AI worker,
	// the sandbox gate, and anything else reacting to the stream
	taps []chan types.SequencedAction

	running bool
	mu      sync.RWMutex
}

// NewSequencer creates a new sequencer
// ARCHITECTURAL DISCOVERY: Constructor pattern with dependency injection
// enables clean testing and component isolation
func NewSequencer(sessions interfaces.SessionManager, dbManager interfaces.DatabaseManager, registry *websocket.Registry) *Sequencer {
	return &Sequencer{
		submitChannel:   make(chan *pendingAction, 1000),
		shutdownChannel: make(chan struct{}),
		sessions:        sessions,
		dbManager:       dbManager,
		registry:        registry,
		running:         false,
	}
}

// Subscribe returns a channel receiving every sequenced action.
// FUNCTIONAL DISCOVERY: Taps are registered before Start and receive
// non-blocking sends - a slow tap drops actions rather than stalling the
// ordering goroutine, so taps must tolerate gaps (they can re-read state
// through a snapshot, which is always current)
func (s *Sequencer) Subscribe(buffer int) <-chan types.SequencedAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	tap := make(chan types.SequencedAction, buffer)
	s.taps = append(s.taps, tap)
	return tap
}

// Start begins sequencer processing
func (s *Sequencer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSequencerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	log.Println("Starting action sequencer...")

	go s.run(ctx)

	return nil
}

// Stop gracefully shuts down the sequencer
// TECHNICAL DISCOVERY: Graceful shutdown ensures proper channel cleanup
// and prevents goroutine leaks in production deployment
func (s *Sequencer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSequencerNotRunning
	}
	s.running = false

	log.Println("Stopping action sequencer...")

	// TECHNICAL DISCOVERY: Safe channel close using select to prevent panic
	select {
	case <-s.shutdownChannel:
		// Channel already closed
	default:
		close(s.shutdownChannel)
	}

	return nil
}

// Submit queues an action for sequencing
// TECHNICAL DISCOVERY: Non-blocking send with error handling prevents
// sequencer lockup; callers surface backpressure to the client instead
func (s *Sequencer) Submit(sessionID string, action types.Action) error {
	s.mu.RLock()
	if !s.running {
		s.mu.RUnlock()
		return ErrSequencerNotRunning
	}
	s.mu.RUnlock()

	select {
	case s.submitChannel <- &pendingAction{sessionID: sessionID, action: action}:
		return nil
	default:
		return ErrSubmitChannelFull
	}
}

// run is the main sequencing loop
// TECHNICAL DISCOVERY: Single select loop handles all coordination
// preventing race conditions while maintaining high throughput
func (s *Sequencer) run(ctx context.Context) {
	defer log.Println("Sequencer processing stopped")

	for {
		select {
		case pending := <-s.submitChannel:
			// FUNCTIONAL DISCOVERY: Processing continues despite individual failures
			s.sequence(ctx, pending)

		case <-s.shutdownChannel:
			log.Println("Sequencer shutdown requested")
			return

		case <-ctx.Done():
			log.Println("Sequencer context cancelled")
			return
		}
	}
}

// sequence applies one action, persists it, and fans it out
// ARCHITECTURAL DISCOVERY: Apply-persist-fanout ordering is load-bearing.
// Apply assigns the sequence number; persistence must complete before fanout
// because the persisted log is the replay source for late joiners - an action
// fanned out but never persisted would diverge their replicas
func (s *Sequencer) sequence(ctx context.Context, pending *pendingAction) {
	_, seq, err := s.sessions.Apply(pending.sessionID, pending.action)
	if err != nil {
		log.Printf("Action apply failed: session=%s type=%s error=%v",
			pending.sessionID, pending.action.Type, err)
		return
	}

	sequenced := types.SequencedAction{
		SessionID: pending.sessionID,
		Seq:       seq,
		Action:    pending.action,
	}

	if err := s.dbManager.AppendAction(ctx, pending.sessionID, seq, pending.action); err != nil {
		log.Printf("Action persist failed: session=%s seq=%d type=%s error=%v",
			pending.sessionID, seq, pending.action.Type, err)
		return
	}

	// Deliver to every connected replica in the session
	// FUNCTIONAL DISCOVERY: Continue delivery to other replicas even if one fails
	for _, conn := range s.registry.GetSessionConnections(pending.sessionID) {
		if err := conn.WriteJSON(sequenced); err != nil {
			log.Printf("Failed to deliver action to %s: %v", conn.GetUserID(), err)
		}
	}

	s.notifyTaps(sequenced)
}

// notifyTaps offers the sequenced action to every subscriber without blocking
func (s *Sequencer) notifyTaps(sequenced types.SequencedAction) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tap := range s.taps {
		select {
		case tap <- sequenced:
		default:
			log.Printf("Tap full, dropping action: session=%s seq=%d type=%s",
				sequenced.SessionID, sequenced.Seq, sequenced.Action.Type)
		}
	}
}
