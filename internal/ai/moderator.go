package ai

import (
	"context"
	"log"
	"sync"
	"time"

	"huddle/pkg/interfaces"
)

// Moderator periodically nudges idle sessions whose participants opted in.
// FUNCTIONAL DISCOVERY: The idle check reads lastActivityAt, which heartbeats
// deliberately do not refresh - a group with live connections but no actual
// work still counts as idle and gets nudged
type Moderator struct {
	sessions      interfaces.SessionManager
	dispatcher    interfaces.ActionDispatcher
	interval      time.Duration
	idleThreshold time.Duration

	// lastNudge tracks the activity stamp each session was last nudged at.
	// The nudge itself lands in the activity log and refreshes the stamp, so
	// a session that stays silent is re-nudged at most once per idle threshold
	lastNudge map[string]int64

	shutdownChannel chan struct{}
	running         bool
	mu              sync.RWMutex
}

// NewModerator creates a new idle-nudge moderator
func NewModerator(sessions interfaces.SessionManager, dispatcher interfaces.ActionDispatcher, interval, idleThreshold time.Duration) *Moderator {
	return &Moderator{
		sessions:        sessions,
		dispatcher:      dispatcher,
		interval:        interval,
		idleThreshold:   idleThreshold,
		lastNudge:       make(map[string]int64),
		shutdownChannel: make(chan struct{}),
	}
}

// Start begins the periodic idle scan
func (m *Moderator) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrModeratorAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	log.Println("Starting AI moderator...")

	go m.run(ctx)

	return nil
}

// Stop gracefully shuts down the moderator
func (m *Moderator) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return ErrModeratorNotRunning
	}
	m.running = false

	select {
	case <-m.shutdownChannel:
	default:
		close(m.shutdownChannel)
	}

	return nil
}

func (m *Moderator) run(ctx context.Context) {
	defer log.Println("AI moderator stopped")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.scan(ctx)

		case <-m.shutdownChannel:
			return

		case <-ctx.Done():
			return
		}
	}
}

// scan checks every active session for an unnudged idle stretch
func (m *Moderator) scan(ctx context.Context) {
	records, err := m.sessions.ListActiveSessions(ctx)
	if err != nil {
		log.Printf("Moderator session list failed: %v", err)
		return
	}

	now := time.Now().UnixMilli()

	for _, record := range records {
		state, err := m.sessions.Snapshot(record.ID)
		if err != nil {
			continue
		}
		if !state.Initialized() || !state.AIModeratorEnabled {
			continue
		}
		if len(state.Participants) == 0 {
			continue
		}
		if now-state.LastActivityAt < m.idleThreshold.Milliseconds() {
			continue
		}
		// Fire only if the stream has moved since the previous nudge
		if m.lastNudge[record.ID] >= state.LastActivityAt {
			continue
		}

		m.lastNudge[record.ID] = state.LastActivityAt

		if err := m.dispatcher.DispatchModeratorMessage(record.ID,
			"Things have gone quiet. Stuck on anything? Try talking through the current approach out loud.",
			"idle_nudge"); err != nil {
			log.Printf("Moderator nudge dispatch failed: session=%s error=%v", record.ID, err)
		}
	}
}
