package liveness

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"huddle/pkg/interfaces"
)

// Detector errors
var (
	ErrDetectorAlreadyRunning = errors.New("liveness detector already running")
	ErrDetectorNotRunning     = errors.New("liveness detector not running")
)

// Detector is the failure detector: it scans participants' lastSeenAt stamps
// and synthesizes a user_leave for anyone past the timeout.
// ARCHITECTURAL DISCOVERY: The reducer never decides liveness - it only
// folds heartbeats and departures. Detection lives out here so the timeout
// policy can change without touching replicated semantics, and the
// synthesized leave converges every replica through the ordinary stream
type Detector struct {
	sessions   interfaces.SessionManager
	dispatcher interfaces.ActionDispatcher
	interval   time.Duration
	timeout    time.Duration

	shutdownChannel chan struct{}
	running         bool
	mu              sync.RWMutex
}

// NewDetector creates a new liveness detector
func NewDetector(sessions interfaces.SessionManager, dispatcher interfaces.ActionDispatcher, interval, timeout time.Duration) *Detector {
	return &Detector{
		sessions:        sessions,
		dispatcher:      dispatcher,
		interval:        interval,
		timeout:         timeout,
		shutdownChannel: make(chan struct{}),
	}
}

// Start begins the periodic liveness scan
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrDetectorAlreadyRunning
	}
	d.running = true
	d.mu.Unlock()

	log.Println("Starting liveness detector...")

	go d.run(ctx)

	return nil
}

// Stop gracefully shuts down the detector
func (d *Detector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return ErrDetectorNotRunning
	}
	d.running = false

	select {
	case <-d.shutdownChannel:
	default:
		close(d.shutdownChannel)
	}

	return nil
}

func (d *Detector) run(ctx context.Context) {
	defer log.Println("Liveness detector stopped")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.scan(ctx)

		case <-d.shutdownChannel:
			return

		case <-ctx.Done():
			return
		}
	}
}

// scan evicts every participant whose heartbeat went silent
func (d *Detector) scan(ctx context.Context) {
	records, err := d.sessions.ListActiveSessions(ctx)
	if err != nil {
		log.Printf("Liveness session list failed: %v", err)
		return
	}

	now := time.Now().UnixMilli()

	for _, record := range records {
		state, err := d.sessions.Snapshot(record.ID)
		if err != nil {
			continue
		}

		for _, participant := range state.Participants {
			if now-participant.LastSeenAt < d.timeout.Milliseconds() {
				continue
			}

			log.Printf("Participant timed out: session=%s slot=%s user=%s lastSeen=%d",
				record.ID, participant.Slot, participant.ID, participant.LastSeenAt)

			// FUNCTIONAL DISCOVERY: The leave goes through dispatch like any
			// explicit departure; if the stale entry is already gone by the
			// time this folds, the reducer no-ops it
			if err := d.dispatcher.DispatchLeave(record.ID, participant.Slot, participant.ID); err != nil {
				log.Printf("Liveness leave dispatch failed: session=%s user=%s error=%v",
					record.ID, participant.ID, err)
			}
		}
	}
}
