package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"huddle/pkg/interfaces"
	"huddle/pkg/types"
)

// Sandbox executes the shared code buffer in isolation
// ARCHITECTURAL DISCOVERY: The replicated state only ever records approvals;
// this interface is where an approved tool request finally touches the world.
// Keeping execution behind an interface means the reducer, the approval
// tracker, and the gate below all stay testable without running anything.
type Sandbox interface {
	Run(ctx context.Context, code string) (string, error)
}

// StubSandbox is a deterministic stand-in that never executes anything
type StubSandbox struct{}

func (s *StubSandbox) Run(ctx context.Context, code string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	lines := strings.Count(code, "\n") + 1
	return fmt.Sprintf("sandbox disabled: received %d line(s), nothing was executed", lines), nil
}

// Gate watches tool approvals and runs the shared code buffer once every
// request of an interaction has been approved.
// FUNCTIONAL DISCOVERY: "All requests approved" is the go signal, evaluated
// against a state snapshot after each approval lands - the quorum decision
// lives entirely out here, the reducer just records who approved what
type Gate struct {
	tap        <-chan types.SequencedAction
	sessions   interfaces.SessionManager
	dispatcher interfaces.ActionDispatcher
	sandbox    Sandbox
	runTimeout time.Duration

	// ran guards against re-execution when approvals keep arriving after
	// the gate already fired for an interaction
	ran map[string]bool

	shutdownChannel chan struct{}
	running         bool
	mu              sync.RWMutex
}

// NewGate creates a new sandbox gate reading from a sequencer tap
func NewGate(tap <-chan types.SequencedAction, sessions interfaces.SessionManager, dispatcher interfaces.ActionDispatcher, sandbox Sandbox, runTimeout time.Duration) *Gate {
	return &Gate{
		tap:             tap,
		sessions:        sessions,
		dispatcher:      dispatcher,
		sandbox:         sandbox,
		runTimeout:      runTimeout,
		ran:             make(map[string]bool),
		shutdownChannel: make(chan struct{}),
	}
}

// Start begins watching the action stream
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return ErrGateAlreadyRunning
	}
	g.running = true
	g.mu.Unlock()

	log.Println("Starting sandbox gate...")

	go g.run(ctx)

	return nil
}

// Stop gracefully shuts down the gate
func (g *Gate) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return ErrGateNotRunning
	}
	g.running = false

	select {
	case <-g.shutdownChannel:
	default:
		close(g.shutdownChannel)
	}

	return nil
}

func (g *Gate) run(ctx context.Context) {
	defer log.Println("Sandbox gate stopped")

	for {
		select {
		case sequenced := <-g.tap:
			if sequenced.Action.Type != types.ActionAIToolApprove {
				continue
			}
			var p types.AIToolApprovePayload
			if err := json.Unmarshal(sequenced.Action.Payload, &p); err != nil {
				continue
			}
			g.evaluate(ctx, sequenced.SessionID, p.InteractionID)

		case <-g.shutdownChannel:
			return

		case <-ctx.Done():
			return
		}
	}
}

// evaluate checks whether the interaction just crossed the approval threshold
func (g *Gate) evaluate(ctx context.Context, sessionID, interactionID string) {
	if g.ran[interactionID] {
		return
	}

	state, err := g.sessions.Snapshot(sessionID)
	if err != nil {
		return
	}

	idx := state.InteractionByID(interactionID)
	if idx < 0 {
		return
	}
	interaction := state.Interactions[idx]
	if !interaction.AllToolsApproved() {
		return
	}

	g.ran[interactionID] = true

	// FUNCTIONAL DISCOVERY: Execution runs outside the tap loop so a slow
	// sandbox cannot back up approval processing for other interactions
	go g.execute(ctx, sessionID, interactionID, state.SharedCode.Content)
}

// execute runs the shared buffer and reports the result into the session
func (g *Gate) execute(ctx context.Context, sessionID, interactionID, code string) {
	runCtx, cancel := context.WithTimeout(ctx, g.runTimeout)
	defer cancel()

	output, err := g.sandbox.Run(runCtx, code)
	if err != nil {
		log.Printf("Sandbox run failed: session=%s interaction=%s error=%v",
			sessionID, interactionID, err)
		output = fmt.Sprintf("Execution failed: %v", err)
	}

	if output == "" {
		output = "(no output)"
	}

	if err := g.dispatcher.DispatchModeratorMessage(sessionID,
		fmt.Sprintf("Code run result:\n%s", output), "code_run"); err != nil {
		log.Printf("Sandbox result dispatch failed: session=%s error=%v", sessionID, err)
	}
}
