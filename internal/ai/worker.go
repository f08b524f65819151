package ai

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"huddle/pkg/interfaces"
	"huddle/pkg/types"
)

// Worker watches the sequenced action stream for ai_query actions, asks the
// backend out-of-band, and feeds the answer back through dispatch as an
// ai_response action.
// ARCHITECTURAL DISCOVERY: The backend call happens outside the reducer and
// outside the sequencing goroutine; its result re-enters the pipeline as an
// ordinary action, so replicas see AI answers with the same ordering
// guarantees as chat messages
type Worker struct {
	tap          <-chan types.SequencedAction
	backend      Backend
	dispatcher   interfaces.ActionDispatcher
	queryTimeout time.Duration

	shutdownChannel chan struct{}
	running         bool
	mu              sync.RWMutex
}

// NewWorker creates a new query worker reading from a sequencer tap
func NewWorker(tap <-chan types.SequencedAction, backend Backend, dispatcher interfaces.ActionDispatcher, queryTimeout time.Duration) *Worker {
	return &Worker{
		tap:             tap,
		backend:         backend,
		dispatcher:      dispatcher,
		queryTimeout:    queryTimeout,
		shutdownChannel: make(chan struct{}),
	}
}

// Start begins watching the action stream
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWorkerAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()

	log.Println("Starting AI query worker...")

	go w.run(ctx)

	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return ErrWorkerNotRunning
	}
	w.running = false

	select {
	case <-w.shutdownChannel:
	default:
		close(w.shutdownChannel)
	}

	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer log.Println("AI query worker stopped")

	for {
		select {
		case sequenced := <-w.tap:
			if sequenced.Action.Type != types.ActionAIQuery {
				continue
			}
			var p types.AIQueryPayload
			if err := json.Unmarshal(sequenced.Action.Payload, &p); err != nil {
				log.Printf("AI worker payload decode failed: session=%s seq=%d error=%v",
					sequenced.SessionID, sequenced.Seq, err)
				continue
			}
			// FUNCTIONAL DISCOVERY: One goroutine per query keeps a slow
			// backend from delaying queries in other sessions behind it
			go w.answer(ctx, sequenced.SessionID, p)

		case <-w.shutdownChannel:
			return

		case <-ctx.Done():
			return
		}
	}
}

// answer asks the backend and re-enters the result into the action stream
func (w *Worker) answer(ctx context.Context, sessionID string, query types.AIQueryPayload) {
	queryCtx, cancel := context.WithTimeout(ctx, w.queryTimeout)
	defer cancel()

	reply, err := w.backend.Answer(queryCtx, query.Query, query.Mode)
	if err != nil {
		// FUNCTIONAL DISCOVERY: A failed backend call still answers the
		// interaction - leaving it unanswered forever would strand the UI's
		// pending state on every replica
		log.Printf("AI backend failed: session=%s interaction=%s error=%v",
			sessionID, query.InteractionID, err)
		reply = Reply{Text: "The tutor is unavailable right now. Try again in a moment."}
	}

	if err := w.dispatcher.DispatchAIResponse(sessionID, query.InteractionID, reply.Text, reply.ToolRequests); err != nil {
		log.Printf("AI response dispatch failed: session=%s interaction=%s error=%v",
			sessionID, query.InteractionID, err)
	}
}
