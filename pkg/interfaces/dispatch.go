package interfaces

import (
	"huddle/pkg/types"
)

// ActionSequencer accepts finished actions for total-order application and
// fanout. Implemented by the sequencer; consumed by the dispatch layer.
type ActionSequencer interface {
	// Submit queues an action for sequencing. Non-blocking; returns an error
	// if the sequencer is saturated or stopped so callers can surface
	// backpressure instead of deadlocking.
	Submit(sessionID string, action types.Action) error
}

// ActionDispatcher is the action-constructor boundary: it validates intent,
// stamps ids and timestamps exactly once, and submits finished actions to the
// sequencer.
// ARCHITECTURAL DISCOVERY: Every timestamp and generated id that affects
// replicated state is produced here, never inside the reducer - the reducer
// stays a deterministic fold while this layer absorbs all non-determinism
type ActionDispatcher interface {
	// DispatchSessionInit stamps and submits the session's founding action
	DispatchSessionInit(sessionID string) error

	// DispatchJoin validates capacity and submits a user_join
	DispatchJoin(sessionID string, slot types.Slot, userID, userName string) error

	// DispatchLeave submits a user_leave (explicit departure or synthesized
	// by the liveness detector)
	DispatchLeave(sessionID string, slot types.Slot, userID string) error

	// DispatchClientFrame validates and re-stamps a raw client action frame
	DispatchClientFrame(sessionID string, slot types.Slot, userID, userName string, frame []byte) error

	// DispatchAIResponse submits the backend's answer for an interaction
	DispatchAIResponse(sessionID, interactionID, response string, toolRequests []types.ToolRequestSpec) error

	// DispatchModeratorMessage injects unsolicited moderator guidance
	DispatchModeratorMessage(sessionID, content, context string) error
}
