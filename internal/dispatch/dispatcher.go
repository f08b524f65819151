package dispatch

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"huddle/pkg/interfaces"
	"huddle/pkg/types"
)

// clientFrame is the wire shape of an inbound WebSocket action frame
type clientFrame struct {
	Type    types.ActionType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

// Dispatcher implements the ActionDispatcher interface
// ARCHITECTURAL DISCOVERY: The dispatcher is the single place non-determinism
// enters the pipeline: wall-clock timestamps and generated ids are stamped
// here exactly once, then travel inside the action payload so every replica
// folds identical data. Identity fields in client payloads are overwritten
// with the connection's validated identity to prevent spoofing.
type Dispatcher struct {
	sequencer   interfaces.ActionSequencer
	sessions    interfaces.SessionManager
	rateLimiter *RateLimiter

	// now and newID are injectable for deterministic tests
	now   func() int64
	newID func() string
}

// NewDispatcher creates a new action dispatcher
// FUNCTIONAL DISCOVERY: Dependency injection enables testing with mock components
func NewDispatcher(sequencer interfaces.ActionSequencer, sessions interfaces.SessionManager, ratePerSec int) *Dispatcher {
	return &Dispatcher{
		sequencer:   sequencer,
		sessions:    sessions,
		rateLimiter: NewRateLimiter(ratePerSec),
		now:         func() int64 { return time.Now().UnixMilli() },
		newID:       func() string { return uuid.New().String() },
	}
}

// DispatchSessionInit stamps and submits the session's founding action
func (d *Dispatcher) DispatchSessionInit(sessionID string) error {
	return d.sequencer.Submit(sessionID, types.NewAction(types.ActionSessionInit, types.SessionInitPayload{
		SessionID:   sessionID,
		AtTimestamp: d.now(),
	}))
}

// DispatchJoin validates capacity and submits a user_join
// ARCHITECTURAL DISCOVERY: Capacity failures (occupied slot, full session)
// are produced here before any action exists; by the time a user_join enters
// the stream it is expected to succeed, and the reducer's own occupancy check
// only breaks ties between joins racing for the same slot
func (d *Dispatcher) DispatchJoin(sessionID string, slot types.Slot, userID, userName string) error {
	if err := d.sessions.ValidateJoin(sessionID, slot, userID, userName); err != nil {
		return err
	}
	return d.sequencer.Submit(sessionID, types.NewAction(types.ActionUserJoin, types.UserJoinPayload{
		Slot:        slot,
		UserID:      userID,
		UserName:    userName,
		AtTimestamp: d.now(),
	}))
}

// DispatchLeave submits a user_leave for an explicit or synthesized departure
func (d *Dispatcher) DispatchLeave(sessionID string, slot types.Slot, userID string) error {
	return d.sequencer.Submit(sessionID, types.NewAction(types.ActionUserLeave, types.UserLeavePayload{
		Slot:        slot,
		UserID:      userID,
		AtTimestamp: d.now(),
	}))
}

// DispatchClientFrame validates, re-stamps, and submits a raw client frame
// FUNCTIONAL DISCOVERY: The switch is a whitelist - server-originated tags
// (session_init, user_join, ai_response, moderator messages) are rejected even
// though they are valid action types, because a client fabricating them could
// corrupt every replica at once
func (d *Dispatcher) DispatchClientFrame(sessionID string, slot types.Slot, userID, userName string, frame []byte) error {
	if !d.rateLimiter.Allow(userID) {
		return ErrRateLimitExceeded
	}

	var cf clientFrame
	if err := json.Unmarshal(frame, &cf); err != nil {
		return ErrInvalidFrame
	}

	if !types.IsValidActionType(cf.Type) {
		return types.ErrInvalidActionType
	}

	switch cf.Type {
	case types.ActionUserCursorUpdate:
		var p types.UserCursorUpdatePayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		p.Slot = slot
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	case types.ActionUserHeartbeat:
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, types.UserHeartbeatPayload{
			Slot:        slot,
			AtTimestamp: d.now(),
		}))

	case types.ActionChatMessage:
		var p types.ChatMessagePayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		if err := types.ValidateContent(p.Content); err != nil {
			return err
		}
		p.Slot = slot
		p.UserID = userID
		p.UserName = userName
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	case types.ActionAIQuery:
		var p types.AIQueryPayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		if err := types.ValidateContent(p.Query); err != nil {
			return err
		}
		if !types.IsValidAIMode(p.Mode) {
			return types.ErrInvalidAIMode
		}
		// FUNCTIONAL DISCOVERY: The interaction id is generated here, not by
		// the client and not by the reducer, so the query, its response, and
		// its approvals all reference one id on every replica
		p.InteractionID = d.newID()
		p.RequestedBy = slot
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	case types.ActionAIToolApprove:
		var p types.AIToolApprovePayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		if p.InteractionID == "" {
			return types.ErrInvalidInteractionID
		}
		if p.ToolIndex < 0 {
			return types.ErrInvalidToolIndex
		}
		p.ApprovedBy = slot
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	case types.ActionCodeUpdate:
		var p types.CodeUpdatePayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		if len(p.Content) > types.MaxContentBytes {
			return types.ErrContentTooLarge
		}
		p.Slot = slot
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	case types.ActionCodeCursorUpdate:
		var p types.CodeCursorUpdatePayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		p.Slot = slot
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	case types.ActionNotesUpdate:
		var p types.NotesUpdatePayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		if len(p.Content) > types.MaxContentBytes {
			return types.ErrContentTooLarge
		}
		p.Slot = slot
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	case types.ActionCanvasUpdate:
		// Canvas payloads are structured (elements, not a string), so the
		// size bound applies to the raw frame bytes rather than one field
		if len(cf.Payload) > types.MaxContentBytes {
			return types.ErrContentTooLarge
		}
		var p types.CanvasUpdatePayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		p.Slot = slot
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	case types.ActionProblemChange:
		var p types.ProblemChangePayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		if p.ProblemID == "" {
			return types.ErrInvalidProblemID
		}
		p.ChangedBy = slot
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	case types.ActionToggleAIModerator:
		var p types.ToggleAIModeratorPayload
		if err := json.Unmarshal(cf.Payload, &p); err != nil {
			return ErrInvalidFrame
		}
		p.ToggledBy = slot
		p.AtTimestamp = d.now()
		return d.sequencer.Submit(sessionID, types.NewAction(cf.Type, p))

	default:
		return ErrServerOnlyAction
	}
}

// DispatchAIResponse submits the backend's answer for an interaction
func (d *Dispatcher) DispatchAIResponse(sessionID, interactionID, response string, toolRequests []types.ToolRequestSpec) error {
	if interactionID == "" {
		return types.ErrInvalidInteractionID
	}
	return d.sequencer.Submit(sessionID, types.NewAction(types.ActionAIResponse, types.AIResponsePayload{
		InteractionID: interactionID,
		Response:      response,
		ToolRequests:  toolRequests,
		AtTimestamp:   d.now(),
	}))
}

// DispatchModeratorMessage injects unsolicited moderator guidance
func (d *Dispatcher) DispatchModeratorMessage(sessionID, content, context string) error {
	if err := types.ValidateContent(content); err != nil {
		return err
	}
	return d.sequencer.Submit(sessionID, types.NewAction(types.ActionAIModeratorMessage, types.AIModeratorMessagePayload{
		Content:     content,
		Context:     context,
		AtTimestamp: d.now(),
	}))
}
