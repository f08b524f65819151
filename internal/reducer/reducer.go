package reducer

import (
	"encoding/json"
	"fmt"

	"huddle/pkg/types"
)

// ResourcePolicy decides what happens when a shared-resource update carries a
// timestamp older than the resource's current last_modified_at.
// ARCHITECTURAL DISCOVERY: The reference behavior (apply unconditionally,
// position in the total order decides) is kept as the default, but the choice
// is an explicit, testable policy rather than an implicit property of the code
type ResourcePolicy string

const (
	// PolicyAlwaysApply is pure last-writer-wins: whatever the sequencer
	// delivered last overwrites, regardless of payload timestamps.
	PolicyAlwaysApply ResourcePolicy = "always_apply"
	// PolicyApplyIfNewer drops a write whose payload timestamp precedes the
	// resource's current last_modified_at, protecting against a stale action
	// clobbering a newer edit.
	PolicyApplyIfNewer ResourcePolicy = "apply_if_newer"
)

// Config tunes reducer policy. All replicas of a session must run the same
// Config or they will diverge; it is distributed with session metadata, not
// chosen per client.
type Config struct {
	Policy ResourcePolicy
	// MaxLogEntries bounds the activity log kept in hot state; the oldest
	// entries are trimmed once exceeded. Zero means unbounded. The full
	// history always survives in the persisted action log.
	MaxLogEntries int
}

// DefaultConfig matches the reference semantics: unconditional overwrite,
// a 1000-entry hot log window
func DefaultConfig() Config {
	return Config{Policy: PolicyAlwaysApply, MaxLogEntries: 1000}
}

// Reducer is the pure (state, action) -> state transition function - the sole
// place session state changes.
//
// ARCHITECTURAL DISCOVERY: The reducer is the composition root of the whole
// session model: slot allocation, roster, activity log, AI tracker, and the
// shared workspace all transition only inside Reduce. It performs no I/O,
// never blocks, never reads a clock or RNG, and never panics on any input -
// every timestamp and generated id it touches arrived inside the action
// payload, stamped once by the originating client's dispatch layer. Given the
// same (state, action) pair it returns identical output on every replica.
type Reducer struct {
	cfg Config
}

// New creates a reducer with the given policy configuration
func New(cfg Config) *Reducer {
	if cfg.Policy == "" {
		cfg.Policy = PolicyAlwaysApply
	}
	return &Reducer{cfg: cfg}
}

// Reduce applies one action and returns the next state. Total function:
// unknown action tags and malformed payloads return the input state
// unchanged; protocol errors (unknown slot, participant, or interaction)
// resolve to a no-op on the affected sub-entity. The input state is never
// mutated.
func (r *Reducer) Reduce(state types.SessionState, action types.Action) types.SessionState {
	// session_init is the only action an uninitialized state accepts, and an
	// initialized state ignores it (replayed init is a protocol error no-op)
	if action.Type == types.ActionSessionInit {
		return r.reduceSessionInit(state, action.Payload)
	}
	if !state.Initialized() {
		return state
	}

	switch action.Type {
	case types.ActionUserJoin:
		return r.reduceUserJoin(state, action.Payload)
	case types.ActionUserLeave:
		return r.reduceUserLeave(state, action.Payload)
	case types.ActionUserCursorUpdate:
		return r.reduceUserCursorUpdate(state, action.Payload)
	case types.ActionUserHeartbeat:
		return r.reduceUserHeartbeat(state, action.Payload)
	case types.ActionChatMessage:
		return r.reduceChatMessage(state, action.Payload)
	case types.ActionAIQuery:
		return r.reduceAIQuery(state, action.Payload)
	case types.ActionAIResponse:
		return r.reduceAIResponse(state, action.Payload)
	case types.ActionAIToolApprove:
		return r.reduceAIToolApprove(state, action.Payload)
	case types.ActionAIModeratorMessage:
		return r.reduceAIModeratorMessage(state, action.Payload)
	case types.ActionCodeUpdate:
		return r.reduceCodeUpdate(state, action.Payload)
	case types.ActionCodeCursorUpdate:
		return r.reduceCodeCursorUpdate(state, action.Payload)
	case types.ActionNotesUpdate:
		return r.reduceNotesUpdate(state, action.Payload)
	case types.ActionCanvasUpdate:
		return r.reduceCanvasUpdate(state, action.Payload)
	case types.ActionProblemChange:
		return r.reduceProblemChange(state, action.Payload)
	case types.ActionToggleAIModerator:
		return r.reduceToggleAIModerator(state, action.Payload)
	default:
		// FUNCTIONAL DISCOVERY: Forward-compatible no-op - a replica that
		// does not recognize an action kind must pass it through untouched
		// rather than fault, so mixed-version fleets still converge on the
		// actions they all understand
		return state
	}
}

func (r *Reducer) reduceSessionInit(state types.SessionState, payload json.RawMessage) types.SessionState {
	if state.Initialized() {
		return state
	}
	var p types.SessionInitPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.SessionID == "" {
		return state
	}
	next := cloneState(state)
	next.SessionID = p.SessionID
	next.CreatedAt = p.AtTimestamp
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceUserJoin(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.UserJoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	// FUNCTIONAL DISCOVERY: Occupied-slot joins are rejected pre-dispatch, but
	// two joins racing for the same slot can still be sequenced back to back.
	// The loser reduces to a no-op here - the existing occupant is never
	// silently overwritten.
	if !state.SlotFree(p.Slot) || state.ParticipantByID(p.UserID) >= 0 {
		return state
	}
	next := cloneState(state)
	allocateSlot(&next, p.Slot, types.Participant{
		ID:          p.UserID,
		DisplayName: p.UserName,
		Slot:        p.Slot,
		LastSeenAt:  p.AtTimestamp,
	})
	r.appendLog(&next, types.LogEntry{
		Text:        fmt.Sprintf("%s joined", p.UserName),
		AtTimestamp: p.AtTimestamp,
		Slot:        p.Slot,
		AuthorID:    p.UserID,
		AuthorName:  p.UserName,
		Kind:        types.LogKindSystem,
	})
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceUserLeave(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.UserLeavePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	idx := state.ParticipantByID(p.UserID)
	if idx < 0 {
		return state
	}
	next := cloneState(state)
	// TECHNICAL DISCOVERY: The slot to free comes from the roster entry, not
	// the payload - a leave action with a mismatched slot field must not free
	// somebody else's slot
	departed := next.Participants[idx]
	releaseSlot(&next, idx)
	r.appendLog(&next, types.LogEntry{
		Text:        fmt.Sprintf("%s left", departed.DisplayName),
		AtTimestamp: p.AtTimestamp,
		Slot:        departed.Slot,
		AuthorID:    departed.ID,
		AuthorName:  departed.DisplayName,
		Kind:        types.LogKindSystem,
	})
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceUserCursorUpdate(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.UserCursorUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	idx := state.ParticipantBySlot(p.Slot)
	if idx < 0 {
		return state
	}
	next := cloneState(state)
	cursor := p.Cursor
	next.Participants[idx].Cursor = &cursor
	next.Participants[idx].LastSeenAt = p.AtTimestamp
	// High-frequency action: log-suppressed by design, but it still counts
	// as session activity
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceUserHeartbeat(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.UserHeartbeatPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	idx := state.ParticipantBySlot(p.Slot)
	if idx < 0 {
		return state
	}
	next := cloneState(state)
	next.Participants[idx].LastSeenAt = p.AtTimestamp
	// FUNCTIONAL DISCOVERY: Heartbeats refresh liveness but not
	// LastActivityAt - an idle group with healthy connections must still
	// look idle to the moderator's nudge policy
	return next
}

func (r *Reducer) reduceChatMessage(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.ChatMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	next := cloneState(state)
	r.appendLog(&next, types.LogEntry{
		Text:        p.Content,
		AtTimestamp: p.AtTimestamp,
		Slot:        p.Slot,
		AuthorID:    p.UserID,
		AuthorName:  p.UserName,
		Kind:        types.LogKindUser,
	})
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceAIQuery(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.AIQueryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	// An id-less or duplicate-id query cannot be addressed by its response
	// action later; drop it rather than create an unreachable record
	if p.InteractionID == "" || state.InteractionByID(p.InteractionID) >= 0 {
		return state
	}
	next := cloneState(state)
	next.Interactions = append(next.Interactions, types.AIInteraction{
		ID:              p.InteractionID,
		Query:           p.Query,
		Mode:            p.Mode,
		RequestedBySlot: p.RequestedBy,
		AtTimestamp:     p.AtTimestamp,
	})
	r.appendLog(&next, types.LogEntry{
		Text:        fmt.Sprintf("%s asked the tutor (%s): %s", p.RequestedBy, p.Mode, p.Query),
		AtTimestamp: p.AtTimestamp,
		Slot:        p.RequestedBy,
		Kind:        types.LogKindSystem,
	})
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceAIResponse(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.AIResponsePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	idx := state.InteractionByID(p.InteractionID)
	if idx < 0 {
		return state
	}
	// Response is filled exactly once; a duplicate response action is a
	// protocol error no-op on the interaction
	if state.Interactions[idx].Answered() {
		return state
	}
	next := cloneState(state)
	next.Interactions[idx].Response = p.Response
	if len(p.ToolRequests) > 0 {
		requests := make([]types.ToolRequest, len(p.ToolRequests))
		for i, spec := range p.ToolRequests {
			requests[i] = types.ToolRequest{
				ToolName:        spec.Tool,
				Message:         spec.Message,
				ApprovedBySlots: []types.Slot{},
			}
		}
		next.Interactions[idx].ToolRequests = requests
	}
	r.appendLog(&next, types.LogEntry{
		Text:        p.Response,
		AtTimestamp: p.AtTimestamp,
		Slot:        next.Interactions[idx].RequestedBySlot,
		AuthorName:  "AI Tutor",
		Kind:        types.LogKindAI,
	})
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceAIToolApprove(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.AIToolApprovePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	idx := state.InteractionByID(p.InteractionID)
	if idx < 0 {
		return state
	}
	if p.ToolIndex < 0 || p.ToolIndex >= len(state.Interactions[idx].ToolRequests) {
		return state
	}
	next := cloneState(state)
	req := &next.Interactions[idx].ToolRequests[p.ToolIndex]
	req.Approved = true
	// Idempotent per slot: a participant approving twice appears once
	alreadyListed := false
	for _, s := range req.ApprovedBySlots {
		if s == p.ApprovedBy {
			alreadyListed = true
			break
		}
	}
	if !alreadyListed {
		req.ApprovedBySlots = append(req.ApprovedBySlots, p.ApprovedBy)
	}
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceAIModeratorMessage(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.AIModeratorMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	next := cloneState(state)
	r.appendLog(&next, types.LogEntry{
		Text:        p.Content,
		AtTimestamp: p.AtTimestamp,
		AuthorName:  "AI Moderator",
		Kind:        types.LogKindAI,
	})
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceCodeUpdate(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.CodeUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	if r.staleWrite(p.AtTimestamp, state.SharedCode.LastModifiedAt) {
		return state
	}
	next := cloneState(state)
	next.SharedCode = types.SharedResource[string]{
		Content:            p.Content,
		LastModifiedBySlot: p.Slot,
		LastModifiedAt:     p.AtTimestamp,
	}
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceCodeCursorUpdate(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.CodeCursorUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	if !types.IsValidSlot(p.Slot) {
		return state
	}
	next := cloneState(state)
	next.CodeCursor = &types.CodeCursor{Line: p.Line, Column: p.Column, Slot: p.Slot}
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceNotesUpdate(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.NotesUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	if r.staleWrite(p.AtTimestamp, state.SharedNotes.LastModifiedAt) {
		return state
	}
	next := cloneState(state)
	next.SharedNotes = types.SharedResource[string]{
		Content:            p.Content,
		LastModifiedBySlot: p.Slot,
		LastModifiedAt:     p.AtTimestamp,
	}
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceCanvasUpdate(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.CanvasUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	if r.staleWrite(p.AtTimestamp, state.Canvas.LastModifiedAt) {
		return state
	}
	next := cloneState(state)
	elements := make([]types.CanvasElement, len(p.Elements))
	copy(elements, p.Elements)
	next.Canvas = types.SharedResource[[]types.CanvasElement]{
		Content:            elements,
		LastModifiedBySlot: p.Slot,
		LastModifiedAt:     p.AtTimestamp,
	}
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceProblemChange(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.ProblemChangePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	next := cloneState(state)
	next.Problem = types.ProblemContext{
		ProblemID:  p.ProblemID,
		Title:      p.Title,
		Difficulty: p.Difficulty,
	}
	r.appendLog(&next, types.LogEntry{
		Text:        fmt.Sprintf("%s changed the problem to %q", p.ChangedBy, p.Title),
		AtTimestamp: p.AtTimestamp,
		Slot:        p.ChangedBy,
		Kind:        types.LogKindSystem,
	})
	next.LastActivityAt = p.AtTimestamp
	return next
}

func (r *Reducer) reduceToggleAIModerator(state types.SessionState, payload json.RawMessage) types.SessionState {
	var p types.ToggleAIModeratorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return state
	}
	next := cloneState(state)
	next.AIModeratorEnabled = p.Enabled
	verb := "disabled"
	if p.Enabled {
		verb = "enabled"
	}
	r.appendLog(&next, types.LogEntry{
		Text:        fmt.Sprintf("%s %s the AI moderator", p.ToggledBy, verb),
		AtTimestamp: p.AtTimestamp,
		Slot:        p.ToggledBy,
		Kind:        types.LogKindSystem,
	})
	next.LastActivityAt = p.AtTimestamp
	return next
}

// staleWrite applies the configured shared-resource ordering policy
func (r *Reducer) staleWrite(incoming, current int64) bool {
	return r.cfg.Policy == PolicyApplyIfNewer && incoming < current
}

// appendLog appends one entry and trims the hot window if configured
func (r *Reducer) appendLog(state *types.SessionState, entry types.LogEntry) {
	state.ActivityLog = append(state.ActivityLog, entry)
	if r.cfg.MaxLogEntries > 0 && len(state.ActivityLog) > r.cfg.MaxLogEntries {
		// TECHNICAL DISCOVERY: Re-slice and copy rather than alias so the
		// trimmed prefix becomes collectable and prior states stay intact
		trimmed := make([]types.LogEntry, r.cfg.MaxLogEntries)
		copy(trimmed, state.ActivityLog[len(state.ActivityLog)-r.cfg.MaxLogEntries:])
		state.ActivityLog = trimmed
	}
}
