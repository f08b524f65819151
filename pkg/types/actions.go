package types

import (
	"encoding/json"
)

// ActionType discriminates the action algebra
// ARCHITECTURAL DISCOVERY: String tags exactly as they travel on the wire -
// the reducer switches on this value and treats unrecognized tags as no-ops,
// which keeps old replicas forward-compatible with newer action kinds
type ActionType string

const (
	ActionSessionInit        ActionType = "session_init"
	ActionUserJoin           ActionType = "user_join"
	ActionUserLeave          ActionType = "user_leave"
	ActionUserCursorUpdate   ActionType = "user_cursor_update"
	ActionUserHeartbeat      ActionType = "user_heartbeat"
	ActionChatMessage        ActionType = "chat_message"
	ActionAIQuery            ActionType = "ai_query"
	ActionAIResponse         ActionType = "ai_response"
	ActionAIToolApprove      ActionType = "ai_tool_approve"
	ActionAIModeratorMessage ActionType = "ai_moderator_message"
	ActionCodeUpdate         ActionType = "code_update"
	ActionCodeCursorUpdate   ActionType = "code_cursor_update"
	ActionNotesUpdate        ActionType = "notes_update"
	ActionCanvasUpdate       ActionType = "canvas_update"
	ActionProblemChange      ActionType = "problem_change"
	ActionToggleAIModerator  ActionType = "toggle_ai_moderator"
)

// Action is an immutable, tagged description of one state change, carrying
// all data (including timestamps and generated ids) the reducer needs.
// FUNCTIONAL DISCOVERY: Payload stays raw JSON at this level; each reducer
// branch decodes the payload struct it expects, so one malformed payload can
// never fault any other branch
type Action struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewAction marshals a typed payload into a wire action.
// TECHNICAL DISCOVERY: Marshal errors are impossible for the closed set of
// payload structs below (no channels, no funcs, no NaN floats from our
// constructors), so the error is swallowed to keep call sites declarative
func NewAction(t ActionType, payload any) Action {
	data, _ := json.Marshal(payload)
	return Action{Type: t, Payload: data}
}

// SequencedAction is an action after the sequencer has assigned its position
// in the session's total order. This is what replicas receive and fold.
type SequencedAction struct {
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	Action    Action `json:"action"`
}

// Payload structs, one per action type. Field names follow the wire contract.
// Every payload carries AtTimestamp, stamped exactly once by the dispatch
// layer on the originating client's behalf - the reducer never reads a clock.

// SessionInitPayload starts a fresh session; the only action that may be
// applied to an uninitialized state
type SessionInitPayload struct {
	SessionID   string `json:"sessionId"`
	AtTimestamp int64  `json:"atTimestamp"`
}

type UserJoinPayload struct {
	Slot        Slot   `json:"slot"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	AtTimestamp int64  `json:"atTimestamp"`
}

type UserLeavePayload struct {
	Slot        Slot   `json:"slot"`
	UserID      string `json:"userId"`
	AtTimestamp int64  `json:"atTimestamp"`
}

type UserCursorUpdatePayload struct {
	Slot        Slot   `json:"slot"`
	Cursor      Cursor `json:"cursor"`
	AtTimestamp int64  `json:"atTimestamp"`
}

// UserHeartbeatPayload refreshes only the participant's liveness stamp.
// FUNCTIONAL DISCOVERY: Heartbeats deliberately do not count as session
// activity - otherwise an idle group with live connections would never be
// nudged by the moderator
type UserHeartbeatPayload struct {
	Slot        Slot   `json:"slot"`
	AtTimestamp int64  `json:"atTimestamp"`
}

type ChatMessagePayload struct {
	Slot        Slot   `json:"slot"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Content     string `json:"content"`
	AtTimestamp int64  `json:"atTimestamp"`
}

type AIQueryPayload struct {
	// InteractionID is generated once by the dispatch layer so every replica
	// creates the interaction under the same id
	InteractionID string `json:"interactionId"`
	Query         string `json:"query"`
	Mode          AIMode `json:"mode"`
	RequestedBy   Slot   `json:"requestedBy"`
	AtTimestamp   int64  `json:"atTimestamp"`
}

// ToolRequestSpec is the wire shape of a proposed tool invocation inside an
// ai_response payload; the reducer expands it into an unapproved ToolRequest
type ToolRequestSpec struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
}

type AIResponsePayload struct {
	InteractionID string            `json:"interactionId"`
	Response      string            `json:"response"`
	ToolRequests  []ToolRequestSpec `json:"toolRequests,omitempty"`
	AtTimestamp   int64             `json:"atTimestamp"`
}

type AIToolApprovePayload struct {
	InteractionID string `json:"interactionId"`
	ToolIndex     int    `json:"toolIndex"`
	ApprovedBy    Slot   `json:"approvedBy"`
	AtTimestamp   int64  `json:"atTimestamp"`
}

type AIModeratorMessagePayload struct {
	Content     string `json:"content"`
	Context     string `json:"context,omitempty"`
	AtTimestamp int64  `json:"atTimestamp"`
}

type CodeUpdatePayload struct {
	Content     string `json:"content"`
	Slot        Slot   `json:"slot"`
	AtTimestamp int64  `json:"atTimestamp"`
}

type CodeCursorUpdatePayload struct {
	Line        int   `json:"line"`
	Column      int   `json:"column"`
	Slot        Slot  `json:"slot"`
	AtTimestamp int64 `json:"atTimestamp"`
}

type NotesUpdatePayload struct {
	Content     string `json:"content"`
	Slot        Slot   `json:"slot"`
	AtTimestamp int64  `json:"atTimestamp"`
}

type CanvasUpdatePayload struct {
	Elements    []CanvasElement `json:"elements"`
	Slot        Slot            `json:"slot"`
	AtTimestamp int64           `json:"atTimestamp"`
}

type ProblemChangePayload struct {
	ProblemID   string `json:"problemId"`
	Title       string `json:"title"`
	Difficulty  string `json:"difficulty"`
	ChangedBy   Slot   `json:"changedBy"`
	AtTimestamp int64  `json:"atTimestamp"`
}

type ToggleAIModeratorPayload struct {
	Enabled     bool  `json:"enabled"`
	ToggledBy   Slot  `json:"toggledBy"`
	AtTimestamp int64 `json:"atTimestamp"`
}
