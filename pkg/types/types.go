package types

import (
	"encoding/json"
)

// Slot is one of six fixed identity tokens a participant occupies for the
// session's duration.
// ARCHITECTURAL DISCOVERY: Closed string enum rather than iota keeps the wire
// representation and the in-memory representation identical, which matters for
// deterministic replay across replicas
type Slot string

const (
	SlotPink   Slot = "pink"
	SlotRed    Slot = "red"
	SlotBlue   Slot = "blue"
	SlotPurple Slot = "purple"
	SlotGreen  Slot = "green"
	SlotOrange Slot = "orange"
)

// AllSlots is the fixed palette in canonical order
// TECHNICAL DISCOVERY: Array rather than map keeps iteration order stable,
// which every replica must agree on when building fresh slot tables
var AllSlots = [6]Slot{SlotPink, SlotRed, SlotBlue, SlotPurple, SlotGreen, SlotOrange}

// LogEntryKind classifies activity log entries
type LogEntryKind string

const (
	LogKindUser   LogEntryKind = "user"
	LogKindAI     LogEntryKind = "ai"
	LogKindSystem LogEntryKind = "system"
)

// AIMode selects the flavor of tutoring the backend is asked for
type AIMode string

const (
	AIModeHint  AIMode = "hint"
	AIModeTutor AIMode = "tutor"
)

// Cursor is a participant's pointer position on the shared surface
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Participant is one connected member of the session, bound to exactly one slot
// FUNCTIONAL DISCOVERY: Participants exist only inside SessionState; creation,
// mutation, and removal all flow through the reducer so every replica agrees
type Participant struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Slot        Slot    `json:"slot"`
	Cursor      *Cursor `json:"cursor,omitempty"`
	LastSeenAt  int64   `json:"last_seen_at"` // unix milliseconds, from action payloads only
}

// LogEntry is one chat/system/AI message in the append-only activity log
// ARCHITECTURAL DISCOVERY: The log doubles as UI transcript and audit trail of
// state transitions; entries are never mutated or removed once appended
type LogEntry struct {
	Text        string       `json:"text"`
	AtTimestamp int64        `json:"at_timestamp"`
	Slot        Slot         `json:"slot"`
	AuthorID    string       `json:"author_id"`
	AuthorName  string       `json:"author_name"`
	Kind        LogEntryKind `json:"kind"`
}

// ToolRequest is a proposed side-effecting operation surfaced by an AI
// response, gated behind explicit participant approval
// FUNCTIONAL DISCOVERY: Approved flips true and ApprovedBySlots grows only via
// explicit approval actions; the tracker records approvals, it never acts on them
type ToolRequest struct {
	ToolName        string `json:"tool_name"`
	Message         string `json:"message"`
	Approved        bool   `json:"approved"`
	ApprovedBySlots []Slot `json:"approved_by_slots"`
}

// AIInteraction is the per-query record of one hint/tutor exchange.
// State machine: Queried (empty response) -> Answered (response set once) ->
// per-tool-request Pending -> Approved. The record itself persists forever in
// the session's append-only interaction history.
type AIInteraction struct {
	ID              string        `json:"id"`
	Query           string        `json:"query"`
	Response        string        `json:"response"`
	Mode            AIMode        `json:"mode"`
	RequestedBySlot Slot          `json:"requested_by_slot"`
	AtTimestamp     int64         `json:"at_timestamp"`
	ToolRequests    []ToolRequest `json:"tool_requests,omitempty"`
}

// Answered reports whether the matching ai_response has been applied
func (ai *AIInteraction) Answered() bool {
	return ai.Response != ""
}

// AllToolsApproved reports whether every tool request has been approved.
// External consumers (the execution sandbox) treat this as their go/no-go
// gate; the state machine itself only records approvals.
func (ai *AIInteraction) AllToolsApproved() bool {
	if len(ai.ToolRequests) == 0 {
		return false
	}
	for i := range ai.ToolRequests {
		if !ai.ToolRequests[i].Approved {
			return false
		}
	}
	return true
}

// SharedResource is a mutable workspace resource with last-writer metadata
// ARCHITECTURAL DISCOVERY: Whole-value overwrite semantics - every update
// replaces Content entirely. Conflicts resolve by position in the total order
// (last-writer-wins), not by merging; LastModifiedBySlot is the only visible
// trace of a discarded concurrent writer
type SharedResource[T any] struct {
	Content            T     `json:"content"`
	LastModifiedBySlot Slot  `json:"last_modified_by_slot"`
	LastModifiedAt     int64 `json:"last_modified_at"`
}

// CodeCursor is the transient cursor annotation on the shared code buffer
type CodeCursor struct {
	Line   int  `json:"line"`
	Column int  `json:"column"`
	Slot   Slot `json:"slot"`
}

// CanvasElement is one drawn element of the shared canvas snapshot
// TECHNICAL DISCOVERY: Kept as raw JSON - the shape of a snapshot is in scope,
// rendering and hit-testing are not, so the reducer treats elements as opaque
// bytes that replicas copy verbatim
type CanvasElement = json.RawMessage

// ProblemContext identifies which problem the group is currently working on
type ProblemContext struct {
	ProblemID  string `json:"problem_id"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
}

// SessionState is the aggregate root: the only entity that is ever directly
// observed or serialized. All other entities are reached through it.
// ARCHITECTURAL DISCOVERY: Every replica folds the same ordered action stream
// through the reducer and must end up with an identical SessionState; nothing
// in this struct may ever be derived from a local clock or RNG
type SessionState struct {
	SessionID          string `json:"session_id"`
	CreatedAt          int64  `json:"created_at"`
	LastActivityAt     int64  `json:"last_activity_at"`
	AIModeratorEnabled bool   `json:"ai_moderator_enabled"`

	// SlotAvailable maps each of the six slots to whether it is free.
	// Invariant: SlotAvailable[s] == false exactly when some participant
	// in Participants occupies s.
	SlotAvailable map[Slot]bool `json:"slot_available"`
	Participants  []Participant `json:"participants"`

	ActivityLog  []LogEntry      `json:"activity_log"`
	Interactions []AIInteraction `json:"interactions"`

	SharedCode  SharedResource[string]          `json:"shared_code"`
	CodeCursor  *CodeCursor                     `json:"code_cursor,omitempty"`
	SharedNotes SharedResource[string]          `json:"shared_notes"`
	Canvas      SharedResource[[]CanvasElement] `json:"canvas"`

	Problem ProblemContext `json:"problem"`
}

// NewSessionState returns an empty, uninitialized state. Only a session_init
// action may be applied to it.
func NewSessionState() SessionState {
	slots := make(map[Slot]bool, len(AllSlots))
	for _, s := range AllSlots {
		slots[s] = true
	}
	return SessionState{
		SlotAvailable: slots,
		Canvas:        SharedResource[[]CanvasElement]{Content: []CanvasElement{}},
	}
}

// Initialized reports whether session_init has been applied
func (s *SessionState) Initialized() bool {
	return s.SessionID != ""
}

// SlotFree reports whether the given slot is currently unoccupied.
// FUNCTIONAL DISCOVERY: Unknown slots are never free, so a join referencing a
// bogus slot is rejected by the same predicate that guards capacity
func (s *SessionState) SlotFree(slot Slot) bool {
	free, known := s.SlotAvailable[slot]
	return known && free
}

// FreeSlotCount returns the number of unoccupied slots
func (s *SessionState) FreeSlotCount() int {
	n := 0
	for _, slot := range AllSlots {
		if s.SlotAvailable[slot] {
			n++
		}
	}
	return n
}

// ParticipantByID returns the index of the participant with the given id, or -1
func (s *SessionState) ParticipantByID(id string) int {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return i
		}
	}
	return -1
}

// ParticipantBySlot returns the index of the participant occupying slot, or -1
func (s *SessionState) ParticipantBySlot(slot Slot) int {
	for i := range s.Participants {
		if s.Participants[i].Slot == slot {
			return i
		}
	}
	return -1
}

// InteractionByID returns the index of the AI interaction with the given id, or -1
// FUNCTIONAL DISCOVERY: Linear scan is deliberate - interaction ids arrive in
// actions and the history is append-only, so a side index would be redundant
// state every replica would have to keep consistent
func (s *SessionState) InteractionByID(id string) int {
	for i := range s.Interactions {
		if s.Interactions[i].ID == id {
			return i
		}
	}
	return -1
}
