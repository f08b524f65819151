package types

import (
	"regexp"
)

// FUNCTIONAL DISCOVERY: Regex compiled once at package initialization
// for better performance in high-frequency validation scenarios
var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentBytes bounds chat/code/notes payload content
// TECHNICAL DISCOVERY: 64KB matches the WebSocket frame budget small-group
// sessions were tested with; larger buffers belong in external storage
const MaxContentBytes = 65536

// IsValidSlot checks membership in the closed six-slot palette
// ARCHITECTURAL DISCOVERY: Explicit validation prevents undefined slots from
// entering the action stream, where every replica would have to agree on them
func IsValidSlot(slot Slot) bool {
	switch slot {
	case SlotPink, SlotRed, SlotBlue, SlotPurple, SlotGreen, SlotOrange:
		return true
	default:
		return false
	}
}

// IsValidUserID checks if a user ID meets format requirements
// FUNCTIONAL DISCOVERY: 1-50 character limit prevents database issues
// and ensures reasonable display in UI components
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidUserName checks display name bounds; names render in slot badges so
// the limit is tighter than free-form content
func IsValidUserName(name string) bool {
	return len(name) >= 1 && len(name) <= 100
}

// IsValidAIMode checks the tutoring mode tag
func IsValidAIMode(mode AIMode) bool {
	return mode == AIModeHint || mode == AIModeTutor
}

// IsValidActionType checks if the tag is one of the defined action kinds.
// The reducer itself never needs this - unknown tags reduce to no-ops - but
// the dispatch layer uses it to reject frames a client fabricated
func IsValidActionType(t ActionType) bool {
	switch t {
	case ActionSessionInit, ActionUserJoin, ActionUserLeave,
		ActionUserCursorUpdate, ActionUserHeartbeat, ActionChatMessage,
		ActionAIQuery, ActionAIResponse, ActionAIToolApprove,
		ActionAIModeratorMessage, ActionCodeUpdate, ActionCodeCursorUpdate,
		ActionNotesUpdate, ActionCanvasUpdate, ActionProblemChange,
		ActionToggleAIModerator:
		return true
	default:
		return false
	}
}

// ValidateContent bounds free-form text content carried in action payloads
func ValidateContent(content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if len(content) > MaxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}
