package interfaces

import (
	"context"

	"huddle/pkg/types"
)

// SessionManager handles session lifecycle and replica state access
// ARCHITECTURAL DISCOVERY: Context-first design pattern ensures proper
// cancellation and timeout handling across all session operations
type SessionManager interface {
	// CreateSession creates a new session record and its live replica state
	CreateSession(ctx context.Context, name string, createdBy string) (*types.Session, error)

	// GetSession retrieves a session record by ID
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)

	// EndSession ends an active session and releases its live state
	EndSession(ctx context.Context, sessionID string) error

	// ListActiveSessions returns all active session records
	ListActiveSessions(ctx context.Context) ([]*types.Session, error)

	// Snapshot returns the session's current replicated state
	// FUNCTIONAL DISCOVERY: The returned value is safe to read without
	// locking because the reducer clones on every transition; a snapshot is
	// an immutable picture of one point in the total order
	Snapshot(sessionID string) (types.SessionState, error)

	// ValidateJoin checks whether a user may claim a slot in a session.
	// This is the pre-dispatch capacity gate: an occupied slot or a full
	// roster is rejected here with a user-visible error, before any action
	// is constructed.
	ValidateJoin(sessionID string, slot types.Slot, userID, userName string) error

	// Apply folds one action into a session's live state and returns the
	// resulting state with its assigned sequence number. Called only by the
	// sequencer goroutine, which is what makes the order total.
	Apply(sessionID string, action types.Action) (types.SessionState, uint64, error)
}
