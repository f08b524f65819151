package interfaces

import (
	"context"

	"huddle/pkg/types"
)

// DatabaseManager handles all database operations
// ARCHITECTURAL DISCOVERY: Single interface for all persistence operations
// enables consistent transaction handling and connection management
type DatabaseManager interface {
	// Session record operations

	// CreateSession creates a new session record in the database
	CreateSession(ctx context.Context, session *types.Session) error

	// GetSession retrieves a session record by ID
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)

	// UpdateSession updates an existing session record (primarily for ending sessions)
	UpdateSession(ctx context.Context, session *types.Session) error

	// ListActiveSessions returns all active session records
	// TECHNICAL DISCOVERY: Returns slice of pointers for memory efficiency
	// when loading multiple sessions for cache initialization
	ListActiveSessions(ctx context.Context) ([]*types.Session, error)

	// Action log operations
	// ARCHITECTURAL DISCOVERY: The persisted action log is both the audit
	// trail of every state transition and the replay source for restart
	// recovery and late-joining replicas. Append must complete before fanout
	// so the log never misses an action a replica already folded.

	// AppendAction persists one sequenced action for a session
	AppendAction(ctx context.Context, sessionID string, seq uint64, action types.Action) error

	// GetActionLog retrieves a session's full ordered action log
	// FUNCTIONAL DISCOVERY: Returns actions ordered by sequence number so a
	// fold over the result reproduces the exact replica state
	GetActionLog(ctx context.Context, sessionID string) ([]types.SequencedAction, error)

	// Health and lifecycle operations

	// HealthCheck verifies database connectivity and basic operations
	HealthCheck(ctx context.Context) error

	// Close closes the database connection and cleans up resources
	Close() error
}
