package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	// ARCHITECTURAL DISCOVERY: Import SQLite driver but only reference in connection string
	_ "github.com/mattn/go-sqlite3"

	dbconfig "huddle/pkg/database"
	"huddle/pkg/interfaces"
	"huddle/pkg/types"
)

// Manager implements the DatabaseManager interface
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // TECHNICAL: Protect closed status
}

// writeOperation represents a database write operation
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager creates a new database manager, applies migrations, and starts
// the single-writer goroutine
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// FUNCTIONAL DISCOVERY: Connection pool configuration critical for concurrent reads
	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100), // TECHNICAL: Buffer for write operations prevents blocking
		shutdown:     make(chan struct{}),
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			// FUNCTIONAL DISCOVERY: Retry exactly once after a short delay -
			// transient SQLITE_BUSY clears quickly under WAL
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateSession creates a new session record in the database
func (m *Manager) CreateSession(ctx context.Context, session *types.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO sessions (id, name, created_by, resource_policy, start_time, end_time, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			session.ID, session.Name, session.CreatedBy, session.ResourcePolicy,
			session.StartTime, session.EndTime, session.Status,
		)
		return err
	})
}

// GetSession retrieves a session record by ID
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	var session types.Session
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, created_by, resource_policy, start_time, end_time, status
		FROM sessions WHERE id = ?`, sessionID,
	).Scan(&session.ID, &session.Name, &session.CreatedBy, &session.ResourcePolicy,
		&session.StartTime, &session.EndTime, &session.Status)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// UpdateSession updates an existing session record
func (m *Manager) UpdateSession(ctx context.Context, session *types.Session) error {
	return m.executeWrite(func(db *sql.DB) error {
		result, err := db.Exec(`
			UPDATE sessions SET name = ?, end_time = ?, status = ? WHERE id = ?`,
			session.Name, session.EndTime, session.Status, session.ID,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return interfaces.ErrSessionNotFound
		}
		return nil
	})
}

// ListActiveSessions returns all active session records
func (m *Manager) ListActiveSessions(ctx context.Context) ([]*types.Session, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, created_by, resource_policy, start_time, end_time, status
		FROM sessions WHERE status = ? ORDER BY start_time`, types.SessionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sessions []*types.Session
	for rows.Next() {
		var session types.Session
		if err := rows.Scan(&session.ID, &session.Name, &session.CreatedBy,
			&session.ResourcePolicy, &session.StartTime, &session.EndTime, &session.Status); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// AppendAction persists one sequenced action for a session
// ARCHITECTURAL DISCOVERY: (session_id, seq) primary key makes double-append
// of the same sequence number a hard constraint violation rather than silent
// duplication - the sequencer is the only writer, but the schema enforces it
func (m *Manager) AppendAction(ctx context.Context, sessionID string, seq uint64, action types.Action) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO actions (session_id, seq, type, payload)
			VALUES (?, ?, ?, ?)`,
			sessionID, seq, string(action.Type), string(action.Payload),
		)
		return err
	})
}

// GetActionLog retrieves a session's full ordered action log
// FUNCTIONAL DISCOVERY: Ordered by seq so folding the result through the
// reducer reproduces the replica state exactly - this is the replay source
// for restart recovery and late joiners
func (m *Manager) GetActionLog(ctx context.Context, sessionID string) ([]types.SequencedAction, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT seq, type, payload FROM actions
		WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get action log: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var actions []types.SequencedAction
	for rows.Next() {
		var (
			seq        uint64
			actionType string
			payload    string
		)
		if err := rows.Scan(&seq, &actionType, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, types.SequencedAction{
			SessionID: sessionID,
			Seq:       seq,
			Action: types.Action{
				Type:    types.ActionType(actionType),
				Payload: []byte(payload),
			},
		})
	}
	return actions, rows.Err()
}

// HealthCheck verifies database connectivity and basic operations
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	var result int
	if err := m.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close closes the database connection and cleans up resources
// TECHNICAL DISCOVERY: Synchronous close ensures all pending write operations
// complete before the connection drops out from under them
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	return m.db.Close()
}
