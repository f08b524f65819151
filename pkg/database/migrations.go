package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents one step of schema evolution
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// migrations holds the full schema history in code.
// ARCHITECTURAL DISCOVERY: Embedded migrations keep the binary self-contained;
// a server deployed from a single binary cannot depend on a migrations
// directory travelling with it
var migrations = []Migration{
	{
		Version:     "001",
		Description: "initial_schema",
		SQL: `
			CREATE TABLE IF NOT EXISTS sessions (
				id              TEXT PRIMARY KEY,
				name            TEXT NOT NULL,
				created_by      TEXT NOT NULL,
				resource_policy TEXT NOT NULL DEFAULT 'always_apply',
				start_time      DATETIME NOT NULL,
				end_time        DATETIME,
				status          TEXT NOT NULL DEFAULT 'active'
			);

			CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
			CREATE INDEX IF NOT EXISTS idx_sessions_created_by ON sessions(created_by);
		`,
	},
	{
		Version:     "002",
		Description: "action_log",
		SQL: `
			CREATE TABLE IF NOT EXISTS actions (
				session_id  TEXT NOT NULL,
				seq         INTEGER NOT NULL,
				type        TEXT NOT NULL,
				payload     TEXT NOT NULL,
				PRIMARY KEY (session_id, seq),
				FOREIGN KEY (session_id) REFERENCES sessions(id)
			);

			CREATE INDEX IF NOT EXISTS idx_actions_session_seq ON actions(session_id, seq);
			CREATE INDEX IF NOT EXISTS idx_actions_session_type ON actions(session_id, type);
		`,
	},
}

// MigrationManager handles database migrations
// FUNCTIONAL DISCOVERY: Manager pattern encapsulates migration state and
// operations enabling safe schema evolution across environments
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// ApplyMigrations applies all pending migrations in version order
// ARCHITECTURAL DISCOVERY: Transaction-based application ensures each
// migration either fully applies or leaves no trace
func (m *MigrationManager) ApplyMigrations() error {
	if err := m.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	for _, migration := range pending {
		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

// createMigrationTable creates the migration tracking table
func (m *MigrationManager) createMigrationTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.Exec(query)
	return err
}

// getAppliedMigrations returns the set of already applied migration versions
func (m *MigrationManager) getAppliedMigrations() (map[string]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// applyMigration runs one migration inside a transaction and records it
func (m *MigrationManager) applyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(migration.SQL); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
