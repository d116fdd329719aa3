package database

import (
	"fmt"

	"go.uber.org/zap"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations holds the embedded schema steps, applied in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "payment_batches",
		SQL: `
			CREATE TABLE IF NOT EXISTS payment_batches (
				id TEXT PRIMARY KEY,
				business_id TEXT NOT NULL,
				week_number INTEGER NOT NULL,
				year INTEGER NOT NULL,
				total_transactions INTEGER NOT NULL,
				total_amount REAL NOT NULL,
				status TEXT NOT NULL,
				deadline DATETIME NOT NULL,
				created_by TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- One live batch per business week. Terminal batches fall out
			-- of the index so a new batch can replace a cancelled cycle.
			CREATE UNIQUE INDEX IF NOT EXISTS uq_batches_active
				ON payment_batches (business_id, week_number, year)
				WHERE status NOT IN ('completed', 'auto_approved', 'expired');

			CREATE INDEX IF NOT EXISTS idx_batches_business
				ON payment_batches (business_id, status);
		`,
	},
	{
		Version: 2,
		Name:    "verification_sessions",
		SQL: `
			CREATE TABLE IF NOT EXISTS verification_sessions (
				id TEXT PRIMARY KEY,
				batch_id TEXT NOT NULL REFERENCES payment_batches(id),
				business_id TEXT NOT NULL,
				status TEXT NOT NULL,
				total_transactions INTEGER NOT NULL,
				verified_transactions INTEGER NOT NULL DEFAULT 0,
				approved_count INTEGER NOT NULL DEFAULT 0,
				rejected_count INTEGER NOT NULL DEFAULT 0,
				current_index INTEGER NOT NULL DEFAULT 0,
				deadline DATETIME NOT NULL,
				auto_approval_threshold INTEGER NOT NULL,
				average_risk_score REAL NOT NULL DEFAULT 0,
				scored_transactions INTEGER NOT NULL DEFAULT 0,
				started_at DATETIME,
				paused_at DATETIME,
				completed_at DATETIME,
				pause_count INTEGER NOT NULL DEFAULT 0,
				version INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- At most one active session per batch.
			CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_active
				ON verification_sessions (batch_id)
				WHERE status IN ('not_started', 'in_progress', 'paused');

			CREATE INDEX IF NOT EXISTS idx_sessions_deadline
				ON verification_sessions (status, deadline);
		`,
	},
	{
		Version: 3,
		Name:    "verification_results",
		SQL: `
			CREATE TABLE IF NOT EXISTS verification_results (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES verification_sessions(id),
				transaction_id TEXT NOT NULL,
				decision TEXT NOT NULL,
				verified INTEGER NOT NULL DEFAULT 1,
				rejection_reason TEXT,
				reviewer_id TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				duration_seconds INTEGER NOT NULL DEFAULT 0,
				risk_score REAL,
				supersedes TEXT REFERENCES verification_results(id),
				created_at DATETIME NOT NULL
			);

			-- Results are append-only: one original row per transaction,
			-- and each row can be superseded at most once.
			CREATE UNIQUE INDEX IF NOT EXISTS uq_results_original
				ON verification_results (session_id, transaction_id)
				WHERE supersedes IS NULL;

			CREATE UNIQUE INDEX IF NOT EXISTS uq_results_supersedes
				ON verification_results (supersedes)
				WHERE supersedes IS NOT NULL;

			CREATE INDEX IF NOT EXISTS idx_results_session
				ON verification_results (session_id, transaction_id);
		`,
	},
	{
		Version: 4,
		Name:    "audit_events",
		SQL: `
			CREATE TABLE IF NOT EXISTS audit_events (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				severity TEXT NOT NULL,
				actor TEXT NOT NULL,
				description TEXT NOT NULL,
				business_id TEXT NOT NULL DEFAULT '',
				batch_id TEXT NOT NULL DEFAULT '',
				session_id TEXT NOT NULL DEFAULT '',
				payload TEXT NOT NULL DEFAULT '{}',
				created_at DATETIME NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_audit_session
				ON audit_events (session_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_audit_batch
				ON audit_events (batch_id, created_at);
		`,
	},
}

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// createMigrationsTable creates the migrations tracking table
func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

// getAppliedMigrations returns the list of applied migration versions
func (m *Migrator) getAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// RunMigrations executes all pending embedded migrations
func (m *Migrator) RunMigrations() error {
	m.logger.Info("Starting database migrations")

	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			m.logger.Debug("Skipping applied migration",
				zap.Int("version", migration.Version),
				zap.String("name", migration.Name))
			continue
		}

		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	m.logger.Info("Database migrations completed successfully")
	return nil
}

// applyMigration applies a single migration within a transaction
func (m *Migrator) applyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		migration.Version,
		migration.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
