package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements define the full schema. Statements are idempotent so
// Migrate can run on every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('technician', 'technical_advisor', 'admin')),
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		revoked_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS work_orders (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('new', 'demand', 'assigned', 'in-progress', 'completed', 'closedForReview')),
		assigned_to TEXT REFERENCES users(id),
		actual_hours REAL NOT NULL DEFAULT 0,
		efficiency REAL,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS work_order_tasks (
		id TEXT PRIMARY KEY,
		work_order_id TEXT NOT NULL REFERENCES work_orders(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		budgeted_hours REAL NOT NULL CHECK (budgeted_hours > 0),
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS time_punches (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		work_order_id TEXT REFERENCES work_orders(id),
		task_id TEXT REFERENCES work_order_tasks(id),
		kind TEXT NOT NULL CHECK (kind IN ('work', 'travel', 'other')),
		clock_in TEXT NOT NULL,
		clock_out TEXT,
		kilometers REAL CHECK (kilometers IS NULL OR kilometers >= 0),
		punch_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (clock_out IS NULL OR clock_out > clock_in)
	)`,
	// The partial unique index is the storage-level guarantee that a user can
	// hold at most one open punch, regardless of how many writers race.
	`CREATE UNIQUE INDEX IF NOT EXISTS one_active_punch_per_user
		ON time_punches(user_id) WHERE clock_out IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_time_punches_user_date
		ON time_punches(user_id, punch_date)`,
	`CREATE INDEX IF NOT EXISTS idx_time_punches_work_order
		ON time_punches(work_order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_work_order_tasks_work_order
		ON work_order_tasks(work_order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_token
		ON sessions(token)`,
}

// Migrate creates the schema if it does not exist yet.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	return cp.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema statement: %w", err)
			}
		}
		return nil
	})
}
