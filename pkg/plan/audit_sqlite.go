package plan

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// SQLiteAuditStore persists plan validation outcomes in SQLite.
type SQLiteAuditStore struct {
	db *sql.DB
}

// NewSQLiteAuditStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensurePlanAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteAuditStore{db: db}, nil
}

// OpenSQLiteAuditStore opens (or creates) the database at path and ensures
// schema.
func OpenSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteAuditStore(db)
}

// Close releases the underlying database handle.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

// Record stores a single audit event.
func (s *SQLiteAuditStore) Record(ctx context.Context, event AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plan_audit_events (
			plan_id, task, step_count, outcome, error_code, step_index, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.PlanID,
		event.Task,
		event.StepCount,
		event.Outcome,
		event.ErrorCode,
		event.StepIndex,
		normalizeAuditTime(event.CreatedAt),
	)
	return err
}

// List returns audit events matching the filter.
func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT plan_id, task, step_count, outcome, error_code, step_index, created_at
		FROM plan_audit_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.PlanID != "" {
		addFilter("plan_id = ?", filter.PlanID)
	}
	if filter.Outcome != "" {
		addFilter("outcome = ?", filter.Outcome)
	}
	if filter.ErrorCode != "" {
		addFilter("error_code = ?", filter.ErrorCode)
	}
	query += where + " ORDER BY created_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			event   AuditEvent
			created sql.NullTime
		)
		if err := rows.Scan(
			&event.PlanID,
			&event.Task,
			&event.StepCount,
			&event.Outcome,
			&event.ErrorCode,
			&event.StepIndex,
			&created,
		); err != nil {
			return nil, err
		}
		if created.Valid {
			event.CreatedAt = created.Time
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func ensurePlanAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS plan_audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id TEXT NOT NULL,
			task TEXT,
			step_count INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			error_code TEXT,
			step_index INTEGER,
			created_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_plan_audit_plan ON plan_audit_events(plan_id);
		CREATE INDEX IF NOT EXISTS idx_plan_audit_outcome ON plan_audit_events(outcome);
		CREATE INDEX IF NOT EXISTS idx_plan_audit_code ON plan_audit_events(error_code);
	`)
	return err
}
