// Package sqldb is the SQL implementation of the failure and action stores,
// supporting multiple database dialects.
package sqldb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/storage/dialect"
)

// defaultQueryLimit caps action queries when the caller sets none.
const defaultQueryLimit = 100

// Store is a SQL implementation of both FailureStore and ActionStore.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

// Ensure Store implements both storage ports.
var (
	_ ports.FailureStore = (*Store)(nil)
	_ ports.ActionStore  = (*Store)(nil)
)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres, mysql
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store (convenience function).
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS failures (
	id TEXT PRIMARY KEY,
	timestamp TIMESTAMP NOT NULL,
	service_name TEXT NOT NULL,
	test_name TEXT NOT NULL,
	error_message TEXT,
	stack_trace TEXT,
	metadata TEXT
)`,
		`CREATE TABLE IF NOT EXISTS actions (
	id TEXT PRIMARY KEY,
	pattern_id TEXT,
	timestamp TIMESTAMP NOT NULL,
	agent_type TEXT NOT NULL,
	action_type TEXT NOT NULL,
	status TEXT NOT NULL,
	details TEXT
)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_timestamp ON failures(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_service ON failures(service_name)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_timestamp ON actions(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_agent_type ON actions(agent_type)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	// Run migrations for existing databases - add columns that may not exist
	if err := s.runMigrations(); err != nil {
		return err
	}

	// Create indexes after ensuring columns exist
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_actions_pattern ON actions(pattern_id)`,
	}

	for _, stmt := range indexes {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (s *Store) runMigrations() error {
	migrations := []struct {
		table  string
		column string
		ddl    string
	}{
		{"actions", "pattern_id", "ALTER TABLE actions ADD COLUMN pattern_id TEXT"},
	}

	for _, m := range migrations {
		exists, err := s.columnExists(m.table, m.column)
		if err != nil {
			return fmt.Errorf("failed to check column %s.%s: %w", m.table, m.column, err)
		}
		if !exists {
			if _, err := s.db.Exec(s.dialect.Rebind(m.ddl)); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", m.table, m.column, err)
			}
		}
	}

	return nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	var count int
	query := s.dialect.ColumnExistsQuery()
	err := s.db.QueryRow(query, table, column).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FailureStore implementation

// PutFailure stores a failure record. Missing ids and timestamps are
// assigned; timestamps are normalized to UTC so range scans order correctly
// across backends that compare stored timestamps as text.
func (s *Store) PutFailure(ctx context.Context, record *domain.FailureRecord) (string, error) {
	if record.FailureID == "" {
		record.FailureID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.Timestamp = record.Timestamp.UTC()

	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := s.dialect.Rebind(`INSERT INTO failures (id, timestamp, service_name, test_name, error_message, stack_trace, metadata)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		record.FailureID, record.Timestamp, record.ServiceName, record.TestName,
		record.ErrorMessage, record.StackTrace, string(metadata))

	if err != nil {
		return "", fmt.Errorf("failed to store failure: %w", err)
	}

	return record.FailureID, nil
}

// QueryFailures returns failures with a timestamp at or after since,
// ordered by timestamp ascending.
func (s *Store) QueryFailures(ctx context.Context, since time.Time) ([]domain.FailureRecord, error) {
	query := s.dialect.Rebind(`SELECT id, timestamp, service_name, test_name, error_message, stack_trace, metadata
	          FROM failures WHERE timestamp >= ?
	          ORDER BY timestamp ASC`)

	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var records []domain.FailureRecord
	for rows.Next() {
		var rec domain.FailureRecord
		var metadataJSON string

		if err := rows.Scan(&rec.FailureID, &rec.Timestamp, &rec.ServiceName,
			&rec.TestName, &rec.ErrorMessage, &rec.StackTrace, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}

		if metadataJSON != "" && metadataJSON != "null" {
			if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountSince returns the number of failures in the window.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	query := s.dialect.Rebind(`SELECT COUNT(*) FROM failures WHERE timestamp >= ?`)

	var count int
	if err := s.db.QueryRowContext(ctx, query, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return count, nil
}

// PurgeBefore removes failures older than cutoff.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.dialect.Rebind(`DELETE FROM failures WHERE timestamp < ?`)

	result, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge failures: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// ActionStore implementation

// PutAction stores an action envelope.
func (s *Store) PutAction(ctx context.Context, action *domain.Action) (string, error) {
	if action.ActionID == "" {
		action.ActionID = uuid.New().String()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}
	action.Timestamp = action.Timestamp.UTC()

	query := s.dialect.Rebind(`INSERT INTO actions (id, pattern_id, timestamp, agent_type, action_type, status, details)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		action.ActionID, action.PatternID, action.Timestamp,
		action.AgentType, action.ActionType, action.Status, string(action.Details))

	if err != nil {
		return "", fmt.Errorf("failed to store action: %w", err)
	}

	return action.ActionID, nil
}

// QueryActions returns actions matching the filter, newest first.
func (s *Store) QueryActions(ctx context.Context, filter ports.ActionFilter) ([]domain.Action, error) {
	var conds []string
	var args []any

	if !filter.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.AgentType != "" {
		conds = append(conds, "agent_type = ?")
		args = append(args, filter.AgentType)
	}
	if filter.ActionType != "" {
		conds = append(conds, "action_type = ?")
		args = append(args, filter.ActionType)
	}
	if filter.PatternID != "" {
		conds = append(conds, "pattern_id = ?")
		args = append(args, filter.PatternID)
	}

	query := `SELECT id, pattern_id, timestamp, agent_type, action_type, status, details FROM actions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC LIMIT ?"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.Action
	for rows.Next() {
		var a domain.Action
		var detailsStr string

		if err := rows.Scan(&a.ActionID, &a.PatternID, &a.Timestamp,
			&a.AgentType, &a.ActionType, &a.Status, &detailsStr); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}

		if detailsStr != "" {
			a.Details = json.RawMessage(detailsStr)
		}

		actions = append(actions, a)
	}

	return actions, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
