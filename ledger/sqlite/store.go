// Package sqlite provides the SQLite-backed request ledger. WAL mode keeps
// reads concurrent with the single writer; a busy timeout absorbs lock
// contention from overlapping calls.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/turbobackend/mcpbridge/ledger"
)

//go:embed schema.sql
var schemaSQL string

// Store implements ledger.Ledger on a SQLite database.
type Store struct {
	db *sql.DB
}

var _ ledger.Ledger = (*Store)(nil)

// Open creates or opens the ledger database at path. Safe to call on an
// existing database; pragmas and schema are applied idempotently.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY on overlapping writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert records one pending invocation. A duplicate request id fails with
// ledger.ErrDuplicateRequest so the caller aborts before dispatching
// untracked work.
func (s *Store) Insert(ctx context.Context, record ledger.Record) error {
	if record.RequestID == "" {
		return fmt.Errorf("%w: request id is empty", ledger.ErrRequestNotFound)
	}
	if !record.Status.Valid() {
		return fmt.Errorf("%w: %q", ledger.ErrInvalidStatus, record.Status)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mcp_requests
		 (request_id, mcp_key_id, tool_name, request_params, response_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.RequestID,
		record.KeyID,
		record.ToolName,
		record.Params,
		string(record.Status),
		record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ledger.ErrDuplicateRequest, record.RequestID)
		}
		return fmt.Errorf("insert request record: %w", err)
	}
	return nil
}

// UpdateStatus advances one record from pending to a terminal status. It
// refuses to touch rows that are already terminal, which keeps the
// pending→success|error transition one-shot.
func (s *Store) UpdateStatus(ctx context.Context, requestID string, status ledger.Status) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %q is not a terminal status", ledger.ErrInvalidStatus, status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE mcp_requests
		 SET response_status = ?
		 WHERE request_id = ? AND response_status = ?`,
		string(status),
		requestID,
		string(ledger.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if affected == 0 {
		return s.explainMissedUpdate(ctx, requestID)
	}
	return nil
}

// Load reads one record back. Used by the query surface and tests.
func (s *Store) Load(ctx context.Context, requestID string) (ledger.Record, error) {
	var (
		record ledger.Record
		status string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT request_id, mcp_key_id, tool_name, request_params, response_status, created_at
		 FROM mcp_requests WHERE request_id = ?`,
		requestID,
	).Scan(&record.RequestID, &record.KeyID, &record.ToolName, &record.Params, &status, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, fmt.Errorf("%w: %q", ledger.ErrRequestNotFound, requestID)
	}
	if err != nil {
		return ledger.Record{}, fmt.Errorf("load request record: %w", err)
	}
	record.Status = ledger.Status(status)
	return record, nil
}

func (s *Store) explainMissedUpdate(ctx context.Context, requestID string) error {
	current, err := s.Load(ctx, requestID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %q is %s", ledger.ErrStatusFinal, requestID, current.Status)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
