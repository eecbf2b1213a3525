package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/fwdesk/fwdesk/internal/model"
)

// Store is the durable record store for rule requests and the audit log,
// backed by SQLite. All writes are serialized through a single mutex so a
// duplicate check and its insert, or a status read-modify-write, can never
// interleave with another writer.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

// New creates a store rooted at dataDir. Pass empty string for in-memory.
func New(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "fwdesk.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS requests (
		id             TEXT PRIMARY KEY,
		source_ip      TEXT NOT NULL,
		destination_ip TEXT NOT NULL,
		port           TEXT NOT NULL,
		protocol       TEXT NOT NULL,
		description    TEXT NOT NULL,
		created_by     TEXT NOT NULL,
		requester_name TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMP NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		reviewer_notes TEXT NOT NULL DEFAULT ''
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_tuple
		ON requests (source_ip, destination_ip, port, protocol);
	CREATE TABLE IF NOT EXISTS audit_log (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp   TIMESTAMP NOT NULL,
		username    TEXT NOT NULL,
		action      TEXT NOT NULL,
		resource_id TEXT NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Rule requests
// ---------------------------------------------------------------------------

// CreateRequest assigns a fresh UUID, stamps creation time and pending status,
// and inserts the request. Returns *DuplicateError carrying the conflicting id
// if another record already holds the same (source, destination, port,
// protocol) tuple, regardless of that record's status.
func (s *Store) CreateRequest(ctx context.Context, in model.RuleRequestInput, createdBy, requesterName string) (*model.RuleRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.GetContext(ctx, &existingID,
		`SELECT id FROM requests
		 WHERE source_ip = ? AND destination_ip = ? AND port = ? AND protocol = ?`,
		in.SourceIP, in.DestinationIP, in.Port, in.Protocol)
	if err == nil {
		return nil, &DuplicateError{ExistingID: existingID}
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}

	req := &model.RuleRequest{
		ID:            uuid.NewString(),
		SourceIP:      in.SourceIP,
		DestinationIP: in.DestinationIP,
		Port:          in.Port,
		Protocol:      in.Protocol,
		Description:   in.Description,
		CreatedBy:     createdBy,
		RequesterName: requesterName,
		CreatedAt:     time.Now().UTC(),
		Status:        model.StatusPending,
		ReviewerNotes: "",
	}

	const q = `INSERT INTO requests
		(id, source_ip, destination_ip, port, protocol, description,
		 created_by, requester_name, created_at, status, reviewer_notes)
		VALUES
		(:id, :source_ip, :destination_ip, :port, :protocol, :description,
		 :created_by, :requester_name, :created_at, :status, :reviewer_notes)`
	if _, err := tx.NamedExecContext(ctx, q, req); err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}
	return req, nil
}

// GetRequest returns a request by id.
func (s *Store) GetRequest(ctx context.Context, id string) (*model.RuleRequest, error) {
	var req model.RuleRequest
	if err := s.db.GetContext(ctx, &req, "SELECT * FROM requests WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}

// ListRequests returns every request, oldest first.
func (s *Store) ListRequests(ctx context.Context) ([]model.RuleRequest, error) {
	requests := []model.RuleRequest{}
	if err := s.db.SelectContext(ctx, &requests,
		"SELECT * FROM requests ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// ListRequestsByCreator returns the requests created by the given account,
// oldest first.
func (s *Store) ListRequestsByCreator(ctx context.Context, username string) ([]model.RuleRequest, error) {
	requests := []model.RuleRequest{}
	if err := s.db.SelectContext(ctx, &requests,
		"SELECT * FROM requests WHERE created_by = ? ORDER BY created_at, id", username); err != nil {
		return nil, fmt.Errorf("list requests by creator: %w", err)
	}
	return requests, nil
}

// UpdateRequestStatus moves a request to status, enforcing the lifecycle
// graph, and replaces reviewer notes unless notes is blank, in which case the
// existing notes are preserved. The read-modify-write runs under the store
// write lock.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status model.Status, notes string) (*model.RuleRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var req model.RuleRequest
	if err := tx.GetContext(ctx, &req, "SELECT * FROM requests WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}

	if !req.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, status)
	}

	req.Status = status
	if notes != "" {
		req.ReviewerNotes = notes
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE requests SET status = ?, reviewer_notes = ? WHERE id = ?",
		req.Status, req.ReviewerNotes, req.ID); err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return &req, nil
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// AppendAudit appends one entry to the audit log. Entries are never updated
// or deleted.
func (s *Store) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_log (timestamp, username, action, resource_id) VALUES (?, ?, ?, ?)",
		entry.Timestamp, entry.Username, entry.Action, entry.ResourceID); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ReadAudit returns all audit entries in write order. Rows are decoded
// independently: a row that fails to scan is skipped and counted rather than
// aborting the read, so one bad entry cannot hide the rest.
func (s *Store) ReadAudit(ctx context.Context) (entries []model.AuditEntry, skipped int, err error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT timestamp, username, action, resource_id FROM audit_log ORDER BY seq")
	if err != nil {
		return nil, 0, fmt.Errorf("read audit log: %w", err)
	}
	defer rows.Close()

	entries = []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.StructScan(&e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read audit log: %w", err)
	}
	return entries, skipped, nil
}
