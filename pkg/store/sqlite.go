package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a SQLite-based attempt ledger.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the ledger at dbPath.
// WAL + busy timeout keep concurrent lifecycle processes from tripping over
// each other; a single writer connection avoids SQLITE_BUSY churn.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		job_id TEXT,
		state TEXT NOT NULL,
		error TEXT,
		work_dir TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		completed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_fingerprint ON attempts(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_attempts_state ON attempts(state);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateAttempt inserts a new attempt row.
func (s *SQLiteStore) CreateAttempt(a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO attempts (id, fingerprint, kind, name, job_id, state, error, work_dir, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Fingerprint, a.Kind, a.Name, a.JobID, a.State, a.Error, a.WorkDir, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

// UpdateAttemptState records a state change, stamping completion time on
// terminal states.
func (s *SQLiteStore) UpdateAttemptState(id, state, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var completedAt interface{}
	if state == "failed" || state == "reconciled_done" {
		completedAt = now
	}

	res, err := s.db.Exec(`
		UPDATE attempts SET state = ?, error = ?, updated_at = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ?`,
		state, errMsg, now, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attempt not found: %s", id)
	}
	return nil
}

// SetAttemptJobID records the scheduler-assigned job id after submission.
func (s *SQLiteStore) SetAttemptJobID(id, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE attempts SET job_id = ?, updated_at = ? WHERE id = ?`,
		jobID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set job id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attempt not found: %s", id)
	}
	return nil
}

// GetAttempt fetches a single attempt by ledger id.
func (s *SQLiteStore) GetAttempt(id string) (*Attempt, error) {
	row := s.db.QueryRow(`
		SELECT id, fingerprint, kind, name, job_id, state, error, work_dir, created_at, updated_at, completed_at
		FROM attempts WHERE id = ?`, id)
	return scanAttempt(row)
}

// ListAttempts returns all attempts, newest first.
func (s *SQLiteStore) ListAttempts() ([]*Attempt, error) {
	rows, err := s.db.Query(`
		SELECT id, fingerprint, kind, name, job_id, state, error, work_dir, created_at, updated_at, completed_at
		FROM attempts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (*Attempt, error) {
	var a Attempt
	var jobID, errMsg, workDir sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&a.ID, &a.Fingerprint, &a.Kind, &a.Name, &jobID, &a.State,
		&errMsg, &workDir, &a.CreatedAt, &a.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("attempt not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan attempt: %w", err)
	}

	a.JobID = jobID.String
	a.Error = errMsg.String
	a.WorkDir = workDir.String
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return &a, nil
}
