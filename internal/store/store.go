// Package store persists client submissions, their application status
// history and the plan proposals produced for them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a submission or proposal does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned by WriteStatus for disallowed moves.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Submission is one client intake record.
type Submission struct {
	UniqueID    string          `json:"unique_id"`
	FullName    string          `json:"full_name"`
	Agent       string          `json:"agent"`
	FormSummary json.RawMessage `json:"form_summary"`
	Status      Status          `json:"application_status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StatusEntry is one row of the append-only status log.
type StatusEntry struct {
	ID         int64     `json:"id"`
	UniqueID   string    `json:"unique_id"`
	Status     Status    `json:"application_status"`
	Comments   string    `json:"application_comments,omitempty"`
	ModifiedBy string    `json:"application_modified_by"`
	Source     string    `json:"source,omitempty"`
	ModifiedAt time.Time `json:"application_modified_at"`
}

// Proposal is an analysis result saved for a submission.
type Proposal struct {
	ID        int64           `json:"id"`
	UniqueID  string          `json:"unique_id"`
	RunID     string          `json:"run_id"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	unique_id TEXT PRIMARY KEY,
	full_name TEXT,
	agent TEXT,
	form_summary TEXT NOT NULL,
	application_status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS application_status_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	unique_id TEXT NOT NULL,
	application_status TEXT NOT NULL,
	application_comments TEXT,
	application_modified_at TEXT NOT NULL,
	application_modified_by TEXT,
	source TEXT,
	FOREIGN KEY (unique_id) REFERENCES submissions (unique_id)
);
CREATE INDEX IF NOT EXISTS idx_application_status_log_uid ON application_status_log(unique_id);

CREATE TABLE IF NOT EXISTS proposed_plans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	unique_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	result TEXT NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY (unique_id) REFERENCES submissions (unique_id)
);
CREATE INDEX IF NOT EXISTS idx_proposed_plans_uid ON proposed_plans(unique_id);
`

// Store is a SQLite-backed workflow store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

// CreateSubmission stores a new client record in SUBMITTED state and logs
// the initial status.
func (s *Store) CreateSubmission(ctx context.Context, fullName, agent string, form json.RawMessage) (*Submission, error) {
	if !json.Valid(form) {
		return nil, fmt.Errorf("form summary is not valid JSON")
	}
	id := uuid.NewString()
	ts := s.timestamp()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (unique_id, full_name, agent, form_summary, application_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, fullName, agent, string(form), string(StatusSubmitted), ts, ts); err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	if err := appendLog(ctx, tx, id, StatusSubmitted, "", agent, "submission", ts); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &Submission{
		UniqueID:    id,
		FullName:    fullName,
		Agent:       agent,
		FormSummary: append(json.RawMessage(nil), form...),
		Status:      StatusSubmitted,
		CreatedAt:   parseTime(ts),
		UpdatedAt:   parseTime(ts),
	}, nil
}

// ReadClientRecord returns the submission with the given id.
func (s *Store) ReadClientRecord(ctx context.Context, id string) (*Submission, error) {
	var (
		sub              Submission
		form, status     string
		created, updated string
		fullName, agent  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT unique_id, full_name, agent, form_summary, application_status, created_at, updated_at
		 FROM submissions WHERE unique_id = ?`, id).
		Scan(&sub.UniqueID, &fullName, &agent, &form, &status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read submission %s: %w", id, err)
	}
	sub.FullName = fullName.String
	sub.Agent = agent.String
	sub.FormSummary = json.RawMessage(form)
	sub.Status = Status(status)
	sub.CreatedAt = parseTime(created)
	sub.UpdatedAt = parseTime(updated)
	return &sub, nil
}

// WriteStatus moves a submission to status `to`, appending to the log.
func (s *Store) WriteStatus(ctx context.Context, id string, to Status, by, comments string) error {
	to = Status(strings.ToUpper(strings.TrimSpace(string(to))))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT application_status FROM submissions WHERE unique_id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read status %s: %w", id, err)
	}

	from := Status(current)
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	ts := s.timestamp()
	if _, err := tx.ExecContext(ctx,
		`UPDATE submissions SET application_status = ?, updated_at = ? WHERE unique_id = ?`,
		string(to), ts, id); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if err := appendLog(ctx, tx, id, to, comments, by, "workflow", ts); err != nil {
		return err
	}
	return tx.Commit()
}

func appendLog(ctx context.Context, tx *sql.Tx, id string, status Status, comments, by, source, ts string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO application_status_log
		 (unique_id, application_status, application_comments, application_modified_at, application_modified_by, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(status), comments, ts, by, source)
	if err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	return nil
}

// History returns the status log of a submission, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]StatusEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, unique_id, application_status, application_comments, application_modified_at,
		        application_modified_by, source
		 FROM application_status_log WHERE unique_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []StatusEntry
	for rows.Next() {
		var (
			e                    StatusEntry
			status, at           string
			comments, by, source sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UniqueID, &status, &comments, &at, &by, &source); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Status = Status(status)
		e.Comments = comments.String
		e.ModifiedBy = by.String
		e.Source = source.String
		e.ModifiedAt = parseTime(at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return out, nil
}

// SaveProposal stores an analysis result for a submission.
func (s *Store) SaveProposal(ctx context.Context, id, runID string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	if _, err := s.ReadClientRecord(ctx, id); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO proposed_plans (unique_id, run_id, result, created_at) VALUES (?, ?, ?, ?)`,
		id, runID, string(data), s.timestamp())
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

// LatestProposal returns the most recently saved proposal.
func (s *Store) LatestProposal(ctx context.Context, id string) (*Proposal, error) {
	var (
		p               Proposal
		result, created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, unique_id, run_id, result, created_at FROM proposed_plans
		 WHERE unique_id = ? ORDER BY id DESC LIMIT 1`, id).
		Scan(&p.ID, &p.UniqueID, &p.RunID, &result, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proposal for %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read proposal: %w", err)
	}
	p.Result = json.RawMessage(result)
	p.CreatedAt = parseTime(created)
	return &p, nil
}
