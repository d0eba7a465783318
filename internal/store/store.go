// Package store provides SQLite-backed run history for bootleg.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/spinlock99/bootleg/internal/models"
)

// Store records deploy runs and their per-host command and transfer results.
// It also satisfies the dispatcher's Recorder interface: records written
// between BeginRun and FinishRun carry that run's ID.
type Store struct {
	db *sql.DB

	mu         sync.Mutex
	currentRun string
	seq        int
}

// New creates a Store at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS command_results (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		host TEXT NOT NULL,
		command TEXT NOT NULL,
		exit_status INTEGER NOT NULL,
		stdout TEXT,
		stderr TEXT,
		at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		role TEXT NOT NULL,
		host TEXT NOT NULL,
		direction TEXT NOT NULL,
		source TEXT NOT NULL,
		dest TEXT NOT NULL,
		error TEXT,
		at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_command_results_run_id ON command_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_transfers_run_id ON transfers(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Run Operations ---

// BeginRun opens a run for the named task. Until FinishRun, command and
// transfer records are attributed to it.
func (s *Store) BeginRun(taskName string) (*models.Run, error) {
	now := time.Now().UTC()
	run := &models.Run{
		ID:        uuid.New().String(),
		Task:      taskName,
		Status:    models.RunStatusRunning,
		StartedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, task, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Task, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	s.mu.Lock()
	s.currentRun = run.ID
	s.seq = 0
	s.mu.Unlock()

	return run, nil
}

// FinishRun closes the run with the outcome derived from runErr.
func (s *Store) FinishRun(id string, runErr error) error {
	status := models.RunStatusSucceeded
	errMsg := ""
	if runErr != nil {
		status = models.RunStatusFailed
		errMsg = runErr.Error()
	}

	s.mu.Lock()
	if s.currentRun == id {
		s.currentRun = ""
	}
	s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ?, ended_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id,
	)
	return err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]models.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, task, status, error, started_at, ended_at FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		var errMsg sql.NullString
		var endedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.Task, &run.Status, &errMsg, &run.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		if endedAt.Valid {
			run.EndedAt = &endedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*models.Run, error) {
	run := &models.Run{}
	var errMsg sql.NullString
	var endedAt sql.NullTime

	err := s.db.QueryRow(
		`SELECT id, task, status, error, started_at, ended_at FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Task, &run.Status, &errMsg, &run.StartedAt, &endedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return run, nil
}

// --- Recorder implementation ---

// RecordCommand stores one host's result for one command.
func (s *Store) RecordCommand(roleName, host, command string, exitStatus int, stdout, stderr string) error {
	s.mu.Lock()
	runID := s.currentRun
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO command_results (id, run_id, seq, role, host, command, exit_status, stdout, stderr, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), nullable(runID), seq, roleName, host, command, exitStatus, stdout, stderr, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert command result: %w", err)
	}
	return nil
}

// RecordTransfer stores one upload or download issued to a host.
func (s *Store) RecordTransfer(roleName, host, direction, source, dest string, terr error) error {
	s.mu.Lock()
	runID := s.currentRun
	s.mu.Unlock()

	errMsg := ""
	if terr != nil {
		errMsg = terr.Error()
	}

	_, err := s.db.Exec(
		`INSERT INTO transfers (id, run_id, role, host, direction, source, dest, error, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), nullable(runID), roleName, host, direction, source, dest, errMsg, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// --- Query Operations ---

// CommandsForRun returns a run's command results in execution order.
func (s *Store) CommandsForRun(runID string) ([]models.CommandRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, seq, role, host, command, exit_status, stdout, stderr, at
		 FROM command_results WHERE run_id = ? ORDER BY seq ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query command results: %w", err)
	}
	defer rows.Close()

	var records []models.CommandRecord
	for rows.Next() {
		var rec models.CommandRecord
		var rid, stdout, stderr sql.NullString
		if err := rows.Scan(&rec.ID, &rid, &rec.Seq, &rec.Role, &rec.Host, &rec.Command, &rec.ExitStatus, &stdout, &stderr, &rec.At); err != nil {
			return nil, fmt.Errorf("scan command result: %w", err)
		}
		if rid.Valid {
			rec.RunID = rid.String
		}
		if stdout.Valid {
			rec.Stdout = stdout.String
		}
		if stderr.Valid {
			rec.Stderr = stderr.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TransfersForRun returns a run's transfer records, oldest first.
func (s *Store) TransfersForRun(runID string) ([]models.TransferRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, role, host, direction, source, dest, error, at
		 FROM transfers WHERE run_id = ? ORDER BY at ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var records []models.TransferRecord
	for rows.Next() {
		var rec models.TransferRecord
		var rid, errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rid, &rec.Role, &rec.Host, &rec.Direction, &rec.Source, &rec.Dest, &errMsg, &rec.At); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if rid.Valid {
			rec.RunID = rid.String
		}
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
