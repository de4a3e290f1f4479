// Package runstore keeps a SQLite history of training runs and their
// checkpoints.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"pibnn_lib/train"
	"pibnn_lib/utils"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("runstore: closed")
	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = errors.New("runstore: run not found")
)

// Run is one stored training run.
type Run struct {
	ID         string
	Config     utils.Config
	StartedAt  time.Time
	FinishedAt *time.Time
	Epochs     int
	StopReason string
}

// Store is a SQLite-backed run history.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "runstore: creating directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "runstore: opening database")
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			config TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			epochs INTEGER NOT NULL DEFAULT 0,
			stop_reason TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT NOT NULL REFERENCES runs(id),
			epoch INTEGER NOT NULL,
			total REAL NOT NULL,
			mse REAL NOT NULL,
			kl REAL NOT NULL,
			physics REAL NOT NULL,
			coverage REAL NOT NULL,
			PRIMARY KEY (run_id, epoch)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "runstore: creating schema")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// CreateRun records a new run and returns its ID.
func (s *Store) CreateRun(ctx context.Context, cfg utils.Config) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", errors.Wrap(err, "runstore: encoding config")
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, config, started_at) VALUES (?, ?, ?)`,
		id, string(raw), time.Now().UnixNano())
	if err != nil {
		return "", errors.Wrap(err, "runstore: inserting run")
	}
	return id, nil
}

// RecordCheckpoint stores one evaluation of a run.
func (s *Store) RecordCheckpoint(ctx context.Context, runID string, cp train.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, epoch, total, mse, kl, physics, coverage)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, cp.Epoch, cp.Total, cp.MSE, cp.KL, cp.Physics, cp.Coverage)
	return errors.Wrapf(err, "runstore: inserting checkpoint %d", cp.Epoch)
}

// FinishRun marks a run as done with its final epoch count and stop reason.
func (s *Store) FinishRun(ctx context.Context, runID string, state *train.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, epochs = ?, stop_reason = ? WHERE id = ?
	`, time.Now().UnixNano(), state.Epochs, state.StopReason.String(), runID)
	if err != nil {
		return errors.Wrap(err, "runstore: finishing run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "runstore: finishing run")
	}
	if n == 0 {
		return errors.Wrap(ErrRunNotFound, runID)
	}
	return nil
}

// GetRun loads a run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var (
		raw      string
		started  int64
		finished sql.NullInt64
		run      = Run{ID: runID}
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT config, started_at, finished_at, epochs, stop_reason FROM runs WHERE id = ?
	`, runID).Scan(&raw, &started, &finished, &run.Epochs, &run.StopReason)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "runstore: loading run")
	}
	if err := json.Unmarshal([]byte(raw), &run.Config); err != nil {
		return nil, errors.Wrap(err, "runstore: decoding config")
	}
	run.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		run.FinishedAt = &t
	}
	return &run, nil
}

// Checkpoints lists a run's checkpoints in epoch order.
func (s *Store) Checkpoints(ctx context.Context, runID string) ([]train.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, total, mse, kl, physics, coverage FROM checkpoints
		WHERE run_id = ? ORDER BY epoch
	`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "runstore: querying checkpoints")
	}
	defer rows.Close()

	var out []train.Checkpoint
	for rows.Next() {
		var cp train.Checkpoint
		if err := rows.Scan(&cp.Epoch, &cp.Total, &cp.MSE, &cp.KL, &cp.Physics, &cp.Coverage); err != nil {
			return nil, errors.Wrap(err, "runstore: scanning checkpoint")
		}
		out = append(out, cp)
	}
	return out, errors.Wrap(rows.Err(), "runstore: reading checkpoints")
}
