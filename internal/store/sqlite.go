package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/rendezvous/internal/constants"
	"github.com/nvandessel/rendezvous/internal/simulation"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteRunStore implements RunStore on a SQLite database at
// <dir>/rendezvous.db.
type SQLiteRunStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	dbPath  string
	nowFunc func() time.Time
}

// NewSQLiteRunStore opens or creates the run database inside dir.
func NewSQLiteRunStore(dir string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(dir, constants.DatabaseFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath, nowFunc: time.Now}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// SaveRun inserts or replaces a run.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run = prepare(run, s.nowFunc)

	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, created_at, token_fingerprint, salt,
			num_peers, num_trials, epsilon, window_size, apply_geo_filter, geo_filter_factor,
			workers, seed, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(timeFormat), run.TokenFingerprint, run.Salt,
		run.Config.NumPeers, run.Config.NumTrials, run.Config.Epsilon, run.Config.WindowSize,
		boolToInt(run.Config.ApplyGeoFilter), run.Config.GeoFilterFactor,
		run.Workers, strconv.FormatUint(run.Seed, 10), string(resultJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return run.ID, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

// timeFormat has fixed width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const selectRuns = `
	SELECT
		id, created_at, token_fingerprint, salt,
		num_peers, num_trials, epsilon, window_size, apply_geo_filter, geo_filter_factor,
		workers, seed, result
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                Run
		createdAt          string
		applyGeo           int
		epsilon, geoFactor float64
		seed               string
		resultJSON         string
	)

	err := row.Scan(
		&run.ID, &createdAt, &run.TokenFingerprint, &run.Salt,
		&run.Config.NumPeers, &run.Config.NumTrials, &epsilon, &run.Config.WindowSize,
		&applyGeo, &geoFactor,
		&run.Workers, &seed, &resultJSON,
	)
	if err != nil {
		return nil, err
	}

	run.Config.Epsilon = float32(epsilon)
	run.Config.GeoFilterFactor = float32(geoFactor)
	run.Config.ApplyGeoFilter = applyGeo != 0

	if run.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for run %s: %w", run.ID, err)
	}
	if run.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("failed to parse seed for run %s: %w", run.ID, err)
	}

	var result simulation.Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result for run %s: %w", run.ID, err)
	}
	run.Result = result

	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
