// Package store defines the RunStore interface for keeping a history of
// simulation runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/rendezvous/internal/simulation"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored simulation. The token is kept only as a fingerprint.
type Run struct {
	ID               string            `json:"id" yaml:"id"`
	CreatedAt        time.Time         `json:"created_at" yaml:"created_at"`
	TokenFingerprint string            `json:"token_fingerprint" yaml:"token_fingerprint"`
	Salt             string            `json:"salt" yaml:"salt"`
	Config           simulation.Config `json:"config" yaml:"config"`
	Result           simulation.Result `json:"result" yaml:"result"`
	Workers          int               `json:"workers" yaml:"workers"`
	Seed             uint64            `json:"seed" yaml:"seed"`
}

// RunStore persists simulation runs.
type RunStore interface {
	// SaveRun stores run and returns its ID. An empty ID is replaced by a
	// new one; a zero CreatedAt is set to now.
	SaveRun(ctx context.Context, run Run) (string, error)

	// GetRun returns ErrRunNotFound for unknown IDs.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first. limit <= 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// DeleteRun returns ErrRunNotFound for unknown IDs.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// NewRunID returns a random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// prepare fills in the ID and timestamp of a run about to be saved.
func prepare(run Run, now func() time.Time) Run {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now()
	}
	run.CreatedAt = run.CreatedAt.UTC()
	return run
}
