// Package store persists benchmark run summaries on the filesystem.
package store

import (
	"fmt"
	"time"
)

// Store saves and retrieves run summaries keyed by run ID.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveSummary atomically writes the summary, replacing any earlier one for the same run.
	SaveSummary(s *Summary) error

	// LoadSummary returns ErrNotFound if no summary exists for runID.
	LoadSummary(runID string) (*Summary, error)

	// ListSummaries returns all readable summaries, newest first.
	ListSummaries() ([]*Summary, error)

	// DeleteSummary removes the run directory. Returns ErrNotFound if it does not exist.
	DeleteSummary(runID string) error
}

// ErrNotFound is returned when a requested summary does not exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run summary.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run summary not found: " + e.RunID
	}
	return "run summary not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// Summary is the persisted outcome of one benchmark run.
type Summary struct {
	RunID      string        `json:"runId"`
	Kernel     string        `json:"kernel"`
	Backend    string        `json:"backend"`
	Workers    int           `json:"workers"`
	BatchWidth int           `json:"batchWidth"`
	LocalWidth int           `json:"localWidth"`
	ScryptN    int           `json:"scryptN"`
	ScryptR    int           `json:"scryptR"`
	ScryptP    int           `json:"scryptP"`
	Hashes     uint64        `json:"hashes"`
	Iterations uint64        `json:"iterations"`
	Mismatches uint64        `json:"mismatchedBatches"`
	Elapsed    time.Duration `json:"elapsedNs"`
	Hashrate   float64       `json:"hashesPerSecond"`
	Finished   time.Time     `json:"finished"`
}

// Validate checks the fields required to store a summary.
func (s *Summary) Validate() error {
	if s.RunID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	if s.Kernel == "" {
		return fmt.Errorf("kernel cannot be empty")
	}
	if s.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", s.Workers)
	}
	if s.Finished.IsZero() {
		return fmt.Errorf("finished timestamp cannot be zero")
	}
	return nil
}
