package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FSStore keeps each summary in <baseDir>/runs/<runID>/summary.json.
// Writes go through a temp file and rename, so no locking is required.
type FSStore struct {
	baseDir string
}

// NewFSStore creates the base directory if it does not exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (fs *FSStore) runDir(runID string) string {
	return filepath.Join(fs.baseDir, "runs", runID)
}

func (fs *FSStore) summaryPath(runID string) string {
	return filepath.Join(fs.runDir(runID), "summary.json")
}

// RunDir returns the directory holding the given run.
func (fs *FSStore) RunDir(runID string) string {
	return fs.runDir(runID)
}

// SaveSummary atomically writes the summary.
func (fs *FSStore) SaveSummary(s *Summary) error {
	if s == nil {
		return fmt.Errorf("summary cannot be nil")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid summary: %w", err)
	}

	if err := os.MkdirAll(fs.runDir(s.RunID), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	finalPath := fs.summaryPath(s.RunID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp summary file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename summary file: %w", err)
	}

	slog.Debug("Run summary saved", "runID", s.RunID, "path", finalPath)
	return nil
}

// LoadSummary reads the summary for runID.
func (fs *FSStore) LoadSummary(runID string) (*Summary, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	data, err := os.ReadFile(fs.summaryPath(runID))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary file: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize summary: %w", err)
	}
	return &s, nil
}

// ListSummaries skips run directories without a readable summary.
func (fs *FSStore) ListSummaries() ([]*Summary, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []*Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	summaries := make([]*Summary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		s, err := fs.LoadSummary(entry.Name())
		if err != nil {
			if !os.IsNotExist(err) && !isNotFound(err) {
				slog.Warn("Failed to load run summary for listing", "runID", entry.Name(), "error", err)
			}
			continue
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Finished.After(summaries[j].Finished)
	})

	slog.Debug("Listed run summaries", "count", len(summaries))
	return summaries, nil
}

// DeleteSummary removes the run directory and everything in it.
func (fs *FSStore) DeleteSummary(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	dir := fs.runDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run summary deleted", "runID", runID, "path", dir)
	return nil
}

func isNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
