// Package storage persists per-day pipeline snapshots and the rolling
// recent-published index as flat JSON files. A single pipeline run per day
// is the only writer, so atomic whole-file replace is the only discipline
// needed.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
)

const (
	processedDirName = "processed"
	historyDirName   = "history"
	rawDirName       = "raw"

	recentPublishedFile = "recent_published.json"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Store reads and writes pipeline artifacts under a data directory.
type Store struct {
	dataDir string
}

// New creates a store rooted at dataDir, creating the layout if needed.
func New(dataDir string) (*Store, error) {
	for _, sub := range []string{rawDirName, processedDirName, historyDirName} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), dirPerm); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", sub, err)
		}
	}

	return &Store{dataDir: dataDir}, nil
}

func (s *Store) rawPath(day string) string {
	return filepath.Join(s.dataDir, rawDirName, day+".json")
}

func (s *Store) processedPath(prefix, day string) string {
	return filepath.Join(s.dataDir, processedDirName, fmt.Sprintf("%s_%s.json", prefix, day))
}

func (s *Store) recentPublishedPath() string {
	return filepath.Join(s.dataDir, historyDirName, recentPublishedFile)
}

// writeJSON marshals v and atomically replaces path with the result.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	return nil
}

// SaveRawCandidates writes a day's ingestion output.
func (s *Store) SaveRawCandidates(day string, candidates []domain.RawCandidate) error {
	return writeJSON(s.rawPath(day), candidates)
}

// LoadRawCandidates reads the ingestion output for a day. A missing file
// yields an empty slice, not an error.
func (s *Store) LoadRawCandidates(day string) ([]domain.RawCandidate, error) {
	var candidates []domain.RawCandidate

	if err := readJSON(s.rawPath(day), &candidates); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	return candidates, nil
}

// RankedSnapshot is the audit record of the rank stage.
type RankedSnapshot struct {
	Date     string                   `json:"date"`
	RunID    string                   `json:"run_id"`
	Meta     map[string]any           `json:"meta"`
	Articles []domain.ScoredCandidate `json:"articles"`
}

// SaveRanked persists the rank-stage snapshot for a day.
func (s *Store) SaveRanked(day string, snapshot *RankedSnapshot) error {
	return writeJSON(s.processedPath("ranked", day), snapshot)
}

// LoadRanked reads back the rank-stage snapshot for a day.
func (s *Store) LoadRanked(day string) (*RankedSnapshot, error) {
	snapshot := &RankedSnapshot{}
	if err := readJSON(s.processedPath("ranked", day), snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// ComposedSnapshot is the audit record of the compose stage.
type ComposedSnapshot struct {
	domain.DailyDigest

	Meta map[string]any `json:"meta"`
}

// SaveComposed persists the compose-stage snapshot for a day.
func (s *Store) SaveComposed(day string, snapshot *ComposedSnapshot) error {
	return writeJSON(s.processedPath("composed", day), snapshot)
}

// LoadComposed reads back the compose-stage snapshot for a day.
func (s *Store) LoadComposed(day string) (*ComposedSnapshot, error) {
	snapshot := &ComposedSnapshot{}
	if err := readJSON(s.processedPath("composed", day), snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// SaveQualityReport persists the quality gate verdict for a day.
func (s *Store) SaveQualityReport(day string, report *domain.QualityReport) error {
	return writeJSON(s.processedPath("quality", day), report)
}

// LoadQualityReport reads back the quality gate verdict for a day.
func (s *Store) LoadQualityReport(day string) (*domain.QualityReport, error) {
	report := &domain.QualityReport{}
	if err := readJSON(s.processedPath("quality", day), report); err != nil {
		return nil, err
	}

	return report, nil
}
