package storage

import (
	"os"
	"sort"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
)

// LoadRecentPublished reads the rolling published-history index. A missing
// or empty file yields an empty index; the pipeline must not fail because
// history is absent.
func (s *Store) LoadRecentPublished() (*domain.RecentPublishedIndex, error) {
	idx := &domain.RecentPublishedIndex{Days: map[string][]domain.PublishedEntry{}}

	if err := readJSON(s.recentPublishedPath(), idx); err != nil {
		if os.IsNotExist(err) {
			return &domain.RecentPublishedIndex{Days: map[string][]domain.PublishedEntry{}}, nil
		}

		return nil, err
	}

	if idx.Days == nil {
		idx.Days = map[string][]domain.PublishedEntry{}
	}

	return idx, nil
}

// AppendRecentPublished records a day's published entries and prunes the
// index to the newest keepDays days before atomically replacing the file.
func (s *Store) AppendRecentPublished(day string, entries []domain.PublishedEntry, keepDays int) error {
	idx, err := s.LoadRecentPublished()
	if err != nil {
		return err
	}

	idx.Days[day] = entries

	if keepDays > 0 && len(idx.Days) > keepDays {
		days := make([]string, 0, len(idx.Days))
		for d := range idx.Days {
			days = append(days, d)
		}

		// Day keys are ISO dates, so lexical order is chronological.
		sort.Strings(days)

		for _, d := range days[:len(days)-keepDays] {
			delete(idx.Days, d)
		}
	}

	return writeJSON(s.recentPublishedPath(), idx)
}
