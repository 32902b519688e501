// Package dedup rejects repeated coverage of the same event, both within a
// single day's ranked pool and against the rolling history of recently
// published digests.
package dedup

import (
	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
	"github.com/wangwingzero/fly-podcast/internal/core/fingerprint"
	"github.com/wangwingzero/fly-podcast/internal/platform/observability"
)

// IntraDay keeps the first occurrence per event fingerprint and per
// normalized URL over a rank-sorted pool. Later duplicates are dropped
// entirely, not merged. The operation is idempotent.
func IntraDay(candidates []domain.ScoredCandidate) []domain.ScoredCandidate {
	seenFP := make(map[string]bool, len(candidates))
	seenURL := make(map[string]bool, len(candidates))

	out := make([]domain.ScoredCandidate, 0, len(candidates))

	for _, candidate := range candidates {
		fp := candidate.EventFingerprint
		if fp == "" {
			fp = fingerprint.Fingerprint(candidate.Title)
		}

		urlKey := fingerprint.NormalizeURL(candidate.Link())

		if (fp != "" && seenFP[fp]) || (urlKey != "" && seenURL[urlKey]) {
			continue
		}

		if fp != "" {
			seenFP[fp] = true
		}

		if urlKey != "" {
			seenURL[urlKey] = true
		}

		out = append(out, candidate)
	}

	return out
}

// RecentIndex holds four lookup sets over recently published entries.
// A candidate matching any one of them is a recent duplicate.
type RecentIndex struct {
	ids    map[string]bool
	fps    map[string]bool
	urls   map[string]bool
	titles map[string]bool
}

// NewRecentIndex builds the lookup sets from the rolling published history.
func NewRecentIndex(published []domain.PublishedEntry) *RecentIndex {
	idx := &RecentIndex{
		ids:    map[string]bool{},
		fps:    map[string]bool{},
		urls:   map[string]bool{},
		titles: map[string]bool{},
	}

	for _, entry := range published {
		if entry.ID != "" {
			idx.ids[entry.ID] = true
		}

		if entry.EventFingerprint != "" {
			idx.fps[entry.EventFingerprint] = true
		}

		if key := fingerprint.NormalizeURL(entry.URL); key != "" {
			idx.urls[key] = true
		}

		if key := fingerprint.NormalizeTitle(entry.Title); key != "" {
			idx.titles[key] = true
		}
	}

	return idx
}

// Empty reports whether the index has nothing to match against.
func (idx *RecentIndex) Empty() bool {
	if idx == nil {
		return true
	}

	return len(idx.ids) == 0 && len(idx.fps) == 0 && len(idx.urls) == 0 && len(idx.titles) == 0
}

// Matches reports whether the given identity matches any of the four sets.
func (idx *RecentIndex) Matches(id, eventFingerprint, title, url string) bool {
	if idx.Empty() {
		return false
	}

	if id != "" && idx.ids[id] {
		return true
	}

	if eventFingerprint != "" && idx.fps[eventFingerprint] {
		return true
	}

	if key := fingerprint.NormalizeURL(url); key != "" && idx.urls[key] {
		return true
	}

	if key := fingerprint.NormalizeTitle(title); key != "" && idx.titles[key] {
		return true
	}

	return false
}

// MatchesCandidate applies Matches to a scored candidate.
func (idx *RecentIndex) MatchesCandidate(c *domain.ScoredCandidate) bool {
	return idx.Matches(c.ID, c.EventFingerprint, c.Title, c.Link())
}

// MatchesEntry applies Matches to a composed digest entry.
func (idx *RecentIndex) MatchesEntry(e *domain.DigestEntry) bool {
	url := e.CanonicalURL
	if url == "" {
		url = e.Citation()
	}

	return idx.Matches(e.ID, e.EventFingerprint, e.Title, url)
}

// PrioritizeFresh hard-filters recent duplicates from the candidate pool.
// When that would leave fewer than target candidates, the duplicates are
// appended at the tail as a capacity fallback so repeats are never silently
// preferred over fresh content.
func PrioritizeFresh(candidates []domain.ScoredCandidate, idx *RecentIndex, target int, logger *zerolog.Logger) []domain.ScoredCandidate {
	if len(candidates) == 0 || idx.Empty() {
		return candidates
	}

	fresh := make([]domain.ScoredCandidate, 0, len(candidates))

	var repeated []domain.ScoredCandidate

	for _, candidate := range candidates {
		if idx.MatchesCandidate(&candidate) {
			repeated = append(repeated, candidate)
			continue
		}

		fresh = append(fresh, candidate)
	}

	if len(repeated) > 0 {
		logger.Info().
			Int("repeated", len(repeated)).
			Int("fresh", len(fresh)).
			Msg("cross-day dedup removed repeated candidates")
		observability.RecentDuplicates.WithLabelValues("filtered").Add(float64(len(repeated)))
	}

	if len(fresh) >= target {
		return fresh
	}

	if len(repeated) > 0 {
		logger.Warn().
			Int("fresh", len(fresh)).
			Int("target", target).
			Msg("fresh pool below target, appending repeats as capacity fallback")
		observability.RecentDuplicates.WithLabelValues("tail_fallback").Add(float64(len(repeated)))
	}

	return append(fresh, repeated...)
}

// ReplaceRecentDuplicates swaps any composed entry that still duplicates
// recent history with a non-duplicate entry from the backing pool. When no
// replacement exists, the entry is dropped: fewer articles beat repeated
// content.
func ReplaceRecentDuplicates(entries, pool []domain.DigestEntry, idx *RecentIndex, logger *zerolog.Logger) []domain.DigestEntry {
	if len(entries) == 0 || idx.Empty() {
		return entries
	}

	used := make(map[string]bool, len(entries))
	for _, entry := range entries {
		used[entry.ID] = true
	}

	out := make([]domain.DigestEntry, 0, len(entries))

	replaced, dropped := 0, 0

	for _, current := range entries {
		if !idx.MatchesEntry(&current) {
			out = append(out, current)
			continue
		}

		swapped := false

		for _, candidate := range pool {
			if used[candidate.ID] || idx.MatchesEntry(&candidate) {
				continue
			}

			used[candidate.ID] = true
			out = append(out, candidate)
			replaced++
			swapped = true

			break
		}

		if !swapped {
			dropped++
		}
	}

	if replaced > 0 || dropped > 0 {
		logger.Info().Int("replaced", replaced).Int("dropped", dropped).Msg("cross-day dedup final pass")
		observability.RecentDuplicates.WithLabelValues("replaced").Add(float64(replaced))
		observability.RecentDuplicates.WithLabelValues("dropped").Add(float64(dropped))
	}

	return out
}
