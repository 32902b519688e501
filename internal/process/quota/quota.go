// Package quota balances a selected candidate set against region ratio,
// per-source concentration, and tier-A minimum constraints. Constraints are
// enforced by substitution from a backing pool, never by resizing the
// output.
package quota

import (
	"math"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
)

// swapGuard bounds the substitution loops against cyclic swaps.
const swapGuard = 100

// Solver picks and balances candidates from a rank-sorted pool.
type Solver struct {
	total         int
	domesticRatio float64
	maxPerSource  int
	minTierARatio float64
	logger        *zerolog.Logger
}

// Result reports which constraints could not be met with the available pool.
type Result struct {
	Picked          []domain.ScoredCandidate
	SourceCapUnmet  bool
	TierARatioUnmet bool
}

// NewSolver creates a solver for the given constraints.
func NewSolver(total int, domesticRatio float64, maxPerSource int, minTierARatio float64, logger *zerolog.Logger) *Solver {
	return &Solver{
		total:         total,
		domesticRatio: domesticRatio,
		maxPerSource:  maxPerSource,
		minTierARatio: minTierARatio,
		logger:        logger,
	}
}

// Solve builds a balanced selection of up to s.total candidates from the
// rank-sorted, deduplicated pool.
func (s *Solver) Solve(pool []domain.ScoredCandidate) Result {
	picked := s.pickByRegion(pool, s.total)
	picked, capOK := s.enforceSourceCap(picked, pool)
	picked, tierOK := s.enforceTierAMinimum(picked, pool)

	if !capOK {
		s.logger.Warn().Int("max_per_source", s.maxPerSource).Msg("source concentration cap left unmet")
	}

	if !tierOK {
		s.logger.Warn().Float64("min_tier_a_ratio", s.minTierARatio).Msg("tier-A minimum ratio left unmet")
	}

	return Result{Picked: picked, SourceCapUnmet: !capOK, TierARatioUnmet: !tierOK}
}

// pickByRegion concatenates the domestic-first then international slices of
// the ranked pool, backfilling in score order when a region runs short.
func (s *Solver) pickByRegion(pool []domain.ScoredCandidate, total int) []domain.ScoredCandidate {
	// Half-to-even rounding keeps borderline ratios like 10*0.45 from
	// systematically favoring the domestic side.
	domesticQuota := int(math.RoundToEven(float64(total) * s.domesticRatio))
	intlQuota := total - domesticQuota

	var domestic, intl []domain.ScoredCandidate

	for _, candidate := range pool {
		if candidate.Region == domain.RegionDomestic {
			domestic = append(domestic, candidate)
		} else {
			intl = append(intl, candidate)
		}
	}

	chosen := make([]domain.ScoredCandidate, 0, total)
	chosen = append(chosen, head(domestic, domesticQuota)...)
	chosen = append(chosen, head(intl, intlQuota)...)

	if len(chosen) < total {
		used := idSet(chosen)

		for _, candidate := range pool {
			if len(chosen) >= total {
				break
			}

			if !used[candidate.ID] {
				chosen = append(chosen, candidate)
				used[candidate.ID] = true
			}
		}
	}

	if len(chosen) > total {
		chosen = chosen[:total]
	}

	return chosen
}

// enforceSourceCap swaps the lowest-priority entry of the most over-cap
// source for the best ranked pool candidate from a different, non-capped
// source, preferring one that preserves region balance. Bounded iterations
// guard against cyclic swaps; an unmet cap is reported, not fatal.
func (s *Solver) enforceSourceCap(picked, pool []domain.ScoredCandidate) ([]domain.ScoredCandidate, bool) {
	if s.maxPerSource <= 0 {
		return picked, true
	}

	out := append([]domain.ScoredCandidate(nil), picked...)
	used := idSet(out)

	for guard := 0; guard < swapGuard; guard++ {
		counts := sourceCounts(out)

		overKey := ""
		for key, count := range counts {
			if count > s.maxPerSource && (overKey == "" || count > counts[overKey]) {
				overKey = key
			}
		}

		if overKey == "" {
			return out, true
		}

		victimIdx := -1
		for i := len(out) - 1; i >= 0; i-- {
			if out[i].SourceKey() == overKey {
				victimIdx = i
				break
			}
		}

		if victimIdx < 0 {
			return out, true
		}

		replacement := s.findCapReplacement(pool, used, counts, overKey, out[victimIdx].Region, true)
		if replacement == nil {
			replacement = s.findCapReplacement(pool, used, counts, overKey, "", false)
		}

		if replacement == nil {
			return out, false
		}

		delete(used, out[victimIdx].ID)
		out[victimIdx] = *replacement
		used[replacement.ID] = true
	}

	return out, false
}

func (s *Solver) findCapReplacement(pool []domain.ScoredCandidate, used map[string]bool, counts map[string]int, overKey, region string, matchRegion bool) *domain.ScoredCandidate {
	for i := range pool {
		candidate := pool[i]

		if used[candidate.ID] || candidate.SourceKey() == overKey {
			continue
		}

		if counts[candidate.SourceKey()] >= s.maxPerSource {
			continue
		}

		if matchRegion && candidate.Region != region {
			continue
		}

		return &candidate
	}

	return nil
}

// enforceTierAMinimum swaps the lowest-priority non-A entry for an available
// tier-A pool candidate until the ratio is met or tier-A candidates run out.
func (s *Solver) enforceTierAMinimum(picked, pool []domain.ScoredCandidate) ([]domain.ScoredCandidate, bool) {
	if s.minTierARatio <= 0 || len(picked) == 0 {
		return picked, true
	}

	out := append([]domain.ScoredCandidate(nil), picked...)
	used := idSet(out)

	required := int(float64(len(out)) * s.minTierARatio)
	current := tierACount(out)

	for guard := 0; guard < swapGuard && current < required; guard++ {
		replacement := (*domain.ScoredCandidate)(nil)

		for i := range pool {
			candidate := pool[i]
			if candidate.SourceTier == domain.TierA && !used[candidate.ID] {
				replacement = &candidate
				break
			}
		}

		if replacement == nil {
			return out, false
		}

		victimIdx := -1
		for i := len(out) - 1; i >= 0; i-- {
			if out[i].SourceTier != domain.TierA {
				victimIdx = i
				break
			}
		}

		if victimIdx < 0 {
			return out, true
		}

		delete(used, out[victimIdx].ID)
		out[victimIdx] = *replacement
		used[replacement.ID] = true
		current++
	}

	return out, current >= required
}

// cjkTitlePattern guards entry substitutions: an untranslated pool entry
// must never displace a composed Chinese one.
var cjkTitlePattern = regexp.MustCompile(`\p{Han}`)

// EnforceEntries re-applies the region and source constraints to composed
// digest entries and tops the digest up to the target size from the backing
// pool. The pool is filtered to Chinese-titled entries first; the digest is
// never grown past the target.
func (s *Solver) EnforceEntries(entries, pool []domain.DigestEntry) []domain.DigestEntry {
	usable := make([]domain.DigestEntry, 0, len(pool))

	for _, entry := range pool {
		if !cjkTitlePattern.MatchString(entry.Title) {
			continue
		}

		if s.domesticRatio <= 0 && entry.Region == domain.RegionDomestic {
			continue
		}

		usable = append(usable, entry)
	}

	used := make(map[string]bool, len(entries))
	uniq := make([]domain.DigestEntry, 0, len(entries))

	for _, entry := range entries {
		if used[entry.ID] {
			continue
		}

		if s.domesticRatio <= 0 && entry.Region == domain.RegionDomestic {
			continue
		}

		used[entry.ID] = true
		uniq = append(uniq, entry)
	}

	out := uniq
	if len(out) > s.total {
		out = out[:s.total]
	}

	for _, entry := range usable {
		if len(out) >= s.total {
			break
		}

		if used[entry.ID] {
			continue
		}

		used[entry.ID] = true
		out = append(out, entry)

		s.logger.Info().Str("id", entry.ID).Msg("digest topped up from backing pool")
	}

	if s.maxPerSource > 0 {
		out = s.enforceEntrySourceCap(out, usable, used)
	}

	return out
}

// enforceEntrySourceCap mirrors the candidate-level cap: the last entry of
// the most over-cap source is swapped for an unused pool entry from a
// different, non-capped source.
func (s *Solver) enforceEntrySourceCap(out, pool []domain.DigestEntry, used map[string]bool) []domain.DigestEntry {
	for guard := 0; guard < swapGuard; guard++ {
		counts := entrySourceCounts(out)

		overKey := ""
		for key, count := range counts {
			if count > s.maxPerSource && (overKey == "" || count > counts[overKey]) {
				overKey = key
			}
		}

		if overKey == "" {
			return out
		}

		victimIdx := -1
		for i := len(out) - 1; i >= 0; i-- {
			if out[i].SourceKey() == overKey {
				victimIdx = i
				break
			}
		}

		var replacement *domain.DigestEntry

		for i := range pool {
			entry := pool[i]

			if used[entry.ID] || entry.SourceKey() == overKey {
				continue
			}

			if counts[entry.SourceKey()] >= s.maxPerSource {
				continue
			}

			replacement = &entry

			break
		}

		if victimIdx < 0 || replacement == nil {
			s.logger.Warn().Int("max_per_source", s.maxPerSource).Msg("entry source cap left unmet")
			return out
		}

		delete(used, out[victimIdx].ID)
		out[victimIdx] = *replacement
		used[replacement.ID] = true
	}

	return out
}

func entrySourceCounts(entries []domain.DigestEntry) map[string]int {
	counts := make(map[string]int, len(entries))
	for _, entry := range entries {
		counts[entry.SourceKey()]++
	}

	return counts
}

func head(candidates []domain.ScoredCandidate, n int) []domain.ScoredCandidate {
	if n <= 0 {
		return nil
	}

	if len(candidates) > n {
		return candidates[:n]
	}

	return candidates
}

func idSet(candidates []domain.ScoredCandidate) map[string]bool {
	set := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		set[c.ID] = true
	}

	return set
}

func sourceCounts(candidates []domain.ScoredCandidate) map[string]int {
	counts := make(map[string]int, len(candidates))
	for _, c := range candidates {
		counts[c.SourceKey()]++
	}

	return counts
}

func tierACount(candidates []domain.ScoredCandidate) int {
	count := 0

	for _, c := range candidates {
		if c.SourceTier == domain.TierA {
			count++
		}
	}

	return count
}
