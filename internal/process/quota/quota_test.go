package quota

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
)

func candidate(id, sourceID, tier, region string, score float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{
		RawCandidate: domain.RawCandidate{
			ID:         id,
			Title:      "title " + id,
			SourceID:   sourceID,
			SourceName: sourceID,
			URL:        "https://example.com/" + id,
			SourceTier: tier,
			Region:     region,
		},
		RankScore: score,
	}
}

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func TestSolveRegionSplit(t *testing.T) {
	var pool []domain.ScoredCandidate

	for i := 0; i < 12; i++ {
		pool = append(pool, candidate(fmt.Sprintf("d%d", i), fmt.Sprintf("src-d%d", i), domain.TierA, domain.RegionDomestic, float64(100-i)))
	}

	for i := 0; i < 8; i++ {
		pool = append(pool, candidate(fmt.Sprintf("i%d", i), fmt.Sprintf("src-i%d", i), domain.TierA, domain.RegionInternational, float64(90-i)))
	}

	solver := NewSolver(10, 0.6, 3, 0.7, testLogger())
	result := solver.Solve(pool)

	if len(result.Picked) != 10 {
		t.Fatalf("picked = %d, want 10", len(result.Picked))
	}

	domestic, intl := 0, 0

	for _, c := range result.Picked {
		if c.Region == domain.RegionDomestic {
			domestic++
		} else {
			intl++
		}
	}

	if domestic != 6 || intl != 4 {
		t.Errorf("split = %d/%d, want 6/4", domestic, intl)
	}
}

func TestSolveRegionSplitRoundsHalfToEven(t *testing.T) {
	var pool []domain.ScoredCandidate

	for i := 0; i < 10; i++ {
		pool = append(pool, candidate(fmt.Sprintf("d%d", i), fmt.Sprintf("src-d%d", i), domain.TierA, domain.RegionDomestic, float64(100-i)))
	}

	for i := 0; i < 10; i++ {
		pool = append(pool, candidate(fmt.Sprintf("i%d", i), fmt.Sprintf("src-i%d", i), domain.TierA, domain.RegionInternational, float64(90-i)))
	}

	// 10 * 0.45 = 4.5 rounds to the even 4, not away from zero to 5.
	solver := NewSolver(10, 0.45, 3, 0, testLogger())
	result := solver.Solve(pool)

	domestic := 0

	for _, c := range result.Picked {
		if c.Region == domain.RegionDomestic {
			domestic++
		}
	}

	if domestic != 4 {
		t.Errorf("domestic = %d, want 4", domestic)
	}
}

func TestSolveBackfillsShortRegion(t *testing.T) {
	pool := []domain.ScoredCandidate{
		candidate("d0", "src-d0", domain.TierA, domain.RegionDomestic, 95),
		candidate("i0", "src-i0", domain.TierA, domain.RegionInternational, 90),
		candidate("i1", "src-i1", domain.TierA, domain.RegionInternational, 88),
		candidate("i2", "src-i2", domain.TierA, domain.RegionInternational, 85),
	}

	solver := NewSolver(4, 0.6, 3, 0, testLogger())
	result := solver.Solve(pool)

	if len(result.Picked) != 4 {
		t.Fatalf("picked = %d, want 4 with backfill", len(result.Picked))
	}
}

func TestSolveShortPoolKeepsEverything(t *testing.T) {
	pool := []domain.ScoredCandidate{
		candidate("d0", "src-d0", domain.TierA, domain.RegionDomestic, 95),
		candidate("i0", "src-i0", domain.TierA, domain.RegionInternational, 90),
	}

	solver := NewSolver(10, 0.6, 3, 0, testLogger())
	result := solver.Solve(pool)

	if len(result.Picked) != 2 {
		t.Fatalf("picked = %d, want 2", len(result.Picked))
	}
}

func TestSourceCapSubstitution(t *testing.T) {
	pool := []domain.ScoredCandidate{
		candidate("a1", "hub", domain.TierA, domain.RegionDomestic, 99),
		candidate("a2", "hub", domain.TierA, domain.RegionDomestic, 98),
		candidate("a3", "hub", domain.TierA, domain.RegionDomestic, 97),
		candidate("a4", "hub", domain.TierA, domain.RegionDomestic, 96),
		candidate("b1", "other", domain.TierA, domain.RegionDomestic, 50),
	}

	solver := NewSolver(4, 1.0, 3, 0, testLogger())
	result := solver.Solve(pool)

	if result.SourceCapUnmet {
		t.Fatal("cap should be satisfiable with the pool")
	}

	counts := sourceCounts(result.Picked)
	if counts["hub"] > 3 {
		t.Errorf("hub count = %d, want <= 3", counts["hub"])
	}

	found := false

	for _, c := range result.Picked {
		if c.ID == "b1" {
			found = true
		}
	}

	if !found {
		t.Error("expected b1 substituted in for the over-cap source")
	}
}

func TestSourceCapTerminatesWithoutReplacements(t *testing.T) {
	pool := []domain.ScoredCandidate{
		candidate("a1", "hub", domain.TierA, domain.RegionDomestic, 99),
		candidate("a2", "hub", domain.TierA, domain.RegionDomestic, 98),
		candidate("a3", "hub", domain.TierA, domain.RegionDomestic, 97),
		candidate("a4", "hub", domain.TierA, domain.RegionDomestic, 96),
	}

	solver := NewSolver(4, 1.0, 3, 0, testLogger())
	result := solver.Solve(pool)

	if !result.SourceCapUnmet {
		t.Error("cap cannot be met, expected SourceCapUnmet")
	}

	if len(result.Picked) != 4 {
		t.Errorf("picked = %d, want all 4 kept despite unmet cap", len(result.Picked))
	}
}

func TestTierAMinimumSubstitution(t *testing.T) {
	pool := []domain.ScoredCandidate{
		candidate("c1", "s1", domain.TierC, domain.RegionDomestic, 95),
		candidate("c2", "s2", domain.TierC, domain.RegionDomestic, 94),
		candidate("c3", "s3", domain.TierC, domain.RegionDomestic, 93),
		candidate("c4", "s4", domain.TierC, domain.RegionDomestic, 92),
		candidate("a1", "s5", domain.TierA, domain.RegionDomestic, 60),
		candidate("a2", "s6", domain.TierA, domain.RegionDomestic, 59),
		candidate("a3", "s7", domain.TierA, domain.RegionDomestic, 58),
	}

	solver := NewSolver(4, 1.0, 3, 0.7, testLogger())
	result := solver.Solve(pool)

	if result.TierARatioUnmet {
		t.Fatal("tier-A minimum should be satisfiable with the pool")
	}

	if got := tierACount(result.Picked); got < 2 {
		t.Errorf("tier-A count = %d, want >= 2 of 4", got)
	}
}

func entry(id, sourceID, region, title string) domain.DigestEntry {
	return domain.DigestEntry{
		ID:         id,
		SourceID:   sourceID,
		SourceName: sourceID,
		Title:      title,
		Body:       "条目正文。",
		Citations:  []string{"https://example.com/" + id},
		SourceTier: domain.TierA,
		Region:     region,
	}
}

func TestEnforceEntriesTopsUpToTarget(t *testing.T) {
	entries := []domain.DigestEntry{entry("e1", "s1", domain.RegionDomestic, "民航条目一")}

	pool := []domain.DigestEntry{
		entry("e1", "s1", domain.RegionDomestic, "民航条目一"),
		entry("p1", "s2", domain.RegionDomestic, "民航条目二"),
		entry("p2", "s3", domain.RegionInternational, "民航条目三"),
	}

	solver := NewSolver(3, 0.6, 3, 0, testLogger())
	out := solver.EnforceEntries(entries, pool)

	if len(out) != 3 {
		t.Fatalf("entries = %d, want topped up to 3", len(out))
	}

	if out[0].ID != "e1" || out[1].ID != "p1" || out[2].ID != "p2" {
		t.Errorf("order = %s/%s/%s, want e1/p1/p2", out[0].ID, out[1].ID, out[2].ID)
	}
}

func TestEnforceEntriesSkipsUntranslatedPool(t *testing.T) {
	entries := []domain.DigestEntry{entry("e1", "s1", domain.RegionDomestic, "民航条目一")}

	pool := []domain.DigestEntry{
		entry("p1", "s2", domain.RegionDomestic, "English only headline"),
		entry("p2", "s3", domain.RegionDomestic, "民航条目二"),
	}

	solver := NewSolver(3, 0.6, 3, 0, testLogger())
	out := solver.EnforceEntries(entries, pool)

	if len(out) != 2 {
		t.Fatalf("entries = %d, want 2 (untranslated pool entry skipped)", len(out))
	}

	if out[1].ID != "p2" {
		t.Errorf("topped-up entry = %s, want p2", out[1].ID)
	}
}

func TestEnforceEntriesSourceCapSwap(t *testing.T) {
	entries := []domain.DigestEntry{
		entry("e1", "hub", domain.RegionDomestic, "民航条目一"),
		entry("e2", "hub", domain.RegionDomestic, "民航条目二"),
	}

	pool := []domain.DigestEntry{
		entry("e1", "hub", domain.RegionDomestic, "民航条目一"),
		entry("e2", "hub", domain.RegionDomestic, "民航条目二"),
		entry("p1", "other", domain.RegionDomestic, "民航条目三"),
	}

	solver := NewSolver(2, 1.0, 1, 0, testLogger())
	out := solver.EnforceEntries(entries, pool)

	if len(out) != 2 {
		t.Fatalf("entries = %d, want 2", len(out))
	}

	if out[0].ID != "e1" || out[1].ID != "p1" {
		t.Errorf("order = %s/%s, want e1/p1 after cap swap", out[0].ID, out[1].ID)
	}
}

func TestEnforceEntriesDedupesAndTruncates(t *testing.T) {
	entries := []domain.DigestEntry{
		entry("e1", "s1", domain.RegionDomestic, "民航条目一"),
		entry("e1", "s1", domain.RegionDomestic, "民航条目一"),
		entry("e2", "s2", domain.RegionDomestic, "民航条目二"),
		entry("e3", "s3", domain.RegionDomestic, "民航条目三"),
	}

	solver := NewSolver(2, 1.0, 3, 0, testLogger())
	out := solver.EnforceEntries(entries, nil)

	if len(out) != 2 {
		t.Fatalf("entries = %d, want 2", len(out))
	}

	if out[0].ID != "e1" || out[1].ID != "e2" {
		t.Errorf("order = %s/%s, want e1/e2", out[0].ID, out[1].ID)
	}
}

func TestTierAMinimumReportedUnmet(t *testing.T) {
	pool := []domain.ScoredCandidate{
		candidate("c1", "s1", domain.TierC, domain.RegionDomestic, 95),
		candidate("c2", "s2", domain.TierC, domain.RegionDomestic, 94),
		candidate("c3", "s3", domain.TierC, domain.RegionDomestic, 93),
	}

	solver := NewSolver(3, 1.0, 3, 0.7, testLogger())
	result := solver.Solve(pool)

	if !result.TierARatioUnmet {
		t.Error("no tier-A candidates available, expected TierARatioUnmet")
	}
}
