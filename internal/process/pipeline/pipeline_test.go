package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
	"github.com/wangwingzero/fly-podcast/internal/core/llm"
	"github.com/wangwingzero/fly-podcast/internal/platform/config"
	"github.com/wangwingzero/fly-podcast/internal/storage"
)

const testDay = "2026-08-30"

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		TargetArticleCount:  3,
		DomesticRatio:       0.6,
		MinTierARatio:       0,
		QualityThreshold:    50,
		MaxEntriesPerSource: 3,
		MaxArticleAgeHours:  72,
		RecentHistoryDays:   7,
		MinPublishScore:     4,
		ComposeWorkers:      1,
	}
}

func testKeywords() *config.Keywords {
	return &config.Keywords{
		RelevanceKeywords:  []string{"aviation", "民航", "航空"},
		AggregatorPrefixes: []string{"google_"},
		SensationalWords:   []string{"震惊"},
		SensitiveKeywords:  []string{"事故遇难"},
		BlockedDomains:     []string{"spam.example"},
	}
}

func rawCandidate(id string, region string, hoursOld int) domain.RawCandidate {
	return domain.RawCandidate{
		ID:          id,
		Title:       "航空动态 " + id,
		SourceID:    "src-" + id,
		SourceName:  "Source " + id,
		URL:         "https://example.com/news/" + id,
		SourceTier:  domain.TierA,
		Region:      region,
		PublishedAt: testNow.Add(-time.Duration(hoursOld) * time.Hour).Format(time.RFC3339),
		RawText:     "民航局发布关于 " + id + " 的最新通告，相关航空公司已经确认将按要求执行。",
	}
}

func newTestPipeline(t *testing.T, client llm.Client) (*Pipeline, *storage.Store) {
	t.Helper()
	return newTestPipelineWithConfig(t, testConfig(), client)
}

func newTestPipelineWithConfig(t *testing.T, cfg *config.Config, client llm.Client) (*Pipeline, *storage.Store) {
	t.Helper()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	logger := zerolog.Nop()
	p := New(cfg, testKeywords(), store, client, nil, &logger).WithClock(func() time.Time { return testNow })

	return p, store
}

func seedRaw(t *testing.T, store *storage.Store, candidates []domain.RawCandidate) {
	t.Helper()
	require.NoError(t, store.SaveRawCandidates(testDay, candidates))
}

func TestRankFiltersScoresAndSorts(t *testing.T) {
	p, store := newTestPipeline(t, nil)

	candidates := []domain.RawCandidate{
		rawCandidate("a", domain.RegionDomestic, 3),
		rawCandidate("b", domain.RegionDomestic, 100), // beyond max age
		rawCandidate("c", domain.RegionInternational, 5),
		{ID: "d", Title: "", URL: "https://example.com/d"}, // invalid
		{
			ID: "e", Title: "spam entry", URL: "https://spam.example/e",
			SourceID: "src-e", SourceTier: domain.TierC, Region: domain.RegionDomestic,
		}, // blocked domain
	}

	seedRaw(t, store, candidates)

	snapshot, err := p.Rank(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, snapshot.Articles, 2)

	ids := []string{snapshot.Articles[0].ID, snapshot.Articles[1].ID}
	require.ElementsMatch(t, []string{"a", "c"}, ids)

	for _, article := range snapshot.Articles {
		require.Greater(t, article.RankScore, 0.0)
	}

	loaded, err := store.LoadRanked(testDay)
	require.NoError(t, err)
	require.Equal(t, snapshot.RunID, loaded.RunID)
}

func TestRankDeterministic(t *testing.T) {
	p, store := newTestPipeline(t, nil)

	candidates := []domain.RawCandidate{
		rawCandidate("b", domain.RegionDomestic, 3),
		rawCandidate("a", domain.RegionDomestic, 3),
		rawCandidate("c", domain.RegionInternational, 3),
	}
	seedRaw(t, store, candidates)

	first, err := p.Rank(context.Background(), testDay)
	require.NoError(t, err)

	second, err := p.Rank(context.Background(), testDay)
	require.NoError(t, err)

	require.Equal(t, first.Articles, second.Articles)
}

func TestFullRunWithoutLLM(t *testing.T) {
	p, store := newTestPipeline(t, nil)

	seedRaw(t, store, []domain.RawCandidate{
		rawCandidate("a", domain.RegionDomestic, 2),
		rawCandidate("b", domain.RegionDomestic, 4),
		rawCandidate("c", domain.RegionInternational, 6),
		rawCandidate("d", domain.RegionInternational, 8),
	})

	require.NoError(t, p.Run(context.Background(), testDay))

	composed, err := store.LoadComposed(testDay)
	require.NoError(t, err)
	require.Equal(t, "fallback", composed.Meta["selection_mode"])
	require.Len(t, composed.Entries, 3)
	require.Equal(t, domain.DecisionAutoPublish, composed.Decision)

	for _, entry := range composed.Entries {
		require.NotEmpty(t, entry.Citations)
		require.Equal(t, "rules", entry.ComposedBy)
	}

	report, err := store.LoadQualityReport(testDay)
	require.NoError(t, err)
	require.Equal(t, domain.DecisionAutoPublish, report.Decision)

	recent, err := store.LoadRecentPublished()
	require.NoError(t, err)
	require.Len(t, recent.Days[testDay], 3)
}

func TestFullRunWithScriptedLLM(t *testing.T) {
	composeResponse := func(title string) *llm.Response {
		return &llm.Response{Payload: map[string]any{
			"title":      title,
			"conclusion": "结论句。",
			"facts":      []any{"事实一的完整描述", "事实二的完整描述"},
			"body":       "这是由模型撰写的完整摘要正文，覆盖了事件的关键信息。",
			"score":      float64(5),
		}}
	}

	client := &llm.MockClient{Responses: []*llm.Response{
		{Payload: map[string]any{"entries": []any{
			map[string]any{"ref_id": "b"},
			map[string]any{"ref_id": "a"},
		}}},
		composeResponse("模型条目一"),
		composeResponse("模型条目二"),
	}}

	p, store := newTestPipeline(t, client)

	seedRaw(t, store, []domain.RawCandidate{
		rawCandidate("a", domain.RegionDomestic, 2),
		rawCandidate("b", domain.RegionDomestic, 4),
		rawCandidate("c", domain.RegionInternational, 6),
	})

	require.NoError(t, p.Run(context.Background(), testDay))

	composed, err := store.LoadComposed(testDay)
	require.NoError(t, err)
	require.Equal(t, "llm", composed.Meta["selection_mode"])

	// The model picked two of three; the digest is topped up to target from
	// the rules pool.
	require.Len(t, composed.Entries, 3)
	require.Equal(t, "b", composed.Entries[0].ID)
	require.Equal(t, "a", composed.Entries[1].ID)
	require.Equal(t, "c", composed.Entries[2].ID)
	require.Equal(t, "llm", composed.Entries[0].ComposedBy)
	require.Equal(t, "rules", composed.Entries[2].ComposedBy)
}

func TestSecondDayFiltersPublished(t *testing.T) {
	p, store := newTestPipeline(t, nil)

	seedRaw(t, store, []domain.RawCandidate{
		rawCandidate("a", domain.RegionDomestic, 2),
		rawCandidate("b", domain.RegionDomestic, 4),
		rawCandidate("c", domain.RegionInternational, 6),
		rawCandidate("d", domain.RegionInternational, 8),
	})

	require.NoError(t, p.Run(context.Background(), testDay))

	// Next day's pool repeats two published articles plus fresh ones.
	nextDay := "2026-08-31"
	repeats := []domain.RawCandidate{
		rawCandidate("a", domain.RegionDomestic, 2),
		rawCandidate("b", domain.RegionDomestic, 4),
		rawCandidate("x", domain.RegionDomestic, 3),
		rawCandidate("y", domain.RegionInternational, 5),
		rawCandidate("z", domain.RegionInternational, 7),
	}
	require.NoError(t, store.SaveRawCandidates(nextDay, repeats))

	snapshot, err := p.Rank(context.Background(), nextDay)
	require.NoError(t, err)

	for _, article := range snapshot.Articles {
		require.NotContains(t, []string{"a", "b"}, article.ID,
			"published candidate %s must be filtered with enough fresh ones available", article.ID)
	}
}

func TestComposeReplacesRecentDuplicateFromPool(t *testing.T) {
	// Phase 1 picks only a repeat of yesterday's coverage. The final dedup
	// pass drops it, and the digest is filled with fresh entries from the
	// rules pool instead of going out empty.
	client := &llm.MockClient{Responses: []*llm.Response{
		{Payload: map[string]any{"entries": []any{map[string]any{"ref_id": "p1"}}}},
		{Payload: map[string]any{
			"title":      "重复条目",
			"conclusion": "结论句。",
			"body":       "昨天已经发布过的事件摘要正文。",
			"score":      float64(5),
		}},
	}}

	p, store := newTestPipeline(t, client)

	require.NoError(t, store.AppendRecentPublished("2026-08-29", []domain.PublishedEntry{{
		ID:    "p1",
		Title: "航空动态 p1",
		URL:   "https://example.com/news/p1",
	}}, 7))

	seedRaw(t, store, []domain.RawCandidate{
		rawCandidate("p1", domain.RegionDomestic, 2),
		rawCandidate("n1", domain.RegionDomestic, 4),
		rawCandidate("n2", domain.RegionInternational, 6),
	})

	_, err := p.Rank(context.Background(), testDay)
	require.NoError(t, err)

	composed, err := p.Compose(context.Background(), testDay)
	require.NoError(t, err)

	require.Len(t, composed.Entries, 2)

	ids := []string{composed.Entries[0].ID, composed.Entries[1].ID}
	require.ElementsMatch(t, []string{"n1", "n2"}, ids)
	require.NotContains(t, ids, "p1")
}

func TestComposeEnforcesSourceCapAfterSelection(t *testing.T) {
	// The model concentrates its picks on one source; the constraint pass
	// swaps the overflow for a pool entry from another source.
	composeResponse := func(title string) *llm.Response {
		return &llm.Response{Payload: map[string]any{
			"title": title,
			"body":  "由模型撰写的完整中文摘要正文。",
			"score": float64(5),
		}}
	}

	client := &llm.MockClient{Responses: []*llm.Response{
		{Payload: map[string]any{"entries": []any{
			map[string]any{"ref_id": "a1"},
			map[string]any{"ref_id": "a2"},
		}}},
		composeResponse("条目一"),
		composeResponse("条目二"),
	}}

	cfg := testConfig()
	cfg.TargetArticleCount = 2
	cfg.MaxEntriesPerSource = 1

	p, store := newTestPipelineWithConfig(t, cfg, client)

	sameSource := func(id string, region string, hoursOld int) domain.RawCandidate {
		candidate := rawCandidate(id, region, hoursOld)
		candidate.SourceID = "src-wire"

		return candidate
	}

	seedRaw(t, store, []domain.RawCandidate{
		sameSource("a1", domain.RegionDomestic, 2),
		sameSource("a2", domain.RegionDomestic, 4),
		rawCandidate("b1", domain.RegionInternational, 6),
	})

	_, err := p.Rank(context.Background(), testDay)
	require.NoError(t, err)

	composed, err := p.Compose(context.Background(), testDay)
	require.NoError(t, err)

	require.Len(t, composed.Entries, 2)
	require.Equal(t, "a1", composed.Entries[0].ID)
	require.Equal(t, "b1", composed.Entries[1].ID)
	require.Equal(t, "rules", composed.Entries[1].ComposedBy)
}

func TestComposeWithEmptyPool(t *testing.T) {
	p, store := newTestPipeline(t, nil)
	seedRaw(t, store, nil)

	require.NoError(t, p.Run(context.Background(), testDay))

	composed, err := store.LoadComposed(testDay)
	require.NoError(t, err)
	require.Empty(t, composed.Entries)
	require.Equal(t, domain.DecisionHold, composed.Decision)
}

func TestPoolCap(t *testing.T) {
	p, store := newTestPipeline(t, nil)

	var candidates []domain.RawCandidate
	for i := 0; i < 40; i++ {
		candidates = append(candidates, rawCandidate(fmt.Sprintf("c%02d", i), domain.RegionDomestic, 3))
	}

	seedRaw(t, store, candidates)

	snapshot, err := p.Rank(context.Background(), testDay)
	require.NoError(t, err)
	require.LessOrEqual(t, len(snapshot.Articles), 25)
}
