// Package pipeline wires the daily curation stages together: rank scores
// and filters the raw pool, compose selects and writes the digest, verify
// gates it for publication. Each stage persists its snapshot so the stages
// can run together or individually against the same data directory.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
	apperrors "github.com/wangwingzero/fly-podcast/internal/core/errors"
	"github.com/wangwingzero/fly-podcast/internal/core/fingerprint"
	"github.com/wangwingzero/fly-podcast/internal/core/llm"
	"github.com/wangwingzero/fly-podcast/internal/core/scoring"
	"github.com/wangwingzero/fly-podcast/internal/platform/config"
	"github.com/wangwingzero/fly-podcast/internal/platform/observability"
	"github.com/wangwingzero/fly-podcast/internal/process/compose"
	"github.com/wangwingzero/fly-podcast/internal/process/dedup"
	"github.com/wangwingzero/fly-podcast/internal/process/quality"
	"github.com/wangwingzero/fly-podcast/internal/process/quota"
	"github.com/wangwingzero/fly-podcast/internal/storage"
)

// Ranked pool sizing floors.
const (
	poolMultiplier = 3
	poolFloor      = 25
)

// Selection pool sizing and the composition call budget. Selection sees a
// wider slice than the digest needs; composition spends at most a few model
// calls beyond the target as a buffer for downstream drops.
const (
	selectionPoolMultiplier = 4
	selectionPoolFloor      = 40
	composeSlack            = 4
)

// Selection modes recorded per compose run.
const (
	selectionModeLLM      = "llm"
	selectionModeFallback = "fallback"
)

// Pipeline runs the daily digest stages against one store.
type Pipeline struct {
	cfg      *config.Config
	keywords *config.Keywords
	store    *storage.Store
	scorer   *scoring.Scorer
	solver   *quota.Solver
	selector *compose.Selector
	composer *compose.Composer
	gate     *quality.Gate
	logger   *zerolog.Logger
	now      func() time.Time
}

// New assembles a pipeline. client and enricher may be nil; the pipeline
// then runs fully deterministic.
func New(cfg *config.Config, keywords *config.Keywords, store *storage.Store, client llm.Client, enricher compose.Enricher, logger *zerolog.Logger) *Pipeline {
	composer := compose.NewComposer(client, enricher, compose.Options{
		Workers:         cfg.ComposeWorkers,
		Retries:         cfg.ComposeRetries,
		Timeout:         cfg.ComposeTimeout,
		MinPublishScore: cfg.MinPublishScore,
		ThinThreshold:   thinThreshold(cfg),
	}, logger)

	gate := quality.NewGate(quality.Config{
		Threshold:             cfg.QualityThreshold,
		Enforced:              cfg.QualityGateEnforced,
		MaxEntriesPerSource:   cfg.MaxEntriesPerSource,
		AllowRedirectCitation: cfg.AllowRedirectCitation,
		EditorialReview:       cfg.EditorialReviewEnabled,
		SensationalWords:      keywords.SensationalWords,
		SensitiveKeywords:     keywords.SensitiveKeywords,
	}, client, logger)

	return &Pipeline{
		cfg:      cfg,
		keywords: keywords,
		store:    store,
		scorer:   scoring.NewScorer(keywords.RelevanceKeywords, keywords.SignalKeywords, keywords.AggregatorPrefixes),
		solver:   quota.NewSolver(cfg.TargetArticleCount, cfg.DomesticRatio, cfg.MaxEntriesPerSource, cfg.MinTierARatio, logger),
		selector: compose.NewSelector(client, logger),
		composer: composer,
		gate:     gate,
		logger:   logger,
		now:      time.Now,
	}
}

func thinThreshold(cfg *config.Config) int {
	if !cfg.ThinContentEnrichment {
		return 0
	}

	return cfg.ThinContentThreshold
}

// WithClock overrides the pipeline clock for tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes rank, compose, and verify in sequence for the given day.
func (p *Pipeline) Run(ctx context.Context, day string) error {
	if _, err := p.Rank(ctx, day); err != nil {
		return fmt.Errorf("rank stage: %w", err)
	}

	if _, err := p.Compose(ctx, day); err != nil {
		return fmt.Errorf("compose stage: %w", err)
	}

	if _, err := p.Verify(ctx, day); err != nil {
		return fmt.Errorf("verify stage: %w", err)
	}

	return nil
}

// Rank loads the day's raw candidates, filters and scores them, removes
// intra-day and cross-day duplicates, and persists the ranked pool.
func (p *Pipeline) Rank(_ context.Context, day string) (*storage.RankedSnapshot, error) {
	raw, err := p.store.LoadRawCandidates(day)
	if err != nil {
		return nil, fmt.Errorf("load raw candidates: %w", err)
	}

	now := p.now()

	scored := make([]domain.ScoredCandidate, 0, len(raw))

	for _, candidate := range raw {
		reason, ok := p.admit(&candidate, now)
		if !ok {
			p.logger.Debug().Str("id", candidate.ID).Str("reason", reason).Msg("candidate dropped before scoring")
			observability.CandidatesDropped.WithLabelValues(reason).Inc()

			continue
		}

		if candidate.ID == "" {
			candidate.ID = uuid.NewString()
		}

		scored = append(scored, p.scorer.Score(candidate))
		observability.CandidatesScored.Inc()
	}

	// Sorting by score then ID keeps identical inputs producing identical
	// snapshots.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RankScore != scored[j].RankScore {
			return scored[i].RankScore > scored[j].RankScore
		}

		return scored[i].ID < scored[j].ID
	})

	scored = dedup.IntraDay(scored)

	recent, err := p.store.LoadRecentPublished()
	if err != nil {
		return nil, fmt.Errorf("load recent published: %w", err)
	}

	scored = dedup.PrioritizeFresh(scored, dedup.NewRecentIndex(recent.Flatten()), p.cfg.TargetArticleCount, p.logger)

	if limit := poolCap(p.cfg.TargetArticleCount); len(scored) > limit {
		scored = scored[:limit]
	}

	snapshot := &storage.RankedSnapshot{
		Date:     day,
		RunID:    uuid.NewString(),
		Articles: scored,
		Meta: map[string]any{
			"raw_count":    len(raw),
			"ranked_count": len(scored),
		},
	}

	if err := p.store.SaveRanked(day, snapshot); err != nil {
		return nil, fmt.Errorf("save ranked snapshot: %w", err)
	}

	p.logger.Info().
		Str("day", day).
		Str("run_id", snapshot.RunID).
		Int("raw", len(raw)).
		Int("ranked", len(scored)).
		Msg("rank stage finished")

	return snapshot, nil
}

// admit applies the pre-scoring filters: validity, blocked domains, and the
// maximum article age.
func (p *Pipeline) admit(candidate *domain.RawCandidate, now time.Time) (string, bool) {
	if !candidate.Validate() {
		return "invalid", false
	}

	if p.isBlockedDomain(candidate.Link()) {
		return "blocked_domain", false
	}

	if p.cfg.MaxArticleAgeHours > 0 && candidate.PublishedAt != "" {
		if published, err := dateparse.ParseAny(candidate.PublishedAt); err == nil {
			if now.Sub(published) > time.Duration(p.cfg.MaxArticleAgeHours)*time.Hour {
				return "stale", false
			}
		}
	}

	return "", true
}

func (p *Pipeline) isBlockedDomain(link string) bool {
	domainName := fingerprint.Domain(link)
	if domainName == "" {
		return false
	}

	for _, blocked := range p.keywords.BlockedDomains {
		if domainName == blocked || strings.HasSuffix(domainName, "."+blocked) {
			return true
		}
	}

	return false
}

// Compose reads the ranked pool, picks the day's articles, and writes the
// digest. Selection prefers the model's editorial judgment but always falls
// back to the quota-balanced order.
func (p *Pipeline) Compose(ctx context.Context, day string) (*storage.ComposedSnapshot, error) {
	ranked, err := p.store.LoadRanked(day)
	if err != nil {
		return nil, fmt.Errorf("load ranked snapshot: %w", err)
	}

	recent, err := p.store.LoadRecentPublished()
	if err != nil {
		return nil, fmt.Errorf("load recent published: %w", err)
	}

	pool := ranked.Articles
	if limit := selectionPoolCap(p.cfg.TargetArticleCount); len(pool) > limit {
		pool = pool[:limit]
	}

	balanced := p.solver.Solve(pool)

	selected, mode := p.selectCandidates(ctx, pool, balanced.Picked, recent.Flatten())
	observability.SelectionMode.WithLabelValues(mode).Inc()

	if limit := p.cfg.TargetArticleCount + composeSlack; len(selected) > limit {
		selected = selected[:limit]
	}

	// The rules pool backs every post-compose substitution: constraint
	// enforcement, top-up, and cross-day dedup replacement.
	poolEntries := p.composer.RulesPool(pool)

	entries := p.composer.Compose(ctx, selected, p.cfg.TargetArticleCount)
	entries = p.solver.EnforceEntries(entries, poolEntries)

	recentIdx := dedup.NewRecentIndex(recent.Flatten())
	entries = dedup.ReplaceRecentDuplicates(entries, poolEntries, recentIdx, p.logger)

	if len(entries) > p.cfg.TargetArticleCount {
		entries = entries[:p.cfg.TargetArticleCount]
	}

	snapshot := &storage.ComposedSnapshot{
		DailyDigest: domain.DailyDigest{
			Date:         day,
			ArticleCount: len(entries),
			Entries:      entries,
			GeneratedAt:  p.now(),
		},
		Meta: map[string]any{
			"run_id":         ranked.RunID,
			"selection_mode": mode,
			"pool_size":      len(pool),
		},
	}

	if err := p.store.SaveComposed(day, snapshot); err != nil {
		return nil, fmt.Errorf("save composed snapshot: %w", err)
	}

	observability.DigestEntries.Set(float64(len(entries)))

	p.logger.Info().
		Str("day", day).
		Str("selection_mode", mode).
		Int("entries", len(entries)).
		Msg("compose stage finished")

	return snapshot, nil
}

// selectCandidates runs phase 1 and maps the returned IDs back onto the
// pool. Any selection failure falls back to the quota-balanced order.
func (p *Pipeline) selectCandidates(ctx context.Context, pool, balanced []domain.ScoredCandidate, recent []domain.PublishedEntry) ([]domain.ScoredCandidate, string) {
	ids, err := p.selector.Select(ctx, pool, recent, p.cfg.TargetArticleCount)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrLLMNotConfigured) {
			p.logger.Warn().Err(err).Msg("selection failed, using quota-balanced order")
		}

		return balanced, selectionModeFallback
	}

	byID := make(map[string]domain.ScoredCandidate, len(pool))
	for _, candidate := range pool {
		byID[candidate.ID] = candidate
	}

	selected := make([]domain.ScoredCandidate, 0, len(ids))
	for _, id := range ids {
		selected = append(selected, byID[id])
	}

	return selected, selectionModeLLM
}

// Verify gates the composed digest, persists the verdict, and records the
// published entries into the rolling history on publication.
func (p *Pipeline) Verify(ctx context.Context, day string) (*domain.QualityReport, error) {
	composed, err := p.store.LoadComposed(day)
	if err != nil {
		return nil, fmt.Errorf("load composed snapshot: %w", err)
	}

	report := p.gate.Evaluate(ctx, &composed.DailyDigest)
	p.gate.Apply(&composed.DailyDigest, report)

	if err := p.store.SaveQualityReport(day, report); err != nil {
		return nil, fmt.Errorf("save quality report: %w", err)
	}

	if err := p.store.SaveComposed(day, composed); err != nil {
		return nil, fmt.Errorf("save gated snapshot: %w", err)
	}

	observability.DigestTotalScore.Set(report.TotalScore)

	if composed.Decision == domain.DecisionAutoPublish && len(composed.Entries) > 0 {
		published := make([]domain.PublishedEntry, 0, len(composed.Entries))

		for i := range composed.Entries {
			entry := &composed.Entries[i]
			published = append(published, domain.PublishedEntry{
				ID:               entry.ID,
				Title:            entry.Title,
				URL:              entry.Citation(),
				EventFingerprint: entry.EventFingerprint,
			})
		}

		if err := p.store.AppendRecentPublished(day, published, p.cfg.RecentHistoryDays); err != nil {
			return nil, fmt.Errorf("append recent published: %w", err)
		}
	}

	p.logger.Info().
		Str("day", day).
		Str("decision", report.Decision).
		Float64("total_score", report.TotalScore).
		Int("entries", len(composed.Entries)).
		Msg("verify stage finished")

	return report, nil
}

func poolCap(target int) int {
	if limit := target * poolMultiplier; limit > poolFloor {
		return limit
	}

	return poolFloor
}

func selectionPoolCap(target int) int {
	if limit := target * selectionPoolMultiplier; limit > selectionPoolFloor {
		return limit
	}

	return selectionPoolFloor
}
