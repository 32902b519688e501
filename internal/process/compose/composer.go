package compose

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
	apperrors "github.com/wangwingzero/fly-podcast/internal/core/errors"
	"github.com/wangwingzero/fly-podcast/internal/core/llm"
	"github.com/wangwingzero/fly-podcast/internal/platform/observability"
)

// Composition strategies, recorded per produced entry.
const (
	StrategyLLM       = "llm"
	StrategyTranslate = "llm_translate"
	StrategyRules     = "rules"
)

const (
	composeSystemPrompt = "You are a senior aviation news editor writing for a Chinese audience. " +
		"You write faithful, concise digest entries in Simplified Chinese, strictly grounded in the " +
		"provided article. Never invent facts. Respond with a JSON object only."

	translateSystemPrompt = "You translate and condense news articles into Simplified Chinese. " +
		"Respond with a JSON object only."

	defaultSelfScore = 7
	fallbackScore    = 3
	selfScoreMax     = 10
	bodyRuneLimit    = 500
	rulesFactsMax    = 3
)

var cjkPattern = regexp.MustCompile(`\p{Han}`)

// Enricher fetches the candidate's article page and fills in what ingestion
// missed: full text for thin candidates and the page's lead image.
type Enricher interface {
	Enrich(ctx context.Context, c *domain.ScoredCandidate) error
}

// Options tunes the composer's worker pool and strategy thresholds.
type Options struct {
	Workers         int
	Retries         int
	Timeout         time.Duration
	MinPublishScore int
	ThinThreshold   int
}

// Composed pairs a digest entry with the model's self-assessed publish score
// on a 1-10 scale. Deterministic strategies report a fixed low score.
type Composed struct {
	Entry     domain.DigestEntry
	SelfScore int
}

// Composer runs phase 2: writing one digest entry per selected candidate.
type Composer struct {
	client   llm.Client
	enricher Enricher
	opts     Options
	logger   *zerolog.Logger
}

// NewComposer returns a composer. client and enricher may be nil; without a
// client every entry is produced by the rules strategy.
func NewComposer(client llm.Client, enricher Enricher, opts Options, logger *zerolog.Logger) *Composer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	return &Composer{client: client, enricher: enricher, opts: opts, logger: logger}
}

// Compose writes entries for the selected candidates. Entries scoring below
// the publish threshold are held back rather than discarded; when the
// accepted set falls short of target, held entries are appended in score
// order until the digest is full. Output preserves selection order;
// candidates that fail every strategy are dropped, never published
// half-written.
func (c *Composer) Compose(ctx context.Context, selected []domain.ScoredCandidate, target int) []domain.DigestEntry {
	composed := c.composeAll(ctx, selected)

	entries := make([]domain.DigestEntry, 0, len(composed))

	var held []*Composed

	for _, item := range composed {
		if item == nil {
			continue
		}

		if item.SelfScore < c.opts.MinPublishScore {
			c.logger.Info().
				Str("id", item.Entry.ID).
				Int("self_score", item.SelfScore).
				Int("min_publish_score", c.opts.MinPublishScore).
				Msg("low-score entry held back")

			held = append(held, item)

			continue
		}

		entries = append(entries, item.Entry)
	}

	if len(entries) < target && len(held) > 0 {
		sort.SliceStable(held, func(i, j int) bool { return held[i].SelfScore > held[j].SelfScore })

		for _, item := range held {
			if len(entries) >= target {
				break
			}

			c.logger.Info().
				Str("id", item.Entry.ID).
				Int("self_score", item.SelfScore).
				Msg("held-back entry used to fill the digest")

			entries = append(entries, item.Entry)
		}
	}

	return entries
}

// RulesPool writes a deterministic entry for every candidate. The result
// backs the post-compose constraint and dedup passes, which substitute pool
// entries without spending model calls.
func (c *Composer) RulesPool(candidates []domain.ScoredCandidate) []domain.DigestEntry {
	entries := make([]domain.DigestEntry, 0, len(candidates))

	for _, candidate := range candidates {
		entries = append(entries, rulesEntry(candidate).Entry)
	}

	return entries
}

// composeAll fans the candidates out over the worker pool and reassembles
// results in input order.
func (c *Composer) composeAll(ctx context.Context, candidates []domain.ScoredCandidate) []*Composed {
	results := make([]*Composed, len(candidates))
	jobs := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < c.opts.Workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				results[i] = c.composeOne(ctx, candidates[i])
			}
		}()
	}

	for i := range candidates {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
	}

	close(jobs)
	wg.Wait()

	return results
}

// composeOne walks the strategy chain for a single candidate and applies the
// language review to whatever the chain produced.
func (c *Composer) composeOne(ctx context.Context, candidate domain.ScoredCandidate) *Composed {
	c.enrichIfThin(ctx, &candidate)

	item := c.composeStructured(ctx, candidate)
	if item == nil {
		item = c.composeTranslate(ctx, candidate)
	}

	if item == nil {
		item = c.composeRules(candidate)
	}

	return c.reviewLanguage(ctx, candidate, item)
}

func (c *Composer) enrichIfThin(ctx context.Context, candidate *domain.ScoredCandidate) {
	if c.enricher == nil || c.opts.ThinThreshold <= 0 {
		return
	}

	if len([]rune(candidate.RawText)) >= c.opts.ThinThreshold {
		return
	}

	if err := c.enricher.Enrich(ctx, candidate); err != nil {
		c.logger.Debug().Err(err).Str("id", candidate.ID).Msg("thin candidate enrichment failed")
	}
}

func (c *Composer) composeStructured(ctx context.Context, candidate domain.ScoredCandidate) *Composed {
	if c.client == nil {
		return nil
	}

	resp, err := c.client.CompleteJSON(ctx, llm.Request{
		SystemPrompt: composeSystemPrompt,
		UserPrompt:   buildComposePrompt(candidate),
		Retries:      c.opts.Retries,
		Timeout:      c.opts.Timeout,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("id", candidate.ID).Msg("structured composition failed")
		return nil
	}

	item, err := entryFromPayload(resp.Payload, candidate)
	if err != nil {
		c.logger.Warn().Err(err).Str("id", candidate.ID).Msg("structured composition payload rejected")
		return nil
	}

	if reason, ok := resp.Payload["score_reason"].(string); ok && reason != "" {
		c.logger.Debug().
			Str("id", candidate.ID).
			Int("self_score", item.SelfScore).
			Str("score_reason", reason).
			Msg("structured composition scored")
	}

	item.Entry.ComposedBy = StrategyLLM
	observability.ComposeStrategy.WithLabelValues(StrategyLLM).Inc()

	return item
}

// composeTranslate is the degraded model path: a short translate-and-condense
// request instead of full structured composition.
func (c *Composer) composeTranslate(ctx context.Context, candidate domain.ScoredCandidate) *Composed {
	if c.client == nil {
		return nil
	}

	prompt := fmt.Sprintf(
		"Translate the title and summarize the article in at most two sentences of Simplified Chinese.\n"+
			"Respond with {\"title\": \"...\", \"body\": \"...\"}.\n\ntitle: %s\n\narticle:\n%s\n",
		candidate.Title, truncate(candidate.RawText, 1500))

	resp, err := c.client.CompleteJSON(ctx, llm.Request{
		SystemPrompt: translateSystemPrompt,
		UserPrompt:   prompt,
		Retries:      c.opts.Retries,
		Timeout:      c.opts.Timeout,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("id", candidate.ID).Msg("translate composition failed")
		return nil
	}

	title, _ := resp.Payload["title"].(string)
	body, _ := resp.Payload["body"].(string)

	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return nil
	}

	entry := baseEntry(candidate)
	entry.Title = strings.TrimSpace(title)
	entry.Body = strings.TrimSpace(body)
	entry.Conclusion = firstSentence(entry.Body)
	entry.ComposedBy = StrategyTranslate

	observability.ComposeStrategy.WithLabelValues(StrategyTranslate).Inc()

	return &Composed{Entry: entry, SelfScore: fallbackScore}
}

// composeRules is the deterministic last resort. It never fails.
func (c *Composer) composeRules(candidate domain.ScoredCandidate) *Composed {
	observability.ComposeStrategy.WithLabelValues(StrategyRules).Inc()

	return rulesEntry(candidate)
}

func rulesEntry(candidate domain.ScoredCandidate) *Composed {
	entry := baseEntry(candidate)
	entry.Title = cleanTitle(candidate.Title)
	entry.Body = truncate(candidate.RawText, bodyRuneLimit)

	if entry.Body == "" {
		entry.Body = entry.Title
	}

	entry.Conclusion = firstSentence(entry.Body)
	entry.Facts = splitFacts(candidate.RawText, rulesFactsMax)
	entry.ComposedBy = StrategyRules

	return &Composed{Entry: entry, SelfScore: fallbackScore}
}

// reviewLanguage verifies the composed body is actually in Chinese. A body
// without any Han characters gets one translate retry; if that also fails
// the entry is dropped.
func (c *Composer) reviewLanguage(ctx context.Context, candidate domain.ScoredCandidate, item *Composed) *Composed {
	if item == nil || cjkPattern.MatchString(item.Entry.Body) {
		return item
	}

	if item.Entry.ComposedBy != StrategyTranslate {
		if retried := c.composeTranslate(ctx, candidate); retried != nil && cjkPattern.MatchString(retried.Entry.Body) {
			c.logger.Info().Str("id", candidate.ID).Msg("entry re-translated after language review")
			return retried
		}
	}

	c.logger.Warn().Str("id", candidate.ID).Str("strategy", item.Entry.ComposedBy).Msg("entry dropped by language review")
	observability.CandidatesDropped.WithLabelValues("language_review").Inc()

	return nil
}

func buildComposePrompt(candidate domain.ScoredCandidate) string {
	var b strings.Builder

	b.WriteString("Compose one digest entry in Simplified Chinese from the article below.\n")
	b.WriteString("Respond with a JSON object:\n")
	b.WriteString(`{"title": "...", "conclusion": "one-sentence takeaway", "facts": ["2-3 key facts"], ` +
		`"body": "80-150 character summary", "score": 1-10, "score_reason": "..."}` + "\n")
	b.WriteString("score is your own publishability assessment: 10 = strong verified news, 1 = unusable.\n")
	b.WriteString("Keep airline, manufacturer, and aircraft type names in English.\n")
	b.WriteString("Use only information present in the article.\n\n")

	fmt.Fprintf(&b, "title: %s\nsource: %s (tier %s)\npublished: %s\nurl: %s\n\narticle:\n%s\n",
		candidate.Title, candidate.SourceName, candidate.SourceTier,
		candidate.PublishedAt, candidate.Link(), truncate(candidate.RawText, 4000))

	return b.String()
}

// entryFromPayload validates the structured composition payload. Empty title
// or body rejects the payload so the chain can fall through.
func entryFromPayload(payload map[string]any, candidate domain.ScoredCandidate) (*Composed, error) {
	title, _ := payload["title"].(string)
	body, _ := payload["body"].(string)

	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return nil, apperrors.ErrCompositionEmpty
	}

	entry := baseEntry(candidate)
	entry.Title = strings.TrimSpace(title)
	entry.Body = strings.TrimSpace(body)

	if conclusion, ok := payload["conclusion"].(string); ok && strings.TrimSpace(conclusion) != "" {
		entry.Conclusion = strings.TrimSpace(conclusion)
	} else {
		entry.Conclusion = firstSentence(entry.Body)
	}

	if rawFacts, ok := payload["facts"].([]any); ok {
		for _, raw := range rawFacts {
			if fact, ok := raw.(string); ok && strings.TrimSpace(fact) != "" {
				entry.Facts = append(entry.Facts, strings.TrimSpace(fact))
			}
		}
	}

	score := defaultSelfScore
	if raw, ok := payload["score"].(float64); ok && raw >= 1 && raw <= selfScoreMax {
		score = int(raw)
	}

	return &Composed{Entry: entry, SelfScore: score}, nil
}

// baseEntry carries the candidate's identity and citation into a new entry.
func baseEntry(candidate domain.ScoredCandidate) domain.DigestEntry {
	return domain.DigestEntry{
		ID:               candidate.ID,
		SourceID:         candidate.SourceID,
		SourceName:       candidate.SourceName,
		Citations:        []string{candidate.Link()},
		SourceTier:       candidate.SourceTier,
		Region:           candidate.Region,
		URL:              candidate.URL,
		CanonicalURL:     candidate.CanonicalURL,
		PublisherDomain:  candidate.PublisherDomain,
		EventFingerprint: candidate.EventFingerprint,
		PublishedAt:      candidate.PublishedAt,
		ImageURL:         candidate.ImageURL,
		Scores: domain.ScoreBreakdown{
			Relevance:  candidate.Relevance,
			Authority:  candidate.Authority,
			Timeliness: candidate.Timeliness,
		},
	}
}
