package links

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
	"github.com/wangwingzero/fly-podcast/internal/core/fingerprint"
)

// extractedRuneLimit caps how much article text enrichment keeps.
const extractedRuneLimit = 4000

// Enricher fetches a candidate's article page and extracts its text.
type Enricher struct {
	fetcher *Fetcher
	logger  *zerolog.Logger
}

// NewEnricher returns an enricher backed by the given fetcher.
func NewEnricher(fetcher *Fetcher, logger *zerolog.Logger) *Enricher {
	return &Enricher{fetcher: fetcher, logger: logger}
}

// Enrich downloads the candidate's page and fills in the candidate's text
// and lead image. The text is only replaced when extraction produced more
// than ingestion did; an already-set image is kept. Unresolved aggregator
// redirect links are skipped: fetching them yields a consent page, not the
// article.
func (e *Enricher) Enrich(ctx context.Context, c *domain.ScoredCandidate) error {
	link := c.Link()

	if fingerprint.IsUnresolvedRedirect(link) {
		return fmt.Errorf("unresolved redirect link: %s", link)
	}

	body, err := e.fetcher.Fetch(ctx, link)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", link, err)
	}

	content := ExtractContent(body, link, extractedRuneLimit)

	if len([]rune(content.Text)) > len([]rune(c.RawText)) {
		c.RawText = content.Text
	}

	if c.ImageURL == "" {
		c.ImageURL = content.ImageURL
	}

	e.logger.Debug().
		Str("id", c.ID).
		Str("url", link).
		Int("extracted_runes", len([]rune(content.Text))).
		Str("image_url", c.ImageURL).
		Msg("candidate enriched from article page")

	return nil
}
