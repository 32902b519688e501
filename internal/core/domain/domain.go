// Package domain holds the typed records that flow through the curation
// pipeline. Records are validated once at the ingestion boundary and are
// treated as immutable afterwards.
package domain

import (
	"strings"
	"time"
)

// Source tiers, in decreasing editorial trust.
const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
)

// Regions recognized by the quota solver.
const (
	RegionDomestic      = "domestic"
	RegionInternational = "international"
)

// Quality gate decisions.
const (
	DecisionAutoPublish = "auto_publish"
	DecisionHold        = "hold"
)

// RawCandidate is one ingested article before scoring. Ingestion has already
// deduplicated candidates against its own global seen-set; the pipeline's
// fingerprint dedup operates on the day's ranked pool.
type RawCandidate struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	SourceID         string `json:"source_id"`
	SourceName       string `json:"source_name"`
	URL              string `json:"url"`
	CanonicalURL     string `json:"canonical_url"`
	PublisherDomain  string `json:"publisher_domain"`
	SourceTier       string `json:"source_tier"`
	Region           string `json:"region"`
	PublishedAt      string `json:"published_at"`
	RawText          string `json:"raw_text"`
	ImageURL         string `json:"image_url,omitempty"`
	EventFingerprint string `json:"event_fingerprint"`
}

// Link returns the best URL for citation purposes.
func (c *RawCandidate) Link() string {
	if c.CanonicalURL != "" {
		return c.CanonicalURL
	}

	return c.URL
}

// SourceKey identifies the source for concentration caps.
func (c *RawCandidate) SourceKey() string {
	if c.SourceID != "" {
		return c.SourceID
	}

	return c.SourceName
}

// Validate reports whether a raw candidate carries the fields the pipeline
// cannot work without. Invalid candidates are skipped with a log, never fatal.
func (c *RawCandidate) Validate() bool {
	if strings.TrimSpace(c.Title) == "" {
		return false
	}

	link := strings.TrimSpace(c.Link())

	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}

// ScoredCandidate is a RawCandidate with deterministic sub-scores attached.
type ScoredCandidate struct {
	RawCandidate

	Relevance  float64 `json:"relevance"`
	Authority  float64 `json:"authority"`
	Timeliness float64 `json:"timeliness"`
	RankScore  float64 `json:"rank_score"`
}

// SelectionResult is the ordered, duplicate-free list of candidate IDs kept
// by Phase 1. It is always a subset of the input pool.
type SelectionResult struct {
	IDs []string `json:"ids"`
}

// ScoreBreakdown carries the per-entry quality sub-scores.
type ScoreBreakdown struct {
	Factual     float64 `json:"factual"`
	Relevance   float64 `json:"relevance"`
	Authority   float64 `json:"authority"`
	Timeliness  float64 `json:"timeliness"`
	Readability float64 `json:"readability"`
	Total       float64 `json:"total"`
}

// DigestEntry is one publishable article composed from a scored candidate.
// An entry without a citation is invalid and never survives the pipeline.
type DigestEntry struct {
	ID               string         `json:"id"`
	SourceID         string         `json:"source_id"`
	SourceName       string         `json:"source_name"`
	Title            string         `json:"title"`
	Conclusion       string         `json:"conclusion"`
	Body             string         `json:"body"`
	Facts            []string       `json:"facts"`
	Citations        []string       `json:"citations"`
	SourceTier       string         `json:"source_tier"`
	Region           string         `json:"region"`
	Scores           ScoreBreakdown `json:"score_breakdown"`
	URL              string         `json:"url"`
	CanonicalURL     string         `json:"canonical_url"`
	PublisherDomain  string         `json:"publisher_domain"`
	EventFingerprint string         `json:"event_fingerprint"`
	PublishedAt      string         `json:"published_at"`
	ImageURL         string         `json:"image_url"`
	ComposedBy       string         `json:"composed_by"`
}

// Citation returns the first citation URL or an empty string.
func (e *DigestEntry) Citation() string {
	if len(e.Citations) == 0 {
		return ""
	}

	return e.Citations[0]
}

// SourceKey identifies the entry's source for concentration caps.
func (e *DigestEntry) SourceKey() string {
	if e.SourceID != "" {
		return e.SourceID
	}

	return e.SourceName
}

// DailyDigest is the publishable output of one pipeline run.
type DailyDigest struct {
	Date         string        `json:"date"`
	ArticleCount int           `json:"article_count"`
	Entries      []DigestEntry `json:"entries"`
	TotalScore   float64       `json:"total_score"`
	Decision     string        `json:"decision"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// QualityReport is the quality gate's verdict over a composed digest.
type QualityReport struct {
	Date             string   `json:"date"`
	TotalScore       float64  `json:"total_score"`
	FactualScore     float64  `json:"factual_score"`
	RelevanceScore   float64  `json:"relevance_score"`
	CitationScore    float64  `json:"citation_score"`
	TimelinessScore  float64  `json:"timeliness_score"`
	ReadabilityScore float64  `json:"readability_score"`
	Decision         string   `json:"decision"`
	Reasons          []string `json:"reasons"`
	BlockedEntryIDs  []string `json:"blocked_entry_ids"`
}

// PublishedEntry is the minimal record kept per published article for
// cross-day deduplication.
type PublishedEntry struct {
	Title            string `json:"title"`
	URL              string `json:"url"`
	ID               string `json:"id"`
	EventFingerprint string `json:"event_fingerprint"`
}

// RecentPublishedIndex is the rolling map of published entries keyed by day,
// capped at a configured number of days.
type RecentPublishedIndex struct {
	Days map[string][]PublishedEntry `json:"days"`
}

// Flatten returns all entries across days in no particular order.
func (idx *RecentPublishedIndex) Flatten() []PublishedEntry {
	if idx == nil || len(idx.Days) == 0 {
		return nil
	}

	var out []PublishedEntry
	for _, entries := range idx.Days {
		out = append(out, entries...)
	}

	return out
}
