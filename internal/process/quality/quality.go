// Package quality is the final gate between a composed digest and
// publication. It scores the digest on five weighted dimensions, collects
// machine-readable reason codes for every defect, and either blocks the
// offending entries (enforced mode) or records an advisory verdict.
package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
	"github.com/wangwingzero/fly-podcast/internal/core/fingerprint"
	"github.com/wangwingzero/fly-podcast/internal/core/llm"
	"github.com/wangwingzero/fly-podcast/internal/core/scoring"
	"github.com/wangwingzero/fly-podcast/internal/platform/observability"
)

// Reason codes attached to quality reports.
const (
	ReasonMissingCitation   = "missing_citation"
	ReasonInvalidCitation   = "invalid_citation"
	ReasonRedirectCitation  = "redirect_citation"
	ReasonSensational       = "sensational_wording"
	ReasonSensitiveLowTier  = "sensitive_low_tier"
	ReasonSourceConflict    = "source_conflict"
	ReasonDuplicateEntry    = "duplicate_entry"
	ReasonSourceCapExceeded = "source_cap_exceeded"
	ReasonBelowThreshold    = "total_below_threshold"
	ReasonEditorialRemoved  = "editorial_removed"
)

// Total-score dimension weights.
const (
	weightFactual     = 0.30
	weightRelevance   = 0.35
	weightCitation    = 0.15
	weightTimeliness  = 0.10
	weightReadability = 0.10
)

// Per-entry factual deductions.
const (
	conflictPenalty    = 30
	sensationalPenalty = 20
)

const editorialSystemPrompt = "You are the final reviewer of a Chinese aviation news digest. " +
	"Flag entries that are unverifiable, promotional, or unfit to publish. " +
	"Respond with a JSON object only."

// Config tunes the gate's thresholds and policy.
type Config struct {
	Threshold             float64
	Enforced              bool
	MaxEntriesPerSource   int
	AllowRedirectCitation bool
	EditorialReview       bool
	SensationalWords      []string
	SensitiveKeywords     []string
}

// Gate evaluates composed digests. The completion client is optional and
// only used for the editorial review pass.
type Gate struct {
	cfg    Config
	client llm.Client
	logger *zerolog.Logger
}

// NewGate returns a quality gate.
func NewGate(cfg Config, client llm.Client, logger *zerolog.Logger) *Gate {
	return &Gate{cfg: cfg, client: client, logger: logger}
}

// Evaluate scores the digest and returns the verdict. The digest itself is
// not modified; Apply carries the verdict back onto it.
func (g *Gate) Evaluate(ctx context.Context, digest *domain.DailyDigest) *domain.QualityReport {
	report := &domain.QualityReport{Date: digest.Date, Decision: domain.DecisionAutoPublish}

	if len(digest.Entries) == 0 {
		report.Decision = domain.DecisionHold
		report.Reasons = append(report.Reasons, "empty_digest")
		observability.GateDecisions.WithLabelValues(report.Decision).Inc()

		return report
	}

	blocked := make(map[string]bool)
	seenFingerprints := make(map[string]bool)
	seenTitles := make(map[string]bool)
	sourceCounts := make(map[string]int)

	var factualSum, relevanceSum, citationSum, timelinessSum, readabilitySum float64

	for i := range digest.Entries {
		entry := &digest.Entries[i]
		result := g.checkEntry(entry, seenFingerprints, seenTitles, sourceCounts)

		for _, reason := range result.reasons {
			code := fmt.Sprintf("%s:%s", reason, entry.ID)
			report.Reasons = append(report.Reasons, code)
			observability.GateReasons.WithLabelValues(reason).Inc()
		}

		if result.blocked {
			blocked[entry.ID] = true
		}

		factualSum += result.factual
		relevanceSum += entry.Scores.Relevance
		citationSum += result.citation
		timelinessSum += entry.Scores.Timeliness
		readabilitySum += scoring.ReadabilityScore(entry.Conclusion, entry.Facts, entry.Body)
	}

	if g.cfg.EditorialReview && g.client != nil {
		for _, id := range g.editorialReview(ctx, digest) {
			if !blocked[id] {
				blocked[id] = true
				report.Reasons = append(report.Reasons, fmt.Sprintf("%s:%s", ReasonEditorialRemoved, id))
				observability.GateReasons.WithLabelValues(ReasonEditorialRemoved).Inc()
			}
		}
	}

	n := float64(len(digest.Entries))
	report.FactualScore = round2(factualSum / n)
	report.RelevanceScore = round2(relevanceSum / n)
	report.CitationScore = round2(citationSum / n)
	report.TimelinessScore = round2(timelinessSum / n)
	report.ReadabilityScore = round2(readabilitySum / n)
	report.TotalScore = round2(weightFactual*report.FactualScore +
		weightRelevance*report.RelevanceScore +
		weightCitation*report.CitationScore +
		weightTimeliness*report.TimelinessScore +
		weightReadability*report.ReadabilityScore)

	for id := range blocked {
		report.BlockedEntryIDs = append(report.BlockedEntryIDs, id)
	}

	if report.TotalScore < g.cfg.Threshold {
		report.Reasons = append(report.Reasons, ReasonBelowThreshold)
		report.Decision = domain.DecisionHold
	}

	if len(report.BlockedEntryIDs) > 0 && g.cfg.Enforced {
		report.Decision = domain.DecisionHold
	}

	observability.GateDecisions.WithLabelValues(report.Decision).Inc()

	return report
}

// Apply carries the verdict onto the digest. In enforced mode blocked
// entries are removed and the hold decision sticks; in advisory mode the
// digest publishes as composed and the verdict is informational.
func (g *Gate) Apply(digest *domain.DailyDigest, report *domain.QualityReport) {
	digest.TotalScore = report.TotalScore

	if len(digest.Entries) == 0 {
		digest.Decision = domain.DecisionHold
		return
	}

	if !g.cfg.Enforced {
		digest.Decision = domain.DecisionAutoPublish

		if report.Decision == domain.DecisionHold {
			g.logger.Warn().
				Float64("total_score", report.TotalScore).
				Strs("reasons", report.Reasons).
				Msg("quality gate would hold this digest (advisory mode)")
		}

		return
	}

	if len(report.BlockedEntryIDs) > 0 {
		blocked := make(map[string]bool, len(report.BlockedEntryIDs))
		for _, id := range report.BlockedEntryIDs {
			blocked[id] = true
		}

		kept := digest.Entries[:0]

		for _, entry := range digest.Entries {
			if blocked[entry.ID] {
				g.logger.Warn().Str("id", entry.ID).Msg("entry blocked by quality gate")
				continue
			}

			kept = append(kept, entry)
		}

		digest.Entries = kept
		digest.ArticleCount = len(kept)
	}

	digest.Decision = report.Decision
}

type entryResult struct {
	factual  float64
	citation float64
	reasons  []string
	blocked  bool
}

func (g *Gate) checkEntry(entry *domain.DigestEntry, seenFingerprints, seenTitles map[string]bool, sourceCounts map[string]int) entryResult {
	result := entryResult{factual: 100, citation: 100}

	citation := entry.Citation()

	switch {
	case citation == "":
		result.citation = 0
		result.blocked = true
		result.reasons = append(result.reasons, ReasonMissingCitation)
	case !strings.HasPrefix(citation, "http://") && !strings.HasPrefix(citation, "https://"):
		result.citation = 0
		result.blocked = true
		result.reasons = append(result.reasons, ReasonInvalidCitation)
	case fingerprint.IsUnresolvedRedirect(citation):
		if g.cfg.AllowRedirectCitation {
			result.citation = 50
			result.reasons = append(result.reasons, ReasonRedirectCitation)
		} else {
			result.citation = 0
			result.blocked = true
			result.reasons = append(result.reasons, ReasonRedirectCitation)
		}
	}

	// Sensational wording is judged on the headline surface only; sensitive
	// topics anywhere in the entry require a tier-A source.
	if containsAny(entry.Title+" "+entry.Conclusion, g.cfg.SensationalWords) {
		result.factual -= sensationalPenalty
		result.reasons = append(result.reasons, ReasonSensational)
	}

	sensitiveText := entry.Title + " " + entry.Body + " " + strings.Join(entry.Facts, " ")

	if entry.SourceTier != domain.TierA && containsAny(sensitiveText, g.cfg.SensitiveKeywords) {
		result.blocked = true
		result.reasons = append(result.reasons, ReasonSensitiveLowTier)
	}

	if scoring.HasSourceConflict(entry) {
		result.factual -= conflictPenalty
		result.reasons = append(result.reasons, ReasonSourceConflict)
	}

	fp := entry.EventFingerprint
	if fp == "" {
		fp = fingerprint.Fingerprint(entry.Title)
	}

	titleKey := fingerprint.NormalizeTitle(entry.Title)

	if seenFingerprints[fp] || seenTitles[titleKey] {
		result.blocked = true
		result.reasons = append(result.reasons, ReasonDuplicateEntry)
	}

	seenFingerprints[fp] = true
	seenTitles[titleKey] = true

	sourceCounts[entry.SourceKey()]++
	if g.cfg.MaxEntriesPerSource > 0 && sourceCounts[entry.SourceKey()] > g.cfg.MaxEntriesPerSource {
		result.blocked = true
		result.reasons = append(result.reasons, ReasonSourceCapExceeded)
	}

	if result.factual < 0 {
		result.factual = 0
	}

	return result
}

// editorialReview asks the model for entry IDs to remove. Any failure keeps
// the digest unchanged; the review can only remove entries, never rewrite
// them.
func (g *Gate) editorialReview(ctx context.Context, digest *domain.DailyDigest) []string {
	var b strings.Builder

	b.WriteString("Review the digest entries below. Respond with {\"remove\": [\"<id>\", ...]} listing only entries unfit to publish. An empty list means the digest is fine.\n\n")

	for i := range digest.Entries {
		entry := &digest.Entries[i]
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", entry.ID, entry.Title, entry.Body)
	}

	resp, err := g.client.CompleteJSON(ctx, llm.Request{
		SystemPrompt: editorialSystemPrompt,
		UserPrompt:   b.String(),
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("editorial review failed, keeping digest unchanged")
		return nil
	}

	known := make(map[string]bool, len(digest.Entries))
	for i := range digest.Entries {
		known[digest.Entries[i].ID] = true
	}

	raw, ok := resp.Payload["remove"].([]any)
	if !ok {
		return nil
	}

	var ids []string

	for _, v := range raw {
		if id, ok := v.(string); ok && known[id] {
			ids = append(ids, id)
		}
	}

	return ids
}

func containsAny(text string, words []string) bool {
	lower := strings.ToLower(text)

	for _, word := range words {
		if word != "" && strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}

	return false
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
