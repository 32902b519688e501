// Package scoring computes the deterministic sub-scores behind candidate
// ranking and digest quality. Everything here is reproducible for the same
// inputs; the clock is injected for testability.
package scoring

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
	"github.com/wangwingzero/fly-podcast/internal/core/fingerprint"
)

// Rank weights. They sum to 1.
const (
	relevanceWeight  = 0.65
	authorityWeight  = 0.20
	timelinessWeight = 0.15
)

// redirectPenalty is subtracted when the candidate URL is an unresolved
// aggregator redirect with no independently verifiable original source.
const redirectPenalty = 15.0

// aggregatorAuthorityCap limits authority for machine-aggregated sources
// whose content origin cannot be independently verified.
const aggregatorAuthorityCap = 80.0

const (
	relevanceHitValue = 15.0
	relevanceHitCap   = 90.0
	relevanceLenBonus = 10.0
	relevanceLenGate  = 180
)

var tierTable = map[string]float64{
	domain.TierA: 100.0,
	domain.TierB: 80.0,
	domain.TierC: 60.0,
}

const tierDefault = 50.0

// TierScore maps a source tier to its authority score.
func TierScore(tier string) float64 {
	if score, ok := tierTable[strings.ToUpper(strings.TrimSpace(tier))]; ok {
		return score
	}

	return tierDefault
}

// RecencyScore maps article age to a timeliness score with a step function.
// Unparsable timestamps score the floor value.
func RecencyScore(publishedAt string, now time.Time) float64 {
	published, err := dateparse.ParseAny(strings.TrimSpace(publishedAt))
	if err != nil || publishedAt == "" {
		return 40.0
	}

	age := now.Sub(published)

	switch {
	case age <= 12*time.Hour:
		return 100.0
	case age <= 24*time.Hour:
		return 90.0
	case age <= 48*time.Hour:
		return 75.0
	case age <= 4*24*time.Hour:
		return 60.0
	default:
		return 40.0
	}
}

// RelevanceScore converts keyword hit counts into a 0-100 relevance score,
// with a small bonus for substantial text. The length gate counts runes so
// Chinese articles are measured the same way as English ones.
func RelevanceScore(text string, keywordHits int) float64 {
	base := math.Min(float64(keywordHits)*relevanceHitValue, relevanceHitCap)
	if utf8.RuneCountInString(text) > relevanceLenGate {
		base += relevanceLenBonus
	}

	return math.Min(base, 100.0)
}

// KeywordHits counts how many keywords appear in the text (case-insensitive).
func KeywordHits(text string, keywords []string) int {
	lower := strings.ToLower(text)
	hits := 0

	for _, word := range keywords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" && strings.Contains(lower, word) {
			hits++
		}
	}

	return hits
}

// ReadabilityScore rewards a present conclusion, a 2-3 item fact list, and a
// non-empty body.
func ReadabilityScore(conclusion string, facts []string, body string) float64 {
	points := 0.0

	if strings.TrimSpace(conclusion) != "" {
		points += 40.0
	}

	switch {
	case len(facts) >= 2 && len(facts) <= 3:
		points += 30.0
	case len(facts) > 0:
		points += 10.0
	}

	if strings.TrimSpace(body) != "" {
		points += 30.0
	}

	return math.Min(points, 100.0)
}

// WeightedQuality combines the per-entry sub-scores into the quality total.
func WeightedQuality(factual, relevance, authority, timeliness, readability float64) float64 {
	return round2(factual*0.35 + relevance*0.25 + authority*0.20 + timeliness*0.10 + readability*0.10)
}

// antonymPairs is the fixed list used for source-conflict detection: a title
// asserting one side while the facts assert the other marks the entry.
var antonymPairs = [][2]string{
	{"increase", "decrease"},
	{"approved", "rejected"},
	{"resumed", "suspended"},
	{"盈利", "亏损"},
	{"复飞", "停飞"},
}

// HasSourceConflict reports whether the entry's title and facts assert
// opposite claims from the antonym pair list.
func HasSourceConflict(entry *domain.DigestEntry) bool {
	title := strings.ToLower(entry.Title)
	facts := strings.ToLower(strings.Join(entry.Facts, " "))

	for _, pair := range antonymPairs {
		a, b := pair[0], pair[1]
		if strings.Contains(title, a) && strings.Contains(facts, b) {
			return true
		}

		if strings.Contains(title, b) && strings.Contains(facts, a) {
			return true
		}
	}

	return false
}

// Scorer ranks raw candidates against two keyword sets: the broad relevance
// list and the narrower signal list. Both contribute to the hit count, so a
// candidate matching signal terms is boosted above topical-only matches.
type Scorer struct {
	keywords           []string
	signalKeywords     []string
	aggregatorPrefixes []string
	now                func() time.Time
}

// NewScorer creates a scorer for the given keyword lists.
// aggregatorPrefixes marks source IDs whose authority is capped.
func NewScorer(keywords, signalKeywords, aggregatorPrefixes []string) *Scorer {
	return &Scorer{
		keywords:           keywords,
		signalKeywords:     signalKeywords,
		aggregatorPrefixes: aggregatorPrefixes,
		now:                time.Now,
	}
}

// WithClock overrides the scorer's clock. Used in tests.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now

	return s
}

func (s *Scorer) isAggregator(sourceID string) bool {
	for _, prefix := range s.aggregatorPrefixes {
		if prefix != "" && strings.HasPrefix(sourceID, prefix) {
			return true
		}
	}

	return false
}

// Score computes the sub-scores and composite rank score for one candidate.
func (s *Scorer) Score(candidate domain.RawCandidate) domain.ScoredCandidate {
	text := candidate.Title + " " + candidate.RawText
	hits := KeywordHits(text, s.keywords) + KeywordHits(text, s.signalKeywords)

	relevance := RelevanceScore(text, hits)

	authority := TierScore(candidate.SourceTier)
	if s.isAggregator(candidate.SourceID) {
		authority = math.Min(authority, aggregatorAuthorityCap)
	}

	timeliness := RecencyScore(candidate.PublishedAt, s.now())

	penalty := 0.0
	if fingerprint.IsUnresolvedRedirect(candidate.Link()) {
		penalty = redirectPenalty
	}

	rank := round2(relevance*relevanceWeight + authority*authorityWeight + timeliness*timelinessWeight - penalty)

	return domain.ScoredCandidate{
		RawCandidate: candidate,
		Relevance:    relevance,
		Authority:    authority,
		Timeliness:   timeliness,
		RankScore:    rank,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
