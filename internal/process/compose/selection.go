// Package compose turns scored candidates into publishable digest entries.
// Selection (phase 1) asks the model which candidates to keep; composition
// (phase 2) writes each kept entry. Every model output is validated against
// the input pool, and a deterministic rules path guarantees the digest is
// produced even with the model fully unavailable.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
	apperrors "github.com/wangwingzero/fly-podcast/internal/core/errors"
	"github.com/wangwingzero/fly-podcast/internal/core/llm"
)

const (
	selectionSystemPrompt = "You are the chief editor of a daily aviation news digest. " +
		"You pick the most newsworthy, non-overlapping articles for today's issue. " +
		"Respond with a JSON object only."

	candidateExcerptLimit = 300
	recentTitlesLimit     = 60

	// selectionBuffer over-requests candidates so downstream score filtering
	// and language review can drop entries without under-filling the digest.
	selectionBuffer = 2
)

// Selector runs phase 1: choosing which candidates make today's digest.
type Selector struct {
	client llm.Client
	logger *zerolog.Logger
}

// NewSelector returns a selector backed by the given completion client.
func NewSelector(client llm.Client, logger *zerolog.Logger) *Selector {
	return &Selector{client: client, logger: logger}
}

// Select asks the model to pick candidates from pool, avoiding anything
// resembling the recently published list. It requests double the target so
// downstream drops still leave a full digest; the returned IDs are always a
// validated, order-preserving, duplicate-free subset of pool.
func (s *Selector) Select(ctx context.Context, pool []domain.ScoredCandidate, recent []domain.PublishedEntry, target int) ([]string, error) {
	if s.client == nil {
		return nil, apperrors.ErrLLMNotConfigured
	}

	requested := target * selectionBuffer

	resp, err := s.client.CompleteJSON(ctx, llm.Request{
		SystemPrompt: selectionSystemPrompt,
		UserPrompt:   buildSelectionPrompt(pool, recent, target, requested),
	})
	if err != nil {
		return nil, fmt.Errorf("selection completion: %w", err)
	}

	ids, err := parseSelectedIDs(resp.Payload)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(pool))
	for _, c := range pool {
		known[c.ID] = true
	}

	seen := make(map[string]bool, len(ids))
	valid := make([]string, 0, len(ids))

	for _, id := range ids {
		if !known[id] {
			s.logger.Warn().Str("ref_id", id).Msg("selection returned unknown candidate id, skipping")
			continue
		}

		if seen[id] {
			continue
		}

		seen[id] = true
		valid = append(valid, id)

		if len(valid) >= requested {
			break
		}
	}

	if len(valid) == 0 {
		return nil, apperrors.ErrSelectionInsufficient
	}

	return valid, nil
}

// parseSelectedIDs accepts the documented {"entries":[{"ref_id":...}]} shape
// and the {"selected_ids":[...]} shape some models produce instead.
func parseSelectedIDs(payload map[string]any) ([]string, error) {
	if entries, ok := payload["entries"].([]any); ok {
		var ids []string

		for _, raw := range entries {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			if id, ok := entry["ref_id"].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}

		return ids, nil
	}

	if raw, ok := payload["selected_ids"].([]any); ok {
		var ids []string

		for _, v := range raw {
			if id, ok := v.(string); ok && id != "" {
				ids = append(ids, id)
			}
		}

		return ids, nil
	}

	return nil, apperrors.ErrSelectionMissingEntries
}

func buildSelectionPrompt(pool []domain.ScoredCandidate, recent []domain.PublishedEntry, target, requested int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Pick the %d best articles for today's digest from the candidates below.\n", requested)
	fmt.Fprintf(&b, "Select at least %d; some of your picks may be dropped later.\n", target)
	b.WriteString("Rules:\n")
	b.WriteString("- Prefer concrete, verifiable news over opinion or promotion.\n")
	b.WriteString("- Never pick two candidates covering the same event.\n")
	b.WriteString("- Never pick anything already covered by the recently published titles.\n")
	b.WriteString("- Respond with {\"entries\": [{\"ref_id\": \"<id>\"}, ...]} in priority order.\n\n")

	if len(recent) > 0 {
		b.WriteString("Recently published titles (do not repeat):\n")

		for i, entry := range recent {
			if i >= recentTitlesLimit {
				break
			}

			fmt.Fprintf(&b, "- %s\n", entry.Title)
		}

		b.WriteString("\n")
	}

	b.WriteString("Candidates:\n")

	for _, c := range pool {
		fmt.Fprintf(&b, "[%s] score=%.1f tier=%s region=%s source=%s\ntitle: %s\n",
			c.ID, c.RankScore, c.SourceTier, c.Region, c.SourceName, c.Title)

		if excerpt := truncate(c.RawText, candidateExcerptLimit); excerpt != "" {
			fmt.Fprintf(&b, "excerpt: %s\n", excerpt)
		}

		b.WriteString("\n")
	}

	return b.String()
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)

	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit]) + "..."
}
