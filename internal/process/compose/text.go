package compose

import (
	"strings"

	"github.com/wangwingzero/fly-podcast/internal/core/fingerprint"
)

// sentenceEnders covers both ASCII and CJK terminal punctuation.
var sentenceEnders = []string{"。", "！", "？", ". ", "! ", "? ", "\n"}

// cleanTitle strips feed noise a raw title tends to carry: the trailing
// source suffix and surrounding whitespace.
func cleanTitle(title string) string {
	stripped, _ := fingerprint.StripSourceSuffix(title)
	return strings.TrimSpace(stripped)
}

// firstSentence returns text up to and including the first sentence
// terminator, or the whole text when none is found.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)

	best := -1
	bestLen := 0

	for _, ender := range sentenceEnders {
		idx := strings.Index(text, ender)
		if idx >= 0 && (best < 0 || idx < best) {
			best = idx
			bestLen = len(strings.TrimSpace(ender))
		}
	}

	if best < 0 {
		return text
	}

	return strings.TrimSpace(text[:best+bestLen])
}

// splitFacts cuts the raw text into up to max sentence-sized fact strings.
func splitFacts(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	for _, ender := range []string{"。", "！", "？"} {
		text = strings.ReplaceAll(text, ender, ender+"\n")
	}

	text = strings.ReplaceAll(text, ". ", ".\n")

	var facts []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) < 10 {
			continue
		}

		facts = append(facts, line)
		if len(facts) >= max {
			break
		}
	}

	return facts
}
