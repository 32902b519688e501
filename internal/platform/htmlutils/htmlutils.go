// Package htmlutils provides small HTML text helpers used by the content
// enrichment path.
package htmlutils

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRegex    = regexp.MustCompile(`<(/?)([a-zA-Z0-9-]+)([^>]*)>`)
	scriptRegex = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	spaceRegex  = regexp.MustCompile(`[ \t]+`)
	blankRegex  = regexp.MustCompile(`\n{3,}`)
)

// StripHTMLTags removes script and style blocks plus all HTML tags from
// text, keeping only the content with entities decoded.
func StripHTMLTags(text string) string {
	result := scriptRegex.ReplaceAllString(text, "")
	result = tagRegex.ReplaceAllString(result, "")
	result = html.UnescapeString(result)

	return strings.TrimSpace(result)
}

// CollapseWhitespace squeezes runs of spaces and blank lines so extracted
// article text stays compact.
func CollapseWhitespace(text string) string {
	text = spaceRegex.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}

	text = strings.Join(lines, "\n")
	text = blankRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
