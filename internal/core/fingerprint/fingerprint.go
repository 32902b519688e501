// Package fingerprint turns article titles and URLs into stable dedup keys.
// The event fingerprint is the primary duplicate-detection key across sources
// reporting the same event; the normalized URL is the secondary key.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"unicode"
)

const fingerprintLen = 16

// Title separators used by aggregators to append the source name.
var titleSeparators = []string{" - ", " – ", " — "}

const maxSourceSuffixLen = 40

// Query parameters that only track attribution and never identify content.
var trackingParams = map[string]bool{
	"spm":    true,
	"from":   true,
	"source": true,
	"gclid":  true,
	"fbclid": true,
}

func isTrackingParam(key string) bool {
	return key == "utm" || strings.HasPrefix(key, "utm_") || trackingParams[key]
}

// StripSourceSuffix removes a trailing " - Source Name" suffix common in
// aggregator titles. Returns the cleaned title and the source name, if any.
func StripSourceSuffix(title string) (string, string) {
	bestIdx := -1
	bestSep := ""

	for _, sep := range titleSeparators {
		if idx := strings.LastIndex(title, sep); idx > bestIdx {
			bestIdx = idx
			bestSep = sep
		}
	}

	if bestIdx <= 0 {
		return strings.TrimSpace(title), ""
	}

	left := strings.TrimSpace(title[:bestIdx])
	right := strings.TrimSpace(title[bestIdx+len(bestSep):])

	if left == "" || len(right) >= maxSourceSuffixLen {
		return strings.TrimSpace(title), ""
	}

	return left, right
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// NormalizeTitle lowercases a title, strips the trailing source suffix, and
// removes everything that is not a letter, digit, or CJK character. Two
// headlines about the same event that differ only in punctuation, spacing,
// or the aggregator suffix normalize identically.
func NormalizeTitle(title string) string {
	clean, _ := StripSourceSuffix(title)
	clean = strings.ToLower(strings.TrimSpace(clean))

	var b strings.Builder

	for _, r := range clean {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || isCJK(r) {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Fingerprint hashes a normalized title into the event fingerprint.
// Returns an empty string for titles that normalize to nothing.
func Fingerprint(title string) string {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// NormalizeURL canonicalizes a URL for duplicate detection: the host is
// lowercased, the trailing slash dropped, tracking query parameters removed,
// and the remaining parameters re-serialized in sorted order. Two URLs that
// differ only by tracking params or parameter order normalize identically.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	host := strings.ToLower(strings.TrimSpace(parsed.Host))
	path := strings.ToLower(strings.TrimRight(parsed.Path, "/"))

	if host == "" {
		if path == "" {
			return strings.ToLower(raw)
		}

		return path
	}

	keep := url.Values{}

	for key, values := range parsed.Query() {
		lk := strings.ToLower(strings.TrimSpace(key))
		if isTrackingParam(lk) {
			continue
		}

		for _, v := range values {
			keep.Add(lk, strings.TrimSpace(v))
		}
	}

	base := host + path
	if len(keep) == 0 {
		return base
	}

	return base + "?" + sortedEncode(keep)
}

// sortedEncode serializes query values with keys in sorted order.
// url.Values.Encode already sorts by key; values keep insertion order.
func sortedEncode(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder

	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)

		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}

			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}

	return b.String()
}

// IsUnresolvedRedirect reports whether a URL is an aggregator redirect link
// whose original source cannot be independently verified.
func IsUnresolvedRedirect(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Host)
	path := strings.ToLower(parsed.Path)

	return strings.HasSuffix(host, "news.google.com") && strings.HasPrefix(path, "/rss/articles/")
}

// Domain returns the lowercased host of a URL, or an empty string.
func Domain(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return strings.ToLower(parsed.Host)
}
