package links

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/wangwingzero/fly-podcast/internal/platform/htmlutils"
)

// PageContent is the text extracted from a fetched article page.
type PageContent struct {
	Title    string
	Text     string
	ImageURL string
}

// ExtractContent pulls the readable article text out of an HTML page.
// Readability failure falls back to meta tags plus raw tag stripping, so a
// malformed page never aborts enrichment.
func ExtractContent(htmlBytes []byte, rawURL string, maxRunes int) *PageContent {
	u, _ := url.Parse(rawURL)

	meta := extractMetaTags(htmlBytes)

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), u)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		text := htmlutils.CollapseWhitespace(htmlutils.StripHTMLTags(string(htmlBytes)))

		return &PageContent{
			Title:    firstNonEmpty(meta.ogTitle, meta.title),
			Text:     truncateRunes(text, maxRunes),
			ImageURL: meta.ogImage,
		}
	}

	text := htmlutils.CollapseWhitespace(article.TextContent)

	return &PageContent{
		Title:    firstNonEmpty(article.Title, meta.ogTitle, meta.title),
		Text:     truncateRunes(text, maxRunes),
		ImageURL: firstNonEmpty(article.Image, meta.ogImage),
	}
}

type metaTags struct {
	title   string
	ogTitle string
	ogImage string
}

func extractMetaTags(htmlBytes []byte) metaTags {
	var meta metaTags

	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return meta
	}

	var traverse func(*html.Node)

	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					meta.title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				applyMetaTag(n, &meta)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(doc)

	return meta
}

func applyMetaTag(n *html.Node, meta *metaTags) {
	var name, content string

	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "name", "property":
			name = attr.Val
		case "content":
			content = attr.Val
		}
	}

	switch strings.ToLower(name) {
	case "og:title":
		meta.ogTitle = content
	case "og:image":
		meta.ogImage = content
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max])
}
