package links

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wangwingzero/fly-podcast/internal/core/domain"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Page Title - Example Wire</title>
<meta property="og:title" content="C919 completes plateau trials">
<meta property="og:image" content="https://example.com/img.jpg">
</head>
<body>
<article>
<h1>C919 completes plateau trials</h1>
<p>The aircraft completed a two-week campaign covering three high-altitude airports.
Engineers validated takeoff and landing performance under reduced air density.</p>
<p>The campaign is a prerequisite for opening routes to western regional airports.</p>
</article>
<script>var tracker = "noise";</script>
</body>
</html>`

func TestFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	fetcher := NewFetcher(10, 5*time.Second)

	body, err := fetcher.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if !strings.Contains(string(body), "plateau trials") {
		t.Error("body missing expected content")
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := NewFetcher(10, 5*time.Second)

	if _, err := fetcher.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrHTTPStatusNotOK) {
		t.Errorf("err = %v, want ErrHTTPStatusNotOK", err)
	}
}

func TestExtractContent(t *testing.T) {
	content := ExtractContent([]byte(samplePage), "https://example.com/news/1", 4000)

	if !strings.Contains(content.Text, "two-week campaign") {
		t.Errorf("extracted text missing article body: %q", content.Text)
	}

	if strings.Contains(content.Text, "tracker") {
		t.Error("extracted text contains script content")
	}

	if content.ImageURL != "https://example.com/img.jpg" {
		t.Errorf("ImageURL = %q", content.ImageURL)
	}
}

func TestExtractContentTruncates(t *testing.T) {
	content := ExtractContent([]byte(samplePage), "https://example.com/news/1", 20)

	if got := len([]rune(content.Text)); got > 20 {
		t.Errorf("text length = %d, want <= 20", got)
	}
}

func TestEnrichSkipsUnresolvedRedirect(t *testing.T) {
	logger := zerolog.Nop()
	enricher := NewEnricher(NewFetcher(10, time.Second), &logger)

	candidate := &domain.ScoredCandidate{RawCandidate: domain.RawCandidate{
		ID:  "a",
		URL: "https://news.google.com/rss/articles/CBMiabc",
	}}

	if err := enricher.Enrich(context.Background(), candidate); err == nil {
		t.Error("expected error for unresolved redirect link")
	}
}

func TestEnrichFetchesAndExtracts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	logger := zerolog.Nop()
	enricher := NewEnricher(NewFetcher(10, 5*time.Second), &logger)

	candidate := &domain.ScoredCandidate{RawCandidate: domain.RawCandidate{ID: "a", URL: srv.URL}}

	if err := enricher.Enrich(context.Background(), candidate); err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	if !strings.Contains(candidate.RawText, "two-week campaign") {
		t.Errorf("enriched text missing article content: %q", candidate.RawText)
	}

	if candidate.ImageURL != "https://example.com/img.jpg" {
		t.Errorf("ImageURL = %q, want og:image", candidate.ImageURL)
	}
}

func TestEnrichKeepsLongerIngestedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>short page</p></body></html>`))
	}))
	defer srv.Close()

	logger := zerolog.Nop()
	enricher := NewEnricher(NewFetcher(10, 5*time.Second), &logger)

	ingested := strings.Repeat("已有的完整正文内容。", 20)
	candidate := &domain.ScoredCandidate{RawCandidate: domain.RawCandidate{ID: "a", URL: srv.URL, RawText: ingested}}

	if err := enricher.Enrich(context.Background(), candidate); err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	if candidate.RawText != ingested {
		t.Errorf("ingested text replaced by shorter extraction: %q", candidate.RawText)
	}
}
