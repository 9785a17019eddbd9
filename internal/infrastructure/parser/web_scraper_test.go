package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsBrief/internal/scraper"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
  <div class="story">
    <h2 class="headline"><a href="/articles/1">Local headline one</a></h2>
    <span class="when">2026-08-20</span>
    <p class="teaser">Teaser one.</p>
  </div>
  <div class="story">
    <h2 class="headline"><a href="https://other.example.com/articles/2">Remote headline two</a></h2>
    <span class="when">2026-08-19</span>
    <p class="teaser">Teaser two.</p>
  </div>
  <div class="story">
    <h2 class="headline">No link here</h2>
  </div>
</body></html>`

func webOptions() map[string]string {
	return map[string]string{
		"itemSelector":  "div.story",
		"titleSelector": "h2.headline",
		"linkSelector":  "h2.headline a",
		"dateSelector":  "span.when",
		"bodySelector":  "p.teaser",
	}
}

func TestWebScraperScrape(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	sc := NewWebScraper(server.Client(), nil)
	records, err := sc.Scrape(context.Background(), scraper.Request{
		SourceID: "local-news",
		URL:      server.URL,
		Options:  webOptions(),
	})
	if err != nil {
		t.Fatalf("Scrape error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records (linkless item skipped), got %d", len(records))
	}
	if got := strings.TrimSpace(records[0].Title); got != "Local headline one" {
		t.Fatalf("unexpected title: %q", got)
	}
	if records[0].URL != server.URL+"/articles/1" {
		t.Fatalf("relative link not resolved: %s", records[0].URL)
	}
	if records[0].PublishedAt != "2026-08-20" {
		t.Fatalf("unexpected published_at: %s", records[0].PublishedAt)
	}
	if got := strings.TrimSpace(records[0].BodyExcerpt); got != "Teaser one." {
		t.Fatalf("unexpected body: %q", got)
	}
	if records[1].URL != "https://other.example.com/articles/2" {
		t.Fatalf("absolute link rewritten: %s", records[1].URL)
	}
}

func TestWebScraperMissingDateFallsBackToFetchTime(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<div class="story"><h2 class="headline"><a href="/a">Headline</a></h2></div>`))
	}))
	defer server.Close()

	sc := NewWebScraper(server.Client(), nil)
	records, err := sc.Scrape(context.Background(), scraper.Request{
		SourceID: "local-news",
		URL:      server.URL,
		Options:  webOptions(),
	})
	if err != nil {
		t.Fatalf("Scrape error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].PublishedAt == "" {
		t.Fatalf("expected fetch-time fallback for published_at")
	}
}

func TestWebScraperRequiresSelectors(t *testing.T) {
	t.Parallel()

	sc := NewWebScraper(nil, nil)
	_, err := sc.Scrape(context.Background(), scraper.Request{
		SourceID: "local-news",
		URL:      "https://example.com",
		Options:  map[string]string{"itemSelector": "div"},
	})
	if err == nil {
		t.Fatalf("expected selector validation error")
	}
}

func TestWebScraperBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sc := NewWebScraper(server.Client(), nil)
	if _, err := sc.Scrape(context.Background(), scraper.Request{
		SourceID: "local-news",
		URL:      server.URL,
		Options:  webOptions(),
	}); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestRegistryResolvesStrategies(t *testing.T) {
	t.Parallel()

	reg := scraper.NewRegistry()
	reg.Register(NewRSSScraper(nil, nil))
	reg.Register(NewWebScraper(nil, nil))

	if _, err := reg.Resolve("rss"); err != nil {
		t.Fatalf("resolve rss: %v", err)
	}
	if _, err := reg.Resolve("web"); err != nil {
		t.Fatalf("resolve web: %v", err)
	}
	if _, err := reg.Resolve("ftp"); err == nil {
		t.Fatalf("expected unknown strategy error")
	}
}
