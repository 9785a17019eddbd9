package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsBrief/internal/domain"
	"NewsBrief/internal/scraper"
)

// Option keys understood by the web strategy.
const (
	optItemSelector  = "itemSelector"
	optTitleSelector = "titleSelector"
	optLinkSelector  = "linkSelector"
	optDateSelector  = "dateSelector"
	optBodySelector  = "bodySelector"
)

// WebScraper extracts article listings from HTML pages using CSS selectors
// supplied per source.
type WebScraper struct {
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ scraper.Strategy = (*WebScraper)(nil)

// NewWebScraper builds the selector-driven strategy; client may be nil.
func NewWebScraper(client *http.Client, logger *slog.Logger) *WebScraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebScraper{client: client, logger: logger, now: time.Now}
}

// Name identifies the strategy for registry lookup.
func (s *WebScraper) Name() string {
	return "web"
}

// Scrape fetches the listing page and emits one raw record per matched item,
// in document order. Items without a link are skipped; items without a date
// get the fetch time, since listing pages rarely carry one.
func (s *WebScraper) Scrape(ctx context.Context, req scraper.Request) ([]domain.RawRecord, error) {
	itemSelector := req.Options[optItemSelector]
	titleSelector := req.Options[optTitleSelector]
	linkSelector := req.Options[optLinkSelector]
	if itemSelector == "" || titleSelector == "" || linkSelector == "" {
		return nil, fmt.Errorf("source %s: web scraper requires item, title and link selectors", req.SourceID)
	}

	doc, err := s.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	limit := req.MaxRecords
	if limit <= 0 {
		limit = defaultMaxRecords
	}

	fetchedAt := s.now().UTC()
	var records []domain.RawRecord

	doc.Find(itemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		title := item.Find(titleSelector).First().Text()
		link, _ := item.Find(linkSelector).First().Attr("href")
		if link == "" {
			return true
		}

		published := item.Find(req.Options[optDateSelector]).First().Text()
		if req.Options[optDateSelector] == "" || published == "" {
			published = fetchedAt.Format(time.RFC3339)
		}

		records = append(records, domain.RawRecord{
			Title:       title,
			URL:         resolveLink(req.URL, link),
			PublishedAt: published,
			BodyExcerpt: item.Find(req.Options[optBodySelector]).First().Text(),
			SourceID:    req.SourceID,
			FetchedAt:   fetchedAt,
		})
		return len(records) < limit
	})

	s.logger.Debug("scraped page", "source", req.SourceID, "records", len(records))
	return records, nil
}

func (s *WebScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsBrief/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// resolveLink turns relative listing links into absolute URLs.
func resolveLink(pageURL, link string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}
