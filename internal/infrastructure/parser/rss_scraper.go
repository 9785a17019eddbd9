package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsBrief/internal/domain"
	"NewsBrief/internal/scraper"
)

const defaultMaxRecords = 20

// RSSScraper fetches RSS/Atom feeds and maps their entries to raw records.
type RSSScraper struct {
	parser *gofeed.Parser
	logger *slog.Logger
	now    func() time.Time
}

var _ scraper.Strategy = (*RSSScraper)(nil)

// NewRSSScraper builds the feed strategy; client may be nil for the default.
func NewRSSScraper(client *http.Client, logger *slog.Logger) *RSSScraper {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSScraper{parser: parser, logger: logger, now: time.Now}
}

// Name identifies the strategy for registry lookup.
func (s *RSSScraper) Name() string {
	return "rss"
}

// Scrape pulls the configured feed and returns its entries in feed order.
// Entries without a publish date are passed through; the normalizer decides
// whether to reject them.
func (s *RSSScraper) Scrape(ctx context.Context, req scraper.Request) ([]domain.RawRecord, error) {
	feed, err := s.parser.ParseURLWithContext(req.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", req.URL, err)
	}

	limit := req.MaxRecords
	if limit <= 0 {
		limit = defaultMaxRecords
	}

	fetchedAt := s.now().UTC()
	var records []domain.RawRecord
	for _, item := range feed.Items {
		if len(records) >= limit {
			break
		}
		if item == nil {
			continue
		}

		records = append(records, domain.RawRecord{
			Title:       item.Title,
			URL:         item.Link,
			PublishedAt: publishedValue(item),
			BodyExcerpt: itemBody(item),
			SourceID:    req.SourceID,
			FetchedAt:   fetchedAt,
		})
	}

	s.logger.Debug("scraped feed", "source", req.SourceID, "records", len(records))
	return records, nil
}

// publishedValue prefers the parsed timestamp so downstream parsing is
// layout-stable, falling back to the raw feed string.
func publishedValue(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	if item.Published != "" {
		return item.Published
	}
	return item.Updated
}

func itemBody(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}
