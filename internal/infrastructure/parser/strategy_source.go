package parser

import (
	"context"
	"fmt"
	"log/slog"

	"NewsBrief/internal/config"
	"NewsBrief/internal/domain"
	"NewsBrief/internal/ports"
	"NewsBrief/internal/scraper"
)

// StrategySource adapts the strategy registry and the configured source list
// to the scraper port the pipeline consumes.
type StrategySource struct {
	registry *scraper.Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.Scraper = (*StrategySource)(nil)

// NewStrategySource wires configured sources to registered strategies.
// Disabled sources are filtered out here.
func NewStrategySource(registry *scraper.Registry, sources []config.SourceConfig, logger *slog.Logger) *StrategySource {
	if logger == nil {
		logger = slog.Default()
	}

	enabled := make([]config.SourceConfig, 0, len(sources))
	for _, source := range sources {
		if source.IsEnabled() {
			enabled = append(enabled, source)
		}
	}

	return &StrategySource{registry: registry, sources: enabled, logger: logger}
}

// SourceIDs lists the enabled sources in configuration order.
func (s *StrategySource) SourceIDs() []string {
	ids := make([]string, 0, len(s.sources))
	for _, source := range s.sources {
		ids = append(ids, source.Name)
	}
	return ids
}

// Fetch resolves the source's strategy and executes it.
func (s *StrategySource) Fetch(ctx context.Context, sourceID string) ([]domain.RawRecord, error) {
	source, ok := s.lookup(sourceID)
	if !ok {
		return nil, fmt.Errorf("source %s is not configured", sourceID)
	}

	strategy, err := s.registry.Resolve(source.Scraper)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", sourceID, err)
	}

	records, err := strategy.Scrape(ctx, scraper.Request{
		SourceID:   source.Name,
		URL:        source.URL,
		MaxRecords: source.MaxRecords,
		Options:    source.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", sourceID, err)
	}

	s.logger.Info("fetched source", "source", sourceID, "records", len(records))
	return records, nil
}

func (s *StrategySource) lookup(sourceID string) (config.SourceConfig, bool) {
	for _, source := range s.sources {
		if source.Name == sourceID {
			return source, true
		}
	}
	return config.SourceConfig{}, false
}
