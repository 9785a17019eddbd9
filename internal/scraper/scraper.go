package scraper

import (
	"context"
	"fmt"

	"NewsBrief/internal/domain"
)

// Request carries all parameters required to fetch one configured source.
type Request struct {
	SourceID   string
	URL        string
	MaxRecords int
	Options    map[string]string
}

// Strategy captures a single fetch implementation (RSS, web, etc.).
type Strategy interface {
	Name() string
	Scrape(ctx context.Context, req Request) ([]domain.RawRecord, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("scraper strategy %s is not registered", name)
}
