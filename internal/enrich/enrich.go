// Package enrich drives the external summarizer/categorizer across dedup
// groups with bounded parallelism and per-group fault isolation.
package enrich

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"NewsBrief/internal/domain"
	"NewsBrief/internal/ports"
)

const DefaultConcurrency = 4

// Coordinator enriches dedup groups. One group's failure never aborts the
// others; exhausted retries mark the group failed and processing continues.
type Coordinator struct {
	summarizer  ports.Summarizer
	policy      RetryPolicy
	concurrency int64
	fallback    string
	logger      *slog.Logger
}

// NewCoordinator wires the summarizer collaborator with an explicit retry
// policy and concurrency limit. fallbackCategory replaces empty category sets.
func NewCoordinator(summarizer ports.Summarizer, policy RetryPolicy, concurrency int, fallbackCategory string, logger *slog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if fallbackCategory == "" {
		fallbackCategory = "general"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		summarizer:  summarizer,
		policy:      policy,
		concurrency: int64(concurrency),
		fallback:    fallbackCategory,
		logger:      logger,
	}
}

// EnrichAll processes groups in parallel up to the concurrency limit. The
// result slice maps positionally to the input regardless of completion order.
func (c *Coordinator) EnrichAll(ctx context.Context, groups []domain.DedupGroup) []domain.EnrichedArticle {
	results := make([]domain.EnrichedArticle, len(groups))
	sem := semaphore.NewWeighted(c.concurrency)

	var wg sync.WaitGroup
	for i, group := range groups {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Run cancelled: everything not yet started is skipped, not failed.
			results[i] = skipped(group, ctx.Err().Error())
			continue
		}

		wg.Add(1)
		go func(i int, group domain.DedupGroup) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = c.enrichGroup(ctx, group)
		}(i, group)
	}
	wg.Wait()

	return results
}

// enrichGroup calls the collaborator once per group's canonical article,
// retrying transient failures per the policy.
func (c *Coordinator) enrichGroup(ctx context.Context, group domain.DedupGroup) domain.EnrichedArticle {
	article := group.Canonical

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return skipped(group, ctx.Err().Error())
		}

		enrichment, err := c.summarizer.Enrich(ctx, article)
		if err == nil {
			return success(group, enrichment, c.fallback)
		}
		lastErr = err

		if !ports.IsTransient(err) {
			c.logger.Warn("enrichment failed permanently",
				"identity_key", article.IdentityKey, "error", err)
			break
		}

		c.logger.Debug("transient enrichment failure",
			"identity_key", article.IdentityKey, "attempt", attempt, "error", err)

		if attempt == c.policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, c.policy.Backoff(attempt)); err != nil {
			return skipped(group, err.Error())
		}
	}

	return domain.EnrichedArticle{
		Article:       article,
		Status:        domain.EnrichmentFailed,
		FailureReason: lastErr.Error(),
		GroupSize:     group.Size(),
	}
}

func success(group domain.DedupGroup, enrichment domain.Enrichment, fallback string) domain.EnrichedArticle {
	categories := enrichment.Categories
	if len(categories) == 0 {
		categories = []string{fallback}
	}
	return domain.EnrichedArticle{
		Article:    group.Canonical,
		Summary:    enrichment.Summary,
		Categories: categories,
		Status:     domain.EnrichmentSuccess,
		GroupSize:  group.Size(),
	}
}

func skipped(group domain.DedupGroup, reason string) domain.EnrichedArticle {
	return domain.EnrichedArticle{
		Article:       group.Canonical,
		Status:        domain.EnrichmentSkipped,
		FailureReason: reason,
		GroupSize:     group.Size(),
	}
}
