package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"NewsBrief/internal/domain"
	"NewsBrief/internal/ports"
)

type fakeSummarizer struct {
	mu       sync.Mutex
	calls    map[string]int
	enrich   func(article domain.Article, attempt int) (domain.Enrichment, error)
	inFlight atomic.Int64
	peak     atomic.Int64
}

func newFakeSummarizer(enrich func(article domain.Article, attempt int) (domain.Enrichment, error)) *fakeSummarizer {
	return &fakeSummarizer{calls: map[string]int{}, enrich: enrich}
}

func (f *fakeSummarizer) Enrich(_ context.Context, article domain.Article) (domain.Enrichment, error) {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	f.mu.Lock()
	f.calls[article.IdentityKey]++
	attempt := f.calls[article.IdentityKey]
	f.mu.Unlock()

	return f.enrich(article, attempt)
}

func (f *fakeSummarizer) attempts(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func groups(n int) []domain.DedupGroup {
	out := make([]domain.DedupGroup, n)
	for i := range out {
		out[i] = domain.DedupGroup{
			Canonical: domain.Article{
				IdentityKey: fmt.Sprintf("key-%d", i),
				Title:       fmt.Sprintf("Story %d", i),
				SourceID:    "src",
			},
		}
	}
	return out
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Max: 4 * time.Millisecond}
}

func TestEnrichAllIsolation(t *testing.T) {
	t.Parallel()

	// One of five groups fails permanently; the other four still succeed.
	fake := newFakeSummarizer(func(article domain.Article, _ int) (domain.Enrichment, error) {
		if article.IdentityKey == "key-2" {
			return domain.Enrichment{}, errors.New("model rejected input")
		}
		return domain.Enrichment{Summary: "summary of " + article.Title, Categories: []string{"technology"}}, nil
	})

	coordinator := NewCoordinator(fake, fastPolicy(), 2, "general", nil)
	results := coordinator.EnrichAll(context.Background(), groups(5))

	succeeded, failed := 0, 0
	for i, result := range results {
		if result.Article.IdentityKey != fmt.Sprintf("key-%d", i) {
			t.Fatalf("result %d maps to wrong group %s", i, result.Article.IdentityKey)
		}
		switch result.Status {
		case domain.EnrichmentSuccess:
			succeeded++
		case domain.EnrichmentFailed:
			failed++
		}
	}

	if succeeded != 4 || failed != 1 {
		t.Fatalf("expected 4 success / 1 failed, got %d / %d", succeeded, failed)
	}
	if results[2].FailureReason == "" {
		t.Fatalf("failed group carries no reason")
	}
}

func TestEnrichAllPermanentFailureNotRetried(t *testing.T) {
	t.Parallel()

	fake := newFakeSummarizer(func(domain.Article, int) (domain.Enrichment, error) {
		return domain.Enrichment{}, errors.New("permanent")
	})

	coordinator := NewCoordinator(fake, fastPolicy(), 1, "general", nil)
	coordinator.EnrichAll(context.Background(), groups(1))

	if got := fake.attempts("key-0"); got != 1 {
		t.Fatalf("permanent failure retried %d times", got)
	}
}

func TestEnrichAllTransientRetry(t *testing.T) {
	t.Parallel()

	fake := newFakeSummarizer(func(article domain.Article, attempt int) (domain.Enrichment, error) {
		if attempt < 3 {
			return domain.Enrichment{}, ports.Transient(errors.New("rate limited"))
		}
		return domain.Enrichment{Summary: "done", Categories: []string{"business"}}, nil
	})

	coordinator := NewCoordinator(fake, fastPolicy(), 1, "general", nil)
	results := coordinator.EnrichAll(context.Background(), groups(1))

	if results[0].Status != domain.EnrichmentSuccess {
		t.Fatalf("expected success after retries, got %s (%s)", results[0].Status, results[0].FailureReason)
	}
	if got := fake.attempts("key-0"); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestEnrichAllTransientExhaustion(t *testing.T) {
	t.Parallel()

	fake := newFakeSummarizer(func(domain.Article, int) (domain.Enrichment, error) {
		return domain.Enrichment{}, ports.Transient(errors.New("still rate limited"))
	})

	coordinator := NewCoordinator(fake, fastPolicy(), 1, "general", nil)
	results := coordinator.EnrichAll(context.Background(), groups(1))

	if results[0].Status != domain.EnrichmentFailed {
		t.Fatalf("expected failed after exhausted retries, got %s", results[0].Status)
	}
	if !strings.Contains(results[0].FailureReason, "rate limited") {
		t.Fatalf("unexpected reason: %s", results[0].FailureReason)
	}
	if got := fake.attempts("key-0"); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestEnrichAllConcurrencyLimit(t *testing.T) {
	t.Parallel()

	fake := newFakeSummarizer(func(article domain.Article, _ int) (domain.Enrichment, error) {
		time.Sleep(5 * time.Millisecond)
		return domain.Enrichment{Summary: "s", Categories: []string{"science"}}, nil
	})

	coordinator := NewCoordinator(fake, fastPolicy(), 2, "general", nil)
	coordinator.EnrichAll(context.Background(), groups(8))

	if peak := fake.peak.Load(); peak > 2 {
		t.Fatalf("concurrency limit exceeded: peak %d", peak)
	}
}

func TestEnrichAllCancellationSkips(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var once sync.Once
	fake := newFakeSummarizer(func(domain.Article, int) (domain.Enrichment, error) {
		once.Do(func() { close(started) })
		time.Sleep(20 * time.Millisecond)
		return domain.Enrichment{Summary: "s", Categories: []string{"general"}}, nil
	})

	go func() {
		<-started
		cancel()
	}()

	coordinator := NewCoordinator(fake, fastPolicy(), 1, "general", nil)
	results := coordinator.EnrichAll(ctx, groups(6))

	skippedCount := 0
	for _, result := range results {
		if result.Status == domain.EnrichmentSkipped {
			skippedCount++
		}
	}
	if skippedCount == 0 {
		t.Fatalf("expected cancelled run to skip unstarted groups")
	}
}

func TestEnrichFallbackCategory(t *testing.T) {
	t.Parallel()

	fake := newFakeSummarizer(func(domain.Article, int) (domain.Enrichment, error) {
		return domain.Enrichment{Summary: "no categories came back"}, nil
	})

	coordinator := NewCoordinator(fake, fastPolicy(), 1, "general", nil)
	results := coordinator.EnrichAll(context.Background(), groups(1))

	if len(results[0].Categories) != 1 || results[0].Categories[0] != "general" {
		t.Fatalf("expected fallback category, got %v", results[0].Categories)
	}
}

func TestBackoffSchedule(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 5, Initial: time.Second, Max: 5 * time.Second}

	if got := policy.Backoff(1); got != time.Second {
		t.Fatalf("attempt 1: %v", got)
	}
	if got := policy.Backoff(2); got != 2*time.Second {
		t.Fatalf("attempt 2: %v", got)
	}
	if got := policy.Backoff(3); got != 4*time.Second {
		t.Fatalf("attempt 3: %v", got)
	}
	if got := policy.Backoff(4); got != 5*time.Second {
		t.Fatalf("attempt 4 should cap at max: %v", got)
	}
}
