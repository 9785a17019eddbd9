package ports

import (
	"context"
	"time"

	"NewsBrief/internal/domain"
)

// Scraper produces an ordered sequence of raw records per source. A failing
// source must not abort the run; the orchestrator isolates it.
type Scraper interface {
	SourceIDs() []string
	Fetch(ctx context.Context, sourceID string) ([]domain.RawRecord, error)
}

// Summarizer is the external summarization/categorization collaborator,
// called once per dedup group's canonical article. Transient failures are
// wrapped in *TransientError so the coordinator can decide retry vs. fail.
type Summarizer interface {
	Enrich(ctx context.Context, article domain.Article) (domain.Enrichment, error)
}

// RunStore persists run progress. CommitSource must apply each source result
// as one atomic update; a resuming run never observes partial writes.
type RunStore interface {
	Load(ctx context.Context, runID string) (domain.RunState, bool, error)
	Save(ctx context.Context, state domain.RunState) error
	CommitSource(ctx context.Context, runID, sourceID string, result domain.SourceState) error
}

// EditionStore persists finalized editions. Editions are write-once.
type EditionStore interface {
	SaveEdition(ctx context.Context, edition domain.Edition) error
}

// Renderer turns a finalized edition into a deliverable document.
type Renderer interface {
	Render(edition domain.Edition) ([]byte, error)
}

// Deliverer ships a rendered document to a recipient list.
type Deliverer interface {
	Deliver(ctx context.Context, document []byte, recipients []string) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
