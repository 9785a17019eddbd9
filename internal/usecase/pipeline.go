// Package usecase drives the end-to-end newsletter pipeline for one run.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"NewsBrief/internal/assemble"
	"NewsBrief/internal/dedup"
	"NewsBrief/internal/domain"
	"NewsBrief/internal/enrich"
	"NewsBrief/internal/normalize"
	"NewsBrief/internal/ports"
)

// ErrNoRecords is the fatal outcome when every source comes back empty; the
// run ends failed at the ingesting stage.
var ErrNoRecords = errors.New("no source returned any records")

const DefaultIngestLimit = 5

// PipelineDeps wires the pipeline stages and driven adapters.
type PipelineDeps struct {
	Scraper      ports.Scraper
	Grouper      *dedup.Grouper
	Coordinator  *enrich.Coordinator
	RunStore     ports.RunStore
	EditionStore ports.EditionStore
	Renderer     ports.Renderer
	Deliverer    ports.Deliverer
	Recipients   []string
	Assembly     assemble.Options
	IngestLimit  int
	Logger       *slog.Logger
	Now          func() time.Time
}

// Pipeline implements the run orchestrator: fan-out ingestion, then the
// sequential dedup → enrich → assemble stages, with per-stage commits to the
// run store so an interrupted run can resume.
type Pipeline struct {
	scraper      ports.Scraper
	grouper      *dedup.Grouper
	coordinator  *enrich.Coordinator
	runStore     ports.RunStore
	editionStore ports.EditionStore
	renderer     ports.Renderer
	deliverer    ports.Deliverer
	recipients   []string
	assembly     assemble.Options
	ingestLimit  int
	logger       *slog.Logger
	now          func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.IngestLimit <= 0 {
		deps.IngestLimit = DefaultIngestLimit
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Grouper == nil {
		deps.Grouper = dedup.NewGrouper(0, 0)
	}
	return &Pipeline{
		scraper:      deps.Scraper,
		grouper:      deps.Grouper,
		coordinator:  deps.Coordinator,
		runStore:     deps.RunStore,
		editionStore: deps.EditionStore,
		renderer:     deps.Renderer,
		deliverer:    deps.Deliverer,
		recipients:   deps.Recipients,
		assembly:     deps.Assembly,
		ingestLimit:  deps.IngestLimit,
		logger:       deps.Logger,
		now:          deps.Now,
	}
}

// RunOptions selects the run identity and resume behavior.
type RunOptions struct {
	RunID  string
	Resume bool
}

// Run executes one pipeline run. Per-item errors are isolated and counted;
// only systemic failures (no data at all, broken persistence) return an
// error. The summary is always populated, also on failure.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.RunSummary, error) {
	state, err := p.openRun(ctx, opts)
	if err != nil {
		return domain.RunSummary{}, err
	}

	summary := domain.RunSummary{RunID: state.RunID}
	logger := p.logger.With("run_id", state.RunID)

	// Stage: ingesting.
	if err := p.transition(ctx, &state, domain.StageIngesting); err != nil {
		return summary, err
	}
	if err := p.ingest(ctx, &state, logger); err != nil {
		return summary, err
	}

	articles := collectArticles(state)
	fillIngestCounters(&summary, state)

	if summary.Ingested == 0 {
		p.fail(ctx, &state, domain.StageIngesting)
		logger.Error("run failed: nothing ingested", "sources", summary.Sources)
		return summary, fmt.Errorf("run %s: %w", state.RunID, ErrNoRecords)
	}

	// Stage: deduplicating. Single-threaded, deterministic pass over the
	// full accumulated set, also on resume.
	if err := p.transition(ctx, &state, domain.StageDeduplicating); err != nil {
		return summary, err
	}
	groups := p.grouper.Group(articles)
	summary.Groups = len(groups)
	logger.Info("deduplicated", "articles", len(articles), "groups", len(groups))

	// Stage: enriching.
	if err := p.transition(ctx, &state, domain.StageEnriching); err != nil {
		return summary, err
	}
	enrichedArticles := p.coordinator.EnrichAll(ctx, groups)
	for _, article := range enrichedArticles {
		switch article.Status {
		case domain.EnrichmentSuccess:
			summary.Enriched++
		case domain.EnrichmentFailed:
			summary.Failed++
		}
	}
	logger.Info("enriched", "success", summary.Enriched, "failed", summary.Failed)

	// Stage: assembling.
	if err := p.transition(ctx, &state, domain.StageAssembling); err != nil {
		return summary, err
	}
	edition, err := assemble.Assemble(enrichedArticles, p.assembly, assemble.Meta{
		RunID:        state.RunID,
		GeneratedAt:  p.now().UTC(),
		SourceCount:  summary.Sources,
		FailureCount: summary.Failed,
	})
	if err != nil {
		if !errors.Is(err, assemble.ErrInsufficientContent) {
			p.fail(ctx, &state, domain.StageAssembling)
			return summary, fmt.Errorf("assemble edition: %w", err)
		}
		// Partial success is valid: the run completes with an empty edition
		// and the caller skips publishing.
		logger.Warn("no publishable sections this run")
	}
	summary.Sections = len(edition.Sections)

	if p.editionStore != nil {
		if err := p.editionStore.SaveEdition(ctx, edition); err != nil {
			p.fail(ctx, &state, domain.StageAssembling)
			return summary, fmt.Errorf("persist edition: %w", err)
		}
	}

	p.publish(ctx, edition, logger)

	if err := p.transition(ctx, &state, domain.StageCompleted); err != nil {
		return summary, err
	}

	logger.Info("run completed",
		"ingested", summary.Ingested,
		"dropped", summary.Dropped,
		"groups", summary.Groups,
		"enriched", summary.Enriched,
		"failed", summary.Failed,
		"sections", summary.Sections)

	return summary, nil
}

// openRun loads persisted state for a resumed run or starts a fresh one.
func (p *Pipeline) openRun(ctx context.Context, opts RunOptions) (domain.RunState, error) {
	if opts.Resume && opts.RunID != "" && p.runStore != nil {
		state, found, err := p.runStore.Load(ctx, opts.RunID)
		if err != nil {
			return domain.RunState{}, fmt.Errorf("load run %s: %w", opts.RunID, err)
		}
		if found {
			// Later stages always re-run over the full accumulated set, so
			// only per-source ingestion progress matters here.
			if state.Sources == nil {
				state.Sources = map[string]domain.SourceState{}
			}
			return state, nil
		}
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	now := p.now().UTC()
	return domain.RunState{
		RunID:     runID,
		Stage:     domain.StagePending,
		StartedAt: now,
		UpdatedAt: now,
		Sources:   map[string]domain.SourceState{},
	}, nil
}

// ingest fans out over sources. A slow or failing source never blocks or
// aborts the others; each result is committed atomically per source.
func (p *Pipeline) ingest(ctx context.Context, state *domain.RunState, logger *slog.Logger) error {
	sourceIDs := p.scraper.SourceIDs()

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.ingestLimit)

	for _, sourceID := range sourceIDs {
		if state.SourceDone(sourceID) {
			logger.Info("source already ingested, skipping", "source", sourceID)
			continue
		}

		sourceID := sourceID
		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}

			result := p.ingestSource(gCtx, sourceID, logger)

			mu.Lock()
			state.Sources[sourceID] = result
			mu.Unlock()

			if p.runStore != nil {
				if err := p.runStore.CommitSource(ctx, state.RunID, sourceID, result); err != nil {
					logger.Error("commit source state", "source", sourceID, "error", err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// ingestSource fetches and normalizes one source. Bad records are dropped and
// counted; a fetch failure marks the source failed for this run.
func (p *Pipeline) ingestSource(ctx context.Context, sourceID string, logger *slog.Logger) domain.SourceState {
	records, err := p.scraper.Fetch(ctx, sourceID)
	if err != nil {
		logger.Warn("source fetch failed", "source", sourceID, "error", err)
		return domain.SourceState{
			Status:      domain.SourceFailed,
			Error:       err.Error(),
			CompletedAt: p.now().UTC(),
		}
	}

	result := domain.SourceState{
		Status:      domain.SourceCompleted,
		RecordCount: len(records),
		CompletedAt: p.now().UTC(),
	}

	for _, record := range records {
		article, err := normalize.Normalize(record)
		if err != nil {
			var verr *normalize.ValidationError
			if errors.As(err, &verr) {
				result.DroppedCount++
				logger.Warn("dropped record", "source", sourceID, "title", record.Title, "error", verr)
				continue
			}
			result.DroppedCount++
			logger.Warn("dropped record", "source", sourceID, "error", err)
			continue
		}
		result.Articles = append(result.Articles, article)
	}

	return result
}

// publish renders and delivers a non-empty edition. Delivery problems are
// logged, not fatal: the edition is already persisted.
func (p *Pipeline) publish(ctx context.Context, edition domain.Edition, logger *slog.Logger) {
	if edition.Empty() || p.renderer == nil || p.deliverer == nil || len(p.recipients) == 0 {
		return
	}

	document, err := p.renderer.Render(edition)
	if err != nil {
		logger.Error("render edition", "error", err)
		return
	}
	if err := p.deliverer.Deliver(ctx, document, p.recipients); err != nil {
		logger.Error("deliver edition", "error", err)
		return
	}
	logger.Info("edition delivered", "recipients", len(p.recipients))
}

// transition advances the stage machine one step forward and commits it.
func (p *Pipeline) transition(ctx context.Context, state *domain.RunState, stage domain.Stage) error {
	state.Stage = stage
	state.UpdatedAt = p.now().UTC()
	if p.runStore == nil {
		return nil
	}
	if err := p.runStore.Save(ctx, *state); err != nil {
		return fmt.Errorf("commit stage %s: %w", stage, err)
	}
	return nil
}

// fail marks the terminal failed state, remembering which stage broke.
func (p *Pipeline) fail(ctx context.Context, state *domain.RunState, at domain.Stage) {
	state.FailedStage = at
	state.Stage = domain.StageFailed
	state.UpdatedAt = p.now().UTC()
	if p.runStore != nil {
		if err := p.runStore.Save(ctx, *state); err != nil {
			p.logger.Error("commit failed state", "run_id", state.RunID, "error", err)
		}
	}
}

// collectArticles flattens per-source results in a deterministic order
// (source id, then per-source record order) so the downstream stages see the
// same sequence on every invocation.
func collectArticles(state domain.RunState) []domain.Article {
	sourceIDs := make([]string, 0, len(state.Sources))
	for sourceID := range state.Sources {
		sourceIDs = append(sourceIDs, sourceID)
	}
	sort.Strings(sourceIDs)

	var articles []domain.Article
	for _, sourceID := range sourceIDs {
		articles = append(articles, state.Sources[sourceID].Articles...)
	}
	return articles
}

func fillIngestCounters(summary *domain.RunSummary, state domain.RunState) {
	summary.Sources = len(state.Sources)
	for _, source := range state.Sources {
		switch source.Status {
		case domain.SourceCompleted:
			summary.Ingested += len(source.Articles)
			summary.Dropped += source.DroppedCount
		case domain.SourceFailed:
			summary.BadSource++
		}
	}
}
