package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NewsBrief/internal/assemble"
	"NewsBrief/internal/config"
	"NewsBrief/internal/dedup"
	"NewsBrief/internal/enrich"
	"NewsBrief/internal/infrastructure/delivery"
	"NewsBrief/internal/infrastructure/llm"
	"NewsBrief/internal/infrastructure/parser"
	"NewsBrief/internal/infrastructure/render"
	"NewsBrief/internal/infrastructure/scheduler"
	"NewsBrief/internal/infrastructure/storage"
	"NewsBrief/internal/logging"
	"NewsBrief/internal/ports"
	"NewsBrief/internal/scraper"
	"NewsBrief/internal/usecase"
)

// storeCleaner removes run records past the retention horizon. Both store
// backends implement it.
type storeCleaner interface {
	Cleanup(ctx context.Context, cutoff time.Time) (int, error)
}

// Application wires configuration to adapters, the pipeline and the
// scheduler lifecycle.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	cleaner   storeCleaner
	pg        *storage.PostgresRepository
}

// New builds a runnable application instance. When a database DSN is
// configured run state goes to Postgres, otherwise to the JSON file store.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	app := &Application{cfg: cfg, logger: baseLogger}

	runStore, editionStore, err := app.buildStores(ctx)
	if err != nil {
		return nil, err
	}

	registry := scraper.NewRegistry()
	registry.Register(parser.NewRSSScraper(nil, baseLogger.With("component", "scraper.rss")))
	registry.Register(parser.NewWebScraper(nil, baseLogger.With("component", "scraper.web")))

	source := parser.NewStrategySource(registry, cfg.Sources, baseLogger.With("component", "source"))

	summarizer, err := llm.NewSummarizer(cfg.OpenAI, cfg.Assembly, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("build summarizer: %w", err)
	}

	coordinator := enrich.NewCoordinator(
		summarizer,
		enrich.RetryPolicy{
			MaxAttempts: cfg.Pipeline.RetryMaxAttempts,
			Initial:     time.Duration(cfg.Pipeline.RetryInitialMillis) * time.Millisecond,
			Max:         time.Duration(cfg.Pipeline.RetryMaxMillis) * time.Millisecond,
		},
		cfg.Pipeline.EnrichConcurrency,
		cfg.Assembly.FallbackCategory,
		baseLogger.With("component", "enrich"),
	)

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Scraper:      source,
		Grouper:      dedup.NewGrouper(cfg.Pipeline.SimilarityThreshold, cfg.Pipeline.DedupWindow()),
		Coordinator:  coordinator,
		RunStore:     runStore,
		EditionStore: editionStore,
		Renderer:     render.NewMarkdownRenderer(cfg.Delivery.Subject),
		Deliverer:    delivery.NewSMTPDeliverer(cfg.Delivery, baseLogger),
		Recipients:   cfg.Delivery.Recipients,
		Assembly: assemble.Options{
			MaxPerSection: cfg.Assembly.MaxPerSection,
			MinPerSection: cfg.Assembly.MinPerSection,
			SectionOrder:  cfg.Assembly.SectionOrder,
		},
		IngestLimit: cfg.Pipeline.IngestConcurrency,
		Logger:      baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	app.scheduler = usecase.NewScheduler(driver, app.pipeline, baseLogger.With("component", "scheduler"))

	return app, nil
}

func (a *Application) buildStores(ctx context.Context) (ports.RunStore, ports.EditionStore, error) {
	if dsn := a.cfg.Database.DSN; dsn != "" {
		pg, err := storage.NewPostgresRepository(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("build postgres store: %w", err)
		}
		a.pg = pg
		a.cleaner = pg
		return pg, pg, nil
	}

	fs, err := storage.NewFileStore(a.cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("build file store: %w", err)
	}
	a.cleaner = fs
	return fs, fs, nil
}

// RunOnce executes a single pipeline run and returns its outcome.
func (a *Application) RunOnce(ctx context.Context, runID string, resume bool) error {
	summary, err := a.pipeline.Run(ctx, usecase.RunOptions{RunID: runID, Resume: resume})
	if err != nil {
		return err
	}
	a.logger.Info("run finished",
		"run_id", summary.RunID,
		"ingested", summary.Ingested,
		"groups", summary.Groups,
		"sections", summary.Sections)
	return nil
}

// Serve starts the scheduler and blocks until the process is signalled.
func (a *Application) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression)

	a.cleanupStorage(ctx)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// cleanupStorage applies the retention policy against the active store at
// startup.
func (a *Application) cleanupStorage(ctx context.Context) {
	if a.cleaner == nil || a.cfg.Storage.MaxAgeDays <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Storage.MaxAgeDays)
	removed, err := a.cleaner.Cleanup(ctx, cutoff)
	if err != nil {
		a.logger.Warn("storage cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		a.logger.Info("storage cleanup", "removed", removed)
	}
}

// Close releases database resources.
func (a *Application) Close() error {
	if a.pg != nil {
		return a.pg.Close()
	}
	return nil
}
