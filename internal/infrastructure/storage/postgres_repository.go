package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"NewsBrief/internal/domain"
	"NewsBrief/internal/ports"
)

// PostgresRepository persists run progress and editions in Postgres.
// Per-source ingestion results live in their own table so each commit is a
// single upsert; a resuming run never sees a half-written source.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var (
	_ ports.RunStore     = (*PostgresRepository)(nil)
	_ ports.EditionStore = (*PostgresRepository)(nil)
)

// NewPostgresRepository opens the connection and verifies it.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Load reads the run header and its committed source results.
func (r *PostgresRepository) Load(ctx context.Context, runID string) (domain.RunState, bool, error) {
	var state domain.RunState
	var failedStage sql.NullString

	err := r.builder.
		Select("run_id", "stage", "failed_stage", "started_at", "updated_at").
		From("runs").
		Where(sq.Eq{"run_id": runID}).
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&state.RunID, &state.Stage, &failedStage, &state.StartedAt, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunState{}, false, nil
	}
	if err != nil {
		return domain.RunState{}, false, fmt.Errorf("load run %s: %w", runID, err)
	}
	state.FailedStage = domain.Stage(failedStage.String)

	sources, err := r.loadSources(ctx, runID)
	if err != nil {
		return domain.RunState{}, false, err
	}
	state.Sources = sources

	return state, true, nil
}

func (r *PostgresRepository) loadSources(ctx context.Context, runID string) (map[string]domain.SourceState, error) {
	rows, err := r.builder.
		Select("source_id", "status", "articles", "record_count", "dropped_count", "error", "completed_at").
		From("run_sources").
		Where(sq.Eq{"run_id": runID}).
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources for %s: %w", runID, err)
	}
	defer rows.Close()

	sources := make(map[string]domain.SourceState)
	for rows.Next() {
		var (
			sourceID string
			source   domain.SourceState
			articles []byte
			errText  sql.NullString
		)
		if err := rows.Scan(&sourceID, &source.Status, &articles,
			&source.RecordCount, &source.DroppedCount, &errText, &source.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		if len(articles) > 0 {
			if err := json.Unmarshal(articles, &source.Articles); err != nil {
				return nil, fmt.Errorf("decode articles for %s/%s: %w", runID, sourceID, err)
			}
		}
		source.Error = errText.String
		sources[sourceID] = source
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source rows: %w", err)
	}
	return sources, nil
}

// Save upserts the run header. Source results are written separately through
// CommitSource.
func (r *PostgresRepository) Save(ctx context.Context, state domain.RunState) error {
	query, args, err := r.builder.
		Insert("runs").
		Columns("run_id", "stage", "failed_stage", "started_at", "updated_at").
		Values(state.RunID, state.Stage, nullable(string(state.FailedStage)), state.StartedAt, state.UpdatedAt).
		Suffix(`ON CONFLICT (run_id) DO UPDATE
			SET stage = EXCLUDED.stage,
			    failed_stage = EXCLUDED.failed_stage,
			    updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save run %s: %w", state.RunID, err)
	}
	return nil
}

// CommitSource writes one source result as a single upsert.
func (r *PostgresRepository) CommitSource(ctx context.Context, runID, sourceID string, result domain.SourceState) error {
	articles, err := json.Marshal(result.Articles)
	if err != nil {
		return fmt.Errorf("encode articles for %s/%s: %w", runID, sourceID, err)
	}

	query, args, err := r.builder.
		Insert("run_sources").
		Columns("run_id", "source_id", "status", "articles", "record_count", "dropped_count", "error", "completed_at").
		Values(runID, sourceID, result.Status, articles,
			result.RecordCount, result.DroppedCount, nullable(result.Error), result.CompletedAt).
		Suffix(`ON CONFLICT (run_id, source_id) DO UPDATE
			SET status = EXCLUDED.status,
			    articles = EXCLUDED.articles,
			    record_count = EXCLUDED.record_count,
			    dropped_count = EXCLUDED.dropped_count,
			    error = EXCLUDED.error,
			    completed_at = EXCLUDED.completed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build source upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("commit source %s/%s: %w", runID, sourceID, err)
	}
	return nil
}

// SaveEdition inserts the finalized edition once. A repeated run produces the
// same bytes, so conflicting inserts are dropped instead of overwriting.
func (r *PostgresRepository) SaveEdition(ctx context.Context, edition domain.Edition) error {
	payload, err := json.Marshal(edition)
	if err != nil {
		return fmt.Errorf("encode edition %s: %w", edition.RunID, err)
	}

	query, args, err := r.builder.
		Insert("editions").
		Columns("run_id", "generated_at", "payload", "created_at").
		Values(edition.RunID, edition.GeneratedAt, payload, time.Now().UTC()).
		Suffix("ON CONFLICT (run_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build edition insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save edition %s: %w", edition.RunID, err)
	}
	return nil
}

// Cleanup removes runs past the retention horizon. Editions and source rows
// cascade via foreign keys.
func (r *PostgresRepository) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := r.builder.
		Delete("runs").
		Where(sq.Lt{"started_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build retention delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old runs: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
