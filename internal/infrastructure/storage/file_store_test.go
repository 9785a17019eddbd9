package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"NewsBrief/internal/domain"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestFileStoreSaveAndLoad(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	state := domain.RunState{
		RunID:     "run-1",
		Stage:     domain.StageIngesting,
		StartedAt: time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC),
		Sources:   map[string]domain.SourceState{},
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := store.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatalf("expected run to exist")
	}
	if loaded.Stage != domain.StageIngesting {
		t.Fatalf("unexpected stage: %s", loaded.Stage)
	}
}

func TestFileStoreLoadUnknownRun(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, ok, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatalf("expected missing run")
	}
}

func TestFileStoreCommitSourceMerges(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, domain.RunState{RunID: "run-2", Stage: domain.StageIngesting}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var wg sync.WaitGroup
	sources := []string{"feed-a", "feed-b", "feed-c"}
	for _, sourceID := range sources {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := store.CommitSource(ctx, "run-2", id, domain.SourceState{
				Status:      domain.SourceCompleted,
				RecordCount: 3,
				CompletedAt: time.Now().UTC(),
			})
			if err != nil {
				t.Errorf("CommitSource %s: %v", id, err)
			}
		}(sourceID)
	}
	wg.Wait()

	state, ok, err := store.Load(ctx, "run-2")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	for _, sourceID := range sources {
		if !state.SourceDone(sourceID) {
			t.Fatalf("source %s not committed", sourceID)
		}
	}
}

func TestFileStoreCommitSourceUnknownRun(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	err := store.CommitSource(context.Background(), "missing", "feed-a", domain.SourceState{})
	if err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

func TestFileStoreEditionWriteOnce(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := domain.Edition{RunID: "run-3", ArticleCount: 5}
	if err := store.SaveEdition(ctx, first); err != nil {
		t.Fatalf("SaveEdition: %v", err)
	}

	second := domain.Edition{RunID: "run-3", ArticleCount: 99}
	if err := store.SaveEdition(ctx, second); err != nil {
		t.Fatalf("SaveEdition repeat: %v", err)
	}

	edition, ok, err := store.LoadEdition(ctx, "run-3")
	if err != nil || !ok {
		t.Fatalf("LoadEdition: ok=%v err=%v", ok, err)
	}
	if edition.ArticleCount != 5 {
		t.Fatalf("edition overwritten: count=%d", edition.ArticleCount)
	}
}

func TestFileStoreCleanup(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	old := domain.RunState{RunID: "old-run", Stage: domain.StageCompleted, StartedAt: cutoff.Add(-48 * time.Hour)}
	fresh := domain.RunState{RunID: "fresh-run", Stage: domain.StageCompleted, StartedAt: cutoff.Add(time.Hour)}
	if err := store.Save(ctx, old); err != nil {
		t.Fatalf("Save old: %v", err)
	}
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("Save fresh: %v", err)
	}
	if err := store.SaveEdition(ctx, domain.Edition{RunID: "old-run"}); err != nil {
		t.Fatalf("SaveEdition: %v", err)
	}

	removed, err := store.Cleanup(ctx, cutoff)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed files, got %d", removed)
	}

	if _, ok, _ := store.Load(ctx, "old-run"); ok {
		t.Fatalf("old run not removed")
	}
	if _, ok, _ := store.Load(ctx, "fresh-run"); !ok {
		t.Fatalf("fresh run removed")
	}
}
