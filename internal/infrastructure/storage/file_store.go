package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"NewsBrief/internal/domain"
	"NewsBrief/internal/ports"
)

const (
	runFileSuffix     = ".json"
	editionFileSuffix = "-edition.json"
)

// FileStore keeps run state and editions as JSON files, one pair per run.
// It is the default backend when no database DSN is configured. A process
// mutex serializes read-modify-write of run files; concurrent processes are
// not supported.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var (
	_ ports.RunStore     = (*FileStore)(nil)
	_ ports.EditionStore = (*FileStore)(nil)
)

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the run file; a missing file means an unknown run.
func (s *FileStore) Load(_ context.Context, runID string) (domain.RunState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(runID)
}

// Save replaces the whole run file atomically via a temp file and rename.
func (s *FileStore) Save(_ context.Context, state domain.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(state)
}

// CommitSource merges one source result into the run file. The merge happens
// under the store mutex, so concurrent ingestion workers cannot lose updates.
func (s *FileStore) CommitSource(_ context.Context, runID, sourceID string, result domain.SourceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok, err := s.read(runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("commit source %s: run %s not found", sourceID, runID)
	}

	if state.Sources == nil {
		state.Sources = make(map[string]domain.SourceState)
	}
	state.Sources[sourceID] = result
	state.UpdatedAt = time.Now().UTC()

	return s.write(state)
}

// SaveEdition writes the edition file once. Repeated saves for the same run
// are no-ops so resumed runs cannot clobber a published edition.
func (s *FileStore) SaveEdition(_ context.Context, edition domain.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, edition.RunID+editionFileSuffix)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat edition %s: %w", edition.RunID, err)
	}

	return writeJSON(path, edition)
}

// LoadEdition reads a stored edition back; used by tests and tooling.
func (s *FileStore) LoadEdition(_ context.Context, runID string) (domain.Edition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(filepath.Join(s.dir, runID+editionFileSuffix))
	if os.IsNotExist(err) {
		return domain.Edition{}, false, nil
	}
	if err != nil {
		return domain.Edition{}, false, fmt.Errorf("read edition %s: %w", runID, err)
	}

	var edition domain.Edition
	if err := json.Unmarshal(raw, &edition); err != nil {
		return domain.Edition{}, false, fmt.Errorf("decode edition %s: %w", runID, err)
	}
	return edition, true, nil
}

// Cleanup deletes run and edition files whose run started before the cutoff.
// Returns the number of removed files.
func (s *FileStore) Cleanup(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read data dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, editionFileSuffix) || !strings.HasSuffix(name, runFileSuffix) {
			continue
		}

		runID := strings.TrimSuffix(name, runFileSuffix)
		state, ok, err := s.read(runID)
		if err != nil || !ok {
			continue
		}
		if !state.StartedAt.Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, name)); err == nil {
			removed++
		}
		if err := os.Remove(filepath.Join(s.dir, runID+editionFileSuffix)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *FileStore) read(runID string) (domain.RunState, bool, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, runID+runFileSuffix))
	if os.IsNotExist(err) {
		return domain.RunState{}, false, nil
	}
	if err != nil {
		return domain.RunState{}, false, fmt.Errorf("read run %s: %w", runID, err)
	}

	var state domain.RunState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.RunState{}, false, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return state, true, nil
}

func (s *FileStore) write(state domain.RunState) error {
	return writeJSON(filepath.Join(s.dir, state.RunID+runFileSuffix), state)
}

// writeJSON writes through a temp file and renames it into place so readers
// never see a partial file.
func writeJSON(path string, value any) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
