package domain

import "time"

// Stage enumerates the run state machine. Transitions are sequential and
// one-directional; StageFailed is terminal and reachable from any stage.
type Stage string

const (
	StagePending       Stage = "pending"
	StageIngesting     Stage = "ingesting"
	StageDeduplicating Stage = "deduplicating"
	StageEnriching     Stage = "enriching"
	StageAssembling    Stage = "assembling"
	StageCompleted     Stage = "completed"
	StageFailed        Stage = "failed"
)

// SourceStatus tracks one source's progress within a run.
type SourceStatus string

const (
	SourcePending   SourceStatus = "pending"
	SourceCompleted SourceStatus = "completed"
	SourceFailed    SourceStatus = "failed"
)

// SourceState is the per-source ingestion result committed atomically to the
// run store, so a resumed run can skip completed sources.
type SourceState struct {
	Status       SourceStatus `json:"status"`
	Articles     []Article    `json:"articles,omitempty"`
	RecordCount  int          `json:"record_count"`
	DroppedCount int          `json:"dropped_count"`
	Error        string       `json:"error,omitempty"`
	CompletedAt  time.Time    `json:"completed_at"`
}

// RunState is the persisted progress marker for one pipeline run. It is the
// only mutable structure shared across ingestion workers; updates go through
// per-source commits.
type RunState struct {
	RunID       string                 `json:"run_id"`
	Stage       Stage                  `json:"stage"`
	FailedStage Stage                  `json:"failed_stage,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Sources     map[string]SourceState `json:"sources"`
}

// SourceDone reports whether the source finished ingestion in an earlier
// invocation and can be skipped on resume.
func (s RunState) SourceDone(sourceID string) bool {
	return s.Sources[sourceID].Status == SourceCompleted
}

// RunSummary reports item-level counters for one run. It is always produced,
// also on partial failure.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Ingested  int    `json:"ingested"`
	Dropped   int    `json:"dropped"`
	Sources   int    `json:"sources"`
	BadSource int    `json:"failed_sources"`
	Groups    int    `json:"groups"`
	Enriched  int    `json:"enriched"`
	Failed    int    `json:"failed"`
	Sections  int    `json:"sections"`
}
