package domain

import "time"

// RawRecord is the untyped payload a scraper hands to the pipeline. It is
// immutable; the normalizer owns turning it into an Article.
type RawRecord struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt string    `json:"published_at"`
	BodyExcerpt string    `json:"body_excerpt"`
	SourceID    string    `json:"source_id"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Article is the canonical entity flowing through dedup and enrichment.
// IdentityKey is a pure function of the normalized fields, so re-normalizing
// identical input always yields the same key.
type Article struct {
	IdentityKey string    `json:"identity_key"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	SourceID    string    `json:"source_id"`
	PublishedAt time.Time `json:"published_at"`
	BodyText    string    `json:"body_text"`

	// Raw is a non-owning back-reference to the originating record.
	Raw *RawRecord `json:"-"`
}

// DedupGroup is a set of Articles referring to the same story. Canonical is
// the representative shown to downstream stages.
type DedupGroup struct {
	Canonical  Article   `json:"canonical"`
	Duplicates []Article `json:"duplicates,omitempty"`
}

// Size reports how many articles the group covers, canonical included.
func (g DedupGroup) Size() int {
	return 1 + len(g.Duplicates)
}

// Enrichment is what the summarizer collaborator returns for one article.
type Enrichment struct {
	Summary    string   `json:"summary"`
	Categories []string `json:"categories"`
}

// EnrichmentStatus enumerates the outcome of enriching one dedup group.
type EnrichmentStatus string

const (
	EnrichmentSuccess EnrichmentStatus = "success"
	EnrichmentFailed  EnrichmentStatus = "failed"
	EnrichmentSkipped EnrichmentStatus = "skipped"
)

// EnrichedArticle is a dedup group's canonical article plus the summarizer
// output. Immutable once created within a run.
type EnrichedArticle struct {
	Article       Article          `json:"article"`
	Summary       string           `json:"summary"`
	Categories    []string         `json:"categories"`
	Status        EnrichmentStatus `json:"status"`
	FailureReason string           `json:"failure_reason,omitempty"`
	GroupSize     int              `json:"group_size"`
}
