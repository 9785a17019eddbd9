package domain

import "time"

// Section is an ordered run of enriched articles under one category label.
type Section struct {
	Category string            `json:"category"`
	Rank     int               `json:"rank"`
	Articles []EnrichedArticle `json:"articles"`
}

// Edition is the pipeline's terminal artifact: one newsletter's worth of
// assembled content for a single run. Write-once at the persistence boundary.
type Edition struct {
	RunID        string    `json:"run_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	SourceCount  int       `json:"source_count"`
	ArticleCount int       `json:"article_count"`
	FailureCount int       `json:"failure_count"`
	Sections     []Section `json:"sections"`
}

// Empty reports whether the edition carries no publishable sections.
func (e Edition) Empty() bool {
	return len(e.Sections) == 0
}
