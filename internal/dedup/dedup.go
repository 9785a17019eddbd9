// Package dedup groups articles that describe the same story across sources.
package dedup

import (
	"sort"
	"time"

	"NewsBrief/internal/domain"
)

const (
	DefaultThreshold = 0.5
	DefaultWindow    = 48 * time.Hour
)

// Grouper performs exact-key grouping followed by near-duplicate merging.
// The pass is single-threaded and deterministic: given the same input
// sequence and parameters it produces identical groups and canonicals.
type Grouper struct {
	threshold float64
	window    time.Duration
}

// NewGrouper builds a grouper; non-positive parameters fall back to defaults.
func NewGrouper(threshold float64, window time.Duration) *Grouper {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Grouper{threshold: threshold, window: window}
}

// Group covers every input article exactly once. Identity-key matches merge
// first; remaining groups merge when their representatives' titles overlap
// above the threshold and their publish times sit within the window. Both
// conditions must hold, so same-title-different-story pairs far apart in time
// stay separate.
func (g *Grouper) Group(articles []domain.Article) []domain.DedupGroup {
	if len(articles) == 0 {
		return nil
	}

	// Exact phase: one bucket per identity key, in first-seen order.
	keyIndex := make(map[string]int)
	var buckets [][]domain.Article
	for _, article := range articles {
		if idx, ok := keyIndex[article.IdentityKey]; ok {
			buckets[idx] = append(buckets[idx], article)
			continue
		}
		keyIndex[article.IdentityKey] = len(buckets)
		buckets = append(buckets, []domain.Article{article})
	}

	// Similarity phase: union-find over bucket representatives. Union-find
	// yields the transitive closure of the pairwise relation, so membership
	// is symmetric and transitive and independent of comparison order.
	parent := make([]int, len(buckets))
	for i := range parent {
		parent[i] = i
	}
	reps := make([]tokenizedArticle, len(buckets))
	for i, bucket := range buckets {
		// Representative is the canonical-ordered minimum, not the first-seen
		// member, so the similarity relation does not depend on input order.
		rep := bucket[0]
		for _, member := range bucket[1:] {
			if lessCanonical(member, rep) {
				rep = member
			}
		}
		reps[i] = tokenize(rep)
	}

	for i := 0; i < len(buckets); i++ {
		for j := i + 1; j < len(buckets); j++ {
			if g.similar(reps[i], reps[j]) {
				union(parent, i, j)
			}
		}
	}

	merged := make(map[int][]domain.Article)
	var order []int
	for i, bucket := range buckets {
		root := find(parent, i)
		if _, seen := merged[root]; !seen {
			order = append(order, root)
		}
		merged[root] = append(merged[root], bucket...)
	}

	groups := make([]domain.DedupGroup, 0, len(order))
	for _, root := range order {
		groups = append(groups, buildGroup(merged[root]))
	}
	return groups
}

func (g *Grouper) similar(a, b tokenizedArticle) bool {
	delta := a.article.PublishedAt.Sub(b.article.PublishedAt)
	if delta < 0 {
		delta = -delta
	}
	if delta > g.window {
		return false
	}
	return jaccard(a.tokens, b.tokens) >= g.threshold
}

// buildGroup picks the canonical member and orders the rest. Tie-break:
// non-empty body, then earliest published_at, then smallest source_id, then
// smallest identity key so selection is total.
func buildGroup(members []domain.Article) domain.DedupGroup {
	sorted := make([]domain.Article, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessCanonical(sorted[i], sorted[j])
	})

	return domain.DedupGroup{
		Canonical:  sorted[0],
		Duplicates: sorted[1:],
	}
}

func lessCanonical(a, b domain.Article) bool {
	aHasBody := a.BodyText != ""
	bHasBody := b.BodyText != ""
	if aHasBody != bHasBody {
		return aHasBody
	}
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.Before(b.PublishedAt)
	}
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	return a.IdentityKey < b.IdentityKey
}

func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}

func union(parent []int, i, j int) {
	ri, rj := find(parent, i), find(parent, j)
	if ri == rj {
		return
	}
	// Smaller root wins so the result is order-independent.
	if ri < rj {
		parent[rj] = ri
	} else {
		parent[ri] = rj
	}
}
