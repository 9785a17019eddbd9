// Package assemble builds a newsletter edition from enriched articles.
package assemble

import (
	"errors"
	"sort"
	"time"

	"NewsBrief/internal/domain"
)

// ErrInsufficientContent signals that no section met the publishing
// thresholds; the caller should skip publishing this run.
var ErrInsufficientContent = errors.New("no sections meet the publishing thresholds")

const (
	DefaultMaxPerSection = 10
	DefaultMinPerSection = 1
)

// Options drives section sizing and ordering.
type Options struct {
	// MaxPerSection caps each section after ordering.
	MaxPerSection int
	// MinPerSection drops sections with fewer articles.
	MinPerSection int
	// SectionOrder lists preferred categories first; unlisted categories are
	// appended alphabetically.
	SectionOrder []string
}

func (o Options) withDefaults() Options {
	if o.MaxPerSection <= 0 {
		o.MaxPerSection = DefaultMaxPerSection
	}
	if o.MinPerSection <= 0 {
		o.MinPerSection = DefaultMinPerSection
	}
	return o
}

// Meta carries run-level facts stamped onto the edition.
type Meta struct {
	RunID        string
	GeneratedAt  time.Time
	SourceCount  int
	FailureCount int
}

// Assemble selects, orders, and groups successful articles into sections.
// The pass is single-threaded and fully ordered, so identical input always
// yields an identical edition.
func Assemble(enriched []domain.EnrichedArticle, opts Options, meta Meta) (domain.Edition, error) {
	opts = opts.withDefaults()

	byCategory := make(map[string][]domain.EnrichedArticle)
	seen := make(map[string]map[string]bool)
	articleCount := 0

	for _, article := range enriched {
		if article.Status != domain.EnrichmentSuccess {
			continue
		}
		articleCount++
		// A multi-category article lands in each of its sections, but at most
		// once per section.
		for _, category := range article.Categories {
			if seen[category] == nil {
				seen[category] = make(map[string]bool)
			}
			if seen[category][article.Article.IdentityKey] {
				continue
			}
			seen[category][article.Article.IdentityKey] = true
			byCategory[category] = append(byCategory[category], article)
		}
	}

	edition := domain.Edition{
		RunID:        meta.RunID,
		GeneratedAt:  meta.GeneratedAt,
		SourceCount:  meta.SourceCount,
		ArticleCount: articleCount,
		FailureCount: meta.FailureCount,
	}

	for _, category := range orderedCategories(byCategory, opts.SectionOrder) {
		articles := byCategory[category]
		if len(articles) < opts.MinPerSection {
			continue
		}

		sort.SliceStable(articles, func(i, j int) bool {
			return lessArticle(articles[i], articles[j])
		})
		if len(articles) > opts.MaxPerSection {
			articles = articles[:opts.MaxPerSection]
		}

		edition.Sections = append(edition.Sections, domain.Section{
			Category: category,
			Rank:     len(edition.Sections),
			Articles: articles,
		})
	}

	if len(edition.Sections) == 0 {
		return edition, ErrInsufficientContent
	}
	return edition, nil
}

// lessArticle is the total order within a section: published_at descending,
// then title ascending, then identity key ascending.
func lessArticle(a, b domain.EnrichedArticle) bool {
	if !a.Article.PublishedAt.Equal(b.Article.PublishedAt) {
		return a.Article.PublishedAt.After(b.Article.PublishedAt)
	}
	if a.Article.Title != b.Article.Title {
		return a.Article.Title < b.Article.Title
	}
	return a.Article.IdentityKey < b.Article.IdentityKey
}

// orderedCategories returns the preference-list categories that are present,
// followed by the remaining ones alphabetically.
func orderedCategories(byCategory map[string][]domain.EnrichedArticle, preference []string) []string {
	listed := make(map[string]bool, len(preference))
	var ordered []string
	for _, category := range preference {
		if listed[category] {
			continue
		}
		listed[category] = true
		if _, ok := byCategory[category]; ok {
			ordered = append(ordered, category)
		}
	}

	var rest []string
	for category := range byCategory {
		if !listed[category] {
			rest = append(rest, category)
		}
	}
	sort.Strings(rest)

	return append(ordered, rest...)
}
