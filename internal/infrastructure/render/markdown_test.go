package render

import (
	"strings"
	"testing"
	"time"

	"NewsBrief/internal/domain"
)

func sampleEdition() domain.Edition {
	return domain.Edition{
		RunID:        "run-1",
		GeneratedAt:  time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC),
		SourceCount:  3,
		ArticleCount: 2,
		FailureCount: 1,
		Sections: []domain.Section{
			{
				Category: "technology",
				Rank:     0,
				Articles: []domain.EnrichedArticle{
					{
						Article: domain.Article{
							Title: "Chipmaker posts record quarter",
							URL:   "https://example.com/chips",
						},
						Summary:   "Record revenue on datacenter demand.",
						Status:    domain.EnrichmentSuccess,
						GroupSize: 3,
					},
					{
						Article: domain.Article{
							Title: "New framework released",
							URL:   "https://example.com/framework",
						},
						Summary:   "Major version with breaking changes.",
						Status:    domain.EnrichmentSuccess,
						GroupSize: 1,
					},
				},
			},
		},
	}
}

func TestMarkdownLayout(t *testing.T) {
	t.Parallel()

	r := NewMarkdownRenderer("NewsBrief")
	md := r.Markdown(sampleEdition())

	for _, want := range []string{
		"# NewsBrief — August 20, 2026",
		"## Technology",
		"[Chipmaker posts record quarter](https://example.com/chips)",
		"(reported by 3 sources)",
		"Record revenue on datacenter demand.",
		"2 stories from 3 sources",
		"(1 could not be summarized)",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}

	if strings.Contains(md, "reported by 1 sources") {
		t.Fatalf("singleton group should not carry a source note:\n%s", md)
	}
}

func TestRenderProducesHTML(t *testing.T) {
	t.Parallel()

	r := NewMarkdownRenderer("NewsBrief")
	html, err := r.Render(sampleEdition())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	doc := string(html)
	for _, want := range []string{
		"<h1>",
		"<h2>Technology</h2>",
		`<a href="https://example.com/chips">`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("html missing %q:\n%s", want, doc)
		}
	}
}

func TestRenderEmptyEdition(t *testing.T) {
	t.Parallel()

	r := NewMarkdownRenderer("NewsBrief")
	edition := domain.Edition{
		RunID:       "run-2",
		GeneratedAt: time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC),
	}

	html, err := r.Render(edition)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(html), "No stories made the cut today.") {
		t.Fatalf("empty edition message missing:\n%s", html)
	}
}
