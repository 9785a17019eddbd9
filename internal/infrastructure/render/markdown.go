package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"NewsBrief/internal/domain"
	"NewsBrief/internal/ports"
)

// MarkdownRenderer builds the digest as markdown and converts it to HTML for
// email delivery.
type MarkdownRenderer struct {
	title string
}

var _ ports.Renderer = (*MarkdownRenderer)(nil)

// NewMarkdownRenderer uses the given title as the document heading.
func NewMarkdownRenderer(title string) *MarkdownRenderer {
	if title == "" {
		title = "NewsBrief"
	}
	return &MarkdownRenderer{title: title}
}

// Render produces the HTML document for the edition.
func (r *MarkdownRenderer) Render(edition domain.Edition) ([]byte, error) {
	md := r.markdown(edition)

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// Markdown exposes the intermediate document for logging and tests.
func (r *MarkdownRenderer) Markdown(edition domain.Edition) string {
	return r.markdown(edition)
}

func (r *MarkdownRenderer) markdown(edition domain.Edition) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s — %s\n\n", r.title, edition.GeneratedAt.Format("January 2, 2006"))

	if edition.Empty() {
		b.WriteString("No stories made the cut today.\n")
		return b.String()
	}

	for _, section := range edition.Sections {
		fmt.Fprintf(&b, "## %s\n\n", sectionTitle(section.Category))
		for _, article := range section.Articles {
			fmt.Fprintf(&b, "- **[%s](%s)**", article.Article.Title, article.Article.URL)
			if article.GroupSize > 1 {
				fmt.Fprintf(&b, " _(reported by %d sources)_", article.GroupSize)
			}
			b.WriteString("\n")
			if article.Summary != "" {
				fmt.Fprintf(&b, "  %s\n", article.Summary)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n\n%d stories from %d sources", edition.ArticleCount, edition.SourceCount)
	if edition.FailureCount > 0 {
		fmt.Fprintf(&b, " (%d could not be summarized)", edition.FailureCount)
	}
	b.WriteString("\n")

	return b.String()
}

func sectionTitle(category string) string {
	if category == "" {
		return "General"
	}
	return strings.ToUpper(category[:1]) + category[1:]
}
