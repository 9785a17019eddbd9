package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	openai "github.com/openai/openai-go"

	"NewsBrief/internal/ports"
)

func testSummarizer() *Summarizer {
	return &Summarizer{
		maxSummaryChars: 200,
		categories:      []string{"technology", "business", "general"},
	}
}

func TestParsePlainJSON(t *testing.T) {
	t.Parallel()

	s := testSummarizer()
	enrichment, err := s.parse(`{"summary": "Chipmaker posts record quarter.", "categories": ["Technology"]}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if enrichment.Summary != "Chipmaker posts record quarter." {
		t.Fatalf("unexpected summary: %q", enrichment.Summary)
	}
	if len(enrichment.Categories) != 1 || enrichment.Categories[0] != "technology" {
		t.Fatalf("unexpected categories: %v", enrichment.Categories)
	}
}

func TestParseFencedJSON(t *testing.T) {
	t.Parallel()

	s := testSummarizer()
	reply := "```json\n{\"summary\": \"Short note.\", \"categories\": [\"business\"]}\n```"
	enrichment, err := s.parse(reply)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if enrichment.Summary != "Short note." {
		t.Fatalf("unexpected summary: %q", enrichment.Summary)
	}
}

func TestParseDropsUnknownCategories(t *testing.T) {
	t.Parallel()

	s := testSummarizer()
	enrichment, err := s.parse(`{"summary": "Note.", "categories": ["gossip", "business"]}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(enrichment.Categories) != 1 || enrichment.Categories[0] != "business" {
		t.Fatalf("unexpected categories: %v", enrichment.Categories)
	}
}

func TestParseTruncatesSummary(t *testing.T) {
	t.Parallel()

	s := testSummarizer()
	s.maxSummaryChars = 10
	enrichment, err := s.parse(`{"summary": "This summary is far too long to keep.", "categories": []}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if got := len([]rune(enrichment.Summary)); got > 10 {
		t.Fatalf("summary not truncated, %d runes", got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	s := testSummarizer()
	if _, err := s.parse("I cannot help with that."); err == nil {
		t.Fatalf("expected error for non-JSON reply")
	}
	if _, err := s.parse(`{"summary": "", "categories": []}`); err == nil {
		t.Fatalf("expected error for empty summary")
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("é", 20) + strings.Repeat("漢", 20)
	got := truncate(text, 30)

	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if n := len([]rune(got)); n > 30 {
		t.Fatalf("truncate kept %d runes, want at most 30", n)
	}

	short := "plain ascii"
	if truncate(short, 100) != short {
		t.Fatalf("short input must pass through unchanged")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limited", &openai.Error{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", &openai.Error{StatusCode: http.StatusBadGateway}, true},
		{"timeout", context.DeadlineExceeded, true},
		{"bad request", &openai.Error{StatusCode: http.StatusBadRequest}, false},
		{"unauthorized", &openai.Error{StatusCode: http.StatusUnauthorized}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ports.IsTransient(classify(tc.err)); got != tc.transient {
				t.Fatalf("transient = %v, want %v", got, tc.transient)
			}
		})
	}
}
