package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"NewsBrief/internal/config"
	"NewsBrief/internal/domain"
	"NewsBrief/internal/ports"
)

const maxBodyChars = 4000

// Summarizer produces a short summary and category labels for an article
// using the OpenAI chat completions API.
type Summarizer struct {
	client          openai.Client
	model           string
	maxSummaryChars int
	categories      []string
	logger          *slog.Logger
}

var _ ports.Summarizer = (*Summarizer)(nil)

// NewSummarizer builds the adapter from configuration. The API key is
// required; base URL is optional for proxies and compatible endpoints.
func NewSummarizer(cfg config.OpenAIConfig, assembly config.AssemblyConfig, logger *slog.Logger) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Summarizer{
		client:          openai.NewClient(opts...),
		model:           cfg.Model,
		maxSummaryChars: cfg.MaxSummaryChars,
		categories:      assembly.Categories,
		logger:          logger.With("component", "summarizer"),
	}, nil
}

type enrichmentPayload struct {
	Summary    string   `json:"summary"`
	Categories []string `json:"categories"`
}

// Enrich asks the model for a summary and category labels in a single call.
// Rate-limit and server-side failures are marked transient so the caller can
// retry them; malformed responses are permanent.
func (s *Summarizer) Enrich(ctx context.Context, article domain.Article) (domain.Enrichment, error) {
	body := truncate(article.BodyText, maxBodyChars)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(s.systemPrompt()),
			openai.UserMessage(s.userPrompt(article.Title, body)),
		},
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return domain.Enrichment{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return domain.Enrichment{}, errors.New("openai: empty choices")
	}

	enrichment, err := s.parse(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.Enrichment{}, fmt.Errorf("parse model response: %w", err)
	}

	s.logger.Debug("article enriched", "key", article.IdentityKey, "categories", enrichment.Categories)
	return enrichment, nil
}

func (s *Summarizer) systemPrompt() string {
	return "You are an editor producing concise news digests. " +
		"Reply with a single JSON object and nothing else."
}

func (s *Summarizer) userPrompt(title, body string) string {
	return fmt.Sprintf(
		"Summarize the article below in at most %d characters and pick one or two "+
			"categories from this list: %s.\n"+
			"Respond as JSON: {\"summary\": \"...\", \"categories\": [\"...\"]}\n\n"+
			"Title: %s\n\n%s",
		s.maxSummaryChars, strings.Join(s.categories, ", "), title, body,
	)
}

// parse extracts the JSON object from the model reply, tolerating code
// fences, then normalizes the summary length and category labels.
func (s *Summarizer) parse(content string) (domain.Enrichment, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return domain.Enrichment{}, fmt.Errorf("no JSON object in reply: %q", content)
	}

	var payload enrichmentPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return domain.Enrichment{}, err
	}

	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		return domain.Enrichment{}, errors.New("empty summary in reply")
	}
	if s.maxSummaryChars > 0 {
		summary = truncate(summary, s.maxSummaryChars)
	}

	return domain.Enrichment{
		Summary:    summary,
		Categories: s.filterCategories(payload.Categories),
	}, nil
}

// filterCategories keeps only labels from the configured vocabulary. An
// empty result is returned as-is; the enrichment coordinator applies the
// fallback category.
func (s *Summarizer) filterCategories(labels []string) []string {
	var out []string
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		for _, allowed := range s.categories {
			if label == allowed {
				out = append(out, label)
				break
			}
		}
	}
	return out
}

// truncate cuts on rune boundaries so a multi-byte character is never split.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit]))
}

// classify wraps retryable API failures in the transient marker. Timeouts,
// rate limits and server errors are worth retrying; everything else is not.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ports.Transient(err)
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusRequestTimeout,
			apierr.StatusCode == http.StatusTooManyRequests,
			apierr.StatusCode >= http.StatusInternalServerError:
			return ports.Transient(err)
		}
	}
	return err
}
