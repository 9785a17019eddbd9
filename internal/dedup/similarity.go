package dedup

import (
	"strings"
	"unicode"

	"NewsBrief/internal/domain"
)

type tokenizedArticle struct {
	article domain.Article
	tokens  map[string]bool
}

func tokenize(article domain.Article) tokenizedArticle {
	return tokenizedArticle{
		article: article,
		tokens:  titleTokens(article.Title),
	}
}

// titleTokens lowercases the title, strips punctuation, and returns the token
// set. Single-character tokens carry no signal and are dropped.
func titleTokens(title string) map[string]bool {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title)

	tokens := make(map[string]bool)
	for _, token := range strings.Fields(cleaned) {
		if len(token) > 1 {
			tokens[token] = true
		}
	}
	return tokens
}

// jaccard is the token-set overlap ratio |A∩B| / |A∪B|.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if b[token] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
