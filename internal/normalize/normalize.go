// Package normalize converts raw scraped records into canonical articles.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"NewsBrief/internal/domain"
)

// ValidationError reports a raw record that cannot become an Article. The
// orchestrator drops the record and continues the source.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

// publishedAtLayouts covers the date shapes the configured sources emit.
var publishedAtLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// trackingParams are query parameters stripped before identity derivation so
// syndicated copies of one URL collapse to one key.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
	"ref":    true,
	"source": true,
}

// Normalize validates a raw record and produces the canonical Article. Pure
// function: identical input always yields an identical identity key.
func Normalize(raw domain.RawRecord) (domain.Article, error) {
	title := collapseSpace(raw.Title)
	if title == "" {
		return domain.Article{}, &ValidationError{Field: "title", Reason: "is empty"}
	}
	if strings.TrimSpace(raw.URL) == "" {
		return domain.Article{}, &ValidationError{Field: "url", Reason: "is empty"}
	}
	if strings.TrimSpace(raw.SourceID) == "" {
		return domain.Article{}, &ValidationError{Field: "source_id", Reason: "is empty"}
	}

	publishedAt, err := parsePublishedAt(raw.PublishedAt)
	if err != nil {
		return domain.Article{}, &ValidationError{Field: "published_at", Reason: err.Error()}
	}

	canonicalURL, err := CanonicalURL(raw.URL)
	if err != nil {
		return domain.Article{}, &ValidationError{Field: "url", Reason: err.Error()}
	}

	article := domain.Article{
		Title:       title,
		URL:         canonicalURL,
		SourceID:    strings.TrimSpace(raw.SourceID),
		PublishedAt: publishedAt,
		BodyText:    strings.TrimSpace(raw.BodyExcerpt),
		Raw:         &raw,
	}
	article.IdentityKey = identityKey(article)

	return article, nil
}

// CanonicalURL lowercases scheme/host, drops fragments and tracking query
// parameters, and strips the trailing slash.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("cannot be parsed: %v", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("is not absolute")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	query := u.Query()
	for param := range query {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			query.Del(param)
		}
	}
	u.RawQuery = query.Encode()

	u.Path = strings.TrimRight(u.Path, "/")

	return u.String(), nil
}

// identityKey fingerprints the normalized article. URL-based when the URL has
// a distinguishing path or query, otherwise title+source+date.
func identityKey(article domain.Article) string {
	material := "url|" + article.URL
	if bareURL(article.URL) {
		material = fmt.Sprintf("title|%s|%s|%s",
			strings.ToLower(article.Title),
			article.SourceID,
			article.PublishedAt.UTC().Format("2006-01-02"))
	}

	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:16])
}

// bareURL reports whether the canonical URL carries nothing beyond the host,
// which makes it useless as an identity (every article would collide).
func bareURL(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return true
	}
	return u.Path == "" && u.RawQuery == ""
}

func parsePublishedAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("is empty")
	}

	for _, layout := range publishedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable value %q", value)
}

func collapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
