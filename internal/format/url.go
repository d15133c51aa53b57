package format

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases and hyphenates a title for use in article URLs.
func Slug(s string) string {
	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

// ArticleURL builds the natural key for a knowledge-base entry from its
// category and title, e.g. "kb/glossary/load-balancer". Import/export use it
// to decide whether an incoming row is the same article.
func ArticleURL(category, title string) string {
	return "kb/" + strings.ToLower(category) + "/" + Slug(title)
}
