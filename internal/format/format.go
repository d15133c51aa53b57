// Package format normalizes knowledge-base content into the constrained
// hybrid HTML+Markdown dialect the downstream publishing target accepts.
package format

import (
	"regexp"
	"strings"
)

var (
	headingMarker  = regexp.MustCompile(`#{1,6}\s`)
	boldMarkdown   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicMarkdown = regexp.MustCompile(`\*(.*?)\*`)
	codeMarkdown   = regexp.MustCompile("`([^`]+)`")
	linkMarkdown   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	blockLevelTag  = regexp.MustCompile(`^<(p|h3|h4|blockquote|pre|ul|ol)[\s>]`)
)

// Title formats an article title for display. Titles stay as written; only
// surrounding whitespace is removed. Slugging for URLs is ArticleURL's job.
func Title(s string) string {
	return strings.TrimSpace(s)
}

// Subtitle reduces a subtitle to plain text: angle brackets, Markdown
// emphasis, heading markers and backticks are all stripped.
func Subtitle(s string) string {
	out := strings.TrimSpace(s)
	out = strings.ReplaceAll(out, "<", "")
	out = strings.ReplaceAll(out, ">", "")
	out = strings.ReplaceAll(out, "**", "")
	out = strings.ReplaceAll(out, "*", "")
	out = headingMarker.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "`", "")
	out = strings.TrimLeft(out, "#")
	return strings.TrimSpace(out)
}

// Body converts article body text into the hybrid dialect: paragraphs are
// wrapped in <p> tags, bare newlines become <br>, and Markdown emphasis,
// code and link syntax become their HTML equivalents. The transform is
// idempotent, so already-formatted content passes through unchanged.
func Body(s string) string {
	paragraphs := splitParagraphs(s)
	for i, para := range paragraphs {
		if blockLevelTag.MatchString(para) {
			continue
		}
		paragraphs[i] = "<p>" + para + "</p>"
	}
	formatted := strings.Join(paragraphs, "\n\n")

	formatted = convertBareNewlines(formatted)
	formatted = boldMarkdown.ReplaceAllString(formatted, "<strong>$1</strong>")
	formatted = italicMarkdown.ReplaceAllString(formatted, "<em>$1</em>")
	formatted = codeMarkdown.ReplaceAllString(formatted, "<code>$1</code>")
	formatted = linkMarkdown.ReplaceAllString(formatted, `<a href="$2" rel="noopener">$1</a>`)
	return formatted
}

func splitParagraphs(s string) []string {
	var out []string
	for _, para := range regexp.MustCompile(`\n\s*\n`).Split(s, -1) {
		para = strings.TrimSpace(para)
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}

// convertBareNewlines replaces single newlines with <br>, leaving newlines
// adjacent to tags (closing '>' before, opening '<' after) and blank-line
// separators alone.
func convertBareNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i, r := range runes {
		if r != '\n' {
			b.WriteRune(r)
			continue
		}
		prevTag := i > 0 && (runes[i-1] == '>' || runes[i-1] == '\n')
		nextTag := i+1 < len(runes) && (runes[i+1] == '<' || runes[i+1] == '\n')
		if prevTag || nextTag {
			b.WriteRune(r)
			continue
		}
		b.WriteString("<br>")
	}
	return b.String()
}
