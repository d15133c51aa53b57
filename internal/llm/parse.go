package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports which expected section was missing from a reply.
type ParseError struct {
	Missing string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm response missing %s section", e.Missing)
}

// Sections are the structured fields extracted from a delimited reply.
// Empty strings mean the section was absent (tolerated in lenient mode).
type Sections struct {
	Subtitle    string
	Body        string
	Keywords    string
	Sources     string
	Explanation string
}

var (
	tagSubtitle    = regexp.MustCompile(`(?s)<subtitle>(.*?)</subtitle>`)
	tagBody        = regexp.MustCompile(`(?s)<body>(.*?)</body>`)
	tagKeywords    = regexp.MustCompile(`(?s)<keywords>(.*?)</keywords>`)
	tagSources     = regexp.MustCompile(`(?s)<sources>(.*?)</sources>`)
	tagExplanation = regexp.MustCompile(`(?s)<explanation>(.*?)</explanation>`)
	tagResponse    = regexp.MustCompile(`(?s)<response>(.*)</response>`)

	labelSubtitle = regexp.MustCompile(`SUBTITLE:\s*\n([\s\S]*?)\n\s*\nBODY:`)
	labelBody     = regexp.MustCompile(`BODY:\s*\n([\s\S]*)$`)
)

// ParseResponse extracts subtitle/body/keywords from either the
// tag-delimited response block or the SUBTITLE:/BODY: label format. In
// strict mode a reply without both subtitle and body fails with a ParseError
// naming the first missing section instead of returning partial data.
func ParseResponse(raw string, strict bool) (Sections, error) {
	sections := Sections{}

	scope := raw
	if m := tagResponse.FindStringSubmatch(raw); m != nil {
		scope = m[1]
	}

	if m := tagSubtitle.FindStringSubmatch(scope); m != nil {
		sections.Subtitle = strings.TrimSpace(m[1])
	}
	if m := tagBody.FindStringSubmatch(scope); m != nil {
		sections.Body = strings.TrimSpace(m[1])
	}
	if m := tagKeywords.FindStringSubmatch(scope); m != nil {
		sections.Keywords = strings.TrimSpace(m[1])
	}
	if m := tagSources.FindStringSubmatch(scope); m != nil {
		sections.Sources = strings.TrimSpace(m[1])
	}
	if m := tagExplanation.FindStringSubmatch(scope); m != nil {
		sections.Explanation = strings.TrimSpace(m[1])
	}

	// Label format fallback when no tags matched.
	if sections.Subtitle == "" && sections.Body == "" {
		if m := labelSubtitle.FindStringSubmatch(raw); m != nil {
			sections.Subtitle = strings.TrimSpace(m[1])
		}
		if m := labelBody.FindStringSubmatch(raw); m != nil {
			sections.Body = strings.TrimSpace(m[1])
		}
	}

	if strict {
		if sections.Subtitle == "" {
			return Sections{}, &ParseError{Missing: "subtitle"}
		}
		if sections.Body == "" {
			return Sections{}, &ParseError{Missing: "body"}
		}
	}
	return sections, nil
}

// Outcome kinds. The gateway decides once which kind a reply is; callers
// switch on a closed set instead of sniffing string fields.
type OutcomeKind string

const (
	OutcomeMessage  OutcomeKind = "message"
	OutcomeUpdate   OutcomeKind = "update"
	OutcomeToolCall OutcomeKind = "toolCall"
)

// Outcome is the classified result of a dialogue turn.
type Outcome struct {
	Kind     OutcomeKind
	Text     string
	Fields   Sections
	ToolName string
	ToolArgs json.RawMessage
}

// Tool names the dialogue flows understand.
const (
	ToolUpdateFaq  = "update_faq"
	ToolSearchSite = "search_site"
)

// ClassifyReply decides what a dialogue reply is: a named tool invocation, a
// structured field update, or a plain assistant message. The decision is
// made here once; downstream code switches on Outcome.Kind only.
func ClassifyReply(reply Reply) Outcome {
	if reply.ToolName != "" {
		return Outcome{
			Kind:     OutcomeToolCall,
			Text:     reply.Content,
			ToolName: reply.ToolName,
			ToolArgs: reply.ToolArgs,
		}
	}

	sections, _ := ParseResponse(reply.Content, false)
	if sections.Subtitle != "" || sections.Body != "" || sections.Keywords != "" {
		return Outcome{Kind: OutcomeUpdate, Text: reply.Content, Fields: sections}
	}
	return Outcome{Kind: OutcomeMessage, Text: reply.Content}
}
