package format

import (
	"strings"
	"testing"
)

func TestPublicationStatus(t *testing.T) {
	cases := []struct {
		internal   string
		visibility string
		want       string
	}{
		{InternalApproved, VisibilityPublic, StatusPublished},
		{InternalApproved, VisibilityPrivate, StatusDraft},
		{InternalDraft, VisibilityPublic, StatusDraft},
		{InternalDraft, VisibilityPrivate, StatusDraft},
		{InternalReview, VisibilityPublic, StatusDraft},
		{InternalNeedsWork, VisibilityPublic, StatusDraft},
	}
	for _, tc := range cases {
		if got := PublicationStatus(tc.internal, tc.visibility); got != tc.want {
			t.Errorf("PublicationStatus(%q, %q) = %q, want %q", tc.internal, tc.visibility, got, tc.want)
		}
	}
}

func TestWorkflowFromPublication(t *testing.T) {
	internal, visibility := WorkflowFromPublication(StatusPublished)
	if internal != InternalApproved || visibility != VisibilityPublic {
		t.Errorf("PUBLISHED mapped to %q/%q", internal, visibility)
	}
	internal, visibility = WorkflowFromPublication("DRAFT")
	if internal != InternalDraft || visibility != VisibilityPrivate {
		t.Errorf("DRAFT mapped to %q/%q", internal, visibility)
	}
	internal, visibility = WorkflowFromPublication("anything else")
	if internal != InternalDraft || visibility != VisibilityPrivate {
		t.Errorf("unknown status mapped to %q/%q", internal, visibility)
	}
}

func TestTitleTrimsOnly(t *testing.T) {
	if got := Title("  Load Balancer  "); got != "Load Balancer" {
		t.Errorf("Title = %q", got)
	}
	if got := Title("VXLAN: An Overview"); got != "VXLAN: An Overview" {
		t.Errorf("Title must preserve punctuation, got %q", got)
	}
}

func TestSubtitleStripsMarkup(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  plain subtitle  ", "plain subtitle"},
		{"**bold** and *italic*", "bold and italic"},
		{"## A heading", "A heading"},
		{"#NoSpaceHeading", "NoSpaceHeading"},
		{"uses `code` spans", "uses code spans"},
		{"has <em>tags</em> inside", "has emtags/em inside"},
	}
	for _, tc := range cases {
		if got := Subtitle(tc.in); got != tc.want {
			t.Errorf("Subtitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSubtitleNeverContainsMarkup(t *testing.T) {
	inputs := []string{
		"### **Heavily** *marked* `up` <b>subtitle</b>",
		"#leading hash",
		"a ** b ** c",
		"<>",
	}
	for _, in := range inputs {
		got := Subtitle(in)
		if strings.ContainsAny(got, "<>") || strings.Contains(got, "**") || strings.HasPrefix(got, "#") {
			t.Errorf("Subtitle(%q) = %q still contains markup", in, got)
		}
	}
}

func TestBodyWrapsParagraphs(t *testing.T) {
	got := Body("first paragraph\n\nsecond paragraph")
	want := "<p>first paragraph</p>\n\n<p>second paragraph</p>"
	if got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

func TestBodyPreservesBlockTags(t *testing.T) {
	in := "<p>already wrapped</p>\n\n<h3>Heading</h3>\n\n<ul><li>item</li></ul>"
	if got := Body(in); got != in {
		t.Errorf("Body rewrapped block tags: %q", got)
	}
}

func TestBodyConvertsInlineNewlines(t *testing.T) {
	got := Body("line one\nline two")
	want := "<p>line one<br>line two</p>"
	if got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

func TestBodyConvertsMarkdown(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"**bold**", "<p><strong>bold</strong></p>"},
		{"some *emphasis* here", "<p>some <em>emphasis</em> here</p>"},
		{"run `curl` locally", "<p>run <code>curl</code> locally</p>"},
		{"see [the docs](https://example.com)", `<p>see <a href="https://example.com" rel="noopener">the docs</a></p>`},
	}
	for _, tc := range cases {
		if got := Body(tc.in); got != tc.want {
			t.Errorf("Body(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBodyIdempotent(t *testing.T) {
	inputs := []string{
		"plain paragraph",
		"first\n\nsecond\n\nthird",
		"line one\nline two\n\n**bold** and *italic* and `code`",
		"see [docs](https://example.com)\n\n<h3>Existing heading</h3>\nwith a continuation",
		"<p>already formatted</p>\n\n<p>with <strong>markup</strong><br>and breaks</p>",
		"",
	}
	for _, in := range inputs {
		once := Body(in)
		twice := Body(once)
		if once != twice {
			t.Errorf("Body not idempotent for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Load Balancer", "load-balancer"},
		{"  What is VXLAN?  ", "what-is-vxlan"},
		{"BGP/EVPN (overview)", "bgp-evpn-overview"},
		{"---", ""},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestArticleURL(t *testing.T) {
	if got := ArticleURL("Glossary", "Load Balancer"); got != "kb/glossary/load-balancer" {
		t.Errorf("ArticleURL = %q", got)
	}
	if got := ArticleURL("Getting started", "First Steps"); got != "kb/getting started/first-steps" {
		t.Errorf("ArticleURL = %q", got)
	}
}
