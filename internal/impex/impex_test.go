package impex

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"curator/api/internal/format"
	"curator/api/internal/store"
)

type memStore struct {
	entries map[string]store.KBEntry
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]store.KBEntry{}, nextID: 1}
}

func (m *memStore) FindKBEntryByArticleURL(_ context.Context, articleURL string) (store.KBEntry, bool, error) {
	entry, ok := m.entries[articleURL]
	return entry, ok, nil
}

func (m *memStore) UpsertKBEntryByArticleURL(_ context.Context, entry store.KBEntry) (store.KBEntry, error) {
	if existing, ok := m.entries[entry.ArticleURL]; ok {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	} else {
		entry.ID = m.nextID
		m.nextID++
		entry.CreatedAt = time.Now()
	}
	entry.UpdatedAt = time.Now()
	m.entries[entry.ArticleURL] = entry
	return entry, nil
}

func publishedEntry(title, category string) store.KBEntry {
	return store.KBEntry{
		ArticleTitle:   title,
		ArticleBody:    "Body of " + title,
		Category:       category,
		ArticleURL:     format.ArticleURL(category, title),
		InternalStatus: format.InternalApproved,
		Visibility:     format.VisibilityPublic,
		Status:         format.StatusPublished,
		UpdatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestExportFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, []store.KBEntry{publishedEntry("Widget Basics", "General")})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "\ufeff") {
		t.Error("missing UTF-8 BOM")
	}
	if !strings.Contains(out, "\r\n") {
		t.Error("expected CRLF line endings")
	}
	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(strings.TrimPrefix(lines[0], "\ufeff"), `"Knowledge base name","Article title"`) {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"Widget Basics"`) {
		t.Errorf("row missing quoted title: %s", lines[1])
	}
	if !strings.Contains(lines[1], `"PUBLISHED"`) {
		t.Errorf("row missing status: %s", lines[1])
	}
}

func TestExportQuotesEmbeddedQuotes(t *testing.T) {
	entry := publishedEntry(`The "Special" Case`, "General")
	var buf bytes.Buffer
	if err := Export(&buf, []store.KBEntry{entry}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(buf.String(), `"The ""Special"" Case"`) {
		t.Errorf("embedded quotes not doubled: %s", buf.String())
	}
}

func TestExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, nil); err != ErrNoEntries {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("expected no output for empty export")
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	if got := Filename(now); got != "kb-export-2026-08-30.csv" {
		t.Errorf("Filename = %q", got)
	}
}

func TestImportRoundTrip(t *testing.T) {
	entries := []store.KBEntry{
		publishedEntry("Widget Basics", "General"),
		publishedEntry("What Is A Sprocket", "Glossary"),
	}

	var buf bytes.Buffer
	if err := Export(&buf, entries); err != nil {
		t.Fatalf("export: %v", err)
	}

	s := newMemStore()
	report, err := NewImporter(s).Run(context.Background(), &buf, Options{Overwrite: true})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Total != 2 || report.Processed != 2 {
		t.Fatalf("report = %+v", report)
	}

	for _, want := range entries {
		got, ok := s.entries[want.ArticleURL]
		if !ok {
			t.Fatalf("entry %s not imported", want.ArticleURL)
		}
		if got.ArticleTitle != want.ArticleTitle {
			t.Errorf("title = %q, want %q", got.ArticleTitle, want.ArticleTitle)
		}
		if got.Category != want.Category {
			t.Errorf("category = %q, want %q", got.Category, want.Category)
		}
		if got.Status != format.StatusPublished {
			t.Errorf("status = %q, want PUBLISHED", got.Status)
		}
	}
}

func TestImportConflictWithoutOverwrite(t *testing.T) {
	s := newMemStore()
	seeded, _ := s.UpsertKBEntryByArticleURL(context.Background(), publishedEntry("Widget Basics", "General"))

	csvData := strings.Join([]string{
		`"Article title","Article body","Category","Article URL","Last modified date","Status"`,
		`"Widget Basics","Updated body","General","` + seeded.ArticleURL + `","2026-04-01T00:00:00Z","PUBLISHED"`,
		`"Brand New","New body","General","kb/general/brand-new","2026-04-01T00:00:00Z","DRAFT"`,
	}, "\r\n")

	report, err := NewImporter(s).Run(context.Background(), strings.NewReader(csvData), Options{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("processed = %d, want 1", report.Processed)
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v", report.Conflicts)
	}
	conflict := report.Conflicts[0]
	if conflict.ArticleURL != seeded.ArticleURL {
		t.Errorf("conflict url = %q", conflict.ArticleURL)
	}
	if conflict.ExistingDate == "" || conflict.ImportDate != "2026-04-01T00:00:00Z" {
		t.Errorf("conflict dates = %+v", conflict)
	}
	if s.entries[seeded.ArticleURL].ArticleBody != "Body of Widget Basics" {
		t.Error("existing entry was overwritten without overwrite flag")
	}

	newEntry := s.entries["kb/general/brand-new"]
	if newEntry.InternalStatus != format.InternalDraft || newEntry.Visibility != format.VisibilityPrivate {
		t.Errorf("non-published import mapped to %s/%s", newEntry.InternalStatus, newEntry.Visibility)
	}
}

func TestImportConflictOverwrite(t *testing.T) {
	s := newMemStore()
	seeded, _ := s.UpsertKBEntryByArticleURL(context.Background(), publishedEntry("Widget Basics", "General"))

	csvData := strings.Join([]string{
		`"Article title","Article body","Category","Article URL","Status"`,
		`"Widget Basics","Updated body","General","` + seeded.ArticleURL + `","PUBLISHED"`,
	}, "\r\n")

	report, err := NewImporter(s).Run(context.Background(), strings.NewReader(csvData), Options{Overwrite: true})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Processed != 1 || len(report.Conflicts) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if s.entries[seeded.ArticleURL].ArticleBody != "Updated body" {
		t.Error("overwrite did not replace body")
	}
}

func TestImportMissingRequiredFields(t *testing.T) {
	csvData := strings.Join([]string{
		`"Article title","Article body","Category"`,
		`"Has Title","",""`,
	}, "\r\n")

	report, err := NewImporter(newMemStore()).Run(context.Background(), strings.NewReader(csvData), Options{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Processed != 0 || len(report.Errors) != 1 {
		t.Fatalf("report = %+v", report)
	}
	msg := report.Errors[0].Message
	if !strings.Contains(msg, "body") || !strings.Contains(msg, "category") {
		t.Errorf("error should name missing fields: %q", msg)
	}
	if strings.Contains(msg, "title") {
		t.Errorf("error names a present field: %q", msg)
	}
}

func TestImportUnknownCategory(t *testing.T) {
	csvData := strings.Join([]string{
		`"Article title","Article body","Category"`,
		`"A","body","Recipes"`,
	}, "\r\n")

	report, err := NewImporter(newMemStore()).Run(context.Background(), strings.NewReader(csvData), Options{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0].Message, "Recipes") {
		t.Fatalf("report = %+v", report)
	}
}

func TestImportCategoryFilterSkips(t *testing.T) {
	csvData := strings.Join([]string{
		`"Article title","Article body","Category"`,
		`"A","body","General"`,
		`"B","body","Glossary"`,
	}, "\r\n")

	report, err := NewImporter(newMemStore()).Run(context.Background(), strings.NewReader(csvData), Options{Category: "Glossary"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Processed != 1 || report.Skipped != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestImportHeaderTolerance(t *testing.T) {
	csvData := strings.Join([]string{
		`"  article TITLE  ","ARTICLE BODY","category"`,
		`"Tolerant","body","General"`,
	}, "\r\n")

	s := newMemStore()
	report, err := NewImporter(s).Run(context.Background(), strings.NewReader(csvData), Options{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if _, ok := s.entries[format.ArticleURL("General", "Tolerant")]; !ok {
		t.Error("derived article URL missing for row without explicit URL")
	}
}
