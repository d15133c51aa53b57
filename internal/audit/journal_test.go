package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curator/api/internal/store"
)

func testEntry(id int64, title string) store.KBEntry {
	return store.KBEntry{
		ID:           id,
		ArticleTitle: title,
		ArticleBody:  "Body",
		Category:     "General",
		ArticleURL:   "kb/general/" + strings.ToLower(title),
		Status:       "DRAFT",
	}
}

func TestJournalLifecycle(t *testing.T) {
	dir := t.TempDir()
	journal, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	entry := testEntry(7, "Widgets")
	if err := journal.RecordCreate(entry, "Avery"); err != nil {
		t.Fatalf("RecordCreate() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "entries", "7.json")); err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}

	entry.ArticleBody = "Updated body"
	if err := journal.RecordUpdate(entry, "Avery"); err != nil {
		t.Fatalf("RecordUpdate() error = %v", err)
	}

	history, err := journal.History(7, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(history))
	}
	if !strings.HasPrefix(history[0].Message, "update kb entry 7") {
		t.Errorf("newest change = %q", history[0].Message)
	}
	if !strings.HasPrefix(history[1].Message, "create kb entry 7") {
		t.Errorf("oldest change = %q", history[1].Message)
	}
	if history[0].Author != "Avery" {
		t.Errorf("author = %q", history[0].Author)
	}
}

func TestJournalDeleteKeepsHistoryWithReason(t *testing.T) {
	dir := t.TempDir()
	journal, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := journal.RecordCreate(testEntry(3, "Obsolete"), "Avery"); err != nil {
		t.Fatalf("RecordCreate() error = %v", err)
	}
	if err := journal.RecordDelete(3, "superseded by new integration guide", "Avery"); err != nil {
		t.Fatalf("RecordDelete() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "entries", "3.json")); !os.IsNotExist(err) {
		t.Fatal("snapshot should be removed after delete")
	}

	history, err := journal.History(3, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(history))
	}
	if !strings.Contains(history[0].Message, "superseded by new integration guide") {
		t.Errorf("delete reason missing from %q", history[0].Message)
	}
}

func TestJournalReopen(t *testing.T) {
	dir := t.TempDir()
	journal, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := journal.RecordCreate(testEntry(1, "Persist"), "Avery"); err != nil {
		t.Fatalf("RecordCreate() error = %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	history, err := reopened.History(1, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 change after reopen, got %d", len(history))
	}
}

func TestJournalHistoryForUnknownEntry(t *testing.T) {
	journal, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	history, err := journal.History(99, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}
}
