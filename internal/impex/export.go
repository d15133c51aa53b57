package impex

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"time"

	"curator/api/internal/format"
	"curator/api/internal/store"
)

// ErrNoEntries means the export filter matched nothing. Callers report
// it as an empty result rather than producing a headerless file.
var ErrNoEntries = errors.New("no published entries match the export filter")

const (
	exportKBName   = "KB"
	exportLanguage = "en"
)

// Filename returns the download name for an export taken at the given
// time, e.g. kb-export-2026-08-30.csv.
func Filename(now time.Time) string {
	return "kb-export-" + now.UTC().Format("2006-01-02") + ".csv"
}

// Export writes the entries as CSV: UTF-8 with a BOM, every field
// quoted, CRLF line endings. Display formatting is applied to title,
// subtitle and body so the file matches what the catalog serves.
func Export(w io.Writer, entries []store.KBEntry) error {
	if len(entries) == 0 {
		return ErrNoEntries
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("\ufeff"); err != nil {
		return err
	}
	if err := writeRow(bw, columns); err != nil {
		return err
	}

	for _, entry := range entries {
		row := []string{
			exportKBName,
			format.Title(entry.ArticleTitle),
			format.Subtitle(entry.ArticleSubtitle),
			exportLanguage,
			entry.ArticleURL,
			format.Body(entry.ArticleBody),
			entry.Category,
			entry.Subcategory,
			entry.Keywords,
			entry.UpdatedAt.UTC().Format(time.RFC3339),
			entry.Status,
			"false",
		}
		if err := writeRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeRow quotes every field unconditionally. encoding/csv only
// quotes when forced to, and the receiving system expects all fields
// quoted.
func writeRow(w *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := w.WriteString(strings.ReplaceAll(field, `"`, `""`)); err != nil {
			return err
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}
