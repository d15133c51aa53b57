package impex

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"curator/api/internal/format"
	"curator/api/internal/store"
)

// EntryStore is the slice of the record store the importer needs.
type EntryStore interface {
	FindKBEntryByArticleURL(ctx context.Context, articleURL string) (store.KBEntry, bool, error)
	UpsertKBEntryByArticleURL(ctx context.Context, entry store.KBEntry) (store.KBEntry, error)
}

// Options controls a single import run.
type Options struct {
	Category  string // restrict to one category; empty imports all
	Overwrite bool   // replace existing entries instead of reporting conflicts
}

// Importer runs CSV imports against the record store.
type Importer struct {
	store EntryStore
}

func NewImporter(s EntryStore) *Importer {
	return &Importer{store: s}
}

// Run parses the CSV and processes rows sequentially. Row failures are
// accumulated in the report, never aborting the batch; only a
// malformed file or a storage failure returns an error.
func (im *Importer) Run(ctx context.Context, r io.Reader, opts Options) (Report, error) {
	report := Report{
		Conflicts: []Conflict{},
		Errors:    []RowError{},
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return report, fmt.Errorf("empty file")
	}
	if err != nil {
		return report, fmt.Errorf("read header: %w", err)
	}
	cols := mapHeader(header)
	if len(cols) == 0 {
		return report, fmt.Errorf("no recognizable columns in header")
	}

	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowNum++
			report.Total++
			report.Errors = append(report.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		rowNum++
		report.Total++

		row := readRow(cols, record)
		if blankRow(row) {
			report.Total--
			continue
		}

		if err := im.processRow(ctx, rowNum, row, opts, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

type row struct {
	title        string
	subtitle     string
	body         string
	category     string
	subcategory  string
	keywords     string
	articleURL   string
	lastModified string
	status       string
}

func (im *Importer) processRow(ctx context.Context, rowNum int, r row, opts Options, report *Report) error {
	var missing []string
	if r.title == "" {
		missing = append(missing, "title")
	}
	if r.body == "" {
		missing = append(missing, "body")
	}
	if r.category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		report.Errors = append(report.Errors, RowError{
			Row:     rowNum,
			Message: "missing required fields: " + strings.Join(missing, ", "),
		})
		return nil
	}

	if !store.ValidKBCategory(r.category) {
		report.Errors = append(report.Errors, RowError{
			Row:     rowNum,
			Message: fmt.Sprintf("unknown category %q", r.category),
		})
		return nil
	}

	if opts.Category != "" && r.category != opts.Category {
		report.Skipped++
		return nil
	}

	articleURL := r.articleURL
	if articleURL == "" {
		articleURL = format.ArticleURL(r.category, r.title)
	}

	existing, found, err := im.store.FindKBEntryByArticleURL(ctx, articleURL)
	if err != nil {
		return fmt.Errorf("row %d: lookup %s: %w", rowNum, articleURL, err)
	}
	if found && !opts.Overwrite {
		report.Conflicts = append(report.Conflicts, Conflict{
			ArticleURL:   articleURL,
			ExistingDate: existing.UpdatedAt.UTC().Format(time.RFC3339),
			ImportDate:   r.lastModified,
		})
		return nil
	}

	internalStatus, visibility := format.WorkflowFromPublication(r.status)
	entry := store.KBEntry{
		ArticleTitle:    format.Title(r.title),
		ArticleSubtitle: r.subtitle,
		ArticleBody:     r.body,
		Category:        r.category,
		Subcategory:     r.subcategory,
		Keywords:        r.keywords,
		ArticleURL:      articleURL,
		InternalStatus:  internalStatus,
		Visibility:      visibility,
		Status:          format.PublicationStatus(internalStatus, visibility),
	}

	if _, err := im.store.UpsertKBEntryByArticleURL(ctx, entry); err != nil {
		return fmt.Errorf("row %d: upsert %s: %w", rowNum, articleURL, err)
	}
	report.Processed++
	return nil
}

// mapHeader matches column names case- and whitespace-insensitively.
// A leading BOM on the first column is tolerated.
func mapHeader(header []string) map[string]int {
	cols := make(map[string]int)
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		key := strings.ToLower(strings.Join(strings.Fields(name), " "))
		if key != "" {
			cols[key] = i
		}
	}
	return cols
}

func readRow(cols map[string]int, record []string) row {
	cell := func(key string) string {
		i, ok := cols[key]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	return row{
		title:        cell("article title"),
		subtitle:     cell("article subtitle"),
		body:         cell("article body"),
		category:     cell("category"),
		subcategory:  cell("subcategory"),
		keywords:     cell("keywords"),
		articleURL:   cell("article url"),
		lastModified: cell("last modified date"),
		status:       cell("status"),
	}
}

func blankRow(r row) bool {
	return r.title == "" && r.subtitle == "" && r.body == "" &&
		r.category == "" && r.articleURL == "" && r.keywords == ""
}
