package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher against Postgres for when Meilisearch
// is down or not configured.
type PgSearch struct {
	db *sql.DB
}

// NewPgSearch creates a database-backed searcher.
func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

// Search runs a UNION ALL substring match across the three record
// tables, newest first.
func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var subQueries []string
	if q.FilterType == "" || q.FilterType == ResultKBEntry {
		subQueries = append(subQueries, `
			SELECT 'kb_entry', id, article_title, LEFT(article_body, 240), updated_at FROM kb_entries
				WHERE article_title ILIKE $1 OR article_body ILIKE $1 OR keywords ILIKE $1`)
	}
	if q.FilterType == "" || q.FilterType == ResultFaq {
		subQueries = append(subQueries, `
			SELECT 'faq', id, question, LEFT(answer, 240), updated_at FROM faqs
				WHERE question ILIKE $1 OR answer ILIKE $1`)
	}
	if q.FilterType == "" || q.FilterType == ResultRfpQA {
		subQueries = append(subQueries, `
			SELECT 'rfp_qa', id, question, LEFT(answer, 240), created_at FROM rfp_qa
				WHERE question ILIKE $1 OR answer ILIKE $1`)
	}
	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	query := strings.Join(subQueries, "\nUNION ALL") + "\nORDER BY 5 DESC\nLIMIT $2"

	rows, err := p.db.Query(query, "%"+q.Text+"%", limit)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			rtyp      string
			r         Result
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&rtyp, &r.ID, &r.Title, &r.Snippet, &updatedAt); err != nil {
			return nil, 0, fmt.Errorf("pg search scan: %w", err)
		}
		r.Type = ResultType(rtyp)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return results, len(results), nil
}

// LoadAllRecords reads every searchable record out of Postgres for a
// full reindex into Meilisearch.
func (p *PgSearch) LoadAllRecords(ctx context.Context) ([]KBEntryRecord, []FaqRecord, []RfpQARecord, error) {
	entries, err := p.loadKBEntries(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	faqs, err := p.loadFaqs(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	rfpQA, err := p.loadRfpQA(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return entries, faqs, rfpQA, nil
}

func (p *PgSearch) loadKBEntries(ctx context.Context) ([]KBEntryRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, article_title, COALESCE(article_subtitle, ''), article_body, category,
			COALESCE(keywords, ''), status
		FROM kb_entries ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load kb entries: %w", err)
	}
	defer rows.Close()

	var records []KBEntryRecord
	for rows.Next() {
		var r KBEntryRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.Subtitle, &r.Body, &r.Category, &r.Keywords, &r.Status); err != nil {
			return nil, fmt.Errorf("scan kb entry: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *PgSearch) loadFaqs(ctx context.Context) ([]FaqRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, question, answer, status FROM faqs ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load faqs: %w", err)
	}
	defer rows.Close()

	var records []FaqRecord
	for rows.Next() {
		var r FaqRecord
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.Status); err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *PgSearch) loadRfpQA(ctx context.Context) ([]RfpQARecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, question, answer FROM rfp_qa ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load rfp qa: %w", err)
	}
	defer rows.Close()

	var records []RfpQARecord
	for rows.Next() {
		var r RfpQARecord
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer); err != nil {
			return nil, fmt.Errorf("scan rfp qa: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
