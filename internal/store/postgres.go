package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- RFP Q&A ---

const rfpQAColumns = `id, question, answer, COALESCE(metadata, '{}'::jsonb), created_at`

func (s *PostgresStore) ListRfpQA(ctx context.Context, query string) ([]RfpQA, error) {
	sqlQuery := `SELECT ` + rfpQAColumns + ` FROM rfp_qa`
	var args []any
	if query != "" {
		sqlQuery += ` WHERE question ILIKE $1 OR answer ILIKE $1`
		args = append(args, "%"+query+"%")
	}
	sqlQuery += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list rfp qa: %w", err)
	}
	defer rows.Close()

	var records []RfpQA
	for rows.Next() {
		var record RfpQA
		var metadata []byte
		if err := rows.Scan(&record.ID, &record.Question, &record.Answer, &metadata, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rfp qa: %w", err)
		}
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("decode rfp qa metadata: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetRfpQA(ctx context.Context, id int64) (RfpQA, error) {
	var record RfpQA
	var metadata []byte
	err := s.db.QueryRowContext(ctx, `SELECT `+rfpQAColumns+` FROM rfp_qa WHERE id=$1`, id).
		Scan(&record.ID, &record.Question, &record.Answer, &metadata, &record.CreatedAt)
	if err != nil {
		return RfpQA{}, err
	}
	if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
		return RfpQA{}, fmt.Errorf("decode rfp qa metadata: %w", err)
	}
	return record, nil
}

// --- FAQ ---

const faqColumns = `id, question, answer, visibility, status, COALESCE(notes, ''), rfp_qa_id, COALESCE(metadata, '{}'::jsonb), created_at, updated_at`

func scanFaq(scan func(...any) error) (Faq, error) {
	var faq Faq
	var metadata []byte
	if err := scan(&faq.ID, &faq.Question, &faq.Answer, &faq.Visibility, &faq.Status, &faq.Notes, &faq.RfpQaID, &metadata, &faq.CreatedAt, &faq.UpdatedAt); err != nil {
		return Faq{}, err
	}
	if err := json.Unmarshal(metadata, &faq.Metadata); err != nil {
		return Faq{}, fmt.Errorf("decode faq metadata: %w", err)
	}
	return faq, nil
}

func (s *PostgresStore) ListFaqs(ctx context.Context, filter FaqFilter) ([]Faq, error) {
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Query != "" {
		p := arg("%" + filter.Query + "%")
		conditions = append(conditions, fmt.Sprintf("(question ILIKE %s OR answer ILIKE %s)", p, p))
	}
	if filter.Visibility != "" {
		conditions = append(conditions, "visibility = "+arg(filter.Visibility))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}

	sqlQuery := `SELECT ` + faqColumns + ` FROM faqs`
	if len(conditions) > 0 {
		sqlQuery += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	if filter.OrderDesc {
		sqlQuery += ` ORDER BY id DESC`
	} else {
		sqlQuery += ` ORDER BY id ASC`
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list faqs: %w", err)
	}
	defer rows.Close()

	var faqs []Faq
	for rows.Next() {
		faq, err := scanFaq(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		faqs = append(faqs, faq)
	}
	return faqs, rows.Err()
}

// ListFaqsByRfpID finds FAQs derived from an RFP Q&A record through the
// metadata back-reference.
func (s *PostgresStore) ListFaqsByRfpID(ctx context.Context, rfpID int64) ([]Faq, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+faqColumns+` FROM faqs
		WHERE rfp_qa_id = $1 OR metadata->>'source_rfp_id' = $2
		ORDER BY id ASC
	`, rfpID, fmt.Sprintf("%d", rfpID))
	if err != nil {
		return nil, fmt.Errorf("list faqs by rfp id: %w", err)
	}
	defer rows.Close()

	var faqs []Faq
	for rows.Next() {
		faq, err := scanFaq(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		faqs = append(faqs, faq)
	}
	return faqs, rows.Err()
}

func (s *PostgresStore) GetFaq(ctx context.Context, id int64) (Faq, error) {
	return scanFaq(s.db.QueryRowContext(ctx, `SELECT `+faqColumns+` FROM faqs WHERE id=$1`, id).Scan)
}

func (s *PostgresStore) CreateFaq(ctx context.Context, faq Faq) (Faq, error) {
	metadata, err := json.Marshal(faq.Metadata)
	if err != nil {
		return Faq{}, fmt.Errorf("encode faq metadata: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO faqs (question, answer, visibility, status, notes, rfp_qa_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, faq.Question, faq.Answer, faq.Visibility, faq.Status, faq.Notes, faq.RfpQaID, metadata).
		Scan(&faq.ID, &faq.CreatedAt, &faq.UpdatedAt)
	if err != nil {
		return Faq{}, fmt.Errorf("insert faq: %w", err)
	}
	return faq, nil
}

func (s *PostgresStore) UpdateFaq(ctx context.Context, id int64, patch FaqPatch) (Faq, error) {
	var sets []string
	var args []any
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Question != nil {
		set("question", *patch.Question)
	}
	if patch.Answer != nil {
		set("answer", *patch.Answer)
	}
	if patch.Visibility != nil {
		set("visibility", *patch.Visibility)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if len(sets) == 0 {
		return s.GetFaq(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE faqs SET %s WHERE id = $%d RETURNING `+faqColumns,
		strings.Join(sets, ", "), len(args))
	return scanFaq(s.db.QueryRowContext(ctx, query, args...).Scan)
}

// --- KB entries ---

const kbColumns = `id, article_title, COALESCE(article_subtitle, ''), article_body, category,
	COALESCE(subcategory, ''), COALESCE(keywords, ''), article_url, internal_status, visibility,
	status, COALESCE(notes, ''), COALESCE(metadata, '{}'::jsonb), created_at, updated_at`

func scanKBEntry(scan func(...any) error) (KBEntry, error) {
	var entry KBEntry
	var metadata []byte
	err := scan(&entry.ID, &entry.ArticleTitle, &entry.ArticleSubtitle, &entry.ArticleBody,
		&entry.Category, &entry.Subcategory, &entry.Keywords, &entry.ArticleURL,
		&entry.InternalStatus, &entry.Visibility, &entry.Status, &entry.Notes,
		&metadata, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return KBEntry{}, err
	}
	if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
		return KBEntry{}, fmt.Errorf("decode kb metadata: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListKBEntries(ctx context.Context, filter KBFilter) ([]KBEntry, error) {
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Query != "" {
		p := arg("%" + filter.Query + "%")
		conditions = append(conditions, fmt.Sprintf("(article_title ILIKE %s OR article_body ILIKE %s OR keywords ILIKE %s)", p, p, p))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = "+arg(filter.Category))
	}
	if filter.InternalStatus != "" {
		conditions = append(conditions, "internal_status = "+arg(filter.InternalStatus))
	}
	if filter.Visibility != "" {
		conditions = append(conditions, "visibility = "+arg(filter.Visibility))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if filter.ArticleURL != "" {
		conditions = append(conditions, "article_url = "+arg(filter.ArticleURL))
	}

	sqlQuery := `SELECT ` + kbColumns + ` FROM kb_entries`
	if len(conditions) > 0 {
		sqlQuery += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	sqlQuery += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list kb entries: %w", err)
	}
	defer rows.Close()

	var entries []KBEntry
	for rows.Next() {
		entry, err := scanKBEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan kb entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) GetKBEntry(ctx context.Context, id int64) (KBEntry, error) {
	return scanKBEntry(s.db.QueryRowContext(ctx, `SELECT `+kbColumns+` FROM kb_entries WHERE id=$1`, id).Scan)
}

// FindKBEntryByArticleURL looks up an entry by its natural key. found=false
// is not an error; import uses it to choose insert vs. conflict.
func (s *PostgresStore) FindKBEntryByArticleURL(ctx context.Context, articleURL string) (KBEntry, bool, error) {
	entry, err := scanKBEntry(s.db.QueryRowContext(ctx,
		`SELECT `+kbColumns+` FROM kb_entries WHERE article_url=$1`, articleURL).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return KBEntry{}, false, nil
	}
	if err != nil {
		return KBEntry{}, false, fmt.Errorf("find kb entry by url: %w", err)
	}
	return entry, true, nil
}

func (s *PostgresStore) CreateKBEntry(ctx context.Context, entry KBEntry) (KBEntry, error) {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return KBEntry{}, fmt.Errorf("encode kb metadata: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO kb_entries (article_title, article_subtitle, article_body, category,
			subcategory, keywords, article_url, internal_status, visibility, status, notes, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, entry.ArticleTitle, entry.ArticleSubtitle, entry.ArticleBody, entry.Category,
		entry.Subcategory, entry.Keywords, entry.ArticleURL, entry.InternalStatus,
		entry.Visibility, entry.Status, entry.Notes, metadata).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return KBEntry{}, fmt.Errorf("insert kb entry: %w", err)
	}
	return entry, nil
}

// UpsertKBEntryByArticleURL inserts or updates in one statement, keyed by the
// article_url uniqueness constraint. Overwrite-mode import goes through this
// so two concurrent imports of the same key cannot both insert.
func (s *PostgresStore) UpsertKBEntryByArticleURL(ctx context.Context, entry KBEntry) (KBEntry, error) {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return KBEntry{}, fmt.Errorf("encode kb metadata: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO kb_entries (article_title, article_subtitle, article_body, category,
			subcategory, keywords, article_url, internal_status, visibility, status, notes, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (article_url) DO UPDATE SET
			article_title = EXCLUDED.article_title,
			article_subtitle = EXCLUDED.article_subtitle,
			article_body = EXCLUDED.article_body,
			category = EXCLUDED.category,
			subcategory = EXCLUDED.subcategory,
			keywords = EXCLUDED.keywords,
			internal_status = EXCLUDED.internal_status,
			visibility = EXCLUDED.visibility,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, entry.ArticleTitle, entry.ArticleSubtitle, entry.ArticleBody, entry.Category,
		entry.Subcategory, entry.Keywords, entry.ArticleURL, entry.InternalStatus,
		entry.Visibility, entry.Status, entry.Notes, metadata).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return KBEntry{}, fmt.Errorf("upsert kb entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) UpdateKBEntry(ctx context.Context, id int64, patch KBEntryPatch) (KBEntry, error) {
	var sets []string
	var args []any
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.ArticleTitle != nil {
		set("article_title", *patch.ArticleTitle)
	}
	if patch.ArticleSubtitle != nil {
		set("article_subtitle", *patch.ArticleSubtitle)
	}
	if patch.ArticleBody != nil {
		set("article_body", *patch.ArticleBody)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.Subcategory != nil {
		set("subcategory", *patch.Subcategory)
	}
	if patch.Keywords != nil {
		set("keywords", *patch.Keywords)
	}
	if patch.ArticleURL != nil {
		set("article_url", *patch.ArticleURL)
	}
	if patch.InternalStatus != nil {
		set("internal_status", *patch.InternalStatus)
	}
	if patch.Visibility != nil {
		set("visibility", *patch.Visibility)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if patch.Metadata != nil {
		metadata, err := json.Marshal(*patch.Metadata)
		if err != nil {
			return KBEntry{}, fmt.Errorf("encode kb metadata: %w", err)
		}
		set("metadata", metadata)
	}
	if len(sets) == 0 {
		return s.GetKBEntry(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE kb_entries SET %s WHERE id = $%d RETURNING `+kbColumns,
		strings.Join(sets, ", "), len(args))
	return scanKBEntry(s.db.QueryRowContext(ctx, query, args...).Scan)
}

func (s *PostgresStore) DeleteKBEntry(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM kb_entries WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete kb entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete kb entry: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Navigation ---

// AdjacentID returns the nearest id before or after the given one within a
// collection, or nil when there is none. collection must be one of the
// Collection* constants; anything else is rejected before touching SQL.
func (s *PostgresStore) AdjacentID(ctx context.Context, collection string, id int64, previous bool) (*int64, error) {
	switch collection {
	case CollectionRfpQA, CollectionFaqs, CollectionKBEntries:
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE id > $1 ORDER BY id ASC LIMIT 1`, collection)
	if previous {
		query = fmt.Sprintf(`SELECT id FROM %s WHERE id < $1 ORDER BY id DESC LIMIT 1`, collection)
	}

	var adjacent int64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&adjacent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("adjacent id: %w", err)
	}
	return &adjacent, nil
}
