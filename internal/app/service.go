package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"curator/api/internal/audit"
	"curator/api/internal/export"
	"curator/api/internal/format"
	"curator/api/internal/impex"
	"curator/api/internal/llm"
	"curator/api/internal/prompts"
	"curator/api/internal/search"
	"curator/api/internal/store"
)

type dataStore interface {
	Ping(ctx context.Context) error

	ListRfpQA(ctx context.Context, query string) ([]store.RfpQA, error)
	GetRfpQA(ctx context.Context, id int64) (store.RfpQA, error)

	ListFaqs(ctx context.Context, filter store.FaqFilter) ([]store.Faq, error)
	ListFaqsByRfpID(ctx context.Context, rfpID int64) ([]store.Faq, error)
	GetFaq(ctx context.Context, id int64) (store.Faq, error)
	CreateFaq(ctx context.Context, faq store.Faq) (store.Faq, error)
	UpdateFaq(ctx context.Context, id int64, patch store.FaqPatch) (store.Faq, error)

	ListKBEntries(ctx context.Context, filter store.KBFilter) ([]store.KBEntry, error)
	GetKBEntry(ctx context.Context, id int64) (store.KBEntry, error)
	FindKBEntryByArticleURL(ctx context.Context, articleURL string) (store.KBEntry, bool, error)
	CreateKBEntry(ctx context.Context, entry store.KBEntry) (store.KBEntry, error)
	UpsertKBEntryByArticleURL(ctx context.Context, entry store.KBEntry) (store.KBEntry, error)
	UpdateKBEntry(ctx context.Context, id int64, patch store.KBEntryPatch) (store.KBEntry, error)
	DeleteKBEntry(ctx context.Context, id int64) error

	AdjacentID(ctx context.Context, collection string, id int64, previous bool) (*int64, error)
}

// changeJournal is the audit trail for knowledge base entries. Journal
// failures are logged, never surfaced: the write already happened.
type changeJournal interface {
	RecordCreate(entry store.KBEntry, author string) error
	RecordUpdate(entry store.KBEntry, author string) error
	RecordDelete(id int64, reason, author string) error
	History(id int64, limit int) ([]audit.Change, error)
}

type searcher interface {
	Search(q search.Query) search.Response
	IndexKBEntry(rec search.KBEntryRecord)
	IndexFaq(rec search.FaqRecord)
	DeleteKBEntry(id int64)
}

type promptStore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, template string) error
	Reset(ctx context.Context, name string) error
	All(ctx context.Context) (map[string]string, error)
}

type previewer interface {
	Preview(entry store.KBEntry, f export.Format) (*export.Result, error)
}

type Service struct {
	store    dataStore
	search   searcher
	journal  changeJournal
	prompts  promptStore
	llm      llm.Client
	llmModel string
	preview  previewer
	importer *impex.Importer
}

func New(dataStore dataStore, searchSvc searcher, journal changeJournal, promptSvc promptStore, llmClient llm.Client, llmModel string, preview previewer) *Service {
	return &Service{
		store:    dataStore,
		search:   searchSvc,
		journal:  journal,
		prompts:  promptSvc,
		llm:      llmClient,
		llmModel: llmModel,
		preview:  preview,
		importer: impex.NewImporter(dataStore),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// RFP Q&A records are read-only source material.

func (s *Service) ListRfpQA(ctx context.Context, query string) ([]store.RfpQA, error) {
	return s.store.ListRfpQA(ctx, query)
}

func (s *Service) GetRfpQA(ctx context.Context, id int64) (store.RfpQA, error) {
	return s.store.GetRfpQA(ctx, id)
}

// Navigation reports the neighboring record ids within a collection.
type Navigation struct {
	PrevID *int64 `json:"prevId"`
	NextID *int64 `json:"nextId"`
}

func (s *Service) Navigation(ctx context.Context, collection string, id int64) (Navigation, error) {
	switch collection {
	case store.CollectionRfpQA, store.CollectionFaqs, store.CollectionKBEntries:
	default:
		return Navigation{}, validationError(fmt.Sprintf("unknown collection %q", collection), nil)
	}

	prev, err := s.store.AdjacentID(ctx, collection, id, true)
	if err != nil {
		return Navigation{}, err
	}
	next, err := s.store.AdjacentID(ctx, collection, id, false)
	if err != nil {
		return Navigation{}, err
	}
	return Navigation{PrevID: prev, NextID: next}, nil
}

// FAQs

type CreateFaqInput struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Visibility  string `json:"visibility"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	RfpQaID     *int64 `json:"rfpQaId"`
	SourceRfpID *int64 `json:"sourceRfpId"`
}

type UpdateFaqInput struct {
	Question   *string `json:"question"`
	Answer     *string `json:"answer"`
	Visibility *string `json:"visibility"`
	Status     *string `json:"status"`
	Notes      *string `json:"notes"`
}

func (s *Service) ListFaqs(ctx context.Context, filter store.FaqFilter) ([]store.Faq, error) {
	return s.store.ListFaqs(ctx, filter)
}

func (s *Service) GetFaq(ctx context.Context, id int64) (store.Faq, error) {
	return s.store.GetFaq(ctx, id)
}

func (s *Service) RelatedFaqs(ctx context.Context, rfpID int64) ([]store.Faq, error) {
	return s.store.ListFaqsByRfpID(ctx, rfpID)
}

func (s *Service) CreateFaq(ctx context.Context, input CreateFaqInput) (store.Faq, error) {
	var missing []string
	if strings.TrimSpace(input.Question) == "" {
		missing = append(missing, "question")
	}
	if strings.TrimSpace(input.Answer) == "" {
		missing = append(missing, "answer")
	}
	if len(missing) > 0 {
		return store.Faq{}, validationError("missing required fields", missing)
	}

	faq := store.Faq{
		Question:   strings.TrimSpace(input.Question),
		Answer:     strings.TrimSpace(input.Answer),
		Visibility: defaultString(input.Visibility, "private"),
		Status:     defaultString(input.Status, "draft"),
		Notes:      input.Notes,
		RfpQaID:    input.RfpQaID,
		Metadata:   store.FaqMetadata{SourceRfpID: input.SourceRfpID},
	}
	if faq.RfpQaID == nil && input.SourceRfpID != nil {
		faq.RfpQaID = input.SourceRfpID
	}

	created, err := s.store.CreateFaq(ctx, faq)
	if err != nil {
		return store.Faq{}, err
	}
	s.search.IndexFaq(search.FaqRecord{
		ID:       created.ID,
		Question: created.Question,
		Answer:   created.Answer,
		Status:   created.Status,
	})
	return created, nil
}

func (s *Service) UpdateFaq(ctx context.Context, id int64, input UpdateFaqInput) (store.Faq, error) {
	if input.Question != nil && strings.TrimSpace(*input.Question) == "" {
		return store.Faq{}, validationError("question cannot be empty", nil)
	}
	if input.Answer != nil && strings.TrimSpace(*input.Answer) == "" {
		return store.Faq{}, validationError("answer cannot be empty", nil)
	}

	updated, err := s.store.UpdateFaq(ctx, id, store.FaqPatch{
		Question:   input.Question,
		Answer:     input.Answer,
		Visibility: input.Visibility,
		Status:     input.Status,
		Notes:      input.Notes,
	})
	if err != nil {
		return store.Faq{}, err
	}
	s.search.IndexFaq(search.FaqRecord{
		ID:       updated.ID,
		Question: updated.Question,
		Answer:   updated.Answer,
		Status:   updated.Status,
	})
	return updated, nil
}

// Knowledge base entries

type CreateKBEntryInput struct {
	ArticleTitle    string `json:"article_title"`
	ArticleSubtitle string `json:"article_subtitle"`
	ArticleBody     string `json:"article_body"`
	Category        string `json:"category"`
	Subcategory     string `json:"subcategory"`
	Keywords        string `json:"keywords"`
	ArticleURL      string `json:"article_url"`
	InternalStatus  string `json:"internal_status"`
	Visibility      string `json:"visibility"`
	Notes           string `json:"notes"`
	Author          string `json:"author"`
}

type UpdateKBEntryInput struct {
	ArticleTitle    *string `json:"article_title"`
	ArticleSubtitle *string `json:"article_subtitle"`
	ArticleBody     *string `json:"article_body"`
	Category        *string `json:"category"`
	Subcategory     *string `json:"subcategory"`
	Keywords        *string `json:"keywords"`
	ArticleURL      *string `json:"article_url"`
	InternalStatus  *string `json:"internal_status"`
	Visibility      *string `json:"visibility"`
	Notes           *string `json:"notes"`
	Author          string  `json:"author"`
}

func (s *Service) ListKBEntries(ctx context.Context, filter store.KBFilter) ([]store.KBEntry, error) {
	return s.store.ListKBEntries(ctx, filter)
}

func (s *Service) GetKBEntry(ctx context.Context, id int64) (store.KBEntry, error) {
	return s.store.GetKBEntry(ctx, id)
}

func (s *Service) CreateKBEntry(ctx context.Context, input CreateKBEntryInput) (store.KBEntry, error) {
	var missing []string
	if strings.TrimSpace(input.ArticleTitle) == "" {
		missing = append(missing, "article_title")
	}
	if strings.TrimSpace(input.ArticleBody) == "" {
		missing = append(missing, "article_body")
	}
	if strings.TrimSpace(input.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return store.KBEntry{}, validationError("missing required fields", missing)
	}
	if !store.ValidKBCategory(input.Category) {
		return store.KBEntry{}, validationError(fmt.Sprintf("unknown category %q", input.Category), nil)
	}

	title := format.Title(input.ArticleTitle)
	articleURL := input.ArticleURL
	if articleURL == "" {
		articleURL = format.ArticleURL(input.Category, title)
	}
	if _, exists, err := s.store.FindKBEntryByArticleURL(ctx, articleURL); err != nil {
		return store.KBEntry{}, err
	} else if exists {
		return store.KBEntry{}, conflictError(fmt.Sprintf("an entry with article URL %q already exists", articleURL), nil)
	}

	internalStatus := defaultString(input.InternalStatus, format.InternalDraft)
	visibility := defaultString(input.Visibility, format.VisibilityPrivate)

	created, err := s.store.CreateKBEntry(ctx, store.KBEntry{
		ArticleTitle:    title,
		ArticleSubtitle: input.ArticleSubtitle,
		ArticleBody:     input.ArticleBody,
		Category:        input.Category,
		Subcategory:     input.Subcategory,
		Keywords:        input.Keywords,
		ArticleURL:      articleURL,
		InternalStatus:  internalStatus,
		Visibility:      visibility,
		Status:          format.PublicationStatus(internalStatus, visibility),
		Notes:           input.Notes,
	})
	if err != nil {
		return store.KBEntry{}, err
	}

	s.indexKBEntry(created)
	if err := s.journal.RecordCreate(created, input.Author); err != nil {
		log.Printf("app: journal create for entry %d: %v", created.ID, err)
	}
	return created, nil
}

func (s *Service) UpdateKBEntry(ctx context.Context, id int64, input UpdateKBEntryInput) (store.KBEntry, error) {
	if input.Category != nil && !store.ValidKBCategory(*input.Category) {
		return store.KBEntry{}, validationError(fmt.Sprintf("unknown category %q", *input.Category), nil)
	}
	if input.ArticleTitle != nil && strings.TrimSpace(*input.ArticleTitle) == "" {
		return store.KBEntry{}, validationError("article_title cannot be empty", nil)
	}

	current, err := s.store.GetKBEntry(ctx, id)
	if err != nil {
		return store.KBEntry{}, err
	}

	patch := store.KBEntryPatch{
		ArticleTitle:    input.ArticleTitle,
		ArticleSubtitle: input.ArticleSubtitle,
		ArticleBody:     input.ArticleBody,
		Category:        input.Category,
		Subcategory:     input.Subcategory,
		Keywords:        input.Keywords,
		ArticleURL:      input.ArticleURL,
		InternalStatus:  input.InternalStatus,
		Visibility:      input.Visibility,
		Notes:           input.Notes,
	}

	// The derived status follows every workflow change.
	internalStatus := current.InternalStatus
	if input.InternalStatus != nil {
		internalStatus = *input.InternalStatus
	}
	visibility := current.Visibility
	if input.Visibility != nil {
		visibility = *input.Visibility
	}
	status := format.PublicationStatus(internalStatus, visibility)
	patch.Status = &status

	updated, err := s.store.UpdateKBEntry(ctx, id, patch)
	if err != nil {
		return store.KBEntry{}, err
	}

	s.indexKBEntry(updated)
	if err := s.journal.RecordUpdate(updated, input.Author); err != nil {
		log.Printf("app: journal update for entry %d: %v", updated.ID, err)
	}
	return updated, nil
}

func (s *Service) DeleteKBEntry(ctx context.Context, id int64, reason, author string) error {
	if strings.TrimSpace(reason) == "" {
		return validationError("a delete reason is required", nil)
	}
	if _, err := s.store.GetKBEntry(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteKBEntry(ctx, id); err != nil {
		return err
	}
	s.search.DeleteKBEntry(id)
	if err := s.journal.RecordDelete(id, reason, author); err != nil {
		log.Printf("app: journal delete for entry %d: %v", id, err)
	}
	return nil
}

func (s *Service) KBEntryHistory(ctx context.Context, id int64) ([]audit.Change, error) {
	return s.journal.History(id, 50)
}

func (s *Service) PreviewKBEntry(ctx context.Context, id int64, f export.Format) (*export.Result, error) {
	entry, err := s.store.GetKBEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.preview.Preview(entry, f)
}

// ExportKBEntries selects what goes into a CSV export: published
// entries only, optionally narrowed to one category.
func (s *Service) ExportKBEntries(ctx context.Context, category string) ([]store.KBEntry, error) {
	if category != "" && !store.ValidKBCategory(category) {
		return nil, validationError(fmt.Sprintf("unknown category %q", category), nil)
	}
	return s.store.ListKBEntries(ctx, store.KBFilter{
		Status:   format.StatusPublished,
		Category: category,
	})
}

func (s *Service) ImportKBEntries(ctx context.Context, r io.Reader, opts impex.Options) (impex.Report, error) {
	if opts.Category != "" && !store.ValidKBCategory(opts.Category) {
		return impex.Report{}, validationError(fmt.Sprintf("unknown category %q", opts.Category), nil)
	}
	report, err := s.importer.Run(ctx, r, opts)
	if err != nil {
		return report, validationError(err.Error(), nil)
	}

	if report.Processed > 0 {
		if entries, err := s.store.ListKBEntries(ctx, store.KBFilter{}); err == nil {
			for _, entry := range entries {
				s.indexKBEntry(entry)
			}
		}
	}
	return report, nil
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

// Prompt templates

func (s *Service) ListPrompts(ctx context.Context) (map[string]string, error) {
	return s.prompts.All(ctx)
}

func (s *Service) GetPrompt(ctx context.Context, name string) (string, error) {
	if !prompts.ValidName(name) {
		return "", notFound(fmt.Sprintf("unknown prompt %q", name))
	}
	return s.prompts.Get(ctx, name)
}

func (s *Service) SetPrompt(ctx context.Context, name, template string) error {
	if !prompts.ValidName(name) {
		return notFound(fmt.Sprintf("unknown prompt %q", name))
	}
	if strings.TrimSpace(template) == "" {
		return validationError("prompt template cannot be empty", nil)
	}
	return s.prompts.Set(ctx, name, template)
}

func (s *Service) ResetPrompt(ctx context.Context, name string) (string, error) {
	if !prompts.ValidName(name) {
		return "", notFound(fmt.Sprintf("unknown prompt %q", name))
	}
	if err := s.prompts.Reset(ctx, name); err != nil {
		return "", err
	}
	return s.prompts.Get(ctx, name)
}

func (s *Service) indexKBEntry(entry store.KBEntry) {
	s.search.IndexKBEntry(search.KBEntryRecord{
		ID:       entry.ID,
		Title:    entry.ArticleTitle,
		Subtitle: entry.ArticleSubtitle,
		Body:     entry.ArticleBody,
		Category: entry.Category,
		Keywords: entry.Keywords,
		Status:   entry.Status,
	})
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
