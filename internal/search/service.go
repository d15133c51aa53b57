package search

import (
	"context"
	"log"
	"strconv"
)

// Service is the facade that tries Meilisearch first and falls back to
// Postgres.
type Service struct {
	meili *Meili
	pg    *PgSearch
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pg *PgSearch) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.pg.Search(q)
	if err != nil {
		log.Printf("search: postgres fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexKBEntry indexes a knowledge base entry (fire-and-forget to Meilisearch).
func (s *Service) IndexKBEntry(rec KBEntryRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexKBEntry(rec); err != nil {
			log.Printf("search: index kb entry %d: %v", rec.ID, err)
		}
	}()
}

// IndexFaq indexes an FAQ (fire-and-forget to Meilisearch).
func (s *Service) IndexFaq(rec FaqRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexFaq(rec); err != nil {
			log.Printf("search: index faq %d: %v", rec.ID, err)
		}
	}()
}

// IndexRfpQA indexes an RFP answer (fire-and-forget to Meilisearch).
func (s *Service) IndexRfpQA(rec RfpQARecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexRfpQA(rec); err != nil {
			log.Printf("search: index rfp qa %d: %v", rec.ID, err)
		}
	}()
}

// DeleteKBEntry removes an entry from the search index (fire-and-forget).
func (s *Service) DeleteKBEntry(id int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteKBEntry(id); err != nil {
			log.Printf("search: delete kb entry %d: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reads all records from Postgres and pushes them to
// Meilisearch. Called during startup if Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return
	}
	entries, faqs, rfpQA, err := s.pg.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}

	if err := s.meili.IndexKBEntries(entries); err != nil {
		log.Printf("search: reindex kb entries: %v", err)
	}
	if err := s.meili.IndexFaqs(faqs); err != nil {
		log.Printf("search: reindex faqs: %v", err)
	}
	if err := s.meili.IndexRfpQAs(rfpQA); err != nil {
		log.Printf("search: reindex rfp qa: %v", err)
	}
	log.Printf("search: reindexed %d kb entries, %d faqs, %d rfp answers",
		len(entries), len(faqs), len(rfpQA))
}

// Close shuts down the Meilisearch health monitor if one is running.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

// ParseResultType validates a type filter from a query string. Returns
// the zero value for unknown input.
func ParseResultType(raw string) ResultType {
	switch ResultType(raw) {
	case ResultKBEntry, ResultFaq, ResultRfpQA:
		return ResultType(raw)
	default:
		return ""
	}
}

// ParseLimit reads a limit query parameter, clamped to [1, 100].
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
