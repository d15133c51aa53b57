package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxKBEntries = "curator_kb_entries"
	idxFaqs      = "curator_faqs"
	idxRfpQA     = "curator_rfp_qa"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable instance is tolerated; the health loop retries and the
// service falls back to Postgres meanwhile.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxKBEntries,
			filterable: []string{"category", "status"},
			searchable: []string{"title", "subtitle", "body", "keywords"},
		},
		{
			uid:        idxFaqs,
			filterable: []string{"status"},
			searchable: []string{"question", "answer"},
		},
		{
			uid:        idxRfpQA,
			searchable: []string{"question", "answer"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		if len(idx.filterable) > 0 {
			filterable := make([]interface{}, len(idx.filterable))
			for i, v := range idx.filterable {
				filterable[i] = v
			}
			if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
				log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
			}
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries all three indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	targets := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxKBEntries, ResultKBEntry},
		{idxFaqs, ResultFaq},
		{idxRfpQA, ResultRfpQA},
	}

	var queries []*meili.SearchRequest
	for _, target := range targets {
		if q.FilterType != "" && q.FilterType != target.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID: target.uid,
			Query:    q.Text,
			Limit:    limit,
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxFaqs:
		return ResultFaq
	case idxRfpQA:
		return ResultRfpQA
	default:
		return ResultKBEntry
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeInt64(hit, "id")

	if rtyp == ResultKBEntry {
		r.Title = decodeString(hit, "title")
		r.Snippet = decodeString(hit, "subtitle")
	} else {
		r.Title = decodeString(hit, "question")
		r.Snippet = snippet(decodeString(hit, "answer"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt64(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

func snippet(s string) string {
	const max = 240
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// IndexKBEntry adds or updates a knowledge base entry in the search index.
func (m *Meili) IndexKBEntry(rec KBEntryRecord) error {
	_, err := m.client.Index(idxKBEntries).AddDocuments([]KBEntryRecord{rec}, nil)
	return err
}

// IndexFaq adds or updates an FAQ in the search index.
func (m *Meili) IndexFaq(rec FaqRecord) error {
	_, err := m.client.Index(idxFaqs).AddDocuments([]FaqRecord{rec}, nil)
	return err
}

// IndexRfpQA adds or updates an RFP answer in the search index.
func (m *Meili) IndexRfpQA(rec RfpQARecord) error {
	_, err := m.client.Index(idxRfpQA).AddDocuments([]RfpQARecord{rec}, nil)
	return err
}

// DeleteKBEntry removes a knowledge base entry from the search index.
func (m *Meili) DeleteKBEntry(id int64) error {
	_, err := m.client.Index(idxKBEntries).DeleteDocument(strconv.FormatInt(id, 10), nil)
	return err
}

// IndexKBEntries bulk-indexes knowledge base entries.
func (m *Meili) IndexKBEntries(records []KBEntryRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxKBEntries).AddDocuments(records, nil)
	return err
}

// IndexFaqs bulk-indexes FAQs.
func (m *Meili) IndexFaqs(records []FaqRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxFaqs).AddDocuments(records, nil)
	return err
}

// IndexRfpQAs bulk-indexes RFP answers.
func (m *Meili) IndexRfpQAs(records []RfpQARecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxRfpQA).AddDocuments(records, nil)
	return err
}
