// Package search provides full-text search over the three record
// collections, Meilisearch first with a Postgres fallback.
package search

// ResultType identifies the kind of record in a search result.
type ResultType string

const (
	ResultKBEntry ResultType = "kb_entry"
	ResultFaq     ResultType = "faq"
	ResultRfpQA   ResultType = "rfp_qa"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      int64      `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push records into a search index.
type Indexer interface {
	IndexKBEntry(record KBEntryRecord) error
	IndexFaq(record FaqRecord) error
	DeleteKBEntry(id int64) error
}

// KBEntryRecord is the data we index for a knowledge-base entry.
type KBEntryRecord struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
	Category string `json:"category"`
	Keywords string `json:"keywords"`
	Status   string `json:"status"`
}

// FaqRecord is the data we index for an FAQ.
type FaqRecord struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Status   string `json:"status"`
}

// RfpQARecord is the data we index for an RFP Q&A pair.
type RfpQARecord struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
