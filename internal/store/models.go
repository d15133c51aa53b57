package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection names accepted by AdjacentID.
const (
	CollectionRfpQA     = "rfp_qa"
	CollectionFaqs      = "faqs"
	CollectionKBEntries = "kb_entries"
)

// KB entry categories accepted by the downstream knowledge base.
var KBCategories = []string{
	"Glossary",
	"FAQs",
	"Getting started",
	"Troubleshooting",
	"General",
	"Reports",
	"Integrations",
}

func ValidKBCategory(category string) bool {
	for _, c := range KBCategories {
		if c == category {
			return true
		}
	}
	return false
}

// RfpQA is a question/answer pair lifted from an RFP document. Rows are
// created by an external ingestion process and are read-only here.
type RfpQA struct {
	ID        int64
	Question  string
	Answer    string
	Metadata  map[string]json.RawMessage
	CreatedAt time.Time
}

type Faq struct {
	ID         int64
	Question   string
	Answer     string
	Visibility string
	Status     string
	Notes      string
	RfpQaID    *int64
	Metadata   FaqMetadata
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type KBEntry struct {
	ID              int64
	ArticleTitle    string
	ArticleSubtitle string
	ArticleBody     string
	Category        string
	Subcategory     string
	Keywords        string
	ArticleURL      string
	InternalStatus  string
	Visibility      string
	Status          string
	Notes           string
	Metadata        KBMetadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FaqMetadata types the known metadata keys and keeps unknown ones intact.
type FaqMetadata struct {
	SourceRfpID *int64
	Extra       map[string]json.RawMessage
}

func (m FaqMetadata) MarshalJSON() ([]byte, error) {
	merged := make(map[string]json.RawMessage, len(m.Extra)+1)
	for k, v := range m.Extra {
		merged[k] = v
	}
	if m.SourceRfpID != nil {
		raw, err := json.Marshal(*m.SourceRfpID)
		if err != nil {
			return nil, err
		}
		merged["source_rfp_id"] = raw
	}
	return json.Marshal(merged)
}

func (m *FaqMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("faq metadata: %w", err)
	}
	*m = FaqMetadata{}
	for k, v := range raw {
		if k == "source_rfp_id" {
			var id int64
			if err := json.Unmarshal(v, &id); err == nil {
				m.SourceRfpID = &id
				continue
			}
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[k] = v
	}
	return nil
}

// Citation is a numbered source reference attached by LLM-assisted drafting.
type Citation struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// KBMetadata types the known metadata keys and keeps unknown ones intact.
type KBMetadata struct {
	Citations []Citation
	Extra     map[string]json.RawMessage
}

func (m KBMetadata) MarshalJSON() ([]byte, error) {
	merged := make(map[string]json.RawMessage, len(m.Extra)+1)
	for k, v := range m.Extra {
		merged[k] = v
	}
	if len(m.Citations) > 0 {
		raw, err := json.Marshal(m.Citations)
		if err != nil {
			return nil, err
		}
		merged["citations"] = raw
	}
	return json.Marshal(merged)
}

func (m *KBMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("kb metadata: %w", err)
	}
	*m = KBMetadata{}
	for k, v := range raw {
		if k == "citations" {
			var citations []Citation
			if err := json.Unmarshal(v, &citations); err == nil {
				m.Citations = citations
				continue
			}
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[k] = v
	}
	return nil
}

// FaqFilter narrows ListFaqs. Query is a case-insensitive substring match
// over question and answer.
type FaqFilter struct {
	Query      string
	Visibility string
	Status     string
	OrderDesc  bool
}

// KBFilter narrows ListKBEntries. Query matches title, body and keywords.
type KBFilter struct {
	Query          string
	Category       string
	InternalStatus string
	Visibility     string
	Status         string
	ArticleURL     string
}

// KBEntryPatch carries the fields of a partial update; nil means untouched.
type KBEntryPatch struct {
	ArticleTitle    *string
	ArticleSubtitle *string
	ArticleBody     *string
	Category        *string
	Subcategory     *string
	Keywords        *string
	ArticleURL      *string
	InternalStatus  *string
	Visibility      *string
	Status          *string
	Notes           *string
	Metadata        *KBMetadata
}

type FaqPatch struct {
	Question   *string
	Answer     *string
	Visibility *string
	Status     *string
	Notes      *string
}
