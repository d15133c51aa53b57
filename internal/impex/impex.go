// Package impex converts knowledge base entries to and from the flat
// CSV shape used for bulk transfer, detecting collisions on the
// article URL natural key and reporting per-row outcomes.
package impex

// Conflict records a natural-key collision found during import when
// overwrite was not requested.
type Conflict struct {
	ArticleURL   string `json:"article_url"`
	ExistingDate string `json:"existing_date"`
	ImportDate   string `json:"import_date"`
}

// RowError is a per-row import failure. Row numbers are 1-based and
// count data rows, not the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Report aggregates the outcome of a full import run. Every row ends
// up in exactly one of processed, skipped, conflicts or errors.
type Report struct {
	Total     int        `json:"total"`
	Processed int        `json:"processed"`
	Skipped   int        `json:"skipped"`
	Conflicts []Conflict `json:"conflicts"`
	Errors    []RowError `json:"errors"`
}

// columns is the fixed export schema. Import tolerates reordered,
// missing or extra columns via header-driven mapping.
var columns = []string{
	"Knowledge base name",
	"Article title",
	"Article subtitle",
	"Article language",
	"Article URL",
	"Article body",
	"Category",
	"Subcategory",
	"Keywords",
	"Last modified date",
	"Status",
	"Archived",
}
