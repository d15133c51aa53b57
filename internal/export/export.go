// Package export renders knowledge base articles to downloadable
// documents, PDF through headless Chrome and DOCX through pandoc.
package export

import (
	"errors"
	"fmt"

	"curator/api/internal/format"
	"curator/api/internal/store"
)

// Format is the requested output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat validates a format query parameter, defaulting to PDF.
func ParseFormat(raw string) (Format, error) {
	switch raw {
	case "", "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDOCX, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", raw)
	}
}

// Result is the rendered document.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing means no chromium binary is installed.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing means pandoc is not installed.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

// Service renders article previews.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Preview renders an entry exactly as the downstream knowledge base
// would display it, display formatting applied.
func (s *Service) Preview(entry store.KBEntry, f Format) (*Result, error) {
	html, err := RenderArticleHTML(ArticleData{
		Title:    format.Title(entry.ArticleTitle),
		Subtitle: format.Subtitle(entry.ArticleSubtitle),
		BodyHTML: format.Body(entry.ArticleBody),
		Category: entry.Category,
		Keywords: entry.Keywords,
		Status:   entry.Status,
		Updated:  entry.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render article: %w", err)
	}

	switch f {
	case FormatDOCX:
		return exportDOCX(html, entry.ArticleTitle)
	default:
		return exportPDF(html, entry.ArticleTitle)
	}
}
