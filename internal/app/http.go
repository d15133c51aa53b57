package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"curator/api/internal/audit"
	"curator/api/internal/export"
	"curator/api/internal/impex"
	"curator/api/internal/llm"
	"curator/api/internal/search"
	"curator/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "rfp-qa":
		s.handleRfpQA(w, r, parts[2:])
	case "faqs":
		s.handleFaqs(w, r, parts[2:])
	case "kb-entries":
		s.handleKBEntries(w, r, parts[2:])
	case "search":
		s.handleSearch(w, r, parts[2:])
	case "prompts":
		s.handlePrompts(w, r, parts[2:])
	case "llm":
		s.handleLLM(w, r, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleRfpQA(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method == http.MethodGet && len(parts) == 0 {
		records, err := s.service.ListRfpQA(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		items := make([]map[string]any, 0, len(records))
		for _, record := range records {
			items = append(items, rfpQAJSON(record))
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": items})
		return
	}

	if r.Method == http.MethodGet && len(parts) >= 1 {
		id, err := parseID(parts[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id", nil)
			return
		}

		if len(parts) == 2 && parts[1] == "navigation" {
			s.writeNavigation(w, r, store.CollectionRfpQA, id)
			return
		}
		if len(parts) == 1 {
			record, err := s.service.GetRfpQA(r.Context(), id)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			payload := rfpQAJSON(record)
			s.attachNavigation(r.Context(), payload, store.CollectionRfpQA, id)
			writeJSON(w, http.StatusOK, payload)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleFaqs(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			faqs, err := s.service.ListFaqs(r.Context(), store.FaqFilter{
				Query:      query.Get("q"),
				Visibility: query.Get("visibility"),
				Status:     query.Get("status"),
				OrderDesc:  query.Get("order") == "desc",
			})
			if err != nil {
				writeMappedError(w, err)
				return
			}
			items := make([]map[string]any, 0, len(faqs))
			for _, faq := range faqs {
				items = append(items, faqJSON(faq))
			}
			writeJSON(w, http.StatusOK, map[string]any{"faqs": items})
			return
		case http.MethodPost:
			var input CreateFaqInput
			if err := decodeBody(r, &input); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			created, err := s.service.CreateFaq(r.Context(), input)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, faqJSON(created))
			return
		}
	}

	if len(parts) == 2 && parts[0] == "related" {
		rfpID, err := parseID(parts[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid rfp id", nil)
			return
		}
		faqs, err := s.service.RelatedFaqs(r.Context(), rfpID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		items := make([]map[string]any, 0, len(faqs))
		for _, faq := range faqs {
			items = append(items, faqJSON(faq))
		}
		writeJSON(w, http.StatusOK, map[string]any{"faqs": items})
		return
	}

	if len(parts) >= 1 {
		id, err := parseID(parts[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id", nil)
			return
		}

		if len(parts) == 2 && parts[1] == "navigation" && r.Method == http.MethodGet {
			s.writeNavigation(w, r, store.CollectionFaqs, id)
			return
		}

		if len(parts) == 1 {
			switch r.Method {
			case http.MethodGet:
				faq, err := s.service.GetFaq(r.Context(), id)
				if err != nil {
					writeMappedError(w, err)
					return
				}
				payload := faqJSON(faq)
				s.attachNavigation(r.Context(), payload, store.CollectionFaqs, id)
				writeJSON(w, http.StatusOK, payload)
				return
			case http.MethodPatch, http.MethodPut:
				var input UpdateFaqInput
				if err := decodeBody(r, &input); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				updated, err := s.service.UpdateFaq(r.Context(), id, input)
				if err != nil {
					writeMappedError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, faqJSON(updated))
				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleKBEntries(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			entries, err := s.service.ListKBEntries(r.Context(), store.KBFilter{
				Query:          query.Get("q"),
				Category:       query.Get("category"),
				InternalStatus: query.Get("internal_status"),
				Visibility:     query.Get("visibility"),
				Status:         query.Get("status"),
				ArticleURL:     query.Get("article_url"),
			})
			if err != nil {
				writeMappedError(w, err)
				return
			}
			items := make([]map[string]any, 0, len(entries))
			for _, entry := range entries {
				items = append(items, kbEntryJSON(entry))
			}
			writeJSON(w, http.StatusOK, map[string]any{"entries": items})
			return
		case http.MethodPost:
			var input CreateKBEntryInput
			if err := decodeBody(r, &input); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			created, err := s.service.CreateKBEntry(r.Context(), input)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, kbEntryJSON(created))
			return
		}
	}

	if len(parts) == 1 && parts[0] == "export" && r.Method == http.MethodGet {
		s.handleKBExport(w, r)
		return
	}
	if len(parts) == 1 && parts[0] == "import" && r.Method == http.MethodPost {
		s.handleKBImport(w, r)
		return
	}

	if len(parts) >= 1 {
		id, err := parseID(parts[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id", nil)
			return
		}

		if len(parts) == 2 && r.Method == http.MethodGet {
			switch parts[1] {
			case "navigation":
				s.writeNavigation(w, r, store.CollectionKBEntries, id)
				return
			case "history":
				changes, err := s.service.KBEntryHistory(r.Context(), id)
				if err != nil {
					writeMappedError(w, err)
					return
				}
				if changes == nil {
					changes = []audit.Change{}
				}
				writeJSON(w, http.StatusOK, map[string]any{"history": changes})
				return
			case "preview":
				s.handleKBPreview(w, r, id)
				return
			}
		}

		if len(parts) == 1 {
			switch r.Method {
			case http.MethodGet:
				entry, err := s.service.GetKBEntry(r.Context(), id)
				if err != nil {
					writeMappedError(w, err)
					return
				}
				payload := kbEntryJSON(entry)
				s.attachNavigation(r.Context(), payload, store.CollectionKBEntries, id)
				writeJSON(w, http.StatusOK, payload)
				return
			case http.MethodPatch, http.MethodPut:
				var input UpdateKBEntryInput
				if err := decodeBody(r, &input); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				updated, err := s.service.UpdateKBEntry(r.Context(), id, input)
				if err != nil {
					writeMappedError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, kbEntryJSON(updated))
				return
			case http.MethodDelete:
				var body struct {
					Reason string `json:"reason"`
					Author string `json:"author"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				if err := s.service.DeleteKBEntry(r.Context(), id, body.Reason, body.Author); err != nil {
					writeMappedError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleKBExport(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.ExportKBEntries(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeMappedError(w, err)
		return
	}

	filename := impex.Filename(time.Now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := impex.Export(w, entries); err != nil {
		if errors.Is(err, impex.ErrNoEntries) {
			w.Header().Del("Content-Disposition")
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No published entries match the export filter", nil)
			return
		}
		log.Printf("http: export write: %v", err)
	}
}

func (s *HTTPServer) handleKBImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form with a file field", nil)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing file field", nil)
		return
	}
	defer file.Close()

	opts := impex.Options{
		Category:  r.FormValue("category"),
		Overwrite: r.FormValue("overwrite") == "true",
	}
	report, err := s.service.ImportKBEntries(r.Context(), file, opts)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleKBPreview(w http.ResponseWriter, r *http.Request, id int64) {
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	result, err := s.service.PreviewKBEntry(r.Context(), id, f)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Preview renderer is not available", nil)
			return
		}
		writeMappedError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet || len(parts) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	query := r.URL.Query()
	response := s.service.Search(search.Query{
		Text:       query.Get("q"),
		FilterType: search.ParseResultType(query.Get("type")),
		Limit:      search.ParseLimit(query.Get("limit")),
	})
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handlePrompts(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 && r.Method == http.MethodGet {
		all, err := s.service.ListPrompts(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"prompts": all})
		return
	}

	if len(parts) >= 1 {
		name := parts[0]

		if len(parts) == 2 && parts[1] == "reset" && r.Method == http.MethodPost {
			template, err := s.service.ResetPrompt(r.Context(), name)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"name": name, "template": template})
			return
		}

		if len(parts) == 1 {
			switch r.Method {
			case http.MethodGet:
				template, err := s.service.GetPrompt(r.Context(), name)
				if err != nil {
					writeMappedError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"name": name, "template": template})
				return
			case http.MethodPut:
				var body struct {
					Template string `json:"template"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				if err := s.service.SetPrompt(r.Context(), name, body.Template); err != nil {
					writeMappedError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"name": name, "template": body.Template})
				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleLLM(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodPost || len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[0] {
	case "faq-draft":
		var body struct {
			RfpID int64 `json:"rfpId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		draft, err := s.service.DraftFaq(r.Context(), body.RfpID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, draft)
	case "faq-chat":
		var input FaqDialogueInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.FaqDialogue(r.Context(), input)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "kb-draft":
		var input KBDraftInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.DraftKBEntry(r.Context(), input)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "kb-chat":
		var input KBDialogueInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.KBDialogue(r.Context(), input)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// attachNavigation adds prev/next ids to a detail payload. Lookup failures
// degrade to a detail response without navigation.
func (s *HTTPServer) attachNavigation(ctx context.Context, payload map[string]any, collection string, id int64) {
	nav, err := s.service.Navigation(ctx, collection, id)
	if err != nil {
		log.Printf("http: navigation for %s/%d: %v", collection, id, err)
		return
	}
	payload["navigation"] = nav
}

func (s *HTTPServer) writeNavigation(w http.ResponseWriter, r *http.Request, collection string, id int64) {
	nav, err := s.service.Navigation(r.Context(), collection, id)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nav)
}

// JSON views over the untagged store structs.

func rfpQAJSON(record store.RfpQA) map[string]any {
	return map[string]any{
		"id":         record.ID,
		"question":   record.Question,
		"answer":     record.Answer,
		"metadata":   record.Metadata,
		"created_at": record.CreatedAt,
	}
}

func faqJSON(faq store.Faq) map[string]any {
	return map[string]any{
		"id":         faq.ID,
		"question":   faq.Question,
		"answer":     faq.Answer,
		"visibility": faq.Visibility,
		"status":     faq.Status,
		"notes":      faq.Notes,
		"rfp_qa_id":  faq.RfpQaID,
		"metadata":   faq.Metadata,
		"created_at": faq.CreatedAt,
		"updated_at": faq.UpdatedAt,
	}
}

func kbEntryJSON(entry store.KBEntry) map[string]any {
	return map[string]any{
		"id":                 entry.ID,
		"article_title":      entry.ArticleTitle,
		"article_subtitle":   entry.ArticleSubtitle,
		"article_body":       entry.ArticleBody,
		"category":           entry.Category,
		"subcategory":        entry.Subcategory,
		"keywords":           entry.Keywords,
		"article_url":        entry.ArticleURL,
		"internal_status":    entry.InternalStatus,
		"visibility":         entry.Visibility,
		"status":             entry.Status,
		"notes":              entry.Notes,
		"metadata":           entry.Metadata,
		"created_at":         entry.CreatedAt,
		"last_modified_date": entry.UpdatedAt,
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var parseErr *llm.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusBadGateway, "PARSE_ERROR", parseErr.Error(), nil
	}
	if errors.Is(err, llm.ErrServiceUnavailable) {
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "The assistant is unavailable, try again shortly", nil
	}
	if errors.Is(err, llm.ErrEmptyResponse) {
		return http.StatusBadGateway, "EMPTY_RESPONSE", "The assistant returned no usable content", nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
