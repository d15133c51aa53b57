package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"curator/api/internal/llm"
	"curator/api/internal/search"
	"curator/api/internal/store"
)

func newTestServer(f *serviceFixture) *httptest.Server {
	return httptest.NewServer(NewHTTPServer(f.service, "http://localhost:3000").Handler())
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	payload := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func TestHealthAndReady(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/health", "")
	if resp.StatusCode != http.StatusOK || payload["ok"] != true {
		t.Fatalf("health = %d %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/ready", "")
	if resp.StatusCode != http.StatusOK || payload["status"] != "ready" {
		t.Fatalf("ready = %d %v", resp.StatusCode, payload)
	}
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	f := newServiceFixture()
	f.store.pingFn = func(ctx context.Context) error { return context.DeadlineExceeded }
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/ready", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["status"] != "not_ready" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodOptions, server.URL+"/api/faqs", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestListRfpQA(t *testing.T) {
	f := newServiceFixture()
	var gotQuery string
	f.store.listRfpQAFn = func(ctx context.Context, query string) ([]store.RfpQA, error) {
		gotQuery = query
		return []store.RfpQA{{ID: 1, Question: "Q1", Answer: "A1"}}, nil
	}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/rfp-qa?q=uptime", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if gotQuery != "uptime" {
		t.Fatalf("query = %q", gotQuery)
	}
	records := payload["records"].([]any)
	if len(records) != 1 {
		t.Fatalf("records = %v", records)
	}
	first := records[0].(map[string]any)
	if first["question"] != "Q1" {
		t.Fatalf("first = %v", first)
	}
}

func TestGetRfpQADetailCarriesNavigation(t *testing.T) {
	f := newServiceFixture()
	f.store.getRfpQAFn = func(ctx context.Context, id int64) (store.RfpQA, error) {
		return store.RfpQA{ID: id, Question: "Q", Answer: "A"}, nil
	}
	prev := int64(1)
	f.store.adjacentIDFn = func(ctx context.Context, collection string, id int64, previous bool) (*int64, error) {
		if previous {
			return &prev, nil
		}
		return nil, nil
	}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/rfp-qa/2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	nav, ok := payload["navigation"].(map[string]any)
	if !ok {
		t.Fatalf("navigation = %v", payload["navigation"])
	}
	if nav["prevId"].(float64) != 1 || nav["nextId"] != nil {
		t.Fatalf("nav = %v", nav)
	}
}

func TestGetRfpQANotFound(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/rfp-qa/12", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestGetRfpQAInvalidID(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/rfp-qa/abc", "")
	if resp.StatusCode != http.StatusBadRequest || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("response = %d %v", resp.StatusCode, payload)
	}
}

func TestNavigationEndpoint(t *testing.T) {
	f := newServiceFixture()
	next := int64(8)
	f.store.adjacentIDFn = func(ctx context.Context, collection string, id int64, previous bool) (*int64, error) {
		if collection != store.CollectionFaqs {
			t.Errorf("collection = %q", collection)
		}
		if previous {
			return nil, nil
		}
		return &next, nil
	}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/faqs/5/navigation", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["prevId"] != nil {
		t.Fatalf("prevId = %v", payload["prevId"])
	}
	if payload["nextId"].(float64) != 8 {
		t.Fatalf("nextId = %v", payload["nextId"])
	}
}

func TestCreateFaqEndpoint(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/faqs",
		`{"question":"What is the SLA?","answer":"99.9%","sourceRfpId":7}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d %v", resp.StatusCode, payload)
	}
	if payload["question"] != "What is the SLA?" {
		t.Fatalf("payload = %v", payload)
	}
	metadata := payload["metadata"].(map[string]any)
	if metadata["source_rfp_id"].(float64) != 7 {
		t.Fatalf("metadata = %v", metadata)
	}
}

func TestCreateFaqEndpointValidation(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/faqs", `{"question":"only q"}`)
	if resp.StatusCode != http.StatusBadRequest || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("response = %d %v", resp.StatusCode, payload)
	}
}

func TestKBEntryListPassesFilters(t *testing.T) {
	f := newServiceFixture()
	var gotFilter store.KBFilter
	f.store.listKBEntriesFn = func(ctx context.Context, filter store.KBFilter) ([]store.KBEntry, error) {
		gotFilter = filter
		return nil, nil
	}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet,
		server.URL+"/api/kb-entries?q=sso&category=Integrations&status=PUBLISHED&visibility=Public", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if gotFilter.Query != "sso" || gotFilter.Category != "Integrations" ||
		gotFilter.Status != "PUBLISHED" || gotFilter.Visibility != "Public" {
		t.Fatalf("filter = %+v", gotFilter)
	}
	if payload["entries"] == nil {
		t.Fatal("entries key missing")
	}
}

func TestUpdateKBEntryEndpoint(t *testing.T) {
	f := newServiceFixture()
	f.store.getKBEntryFn = func(ctx context.Context, id int64) (store.KBEntry, error) {
		return store.KBEntry{ID: id, InternalStatus: "Approved", Visibility: "Private"}, nil
	}
	f.store.updateKBEntryFn = func(ctx context.Context, id int64, patch store.KBEntryPatch) (store.KBEntry, error) {
		return store.KBEntry{ID: id, ArticleTitle: "Updated", Status: *patch.Status}, nil
	}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodPatch, server.URL+"/api/kb-entries/3",
		`{"visibility":"Public","author":"sam"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %v", resp.StatusCode, payload)
	}
	if payload["status"] != "PUBLISHED" {
		t.Fatalf("status field = %v", payload["status"])
	}
}

func TestDeleteKBEntryEndpointRequiresReason(t *testing.T) {
	f := newServiceFixture()
	f.store.getKBEntryFn = func(ctx context.Context, id int64) (store.KBEntry, error) {
		return store.KBEntry{ID: id}, nil
	}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodDelete, server.URL+"/api/kb-entries/3", `{}`)
	if resp.StatusCode != http.StatusBadRequest || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("response = %d %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodDelete, server.URL+"/api/kb-entries/3",
		`{"reason":"duplicate of entry 9","author":"sam"}`)
	if resp.StatusCode != http.StatusOK || payload["deleted"] != true {
		t.Fatalf("response = %d %v", resp.StatusCode, payload)
	}
}

func TestKBEntryHistoryEndpoint(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/kb-entries/3/history", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, ok := payload["history"].([]any); !ok {
		t.Fatalf("history = %v", payload["history"])
	}
}

func TestSearchEndpoint(t *testing.T) {
	f := newServiceFixture()
	f.search.response = search.Response{
		Results: []search.Result{{Type: search.ResultFaq, ID: 2, Title: "Billing", Snippet: "..."}},
		Total:   1,
		Query:   "billing",
	}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/search?q=billing&type=faq&limit=5", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	results := payload["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	first := results[0].(map[string]any)
	if first["type"] != "faq" || first["title"] != "Billing" {
		t.Fatalf("first = %v", first)
	}
}

func TestPromptEndpoints(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/prompts", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	all := payload["prompts"].(map[string]any)
	if len(all) != 3 {
		t.Fatalf("prompts = %v", all)
	}

	resp, payload = doJSON(t, http.MethodPut, server.URL+"/api/prompts/quickUpdate",
		`{"template":"custom template"}`)
	if resp.StatusCode != http.StatusOK || payload["template"] != "custom template" {
		t.Fatalf("put = %d %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/prompts/quickUpdate/reset", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset = %d", resp.StatusCode)
	}
	if payload["template"] == "custom template" {
		t.Fatal("reset kept the custom template")
	}

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/prompts/bogus", "")
	if resp.StatusCode != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("unknown = %d %v", resp.StatusCode, payload)
	}
}

func TestFaqDraftEndpoint(t *testing.T) {
	f := newServiceFixture()
	f.store.getRfpQAFn = func(ctx context.Context, id int64) (store.RfpQA, error) {
		return store.RfpQA{ID: id, Question: "q", Answer: "a"}, nil
	}
	f.llm.reply = llm.Reply{Content: "QUESTION:\nPublic q\n\nANSWER:\nPublic a"}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/llm/faq-draft", `{"rfpId":3}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %v", resp.StatusCode, payload)
	}
	if payload["question"] != "Public q" || payload["sourceRfpId"].(float64) != 3 {
		t.Fatalf("payload = %v", payload)
	}
}

func TestFaqDraftEndpointServiceUnavailable(t *testing.T) {
	f := newServiceFixture()
	f.store.getRfpQAFn = func(ctx context.Context, id int64) (store.RfpQA, error) {
		return store.RfpQA{ID: id}, nil
	}
	f.llm.err = llm.ErrServiceUnavailable
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/llm/faq-draft", `{"rfpId":3}`)
	if resp.StatusCode != http.StatusServiceUnavailable || payload["code"] != "SERVICE_UNAVAILABLE" {
		t.Fatalf("response = %d %v", resp.StatusCode, payload)
	}
}

func TestFaqDraftEndpointParseError(t *testing.T) {
	f := newServiceFixture()
	f.store.getRfpQAFn = func(ctx context.Context, id int64) (store.RfpQA, error) {
		return store.RfpQA{ID: id}, nil
	}
	f.llm.reply = llm.Reply{Content: "unstructured text"}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/llm/faq-draft", `{"rfpId":3}`)
	if resp.StatusCode != http.StatusBadGateway || payload["code"] != "PARSE_ERROR" {
		t.Fatalf("response = %d %v", resp.StatusCode, payload)
	}
}

func TestKBChatEndpoint(t *testing.T) {
	f := newServiceFixture()
	f.llm.reply = llm.Reply{Content: "<response><subtitle>s</subtitle><body>b</body></response>"}
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/llm/kb-chat",
		`{"userInput":"rewrite it","entry":{"article_title":"T","article_subtitle":"old","article_body":"old body"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %v", resp.StatusCode, payload)
	}
	if payload["updatedEntry"] == nil {
		t.Fatalf("payload = %v", payload)
	}
}

func TestKBExportEndpoint(t *testing.T) {
	f := newServiceFixture()
	f.store.listKBEntriesFn = func(ctx context.Context, filter store.KBFilter) ([]store.KBEntry, error) {
		if filter.Status != "PUBLISHED" {
			t.Errorf("filter status = %q", filter.Status)
		}
		return []store.KBEntry{{
			ID:             1,
			ArticleTitle:   "Exported",
			ArticleBody:    "Body",
			Category:       "General",
			ArticleURL:     "/general/exported",
			InternalStatus: "Approved",
			Visibility:     "Public",
			Status:         "PUBLISHED",
		}}, nil
	}
	server := newTestServer(f)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/kb-entries/export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "kb-export-") {
		t.Fatalf("content disposition = %q", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"Exported"`) {
		t.Fatalf("body = %q", string(body))
	}
}

func TestKBExportEndpointEmpty(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/kb-entries/export", "")
	if resp.StatusCode != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("response = %d %v", resp.StatusCode, payload)
	}
}

func TestKBImportEndpoint(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	csv := "\"Knowledge base name\",\"Article title\",\"Article subtitle\",\"Article language\",\"Article URL\",\"Article body\",\"Category\",\"Subcategory\",\"Keywords\",\"Last modified date\",\"Status\",\"Archived\"\r\n" +
		"\"KB\",\"Imported title\",\"\",\"en\",\"\",\"Imported body\",\"General\",\"\",\"\",\"2026-01-01T00:00:00Z\",\"DRAFT\",\"false\"\r\n"

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "import.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(csv)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/kb-entries/import", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	defer resp.Body.Close()

	payload := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %v", resp.StatusCode, payload)
	}
	if payload["processed"].(float64) != 1 {
		t.Fatalf("payload = %v", payload)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	f := newServiceFixture()
	server := newTestServer(f)
	defer server.Close()

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/widgets", "")
	if resp.StatusCode != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("response = %d %v", resp.StatusCode, payload)
	}
}
