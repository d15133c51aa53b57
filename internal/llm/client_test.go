package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func completionServer(t *testing.T, handler http.HandlerFunc) (Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key", 5*time.Second), server
}

func TestCompleteReturnsContent(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "gpt-4" {
			t.Errorf("model = %v", req["model"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  hello  "}},
			},
		})
	})

	reply, err := client.Complete(context.Background(), Request{
		Model:       "gpt-4",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply.Content != "hello" {
		t.Errorf("content = %q", reply.Content)
	}
}

func TestCompleteSurfacesToolCall(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"content": "",
					"tool_calls": []map[string]any{
						{"function": map[string]any{
							"name":      "update_faq",
							"arguments": `{"question":"Q?","answer":"A."}`,
						}},
					},
				}},
			},
		})
	})

	reply, err := client.Complete(context.Background(), Request{Model: "gpt-4"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply.ToolName != "update_faq" {
		t.Errorf("tool name = %q", reply.ToolName)
	}
	var args struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(reply.ToolArgs, &args); err != nil {
		t.Fatalf("decode tool args: %v", err)
	}
	if args.Question != "Q?" {
		t.Errorf("question = %q", args.Question)
	}
}

func TestCompleteServerErrorIsServiceUnavailable(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.Complete(context.Background(), Request{Model: "gpt-4"})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestCompleteNoChoicesIsEmptyResponse(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Complete(context.Background(), Request{Model: "gpt-4"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestCompleteBlankContentIsEmptyResponse(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "   "}},
			},
		})
	})

	_, err := client.Complete(context.Background(), Request{Model: "gpt-4"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestCompleteUnreachableIsServiceUnavailable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", time.Second)
	_, err := client.Complete(context.Background(), Request{Model: "gpt-4"})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
