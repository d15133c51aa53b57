// Package llm talks to an OpenAI-compatible chat-completion service and
// turns its free-text replies into structured outcomes.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrServiceUnavailable covers network failures, timeouts and 5xx
	// answers from the completion service.
	ErrServiceUnavailable = errors.New("llm service unavailable")
	// ErrEmptyResponse means the service answered but returned no usable
	// content.
	ErrEmptyResponse = errors.New("llm returned empty response")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is one completion answer. ToolName/ToolArgs are set when the model
// chose to invoke a tool instead of (or besides) answering in text.
type Reply struct {
	Content  string
	ToolName string
	ToolArgs json.RawMessage
}

// Tool describes a callable function offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is a single completion round trip. Model, temperature and
// max_tokens are pass-through configuration.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Tools       []Tool
}

// Client is the completion gateway. Callers surface the first failure; no
// retries happen here.
type Client interface {
	Complete(ctx context.Context, req Request) (Reply, error)
}

type httpClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient builds a client for an OpenAI-compatible /v1/chat/completions
// endpoint. timeout bounds the whole round trip; expiry surfaces as
// ErrServiceUnavailable.
func NewClient(endpoint, apiKey string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &httpClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) Complete(ctx context.Context, req Request) (Reply, error) {
	type toolFunction struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	}
	type toolSpec struct {
		Type     string       `json:"type"`
		Function toolFunction `json:"function"`
	}
	type chatRequest struct {
		Model       string     `json:"model"`
		Messages    []Message  `json:"messages"`
		Temperature float64    `json:"temperature"`
		MaxTokens   int        `json:"max_tokens,omitempty"`
		Tools       []toolSpec `json:"tools,omitempty"`
	}

	chatReq := chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, tool := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, toolSpec{
			Type:     "function",
			Function: toolFunction{Name: tool.Name, Description: tool.Description, Parameters: tool.Parameters},
		})
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return Reply{}, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Reply{}, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Reply{}, fmt.Errorf("completion request rejected: status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					Function struct {
						Name string `json:"name"`
						// Arguments arrive as a JSON-encoded string.
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Reply{}, fmt.Errorf("decode completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return Reply{}, ErrEmptyResponse
	}

	message := out.Choices[0].Message
	reply := Reply{Content: strings.TrimSpace(message.Content)}
	if len(message.ToolCalls) > 0 {
		reply.ToolName = message.ToolCalls[0].Function.Name
		reply.ToolArgs = json.RawMessage(message.ToolCalls[0].Function.Arguments)
	}
	if reply.Content == "" && reply.ToolName == "" {
		return Reply{}, ErrEmptyResponse
	}
	return reply, nil
}
