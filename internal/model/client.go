package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"viewsmith/internal/logging"
)

const (
	// minRequestInterval is the minimum spacing between outbound requests.
	minRequestInterval = 100 * time.Millisecond
	defaultMaxRetries  = 3
	defaultTimeout     = 120 * time.Second
)

// ChatClient implements Client over the OpenAI-compatible chat completion
// protocol. It covers every supported provider; only the endpoint, key and
// log label differ.
type ChatClient struct {
	name        string
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	// retryBackoff is the base unit for exponential backoff between retries.
	retryBackoff time.Duration
	httpClient   *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewChatClient builds a client for an OpenAI-compatible endpoint. baseURL
// must include the /v1 prefix. apiKey may be empty for servers that do not
// authenticate, such as a local ollama.
func NewChatClient(name, baseURL, apiKey, model string, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ChatClient{
		name:         name,
		apiKey:       apiKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		model:        model,
		maxRetries:   defaultMaxRetries,
		retryBackoff: time.Second,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetModel changes the model used for completions.
func (c *ChatClient) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// Model returns the current model identifier.
func (c *ChatClient) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// CompleteWithTools sends the conversation with tool definitions and returns
// the model's reply. Transport errors and 429 responses are retried with
// exponential backoff; other failures surface immediately.
func (c *ChatClient) CompleteWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ToolResponse, error) {
	startTime := time.Now()
	model := c.Model()
	logging.Model("[%s] CompleteWithTools: model=%s, messages=%d, tools=%d", c.name, model, len(messages), len(tools))

	// Apply a default timeout when the caller did not set a deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	// Rate limiting: keep a minimum interval between requests.
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < minRequestInterval {
		time.Sleep(minRequestInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := chatRequest{
		Model:       model,
		Messages:    toWireMessages(messages),
		Tools:       toWireTools(tools),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(tools) > 0 {
		reqBody.ToolChoice = "auto"
	}

	maxRetries := c.maxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * c.retryBackoff
			logging.ModelWarn("[%s] CompleteWithTools: retry %d/%d after %v: %v", c.name, attempt, maxRetries, backoff, lastErr)
			time.Sleep(backoff)
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limit exceeded (429): %s", strings.TrimSpace(string(body)))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		var chatResp chatResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if chatResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", chatResp.Error.Message)
		}
		if len(chatResp.Choices) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		choice := chatResp.Choices[0]
		toolCalls, err := fromWireToolCalls(choice.Message.ToolCalls)
		if err != nil {
			return nil, err
		}

		stopReason := choice.FinishReason
		switch stopReason {
		case "tool_calls":
			stopReason = StopToolUse
		case "stop", "":
			stopReason = StopEndTurn
		}

		logging.Model("[%s] CompleteWithTools: completed in %v (stop=%s, tool_calls=%d)", c.name, time.Since(startTime), stopReason, len(toolCalls))
		return &ToolResponse{
			Text:       choice.Message.Content,
			ToolCalls:  toolCalls,
			StopReason: stopReason,
		}, nil
	}

	logging.ModelError("[%s] CompleteWithTools: max retries exceeded after %v: %v", c.name, time.Since(startTime), lastErr)
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Wire types for the OpenAI-compatible chat completion protocol.

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string         `json:"role"`
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// toWireMessages converts chat messages to the wire shape. Tool calls echoed
// on assistant turns are re-encoded with their arguments as JSON strings.
func toWireMessages(messages []ChatMessage) []wireMessage {
	result := make([]wireMessage, len(messages))
	for i, m := range messages {
		wm := wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Args)
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		result[i] = wm
	}
	return result
}

// toWireTools converts tool definitions to the function-tool wire format.
func toWireTools(tools []ToolDefinition) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]wireTool, len(tools))
	for i, t := range tools {
		result[i] = wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}

// fromWireToolCalls converts wire tool calls back to the generic form. Some
// servers omit call ids; those get generated ones so tool results can still
// be correlated. Empty argument strings decode to an empty map.
func fromWireToolCalls(calls []wireToolCall) ([]ToolCall, error) {
	result := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		if c.Type != "" && c.Type != "function" {
			continue
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(c.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments for tool %s: %w", c.Function.Name, err)
			}
		}

		id := c.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}

		result = append(result, ToolCall{
			ID:   id,
			Name: c.Function.Name,
			Args: args,
		})
	}
	return result, nil
}
