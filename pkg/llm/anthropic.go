package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type AnthropicProvider struct {
	client      *http.Client
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
}

const defaultAnthropicMaxTokens = 4096

func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.anthropic.com"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		client:      &http.Client{Timeout: 60 * time.Second},
		apiKey:      cfg.APIKey,
		apiURL:      apiURL,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (Stream, error) {
	if p.model == "" {
		return nil, errors.New("anthropic model is required")
	}
	temperature := p.temperature
	reqBody := anthropicRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: &temperature,
		Stream:      true,
	}
	reqBody.Messages, reqBody.System = anthropicMessagesFrom(messages)
	if len(tools) > 0 {
		reqBody.Tools = make([]anthropicTool, 0, len(tools))
		for _, tool := range tools {
			reqBody.Tools = append(reqBody.Tools, anthropicTool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.Parameters,
			})
		}
		reqBody.ToolChoice = &anthropicToolChoice{Type: "auto"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/v1/messages", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("anthropic: create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("X-API-Key", p.apiKey)
		}
		req.Header.Set("Anthropic-Version", "2023-06-01")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return newAnthropicStream(resp), nil
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature *float64             `json:"temperature,omitempty"`
	System      string               `json:"system,omitempty"`
	Messages    []anthropicMessage   `json:"messages"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
	Stream      bool                 `json:"stream"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicEvent struct {
	Type         string                 `json:"type"`
	Index        int                    `json:"index,omitempty"`
	ContentBlock *anthropicContentBlock `json:"content_block,omitempty"`
	Delta        *anthropicContentDelta `json:"delta,omitempty"`
	Error        *anthropicError        `json:"error,omitempty"`
}

type anthropicContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicContentDelta struct {
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicStream struct {
	base       *sseStream
	indexToID  map[int]string
	toolInputs map[string]string
	toolNames  map[string]string
}

func newAnthropicStream(resp *http.Response) Stream {
	stream := &anthropicStream{
		indexToID:  make(map[int]string),
		toolInputs: make(map[string]string),
		toolNames:  make(map[string]string),
	}
	stream.base = &sseStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
		decode: stream.decodeEvent,
	}
	return stream
}

func (s *anthropicStream) Close() error {
	return s.base.Close()
}

func (s *anthropicStream) Recv() (Chunk, error) {
	return s.base.Recv()
}

func (s *anthropicStream) decodeEvent(data []byte) (Chunk, error) {
	var event anthropicEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return Chunk{}, fmt.Errorf("anthropic: decode event: %w", err)
	}
	switch event.Type {
	case "content_block_start":
		if event.ContentBlock == nil {
			return Chunk{}, nil
		}
		switch event.ContentBlock.Type {
		case "text":
			return Chunk{Content: event.ContentBlock.Text}, nil
		case "tool_use":
			callID := event.ContentBlock.ID
			s.indexToID[event.Index] = callID
			s.toolNames[callID] = event.ContentBlock.Name
			// An empty object here is a placeholder; the real input arrives as partial_json.
			if input := strings.TrimSpace(string(event.ContentBlock.Input)); input != "" && input != "{}" {
				s.toolInputs[callID] = input
			}
			return Chunk{ToolCalls: []ToolCall{s.callFor(callID)}}, nil
		}
	case "content_block_delta":
		if event.Delta == nil {
			return Chunk{}, nil
		}
		if event.Delta.Text != "" {
			return Chunk{Content: event.Delta.Text}, nil
		}
		if event.Delta.PartialJSON != "" {
			callID := s.indexToID[event.Index]
			s.toolInputs[callID] += event.Delta.PartialJSON
			return Chunk{ToolCalls: []ToolCall{s.callFor(callID)}}, nil
		}
	case "message_delta":
		if event.Delta != nil && event.Delta.StopReason != "" {
			return Chunk{StopReason: event.Delta.StopReason}, nil
		}
	case "error":
		if event.Error != nil {
			return Chunk{}, fmt.Errorf("anthropic: stream error %s: %s", event.Error.Type, event.Error.Message)
		}
		return Chunk{}, errors.New("anthropic: stream error")
	}
	return Chunk{}, nil
}

func (s *anthropicStream) callFor(callID string) ToolCall {
	return ToolCall{
		ID:        callID,
		Name:      s.toolNames[callID],
		Arguments: s.toolInputs[callID],
	}
}

func anthropicMessagesFrom(messages []Message) ([]anthropicMessage, string) {
	var systemParts []string
	out := make([]anthropicMessage, 0, len(messages))
	for _, message := range messages {
		if message.Role == "system" {
			systemParts = append(systemParts, message.Content)
			continue
		}
		var blocks []anthropicContent
		if message.Content != "" {
			blocks = append(blocks, anthropicContent{Type: "text", Text: message.Content})
		}
		for _, call := range message.ToolCalls {
			blocks = append(blocks, anthropicContent{
				Type:  "tool_use",
				ID:    call.ID,
				Name:  call.Name,
				Input: toolInput(call.Arguments),
			})
		}
		for _, result := range message.ToolResults {
			blocks = append(blocks, anthropicContent{
				Type:      "tool_result",
				ToolUseID: result.ToolCallID,
				Content:   result.Content,
				IsError:   result.IsError,
			})
		}
		if len(blocks) == 0 {
			blocks = append(blocks, anthropicContent{Type: "text", Text: " "})
		}
		role := message.Role
		if len(message.ToolResults) > 0 {
			role = "user"
		}
		out = append(out, anthropicMessage{Role: role, Content: blocks})
	}
	return out, strings.Join(systemParts, "\n")
}

func toolInput(arguments string) json.RawMessage {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(trimmed)
}
