package llm

import (
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

type OpenAIProvider struct {
	client      *http.Client
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		client:      &http.Client{Timeout: 60 * time.Second},
		apiKey:      cfg.APIKey,
		apiURL:      apiURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (Stream, error) {
	if p.model == "" {
		return nil, errors.New("openai model is required")
	}
	temperature := p.temperature
	reqBody := openAIRequest{
		Model:       p.model,
		Messages:    openAIMessagesFrom(messages),
		Stream:      true,
		Temperature: &temperature,
	}
	if p.maxTokens > 0 {
		reqBody.MaxTokens = p.maxTokens
	}
	if len(tools) > 0 {
		reqBody.Tools = make([]openAITool, 0, len(tools))
		for _, tool := range tools {
			reqBody.Tools = append(reqBody.Tools, openAITool{
				Type: "function",
				Function: openAIFunction{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
		reqBody.ToolChoice = "auto"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/chat/completions", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("openai: create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	decoder := newOpenAIDecoder()
	return newSSEStream(resp, decoder.decode), nil
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
			Role      string           `json:"role"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIToolCall struct {
	Index    *int               `json:"index,omitempty"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// openAIMessagesFrom expands tool-result batches into one "tool" message per
// result, which is how chat completions expects them.
func openAIMessagesFrom(messages []Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, message := range messages {
		if len(message.ToolResults) > 0 {
			for _, result := range message.ToolResults {
				out = append(out, openAIMessage{
					Role:       "tool",
					Content:    result.Content,
					ToolCallID: result.ToolCallID,
				})
			}
			if message.Content != "" {
				out = append(out, openAIMessage{Role: message.Role, Content: message.Content})
			}
			continue
		}
		msg := openAIMessage{Role: message.Role, Content: message.Content}
		for _, call := range message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
				ID:   call.ID,
				Type: "function",
				Function: openAIFunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

// openAIDecoder tracks tool calls across deltas. Only the first delta of a
// call carries its id and name; later ones are keyed by index.
type openAIDecoder struct {
	ids   map[int]string
	names map[int]string
	args  map[int]string
}

func newOpenAIDecoder() *openAIDecoder {
	return &openAIDecoder{
		ids:   make(map[int]string),
		names: make(map[int]string),
		args:  make(map[int]string),
	}
}

func (d *openAIDecoder) decode(data []byte) (Chunk, error) {
	var payload openAIStreamResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return Chunk{}, fmt.Errorf("openai: decode chunk: %w", err)
	}
	if len(payload.Choices) == 0 {
		return Chunk{}, nil
	}
	choice := payload.Choices[0]
	chunk := Chunk{Content: choice.Delta.Content}
	for i, call := range choice.Delta.ToolCalls {
		idx := i
		if call.Index != nil {
			idx = *call.Index
		}
		if d.ids[idx] == "" {
			d.ids[idx] = call.ID
		}
		if d.ids[idx] == "" {
			// Some OpenAI-compatible servers omit ids; keep calls distinct by index.
			d.ids[idx] = fmt.Sprintf("call_%d", idx)
		}
		if call.Function.Name != "" {
			d.names[idx] = call.Function.Name
		}
		d.args[idx] += call.Function.Arguments
		chunk.ToolCalls = append(chunk.ToolCalls, ToolCall{
			ID:        d.ids[idx],
			Name:      d.names[idx],
			Arguments: d.args[idx],
		})
	}
	if choice.FinishReason != nil {
		chunk.StopReason = openAIStopReason(*choice.FinishReason)
	}
	return chunk, nil
}

func openAIStopReason(reason string) string {
	switch reason {
	case "tool_calls", "function_call":
		return StopToolUse
	case "stop":
		return StopEndTurn
	case "length":
		return StopMaxTokens
	default:
		return reason
	}
}
