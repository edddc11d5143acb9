package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProviderStream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("expected auth header")
		}
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Fatalf("expected stream true")
		}
		if len(req.Tools) != 1 {
			t.Fatalf("expected tools in request")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"id\":\"call_1\",\"type\":\"function\",\"function\":{\"name\":\"search\",\"arguments\":\"{\\\"q\\\":\\\"x\\\"}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{
		APIURL: server.URL,
		APIKey: "test-key",
		Model:  "gpt-test",
	})

	stream, err := provider.Complete(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, []Tool{
		{
			Name:        "search",
			Description: "searches",
			Parameters: map[string]interface{}{
				"type": "object",
			},
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	defer stream.Close()

	var content strings.Builder
	var toolCalls []ToolCall
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		content.WriteString(chunk.Content)
		toolCalls = append(toolCalls, chunk.ToolCalls...)
	}

	if content.String() != "Hello world" {
		t.Fatalf("unexpected content %q", content.String())
	}
	if len(toolCalls) != 1 {
		t.Fatalf("expected tool call, got %d", len(toolCalls))
	}
	if toolCalls[0].Name != "search" {
		t.Fatalf("unexpected tool name %q", toolCalls[0].Name)
	}
}

func TestOpenAIProviderStreamedToolCallDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ToolChoice != "auto" {
			t.Fatalf("expected auto tool choice, got %q", req.ToolChoice)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"type\":\"function\",\"function\":{\"name\":\"get_course_outline\",\"arguments\":\"\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"{\\\"course_name\\\":\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"\\\"MCP\\\"}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{APIURL: server.URL, Model: "gpt-test"})
	stream, err := provider.Complete(context.Background(), []Message{{Role: "user", Content: "outline?"}}, []Tool{
		{Name: "get_course_outline", Parameters: map[string]interface{}{"type": "object"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	turn, err := Collect(stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if turn.StopReason != StopToolUse {
		t.Fatalf("expected tool_use, got %q", turn.StopReason)
	}
	if len(turn.ToolCalls) != 1 {
		t.Fatalf("expected one call, got %d", len(turn.ToolCalls))
	}
	if turn.ToolCalls[0].ID != "call_1" || turn.ToolCalls[0].Arguments != `{"course_name":"MCP"}` {
		t.Fatalf("unexpected call %+v", turn.ToolCalls[0])
	}
}

func TestOpenAIMessagesFromExpandsToolResults(t *testing.T) {
	out := openAIMessagesFrom([]Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "q"},
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "a", Name: "search", Arguments: "{}"}, {ID: "b", Name: "search", Arguments: "{}"}}},
		{Role: "user", ToolResults: []ToolResult{{ToolCallID: "a", Content: "one"}, {ToolCallID: "b", Content: "two", IsError: true}}},
	})
	if len(out) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(out))
	}
	if len(out[2].ToolCalls) != 2 || out[2].ToolCalls[1].Type != "function" {
		t.Fatalf("unexpected assistant tool calls %+v", out[2].ToolCalls)
	}
	if out[3].Role != "tool" || out[3].ToolCallID != "a" || out[4].ToolCallID != "b" {
		t.Fatalf("unexpected tool messages %+v %+v", out[3], out[4])
	}
}

func TestOpenAIStopReasonMapping(t *testing.T) {
	cases := map[string]string{
		"tool_calls":     StopToolUse,
		"stop":           StopEndTurn,
		"length":         StopMaxTokens,
		"content_filter": "content_filter",
	}
	for in, want := range cases {
		if got := openAIStopReason(in); got != want {
			t.Fatalf("openAIStopReason(%q) = %q, want %q", in, got, want)
		}
	}
}
