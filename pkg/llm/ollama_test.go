package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProviderDefaults(t *testing.T) {
	p := NewOllamaProvider(Config{})
	if p.openai.model != defaultOllamaModel {
		t.Fatalf("expected default model, got %q", p.openai.model)
	}
	if p.openai.apiURL != "http://localhost:11434/v1" {
		t.Fatalf("expected local endpoint, got %q", p.openai.apiURL)
	}
}

func TestOllamaProviderStreamsToolCalls(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3" || len(req.Tools) != 1 || req.Tools[0].Function.Name != "search_course_content" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"search_course_content\",\"arguments\":\"{\\\"query\\\":\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"\\\"MCP\\\"}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOllamaProvider(Config{APIURL: server.URL + "/v1", Model: "llama3"})
	stream, err := provider.Complete(context.Background(),
		[]Message{{Role: "user", Content: "What is MCP?"}},
		[]Tool{{Name: "search_course_content", Parameters: map[string]interface{}{"type": "object"}}},
	)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	turn, err := Collect(stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !turn.WantsTools() || len(turn.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %+v", turn)
	}
	call := turn.ToolCalls[0]
	if call.ID != "call_1" || call.Arguments != `{"query":"MCP"}` {
		t.Fatalf("unexpected merged call %+v", call)
	}
}

func TestOllamaProviderToolCallsWithoutIDs(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"name\":\"search_course_content\",\"arguments\":\"{\\\"query\\\":\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"\\\"MCP\\\"}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":1,\"function\":{\"name\":\"get_course_outline\",\"arguments\":\"{}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOllamaProvider(Config{APIURL: server.URL + "/v1", Model: "llama3"})
	stream, err := provider.Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	turn, err := Collect(stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(turn.ToolCalls) != 2 {
		t.Fatalf("expected two distinct calls, got %+v", turn.ToolCalls)
	}
	if got := turn.ToolCalls[0]; got.ID != "call_0" || got.Arguments != `{"query":"MCP"}` {
		t.Fatalf("unexpected first call %+v", got)
	}
	if got := turn.ToolCalls[1]; got.ID != "call_1" || got.Name != "get_course_outline" || got.Arguments != "{}" {
		t.Fatalf("unexpected second call %+v", got)
	}
}
