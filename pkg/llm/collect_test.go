package llm

import (
	"errors"
	"io"
	"testing"
)

type sliceStream struct {
	chunks []Chunk
	err    error
	index  int
	closed bool
}

func (s *sliceStream) Recv() (Chunk, error) {
	if s.index >= len(s.chunks) {
		if s.err != nil {
			return Chunk{}, s.err
		}
		return Chunk{}, io.EOF
	}
	chunk := s.chunks[s.index]
	s.index++
	return chunk, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func TestCollectTextOnly(t *testing.T) {
	stream := &sliceStream{chunks: []Chunk{{Content: "Hello "}, {Content: "there"}, {StopReason: StopEndTurn}}}
	turn, err := Collect(stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if turn.Text != "Hello there" || turn.StopReason != StopEndTurn {
		t.Fatalf("unexpected turn %+v", turn)
	}
	if turn.WantsTools() {
		t.Fatalf("text turn should not want tools")
	}
	if !stream.closed {
		t.Fatalf("expected stream to be closed")
	}
}

func TestCollectInfersToolUseStop(t *testing.T) {
	stream := &sliceStream{chunks: []Chunk{
		{ToolCalls: []ToolCall{{ID: "t1", Name: "search", Arguments: `{"q":`}}},
		{ToolCalls: []ToolCall{{ID: "t1", Name: "search", Arguments: `{"q":"x"}`}}},
		{ToolCalls: []ToolCall{{ID: "t2", Name: "outline", Arguments: `{}`}}},
	}}
	turn, err := Collect(stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if turn.StopReason != StopToolUse || !turn.WantsTools() {
		t.Fatalf("expected inferred tool_use stop, got %+v", turn)
	}
	if len(turn.ToolCalls) != 2 || turn.ToolCalls[0].Arguments != `{"q":"x"}` || turn.ToolCalls[1].ID != "t2" {
		t.Fatalf("unexpected calls %+v", turn.ToolCalls)
	}
}

func TestCollectStopReasonWithoutCallsDoesNotWantTools(t *testing.T) {
	turn, err := Collect(&sliceStream{chunks: []Chunk{{StopReason: StopToolUse}}})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if turn.WantsTools() {
		t.Fatalf("tool_use without calls must not request tools")
	}
}

func TestCollectPropagatesStreamError(t *testing.T) {
	boom := errors.New("connection reset")
	stream := &sliceStream{chunks: []Chunk{{Content: "partial"}}, err: boom}
	if _, err := Collect(stream); !errors.Is(err, boom) {
		t.Fatalf("expected stream error, got %v", err)
	}
	if !stream.closed {
		t.Fatalf("expected stream to be closed on error")
	}
}

func TestMergeToolCallsReplacesAnonymousDelta(t *testing.T) {
	calls := MergeToolCalls(nil, []ToolCall{{ID: "a", Name: "search", Arguments: `{"q"`}})
	calls = MergeToolCalls(calls, []ToolCall{{Arguments: `{"q":"x"}`}})
	if len(calls) != 1 || calls[0].Arguments != `{"q":"x"}` || calls[0].Name != "search" {
		t.Fatalf("unexpected merge result %+v", calls)
	}
}

func TestCollectAccumulatedArgumentsWithoutIDs(t *testing.T) {
	stream := &sliceStream{chunks: []Chunk{
		{ToolCalls: []ToolCall{{Name: "search_course_content", Arguments: `{"query":`}}},
		{ToolCalls: []ToolCall{{Arguments: `{"query":"MCP"`}}},
		{ToolCalls: []ToolCall{{Arguments: `{"query":"MCP"}`}}},
	}}
	turn, err := Collect(stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(turn.ToolCalls) != 1 {
		t.Fatalf("expected one call, got %+v", turn.ToolCalls)
	}
	if got := turn.ToolCalls[0]; got.Name != "search_course_content" || got.Arguments != `{"query":"MCP"}` {
		t.Fatalf("arguments duplicated or lost: %+v", got)
	}
}
