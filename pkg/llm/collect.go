package llm

import (
	"errors"
	"io"
	"strings"
)

// Turn is a fully received model response.
type Turn struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// WantsTools reports whether the model stopped in order to call tools.
func (t Turn) WantsTools() bool {
	return t.StopReason == StopToolUse && len(t.ToolCalls) > 0
}

// Collect drains a stream into a Turn and closes it. Streamed tool-call
// fragments are merged by call id. A stream that carries tool calls but no
// explicit stop reason is reported as a tool_use stop.
func Collect(stream Stream) (Turn, error) {
	defer func() { _ = stream.Close() }()

	var text strings.Builder
	var turn Turn
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Turn{}, err
		}
		text.WriteString(chunk.Content)
		if len(chunk.ToolCalls) > 0 {
			turn.ToolCalls = MergeToolCalls(turn.ToolCalls, chunk.ToolCalls)
		}
		if chunk.StopReason != "" {
			turn.StopReason = chunk.StopReason
		}
	}
	turn.Text = text.String()
	if turn.StopReason == "" {
		if len(turn.ToolCalls) > 0 {
			turn.StopReason = StopToolUse
		} else {
			turn.StopReason = StopEndTurn
		}
	}
	return turn, nil
}

// MergeToolCalls folds streamed tool-call deltas into the accumulated list.
// Decoders emit the arguments received so far, so a delta replaces the
// arguments of the call with the same id, or of the most recent call when the
// delta carries no id.
func MergeToolCalls(existing, incoming []ToolCall) []ToolCall {
	for _, inc := range incoming {
		found := false
		for i, ex := range existing {
			if ex.ID != "" && ex.ID == inc.ID {
				existing[i].Arguments = inc.Arguments
				if inc.Name != "" {
					existing[i].Name = inc.Name
				}
				found = true
				break
			}
		}
		if !found && inc.ID == "" && len(existing) > 0 {
			last := len(existing) - 1
			existing[last].Arguments = inc.Arguments
			if inc.Name != "" {
				existing[last].Name = inc.Name
			}
			found = true
		}
		if !found {
			existing = append(existing, inc)
		}
	}
	return existing
}
