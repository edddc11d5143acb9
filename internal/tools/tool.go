package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"frameworks/coursebook/pkg/llm"
)

// Source is a display record for one retrieved document.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Result is what a tool hands back: text for the model and the sources that
// produced it. Tools keep no state between calls.
type Result struct {
	Text    string
	Sources []Source
}

// Tool is one callable capability offered to the model.
type Tool interface {
	Definition() llm.Tool
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// optionalInt accepts 3, 3.0 and "3" since models are loose with numbers.
type optionalInt struct {
	value *int
}

func (o *optionalInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		o.value = nil
		return nil
	}
	raw := strings.Trim(string(trimmed), `"`)
	if raw == "" {
		o.value = nil
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return fmt.Errorf("expected an integer, got %s", string(trimmed))
	}
	n := int(f)
	o.value = &n
	return nil
}

func decodeArgs(args json.RawMessage, into any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
