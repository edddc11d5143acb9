package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"frameworks/coursebook/pkg/llm"
)

var ErrMissingName = errors.New("Tool must have a 'name'")

// Registry holds tools by name in registration order. Registering a name
// again replaces the earlier tool but keeps its position.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(tool Tool) error {
	name := tool.Definition().Name
	if name == "" {
		return ErrMissingName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister panics on a configuration error; for wiring at startup.
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			panic(err)
		}
	}
	return r
}

// Schemas returns every tool definition in registration order.
func (r *Registry) Schemas() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Dispatch runs the named tool. An unknown name is not an error: the text
// goes back to the model like any other tool output.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return Result{Text: fmt.Sprintf("Tool '%s' not found", name)}, nil
	}
	return tool.Execute(ctx, args)
}

// NewLedger starts source tracking for one query.
func (r *Registry) NewLedger() *Ledger {
	return &Ledger{order: r.Names(), last: make(map[string][]Source)}
}

// Ledger tracks the sources of the latest execution of each tool during a
// single query. It is safe for concurrent tool calls.
type Ledger struct {
	mu    sync.Mutex
	order []string
	last  map[string][]Source
}

// Record overwrites the tracked sources for a tool.
func (l *Ledger) Record(name string, sources []Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[name] = append([]Source(nil), sources...)
}

// Collect concatenates tracked sources in tool registration order.
func (l *Ledger) Collect() []Source {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Source{}
	for _, name := range l.order {
		out = append(out, l.last[name]...)
	}
	return out
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = make(map[string][]Source)
}
