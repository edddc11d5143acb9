package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"frameworks/coursebook/internal/tools"
	"frameworks/coursebook/pkg/llm"
	"frameworks/coursebook/pkg/logging"
)

const (
	defaultMaxToolRounds = 2
	maxParallelTools     = 4

	// Returned when the final turn carries content but none of it is text.
	roundsExhaustedMessage = "Maximum tool usage rounds reached. Please rephrase your question."
	noResponseMessage      = "No response generated"
)

type OrchestratorConfig struct {
	LLMProvider llm.Provider
	// Registry may be nil; a tool request then ends the run with the raw turn.
	Registry     *tools.Registry
	Logger       logging.Logger
	MaxRounds    int
	SystemPrompt string
}

// Orchestrator drives the bounded model/tool loop for a single question.
type Orchestrator struct {
	llmProvider  llm.Provider
	registry     *tools.Registry
	logger       logging.Logger
	maxRounds    int
	systemPrompt string
}

type ToolCallRecord struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type OrchestratorResult struct {
	Content    string
	Sources    []tools.Source
	ToolCalls  []ToolCallRecord
	Rounds     int
	ModelCalls int
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = SystemPrompt
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Orchestrator{
		llmProvider:  cfg.LLMProvider,
		registry:     cfg.Registry,
		logger:       logger,
		maxRounds:    maxRounds,
		systemPrompt: prompt,
	}
}

// Run answers query, optionally in the context of a rendered history. It
// makes at most maxRounds+1 model calls. Model failures are returned; tool
// failures are fed back to the model, which is then asked once, without
// tools, to explain.
func (o *Orchestrator) Run(ctx context.Context, query, history string) (OrchestratorResult, error) {
	if o == nil || o.llmProvider == nil {
		return OrchestratorResult{}, errors.New("llm provider is required")
	}

	var result OrchestratorResult
	var offered []llm.Tool
	var ledger *tools.Ledger
	if o.registry != nil {
		offered = o.registry.Schemas()
		ledger = o.registry.NewLedger()
	}

	messages := []llm.Message{
		{Role: "system", Content: buildSystemPrompt(o.systemPrompt, history)},
		{Role: "user", Content: query},
	}

	var turn llm.Turn
	for result.Rounds < o.maxRounds {
		var err error
		turn, err = o.complete(ctx, messages, offered, &result)
		if err != nil {
			return OrchestratorResult{}, err
		}
		if !turn.WantsTools() || o.registry == nil {
			break
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   turn.Text,
			ToolCalls: turn.ToolCalls,
		})
		batch, records, failed := o.executeTools(ctx, turn.ToolCalls, ledger)
		result.ToolCalls = append(result.ToolCalls, records...)
		messages = append(messages, llm.Message{Role: "user", ToolResults: batch})

		if failed {
			final, err := o.complete(ctx, messages, nil, &result)
			if err != nil {
				return OrchestratorResult{}, err
			}
			return o.finish(result, final, ledger), nil
		}
		result.Rounds++
	}

	if result.Rounds >= o.maxRounds && turn.WantsTools() {
		var err error
		turn, err = o.complete(ctx, messages, nil, &result)
		if err != nil {
			return OrchestratorResult{}, err
		}
	}
	return o.finish(result, turn, ledger), nil
}

func (o *Orchestrator) finish(result OrchestratorResult, turn llm.Turn, ledger *tools.Ledger) OrchestratorResult {
	result.Content = finalText(turn)
	if ledger != nil {
		result.Sources = ledger.Collect()
		ledger.Clear()
	} else {
		result.Sources = []tools.Source{}
	}
	toolRounds.Observe(float64(result.Rounds))
	return result
}

// finalText picks the answer out of a turn: its text if any, the rounds
// message if it holds only tool requests, or a fixed message when empty.
func finalText(turn llm.Turn) string {
	if turn.Text != "" {
		return turn.Text
	}
	if len(turn.ToolCalls) > 0 {
		return roundsExhaustedMessage
	}
	return noResponseMessage
}

func (o *Orchestrator) complete(ctx context.Context, messages []llm.Message, offered []llm.Tool, result *OrchestratorResult) (llm.Turn, error) {
	result.ModelCalls++
	start := time.Now()
	stream, err := o.llmProvider.Complete(ctx, messages, offered)
	if err != nil {
		llmCallsTotal.WithLabelValues("error").Inc()
		llmDuration.Observe(time.Since(start).Seconds())
		return llm.Turn{}, fmt.Errorf("model call: %w", err)
	}
	turn, err := llm.Collect(stream)
	llmDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		llmCallsTotal.WithLabelValues("error").Inc()
		return llm.Turn{}, fmt.Errorf("model stream: %w", err)
	}
	llmCallsTotal.WithLabelValues("success").Inc()
	return turn, nil
}

// executeTools runs one round's calls concurrently. Results come back in
// request order, each tied to its call id.
func (o *Orchestrator) executeTools(ctx context.Context, calls []llm.ToolCall, ledger *tools.Ledger) ([]llm.ToolResult, []ToolCallRecord, bool) {
	results := make([]llm.ToolResult, len(calls))
	records := make([]ToolCallRecord, len(calls))
	failures := make([]bool, len(calls))

	var g errgroup.Group
	g.SetLimit(maxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			record := ToolCallRecord{Name: call.Name}
			if json.Valid([]byte(call.Arguments)) {
				record.Arguments = json.RawMessage(call.Arguments)
			}

			out, err := o.registry.Dispatch(ctx, call.Name, json.RawMessage(call.Arguments))
			if err != nil {
				o.logger.WithError(err).WithFields(logging.Fields{
					"tool":    call.Name,
					"call_id": call.ID,
				}).Warn("tool execution failed")
				toolCallsTotal.WithLabelValues(call.Name, "error").Inc()
				record.Error = err.Error()
				failures[i] = true
				results[i] = llm.ToolResult{
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("Error executing tool: %v", err),
					IsError:    true,
				}
				records[i] = record
				return nil
			}

			if _, known := o.registry.Lookup(call.Name); known {
				ledger.Record(call.Name, out.Sources)
				toolCallsTotal.WithLabelValues(call.Name, "success").Inc()
			} else {
				toolCallsTotal.WithLabelValues("unknown", "not_found").Inc()
			}
			results[i] = llm.ToolResult{ToolCallID: call.ID, Content: out.Text}
			records[i] = record
			return nil
		})
	}
	_ = g.Wait()

	failed := false
	for _, f := range failures {
		failed = failed || f
	}
	return results, records, failed
}
