package mcpspoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"frameworks/coursebook/internal/tools"
	"frameworks/coursebook/pkg/logging"
	"frameworks/coursebook/pkg/version"
)

const askToolName = "ask_course_question"

// Asker answers a question end to end. *chat.Service satisfies it.
type Asker interface {
	Query(ctx context.Context, query, sessionID string) (string, []tools.Source, error)
}

// Config configures the course MCP server.
type Config struct {
	Registry *tools.Registry
	Asker    Asker
	Logger   logging.Logger
}

// NewServer exposes the course tools and the full question pipeline to
// external agents.
func NewServer(cfg Config) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "coursebook",
		Version: version.Version,
	}, nil)

	registerSearch(srv, cfg)
	registerOutline(srv, cfg)
	registerAsk(srv, cfg)
	return srv
}

// NewHandler serves srv over streamable HTTP without server-side sessions.
func NewHandler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return srv },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)
}

// --- search_course_content ---

type searchInput struct {
	Query        string `json:"query" jsonschema:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema:"Course title; partial matches work"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema:"Specific lesson number to search within"`
}

func registerSearch(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        tools.SearchToolName,
			Description: "Search course materials with smart course name matching and lesson filtering.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args searchInput) (*mcp.CallToolResult, any, error) {
			return dispatch(ctx, cfg, tools.SearchToolName, args)
		},
	)
}

// --- get_course_outline ---

type outlineInput struct {
	CourseName string `json:"course_name" jsonschema:"Course title; partial matches work"`
}

func registerOutline(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        tools.OutlineToolName,
			Description: "Get a course outline: title, course link and every lesson with its number and title.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args outlineInput) (*mcp.CallToolResult, any, error) {
			return dispatch(ctx, cfg, tools.OutlineToolName, args)
		},
	)
}

// dispatch routes a call through the shared registry so agents see exactly
// what the model sees.
func dispatch(ctx context.Context, cfg Config, name string, args any) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	defer func() { toolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds()) }()

	if cfg.Registry == nil {
		toolCallsTotal.WithLabelValues(name, "unavailable").Inc()
		return spokeError("course tools unavailable")
	}
	raw, err := json.Marshal(args)
	if err != nil {
		toolCallsTotal.WithLabelValues(name, "error").Inc()
		return spokeError(fmt.Sprintf("failed to encode arguments: %v", err))
	}
	result, err := cfg.Registry.Dispatch(ctx, name, raw)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.WithError(err).WithField("tool", name).Warn("MCP tool call failed")
		}
		toolCallsTotal.WithLabelValues(name, "error").Inc()
		return spokeError(fmt.Sprintf("Error executing tool: %v", err))
	}
	toolCallsTotal.WithLabelValues(name, "success").Inc()
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: result.Text}},
	}, nil, nil
}

// --- ask_course_question ---

type askInput struct {
	Question  string `json:"question" jsonschema:"Question about the course materials"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Conversation to continue; omit for a one-off question"`
}

type askResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id,omitempty"`
}

func registerAsk(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        askToolName,
			Description: "Ask a question about the course materials. Runs the full retrieval and answer pipeline and returns the answer with its sources.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args askInput) (*mcp.CallToolResult, any, error) {
			return handleAsk(ctx, args, cfg)
		},
	)
}

func handleAsk(ctx context.Context, args askInput, cfg Config) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	defer func() { toolDuration.WithLabelValues(askToolName).Observe(time.Since(start).Seconds()) }()

	if cfg.Asker == nil {
		toolCallsTotal.WithLabelValues(askToolName, "unavailable").Inc()
		return spokeError("question answering unavailable")
	}
	question := strings.TrimSpace(args.Question)
	if question == "" {
		toolCallsTotal.WithLabelValues(askToolName, "invalid").Inc()
		return spokeError("question is required")
	}

	answer, sources, err := cfg.Asker.Query(ctx, question, args.SessionID)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.WithError(err).WithField("question", question).Warn("ask_course_question failed")
		}
		toolCallsTotal.WithLabelValues(askToolName, "error").Inc()
		return spokeError(fmt.Sprintf("query failed: %v", err))
	}
	if sources == nil {
		sources = []tools.Source{}
	}
	toolCallsTotal.WithLabelValues(askToolName, "success").Inc()
	return spokeSuccess(askResponse{Answer: answer, Sources: sources, SessionID: args.SessionID})
}

// --- helpers ---

func spokeError(message string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}, nil, nil
}

func spokeSuccess(result any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return spokeError(fmt.Sprintf("failed to format result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
