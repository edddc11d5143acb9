package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"frameworks/coursebook/internal/catalog"
	"frameworks/coursebook/pkg/llm"
)

const SearchToolName = "search_course_content"

// SearchTool runs a filtered content search and renders the hits for the model.
type SearchTool struct {
	index catalog.Index
}

func NewSearchTool(index catalog.Index) *SearchTool {
	return &SearchTool{index: index}
}

func (t *SearchTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to search for in the course content",
				},
				"course_name": map[string]interface{}{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": map[string]interface{}{
					"type":        "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			"required": []string{"query"},
		},
	}
}

type searchArgs struct {
	Query        *string     `json:"query"`
	CourseName   string      `json:"course_name"`
	LessonNumber optionalInt `json:"lesson_number"`
}

func (t *SearchTool) Execute(ctx context.Context, raw json.RawMessage) (Result, error) {
	var args searchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Result{}, err
	}
	if args.Query == nil {
		return Result{}, errors.New("missing required argument 'query'")
	}
	return t.Search(ctx, *args.Query, args.CourseName, args.LessonNumber.value), nil
}

// Search is the typed entry point, shared with the MCP surface.
func (t *SearchTool) Search(ctx context.Context, query, courseName string, lessonNumber *int) Result {
	results := t.index.Search(ctx, catalog.SearchQuery{
		Query:        query,
		CourseName:   courseName,
		LessonNumber: lessonNumber,
	})
	if results.HasError() {
		return Result{Text: results.Error}
	}
	if results.IsEmpty() {
		var filterInfo strings.Builder
		if courseName != "" {
			fmt.Fprintf(&filterInfo, " in course '%s'", courseName)
		}
		if lessonNumber != nil {
			fmt.Fprintf(&filterInfo, " in lesson %d", *lessonNumber)
		}
		return Result{Text: "No relevant content found" + filterInfo.String() + "."}
	}
	return t.format(ctx, results)
}

func (t *SearchTool) format(ctx context.Context, results catalog.SearchResults) Result {
	blocks := make([]string, 0, len(results.Documents))
	sources := make([]Source, 0, len(results.Documents))
	for i, doc := range results.Documents {
		meta := results.Metadata[i]
		label := meta.CourseTitle
		if label == "" {
			label = "unknown"
		}
		var link string
		if meta.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", label, *meta.LessonNumber)
			link, _ = t.index.LessonLink(ctx, meta.CourseTitle, *meta.LessonNumber)
		}
		blocks = append(blocks, "["+label+"]\n"+doc)
		sources = append(sources, Source{Text: label, Link: link})
	}
	return Result{Text: strings.Join(blocks, "\n\n"), Sources: sources}
}
