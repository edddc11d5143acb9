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

const OutlineToolName = "get_course_outline"

// OutlineTool returns a course's title, link and lesson list.
type OutlineTool struct {
	index catalog.Index
}

func NewOutlineTool(index catalog.Index) *OutlineTool {
	return &OutlineTool{index: index}
}

func (t *OutlineTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        OutlineToolName,
		Description: "Get the complete outline of a course: title, course link and every lesson with its number and title",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"course_name": map[string]interface{}{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
			},
			"required": []string{"course_name"},
		},
	}
}

type outlineArgs struct {
	CourseName *string `json:"course_name"`
}

func (t *OutlineTool) Execute(ctx context.Context, raw json.RawMessage) (Result, error) {
	var args outlineArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Result{}, err
	}
	if args.CourseName == nil {
		return Result{}, errors.New("missing required argument 'course_name'")
	}
	return Result{Text: t.Outline(ctx, *args.CourseName)}, nil
}

// Outline renders the outline text for the course nearest to courseName.
func (t *OutlineTool) Outline(ctx context.Context, courseName string) string {
	title, ok := t.index.ResolveCourseName(ctx, courseName)
	if !ok {
		return fmt.Sprintf("No course found matching '%s'", courseName)
	}
	course, err := t.index.GetCourse(ctx, title)
	if err != nil || course == nil {
		return fmt.Sprintf("No metadata found for course '%s'", title)
	}

	lines := []string{"Course: " + course.Title}
	if course.CourseLink != "" {
		lines = append(lines, "Link: "+course.CourseLink)
	}
	lines = append(lines, "Lessons:")
	for _, lesson := range course.Lessons {
		lines = append(lines, fmt.Sprintf("Lesson %d: %s", lesson.Number, lesson.Title))
	}
	return strings.Join(lines, "\n")
}
