package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"frameworks/coursebook/internal/catalog"
	"frameworks/coursebook/pkg/llm"
)

type fakeIndex struct {
	results   catalog.SearchResults
	resolved  map[string]string
	courses   map[string]*catalog.Course
	links     map[string]string
	lastQuery catalog.SearchQuery
	searches  int
}

func (f *fakeIndex) AddCourseMetadata(context.Context, catalog.Course) error        { return nil }
func (f *fakeIndex) AddCourseContent(context.Context, []catalog.CourseChunk) error { return nil }
func (f *fakeIndex) ExistingCourseTitles(context.Context) ([]string, error)        { return nil, nil }
func (f *fakeIndex) CourseCount(context.Context) (int, error)                      { return len(f.courses), nil }
func (f *fakeIndex) ClearAllData(context.Context) error                            { return nil }

func (f *fakeIndex) ResolveCourseName(_ context.Context, name string) (string, bool) {
	title, ok := f.resolved[name]
	return title, ok
}

func (f *fakeIndex) Search(_ context.Context, q catalog.SearchQuery) catalog.SearchResults {
	f.searches++
	f.lastQuery = q
	return f.results
}

func (f *fakeIndex) LessonLink(_ context.Context, title string, lesson int) (string, bool) {
	link, ok := f.links[title+"#"+string(rune('0'+lesson))]
	return link, ok
}

func (f *fakeIndex) GetCourse(_ context.Context, title string) (*catalog.Course, error) {
	course, ok := f.courses[title]
	if !ok {
		return nil, catalog.ErrCourseNotFound
	}
	return course, nil
}

func resultsOf(docs []string, metas []catalog.ChunkMetadata) catalog.SearchResults {
	distances := make([]float64, len(docs))
	return catalog.SearchResults{Documents: docs, Metadata: metas, Distances: distances}
}

func TestSearchToolDefinition(t *testing.T) {
	def := NewSearchTool(&fakeIndex{}).Definition()
	if def.Name != "search_course_content" {
		t.Fatalf("unexpected name %q", def.Name)
	}
	props := def.Parameters["properties"].(map[string]interface{})
	for _, key := range []string{"query", "course_name", "lesson_number"} {
		if _, ok := props[key]; !ok {
			t.Fatalf("missing property %q", key)
		}
	}
	required := def.Parameters["required"].([]string)
	if len(required) != 1 || required[0] != "query" {
		t.Fatalf("unexpected required %v", required)
	}
}

func TestSearchToolFormatsResultsAndSources(t *testing.T) {
	index := &fakeIndex{
		results: resultsOf(
			[]string{"Content 1", "Content 2", "General content"},
			[]catalog.ChunkMetadata{
				{CourseTitle: "Course A", LessonNumber: catalog.IntPtr(1)},
				{CourseTitle: "Course B", LessonNumber: catalog.IntPtr(2)},
				{CourseTitle: "General Course"},
			},
		),
		links: map[string]string{"Course A#1": "http://a1", "Course B#2": "http://b2"},
	}
	tool := NewSearchTool(index)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"neural networks"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "[Course A - Lesson 1]\nContent 1\n\n[Course B - Lesson 2]\nContent 2\n\n[General Course]\nGeneral content"
	if result.Text != want {
		t.Fatalf("unexpected text:\n%s", result.Text)
	}
	if len(result.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(result.Sources))
	}
	if result.Sources[0] != (Source{Text: "Course A - Lesson 1", Link: "http://a1"}) {
		t.Fatalf("unexpected source %+v", result.Sources[0])
	}
	if result.Sources[1] != (Source{Text: "Course B - Lesson 2", Link: "http://b2"}) {
		t.Fatalf("unexpected source %+v", result.Sources[1])
	}
	if result.Sources[2] != (Source{Text: "General Course"}) {
		t.Fatalf("unexpected source %+v", result.Sources[2])
	}
	if index.lastQuery.Query != "neural networks" || index.lastQuery.CourseName != "" || index.lastQuery.LessonNumber != nil {
		t.Fatalf("unexpected query %+v", index.lastQuery)
	}
}

func TestSearchToolPassesFilters(t *testing.T) {
	index := &fakeIndex{results: catalog.EmptyResults("")}
	tool := NewSearchTool(index)

	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"q","course_name":"AI Course","lesson_number":"3"}`)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if index.lastQuery.CourseName != "AI Course" || index.lastQuery.LessonNumber == nil || *index.lastQuery.LessonNumber != 3 {
		t.Fatalf("filters not forwarded: %+v", index.lastQuery)
	}
}

func TestSearchToolEmptyMessages(t *testing.T) {
	tool := NewSearchTool(&fakeIndex{results: catalog.EmptyResults("")})
	ctx := context.Background()

	cases := []struct {
		course string
		lesson *int
		want   string
	}{
		{"", nil, "No relevant content found."},
		{"AI Course", nil, "No relevant content found in course 'AI Course'."},
		{"", catalog.IntPtr(5), "No relevant content found in lesson 5."},
		{"AI", catalog.IntPtr(1), "No relevant content found in course 'AI' in lesson 1."},
	}
	for _, c := range cases {
		got := tool.Search(ctx, "test", c.course, c.lesson)
		if got.Text != c.want {
			t.Fatalf("got %q, want %q", got.Text, c.want)
		}
		if len(got.Sources) != 0 {
			t.Fatalf("expected no sources for empty result")
		}
	}
}

func TestSearchToolReturnsErrorVerbatim(t *testing.T) {
	tool := NewSearchTool(&fakeIndex{results: catalog.EmptyResults("No course found matching 'AI'")})
	got := tool.Search(context.Background(), "test", "AI", nil)
	if got.Text != "No course found matching 'AI'" {
		t.Fatalf("unexpected text %q", got.Text)
	}
}

func TestSearchToolRejectsBadArguments(t *testing.T) {
	tool := NewSearchTool(&fakeIndex{})
	ctx := context.Background()
	if _, err := tool.Execute(ctx, json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected missing query error")
	}
	if _, err := tool.Execute(ctx, json.RawMessage(`{"query":"q","lesson_number":1.5}`)); err == nil {
		t.Fatalf("expected non-integer lesson error")
	}
	if _, err := tool.Execute(ctx, json.RawMessage(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestOutlineTool(t *testing.T) {
	index := &fakeIndex{
		resolved: map[string]string{"AI": "AI Fundamentals", "Test": "Test Course"},
		courses: map[string]*catalog.Course{
			"AI Fundamentals": {
				Title:      "AI Fundamentals",
				CourseLink: "http://course",
				Lessons: []catalog.Lesson{
					{Number: 0, Title: "Intro"},
					{Number: 1, Title: "Basics"},
				},
			},
		},
	}
	tool := NewOutlineTool(index)
	ctx := context.Background()

	result, err := tool.Execute(ctx, json.RawMessage(`{"course_name":"AI"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "Course: AI Fundamentals\nLink: http://course\nLessons:\nLesson 0: Intro\nLesson 1: Basics"
	if result.Text != want {
		t.Fatalf("unexpected outline:\n%s", result.Text)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("outline should not produce sources")
	}

	if got := tool.Outline(ctx, "Nonexistent Course"); got != "No course found matching 'Nonexistent Course'" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := tool.Outline(ctx, "Test"); !strings.Contains(got, "No metadata found") {
		t.Fatalf("expected metadata error, got %q", got)
	}
	if _, err := tool.Execute(ctx, json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected missing course_name error")
	}
}

func TestOutlineOmitsEmptyLink(t *testing.T) {
	index := &fakeIndex{
		resolved: map[string]string{"go": "Go"},
		courses:  map[string]*catalog.Course{"Go": {Title: "Go"}},
	}
	got := NewOutlineTool(index).Outline(context.Background(), "go")
	if got != "Course: Go\nLessons:" {
		t.Fatalf("unexpected outline %q", got)
	}
}

func TestOutlineRoundTripThroughCatalog(t *testing.T) {
	idx := catalog.New(catalog.NewMemoryStore(), catalog.NewLocalEmbedder(64), catalog.Options{}, nil)
	ctx := context.Background()
	course := catalog.Course{
		Title:   "Round Trip",
		Lessons: []catalog.Lesson{{Number: 0, Title: "Intro"}, {Number: 1, Title: "Basics"}},
	}
	if err := idx.AddCourseMetadata(ctx, course); err != nil {
		t.Fatalf("add: %v", err)
	}
	got := NewOutlineTool(idx).Outline(ctx, "Round Trip")
	first := strings.Index(got, "Lesson 0: Intro")
	second := strings.Index(got, "Lesson 1: Basics")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("lessons missing or out of order:\n%s", got)
	}
}

type fakeTool struct {
	name   string
	text   string
	err    error
	called int
	mu     sync.Mutex
}

func (f *fakeTool) Definition() llm.Tool {
	return llm.Tool{Name: f.name, Parameters: map[string]interface{}{"type": "object"}}
}

func (f *fakeTool) Execute(context.Context, json.RawMessage) (Result, error) {
	f.mu.Lock()
	f.called++
	f.mu.Unlock()
	return Result{Text: f.text}, f.err
}

func TestRegistryRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeTool{}); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
	if ErrMissingName.Error() != "Tool must have a 'name'" {
		t.Fatalf("unexpected message %q", ErrMissingName.Error())
	}

	first := &fakeTool{name: "tool1", text: "one"}
	r.MustRegister(first, &fakeTool{name: "tool2", text: "two"})
	replacement := &fakeTool{name: "tool1", text: "uno"}
	r.MustRegister(replacement)

	schemas := r.Schemas()
	if len(schemas) != 2 || schemas[0].Name != "tool1" || schemas[1].Name != "tool2" {
		t.Fatalf("unexpected schemas %+v", schemas)
	}

	result, err := r.Dispatch(context.Background(), "tool1", json.RawMessage(`{"param1":"value1"}`))
	if err != nil || result.Text != "uno" {
		t.Fatalf("expected replacement tool, got %q %v", result.Text, err)
	}
	if first.called != 0 || replacement.called != 1 {
		t.Fatalf("unexpected call counts %d %d", first.called, replacement.called)
	}

	result, err = r.Dispatch(context.Background(), "nonexistent_tool", nil)
	if err != nil || result.Text != "Tool 'nonexistent_tool' not found" {
		t.Fatalf("unexpected dispatch result %q %v", result.Text, err)
	}
}

func TestLedgerCollectAndClear(t *testing.T) {
	r := NewRegistry().MustRegister(&fakeTool{name: "search"}, &fakeTool{name: "outline"})
	ledger := r.NewLedger()

	ledger.Record("outline", []Source{{Text: "Outline"}})
	ledger.Record("search", []Source{{Text: "Old"}})
	ledger.Record("search", []Source{{Text: "Source 1", Link: "http://link"}})

	got := ledger.Collect()
	if len(got) != 2 || got[0].Text != "Source 1" || got[1].Text != "Outline" {
		t.Fatalf("expected latest sources in registration order, got %+v", got)
	}

	ledger.Clear()
	if got := ledger.Collect(); len(got) != 0 {
		t.Fatalf("expected cleared ledger, got %+v", got)
	}
}
