package catalog

import (
	"encoding/json"
	"fmt"
)

// Lesson is owned by its course and serialized with it.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is keyed by its exact title.
type Course struct {
	Title      string   `json:"title"`
	CourseLink string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson returns the lesson with the given number.
func (c *Course) Lesson(number int) (Lesson, bool) {
	for _, lesson := range c.Lessons {
		if lesson.Number == number {
			return lesson, true
		}
	}
	return Lesson{}, false
}

// LessonsJSON is the stored form of the lesson list.
func (c *Course) LessonsJSON() ([]byte, error) {
	lessons := c.Lessons
	if lessons == nil {
		lessons = []Lesson{}
	}
	raw, err := json.Marshal(lessons)
	if err != nil {
		return nil, fmt.Errorf("encode lessons: %w", err)
	}
	return raw, nil
}

func decodeLessons(raw []byte) ([]Lesson, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var lessons []Lesson
	if err := json.Unmarshal(raw, &lessons); err != nil {
		return nil, fmt.Errorf("decode lessons: %w", err)
	}
	return lessons, nil
}

// CourseChunk references its course by title, not by pointer.
type CourseChunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
}

// ChunkMetadata is the filterable attribution stored with every chunk.
type ChunkMetadata struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
}

// SearchResults carries parallel slices of equal length. When Error is set all
// three are empty.
type SearchResults struct {
	Documents []string
	Metadata  []ChunkMetadata
	Distances []float64
	Error     string
}

// EmptyResults builds an error-carrying (or plain empty) result set.
func EmptyResults(errMsg string) SearchResults {
	return SearchResults{
		Documents: []string{},
		Metadata:  []ChunkMetadata{},
		Distances: []float64{},
		Error:     errMsg,
	}
}

// IsEmpty is independent of the error state.
func (r SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}

func (r SearchResults) HasError() bool {
	return r.Error != ""
}

func (r *SearchResults) add(document string, meta ChunkMetadata, distance float64) {
	r.Documents = append(r.Documents, document)
	r.Metadata = append(r.Metadata, meta)
	r.Distances = append(r.Distances, distance)
}

// IntPtr is a convenience for optional lesson numbers.
func IntPtr(n int) *int {
	return &n
}
