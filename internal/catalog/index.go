package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"frameworks/coursebook/pkg/logging"
)

var ErrCourseNotFound = errors.New("course not found")

// Index is the retrieval surface the tools and the RAG facade depend on.
type Index interface {
	AddCourseMetadata(ctx context.Context, course Course) error
	AddCourseContent(ctx context.Context, chunks []CourseChunk) error
	ResolveCourseName(ctx context.Context, name string) (string, bool)
	Search(ctx context.Context, q SearchQuery) SearchResults
	ExistingCourseTitles(ctx context.Context) ([]string, error)
	LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, bool)
	GetCourse(ctx context.Context, title string) (*Course, error)
	CourseCount(ctx context.Context) (int, error)
	ClearAllData(ctx context.Context) error
}

// SearchQuery is one content search. Empty CourseName and nil LessonNumber
// mean unfiltered; Limit <= 0 uses the configured maximum.
type SearchQuery struct {
	Query        string
	CourseName   string
	LessonNumber *int
	Limit        int
}

// ChunkRecord is a chunk ready for storage.
type ChunkRecord struct {
	ID        string
	Chunk     CourseChunk
	Embedding []float32
}

// Backend stores the two collections: one record per course (title-keyed)
// and one per content chunk.
type Backend interface {
	UpsertCourse(ctx context.Context, course Course, embedding []float32) error
	InsertChunks(ctx context.Context, records []ChunkRecord) error
	// NearestCourse returns the closest catalog title by cosine distance.
	NearestCourse(ctx context.Context, embedding []float32) (title string, distance float64, found bool, err error)
	QueryChunks(ctx context.Context, embedding []float32, filter Filter, limit int) (SearchResults, error)
	CourseTitles(ctx context.Context) ([]string, error)
	GetCourse(ctx context.Context, title string) (*Course, error)
	CourseCount(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
}

type Options struct {
	MaxResults int
	// MinNameSimilarity rejects name matches whose cosine similarity is
	// below the cutoff. Zero always accepts the nearest course.
	MinNameSimilarity float64
}

// Catalog implements Index over a Backend and an Embedder.
type Catalog struct {
	backend  Backend
	embedder Embedder
	opts     Options
	logger   logging.Logger
}

func New(backend Backend, embedder Embedder, opts Options, logger logging.Logger) *Catalog {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Catalog{backend: backend, embedder: embedder, opts: opts, logger: logger}
}

// Backend exposes the underlying store for health checks.
func (c *Catalog) Backend() Backend {
	return c.backend
}

func (c *Catalog) AddCourseMetadata(ctx context.Context, course Course) error {
	if course.Title == "" {
		return errors.New("course title is required")
	}
	vec, err := c.embedOne(ctx, course.Title)
	if err != nil {
		return fmt.Errorf("add course metadata: %w", err)
	}
	if err := c.backend.UpsertCourse(ctx, course, vec); err != nil {
		return fmt.Errorf("add course metadata: %w", err)
	}
	return nil
}

func (c *Catalog) AddCourseContent(ctx context.Context, chunks []CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("add course content: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("add course content: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	records := make([]ChunkRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = ChunkRecord{ID: uuid.NewString(), Chunk: chunk, Embedding: vectors[i]}
	}
	if err := c.backend.InsertChunks(ctx, records); err != nil {
		return fmt.Errorf("add course content: %w", err)
	}
	return nil
}

// ResolveCourseName maps a partial or fuzzy name to a stored title. Lookup
// failures are logged and treated as no match.
func (c *Catalog) ResolveCourseName(ctx context.Context, name string) (string, bool) {
	vec, err := c.embedOne(ctx, name)
	if err != nil {
		c.logger.WithError(err).WithField("course_name", name).Warn("Course name embedding failed")
		return "", false
	}
	title, distance, found, err := c.backend.NearestCourse(ctx, vec)
	if err != nil {
		c.logger.WithError(err).WithField("course_name", name).Warn("Course name resolution failed")
		return "", false
	}
	if !found {
		return "", false
	}
	if c.opts.MinNameSimilarity > 0 && 1-distance < c.opts.MinNameSimilarity {
		c.logger.WithFields(logging.Fields{
			"course_name": name,
			"nearest":     title,
			"similarity":  1 - distance,
		}).Debug("Nearest course below similarity cutoff")
		return "", false
	}
	return title, true
}

// Search never returns an error: failures are reported in SearchResults.Error.
func (c *Catalog) Search(ctx context.Context, q SearchQuery) SearchResults {
	start := time.Now()
	defer func() { searchDuration.Observe(time.Since(start).Seconds()) }()

	courseTitle := ""
	if q.CourseName != "" {
		resolved, ok := c.ResolveCourseName(ctx, q.CourseName)
		if !ok {
			searchQueriesTotal.WithLabelValues("unresolved").Inc()
			return EmptyResults(fmt.Sprintf("No course found matching '%s'", q.CourseName))
		}
		courseTitle = resolved
	}

	limit := q.Limit
	if limit <= 0 {
		limit = c.opts.MaxResults
	}

	vec, err := c.embedOne(ctx, q.Query)
	if err != nil {
		searchQueriesTotal.WithLabelValues("error").Inc()
		return EmptyResults("Search error: " + err.Error())
	}
	results, err := c.backend.QueryChunks(ctx, vec, BuildFilter(courseTitle, q.LessonNumber), limit)
	if err != nil {
		searchQueriesTotal.WithLabelValues("error").Inc()
		return EmptyResults("Search error: " + err.Error())
	}
	if results.IsEmpty() {
		searchQueriesTotal.WithLabelValues("empty").Inc()
	} else {
		searchQueriesTotal.WithLabelValues("ok").Inc()
	}
	return results
}

func (c *Catalog) ExistingCourseTitles(ctx context.Context) ([]string, error) {
	titles, err := c.backend.CourseTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list course titles: %w", err)
	}
	return titles, nil
}

func (c *Catalog) LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, bool) {
	course, err := c.backend.GetCourse(ctx, courseTitle)
	if err != nil {
		if !errors.Is(err, ErrCourseNotFound) {
			c.logger.WithError(err).WithField("course_title", courseTitle).Warn("Lesson link lookup failed")
		}
		return "", false
	}
	lesson, ok := course.Lesson(lessonNumber)
	if !ok || lesson.Link == "" {
		return "", false
	}
	return lesson.Link, true
}

func (c *Catalog) GetCourse(ctx context.Context, title string) (*Course, error) {
	return c.backend.GetCourse(ctx, title)
}

func (c *Catalog) CourseCount(ctx context.Context) (int, error) {
	return c.backend.CourseCount(ctx)
}

// ClearAllData empties both collections and drops cached query vectors.
func (c *Catalog) ClearAllData(ctx context.Context) error {
	if err := c.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	if cached, ok := c.embedder.(interface{ Purge() int }); ok {
		if n := cached.Purge(); n > 0 {
			c.logger.WithField("entries", n).Debug("Dropped cached query embeddings")
		}
	}
	return nil
}

func (c *Catalog) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errNoVector
	}
	return vectors[0], nil
}
