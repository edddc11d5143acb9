package catalog

import (
	"context"
	"sort"
	"sync"
)

type memoryCourse struct {
	course    Course
	embedding []float32
}

// MemoryStore is a brute-force Backend for development and tests. Reads may
// run concurrently; writes take the exclusive lock.
type MemoryStore struct {
	mu      sync.RWMutex
	courses []memoryCourse
	byTitle map[string]int
	chunks  []ChunkRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byTitle: make(map[string]int)}
}

func (m *MemoryStore) UpsertCourse(_ context.Context, course Course, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := memoryCourse{course: cloneCourse(course), embedding: embedding}
	if i, ok := m.byTitle[course.Title]; ok {
		m.courses[i] = record
		return nil
	}
	m.byTitle[course.Title] = len(m.courses)
	m.courses = append(m.courses, record)
	return nil
}

func (m *MemoryStore) InsertChunks(_ context.Context, records []ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, records...)
	return nil
}

func (m *MemoryStore) NearestCourse(_ context.Context, embedding []float32) (string, float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	best, bestDist := -1, 0.0
	for i, c := range m.courses {
		d := cosineDistance(embedding, c.embedding)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return "", 0, false, nil
	}
	return m.courses[best].course.Title, bestDist, true, nil
}

func (m *MemoryStore) QueryChunks(_ context.Context, embedding []float32, filter Filter, limit int) (SearchResults, error) {
	m.mu.RLock()
	type hit struct {
		record   *ChunkRecord
		distance float64
	}
	hits := make([]hit, 0, len(m.chunks))
	for i := range m.chunks {
		rec := &m.chunks[i]
		if !filter.Matches(metadataOf(rec.Chunk)) {
			continue
		}
		hits = append(hits, hit{record: rec, distance: cosineDistance(embedding, rec.Embedding)})
	}
	m.mu.RUnlock()

	// Stable sort keeps insertion order for equal distances.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := EmptyResults("")
	for _, h := range hits {
		results.add(h.record.Chunk.Content, metadataOf(h.record.Chunk), h.distance)
	}
	return results, nil
}

func (m *MemoryStore) CourseTitles(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	titles := make([]string, len(m.courses))
	for i, c := range m.courses {
		titles[i] = c.course.Title
	}
	return titles, nil
}

func (m *MemoryStore) GetCourse(_ context.Context, title string) (*Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byTitle[title]
	if !ok {
		return nil, ErrCourseNotFound
	}
	course := cloneCourse(m.courses[i].course)
	return &course, nil
}

func (m *MemoryStore) CourseCount(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.courses), nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses = nil
	m.byTitle = make(map[string]int)
	m.chunks = nil
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func metadataOf(chunk CourseChunk) ChunkMetadata {
	return ChunkMetadata{
		CourseTitle:  chunk.CourseTitle,
		LessonNumber: chunk.LessonNumber,
		ChunkIndex:   chunk.ChunkIndex,
	}
}

func cloneCourse(c Course) Course {
	c.Lessons = append([]Lesson(nil), c.Lessons...)
	return c
}
