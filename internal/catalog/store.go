package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// Store is a Backend on Postgres with pgvector. Similarity is cosine
// distance (the <=> operator).
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertCourse(ctx context.Context, course Course, embedding []float32) error {
	lessons, err := course.LessonsJSON()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO course_catalog (title, instructor, course_link, lessons_json, lesson_count, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (title) DO UPDATE SET
			instructor = EXCLUDED.instructor,
			course_link = EXCLUDED.course_link,
			lessons_json = EXCLUDED.lessons_json,
			lesson_count = EXCLUDED.lesson_count,
			embedding = EXCLUDED.embedding
	`, course.Title, course.Instructor, course.CourseLink, lessons, len(course.Lessons), pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("upsert course: %w", err)
	}
	return nil
}

func (s *Store) InsertChunks(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO course_content (
			id,
			course_title,
			lesson_number,
			chunk_index,
			content,
			embedding
		) VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var lesson sql.NullInt64
		if rec.Chunk.LessonNumber != nil {
			lesson = sql.NullInt64{Int64: int64(*rec.Chunk.LessonNumber), Valid: true}
		}
		if _, err := stmt.ExecContext(
			ctx,
			rec.ID,
			rec.Chunk.CourseTitle,
			lesson,
			rec.Chunk.ChunkIndex,
			rec.Chunk.Content,
			pgvector.NewVector(rec.Embedding),
		); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) NearestCourse(ctx context.Context, embedding []float32) (string, float64, bool, error) {
	var (
		title    string
		distance float64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT title, embedding <=> $1 AS distance
		FROM course_catalog
		ORDER BY embedding <=> $1
		LIMIT 1
	`, pgvector.NewVector(embedding)).Scan(&title, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("nearest course: %w", err)
	}
	return title, distance, true, nil
}

func (s *Store) QueryChunks(ctx context.Context, embedding []float32, filter Filter, limit int) (SearchResults, error) {
	where, args, err := filter.sqlWhere(3)
	if err != nil {
		return SearchResults{}, err
	}
	query := fmt.Sprintf(`
		SELECT content,
			course_title,
			lesson_number,
			chunk_index,
			embedding <=> $1 AS distance
		FROM course_content
		WHERE %s
		ORDER BY embedding <=> $1, seq
		LIMIT $2
	`, where)

	rows, err := s.db.QueryContext(ctx, query, append([]any{pgvector.NewVector(embedding), limit}, args...)...)
	if err != nil {
		return SearchResults{}, fmt.Errorf("query content: %w", err)
	}
	defer rows.Close()

	results := EmptyResults("")
	for rows.Next() {
		var (
			content  string
			meta     ChunkMetadata
			lesson   sql.NullInt64
			distance float64
		)
		if err := rows.Scan(&content, &meta.CourseTitle, &lesson, &meta.ChunkIndex, &distance); err != nil {
			return SearchResults{}, fmt.Errorf("scan content: %w", err)
		}
		if lesson.Valid {
			meta.LessonNumber = IntPtr(int(lesson.Int64))
		}
		results.add(content, meta, distance)
	}
	if err := rows.Err(); err != nil {
		return SearchResults{}, fmt.Errorf("iterate content: %w", err)
	}
	return results, nil
}

func (s *Store) CourseTitles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM course_catalog ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	titles := []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate titles: %w", err)
	}
	return titles, nil
}

func (s *Store) GetCourse(ctx context.Context, title string) (*Course, error) {
	course := Course{Title: title}
	var lessons []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT instructor, course_link, lessons_json
		FROM course_catalog
		WHERE title = $1
	`, title).Scan(&course.Instructor, &course.CourseLink, &lessons)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if course.Lessons, err = decodeLessons(lessons); err != nil {
		return nil, err
	}
	return &course, nil
}

func (s *Store) CourseCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM course_catalog`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE course_content, course_catalog`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
