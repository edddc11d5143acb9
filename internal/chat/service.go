package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"frameworks/coursebook/internal/catalog"
	"frameworks/coursebook/internal/events"
	"frameworks/coursebook/internal/ingest"
	"frameworks/coursebook/internal/tools"
	"frameworks/coursebook/pkg/logging"
)

// QueryPublisher receives one event per query. *events.Publisher satisfies it.
type QueryPublisher interface {
	PublishQuery(ctx context.Context, event events.QueryEvent) error
}

type ServiceConfig struct {
	Index        catalog.Index
	Registry     *tools.Registry
	Orchestrator *Orchestrator
	Sessions     SessionStore
	Processor    *ingest.Processor
	Publisher    QueryPublisher
	Logger       logging.Logger
}

// Service answers course questions and loads course documents.
type Service struct {
	index        catalog.Index
	registry     *tools.Registry
	orchestrator *Orchestrator
	sessions     SessionStore
	processor    *ingest.Processor
	publisher    QueryPublisher
	logger       logging.Logger
}

type CourseAnalytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewMemorySessions(defaultMaxHistory)
	}
	processor := cfg.Processor
	if processor == nil {
		processor = ingest.NewProcessor(0, 0)
	}
	return &Service{
		index:        cfg.Index,
		registry:     cfg.Registry,
		orchestrator: cfg.Orchestrator,
		sessions:     sessions,
		processor:    processor,
		publisher:    cfg.Publisher,
		logger:       logger,
	}
}

// Registry returns the tool registry shared with other surfaces.
func (s *Service) Registry() *tools.Registry {
	return s.registry
}

func (s *Service) Sessions() SessionStore {
	return s.sessions
}

// Query answers one question. With a session id the prior exchanges are
// sent as context and the new exchange is recorded afterwards.
func (s *Service) Query(ctx context.Context, query, sessionID string) (string, []tools.Source, error) {
	if s.orchestrator == nil {
		return "", nil, errors.New("orchestrator unavailable")
	}
	start := time.Now()

	var history string
	if sessionID != "" {
		h, err := s.sessions.History(ctx, sessionID)
		if err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to load session history")
		}
		history = h
	}

	prompt := "Answer this question about course materials: " + query
	result, err := s.orchestrator.Run(ctx, prompt, history)
	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		s.publish(ctx, events.QueryEvent{
			SessionID:  sessionID,
			Query:      query,
			DurationMs: time.Since(start).Milliseconds(),
			Status:     "error",
		})
		return "", nil, err
	}

	if sessionID != "" {
		if err := s.sessions.AddExchange(ctx, sessionID, query, result.Content); err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to record exchange")
		}
	}

	queriesTotal.WithLabelValues("success").Inc()
	s.publish(ctx, events.QueryEvent{
		SessionID:   sessionID,
		Query:       query,
		AnswerChars: len(result.Content),
		SourceCount: len(result.Sources),
		ToolCalls:   len(result.ToolCalls),
		DurationMs:  time.Since(start).Milliseconds(),
		Status:      "success",
	})
	return result.Content, result.Sources, nil
}

func (s *Service) publish(ctx context.Context, event events.QueryEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishQuery(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WithError(err).Warn("Failed to publish query event")
	}
}

// AddCourseDocument indexes one document and returns its course and the
// number of chunks stored.
func (s *Service) AddCourseDocument(ctx context.Context, path string) (*catalog.Course, int, error) {
	course, chunks, err := s.processor.ProcessFile(path)
	if err != nil {
		return nil, 0, err
	}
	if err := s.index.AddCourseMetadata(ctx, *course); err != nil {
		return nil, 0, err
	}
	if err := s.index.AddCourseContent(ctx, chunks); err != nil {
		return nil, 0, err
	}
	return course, len(chunks), nil
}

// AddCourseFolder indexes every supported document in dir whose course is
// not already present. With clearExisting the index is emptied first. A
// document that fails to load is logged and skipped.
func (s *Service) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (int, int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("course folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return 0, 0, fmt.Errorf("course folder %s: not a directory", dir)
	}

	if clearExisting {
		s.logger.Info("Clearing existing course data")
		if err := s.index.ClearAllData(ctx); err != nil {
			return 0, 0, fmt.Errorf("clear index: %w", err)
		}
	}

	existing, err := s.index.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, err
	}
	known := make(map[string]bool, len(existing))
	for _, title := range existing {
		known[title] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read course folder: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && ingest.Supported(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	totalCourses, totalChunks := 0, 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return totalCourses, totalChunks, err
		}
		path := filepath.Join(dir, name)
		course, chunks, err := s.processor.ProcessFile(path)
		if err != nil {
			s.logger.WithError(err).WithField("file", path).Warn("Skipping unreadable course document")
			continue
		}
		if known[course.Title] {
			s.logger.WithField("course", course.Title).Info("Course already exists, skipping")
			continue
		}
		if err := s.index.AddCourseMetadata(ctx, *course); err != nil {
			s.logger.WithError(err).WithField("course", course.Title).Warn("Failed to index course metadata")
			continue
		}
		if err := s.index.AddCourseContent(ctx, chunks); err != nil {
			s.logger.WithError(err).WithField("course", course.Title).Warn("Failed to index course content")
			continue
		}
		known[course.Title] = true
		totalCourses++
		totalChunks += len(chunks)
		s.logger.WithFields(logging.Fields{
			"course": course.Title,
			"chunks": len(chunks),
		}).Info("Added course")
	}
	return totalCourses, totalChunks, nil
}

func (s *Service) Analytics(ctx context.Context) (CourseAnalytics, error) {
	total, err := s.index.CourseCount(ctx)
	if err != nil {
		return CourseAnalytics{}, err
	}
	titles, err := s.index.ExistingCourseTitles(ctx)
	if err != nil {
		return CourseAnalytics{}, err
	}
	if titles == nil {
		titles = []string{}
	}
	return CourseAnalytics{TotalCourses: total, CourseTitles: titles}, nil
}
