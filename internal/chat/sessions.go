package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"frameworks/coursebook/pkg/logging"
)

const defaultMaxHistory = 2

// SessionStore keeps the last few exchanges of each conversation. History
// renders them for the system prompt and is empty for unknown sessions.
type SessionStore interface {
	CreateSession(ctx context.Context) (string, error)
	AddExchange(ctx context.Context, sessionID, query, answer string) error
	History(ctx context.Context, sessionID string) (string, error)
	Clear(ctx context.Context, sessionID string) error
}

type sessionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func renderHistory(messages []sessionMessage) string {
	if len(messages) == 0 {
		return ""
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func sessionName(n int64) string {
	return fmt.Sprintf("session_%d", n)
}

// MemorySessions is the single-process SessionStore.
type MemorySessions struct {
	mu         sync.Mutex
	counter    int64
	maxHistory int
	sessions   map[string][]sessionMessage
}

func NewMemorySessions(maxHistory int) *MemorySessions {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &MemorySessions{
		maxHistory: maxHistory,
		sessions:   make(map[string][]sessionMessage),
	}
}

func (s *MemorySessions) CreateSession(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	id := sessionName(s.counter)
	s.sessions[id] = nil
	return id, nil
}

func (s *MemorySessions) AddExchange(_ context.Context, sessionID, query, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.sessions[sessionID],
		sessionMessage{Role: "user", Content: query},
		sessionMessage{Role: "assistant", Content: answer},
	)
	if limit := s.maxHistory * 2; len(msgs) > limit {
		msgs = append([]sessionMessage(nil), msgs[len(msgs)-limit:]...)
	}
	s.sessions[sessionID] = msgs
	return nil
}

func (s *MemorySessions) History(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return renderHistory(s.sessions[sessionID]), nil
}

func (s *MemorySessions) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		s.sessions[sessionID] = nil
	}
	return nil
}

// RedisSessions shares history across replicas: one list per session,
// trimmed to the history window and expired after ttl of inactivity.
type RedisSessions struct {
	client     goredis.UniversalClient
	maxHistory int
	ttl        time.Duration
	prefix     string
	logger     logging.Logger
}

func NewRedisSessions(client goredis.UniversalClient, maxHistory int, ttl time.Duration, logger logging.Logger) *RedisSessions {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessions{
		client:     client,
		maxHistory: maxHistory,
		ttl:        ttl,
		prefix:     "coursebook:session:",
		logger:     logger,
	}
}

func (s *RedisSessions) keySession(id string) string { return s.prefix + id }
func (s *RedisSessions) keyCounter() string        { return s.prefix + "seq" }

func (s *RedisSessions) CreateSession(ctx context.Context) (string, error) {
	n, err := s.client.Incr(ctx, s.keyCounter()).Result()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionName(n), nil
}

func (s *RedisSessions) AddExchange(ctx context.Context, sessionID, query, answer string) error {
	user, err := json.Marshal(sessionMessage{Role: "user", Content: query})
	if err != nil {
		return err
	}
	assistant, err := json.Marshal(sessionMessage{Role: "assistant", Content: answer})
	if err != nil {
		return err
	}
	key := s.keySession(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, user, assistant)
	pipe.LTrim(ctx, key, int64(-2*s.maxHistory), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add exchange: %w", err)
	}
	return nil
}

func (s *RedisSessions) History(ctx context.Context, sessionID string) (string, error) {
	raw, err := s.client.LRange(ctx, s.keySession(sessionID), 0, -1).Result()
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	msgs := make([]sessionMessage, 0, len(raw))
	for _, item := range raw {
		var m sessionMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			if s.logger != nil {
				s.logger.WithError(err).WithField("session_id", sessionID).Warn("Skipping malformed session entry")
			}
			continue
		}
		msgs = append(msgs, m)
	}
	return renderHistory(msgs), nil
}

func (s *RedisSessions) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.keySession(sessionID)).Err()
}
