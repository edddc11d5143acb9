package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"frameworks/coursebook/pkg/kafka"
	"frameworks/coursebook/pkg/logging"
)

const (
	defaultTopic  = "coursebook.queries"
	defaultSource = "coursebook"
)

// QueryEvent is emitted once per answered (or failed) question.
type QueryEvent struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Query       string    `json:"query"`
	AnswerChars int       `json:"answer_chars"`
	SourceCount int       `json:"source_count"`
	ToolCalls   int       `json:"tool_calls"`
	DurationMs  int64     `json:"duration_ms"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

// messageProducer is the slice of kafka.Producer the publisher needs.
type messageProducer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
	Close() error
}

type PublisherConfig struct {
	Brokers   []string
	ClusterID string
	Topic     string
	Source    string
	Logger    logging.Logger
}

// Publisher writes query events to Kafka. A nil *Publisher is a no-op.
type Publisher struct {
	producer messageProducer
	topic    string
	source   string
	logger   logging.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required for query event publisher")
	}
	clusterID := cfg.ClusterID
	if clusterID == "" {
		clusterID = "local"
	}
	producer, err := kafka.NewProducer(cfg.Brokers, defaultSource, clusterID, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return newPublisher(producer, cfg), nil
}

func newPublisher(producer messageProducer, cfg PublisherConfig) *Publisher {
	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}
	source := cfg.Source
	if source == "" {
		source = defaultSource
	}
	return &Publisher{producer: producer, topic: topic, source: source, logger: cfg.Logger}
}

func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// Ping checks broker reachability when the producer supports it.
func (p *Publisher) Ping(ctx context.Context) error {
	if p == nil || p.producer == nil {
		return errors.New("query event publisher not configured")
	}
	if pinger, ok := p.producer.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// PublishQuery fills EventID and Timestamp when unset. The message key is
// the session id so one conversation stays on one partition.
func (p *Publisher) PublishQuery(ctx context.Context, event QueryEvent) error {
	if p == nil || p.producer == nil {
		return nil
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal query event: %w", err)
	}
	key := event.SessionID
	if key == "" {
		key = event.EventID
	}
	err = p.producer.ProduceMessage(ctx, p.topic, []byte(key), payload, map[string]string{
		"source": p.source,
		"type":   "query_answered",
		"status": event.Status,
	})
	if err != nil {
		return fmt.Errorf("publish query event: %w", err)
	}
	if p.logger != nil {
		p.logger.WithFields(logging.Fields{
			"event_id":   event.EventID,
			"session_id": event.SessionID,
			"topic":      p.topic,
		}).Debug("Published query event")
	}
	return nil
}
