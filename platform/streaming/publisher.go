// Package streaming defines the event-publishing boundary accounting
// uses for fire-and-forget telemetry, adapted from
// control_plane/streaming's Publisher/Subscriber split in the teacher repo.
package streaming

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every published payload is wrapped in.
type Event struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Publisher is the fire-and-forget event sink boundary. A real deployment
// would back this with NATS/Kafka; the core only depends on the interface.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

// LogPublisher publishes by logging a structured JSON line. It is the
// default until a message-bus-backed Publisher is wired in, following
// control_plane/streaming's LogPublisher.
type LogPublisher struct {
	logger *log.Logger
	source string
}

// NewLogPublisher creates a LogPublisher tagged with the given source name.
func NewLogPublisher(source string) *LogPublisher {
	return &LogPublisher{logger: log.Default(), source: source}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   data,
		Timestamp: time.Now(),
		Source:    p.source,
	}
	eventBytes, _ := json.Marshal(event)
	p.logger.Printf("[STREAMING] PUBLISH %s: %s", topic, string(eventBytes))
	return nil
}

func (p *LogPublisher) Close() error {
	p.logger.Println("[STREAMING] closed LogPublisher")
	return nil
}
