package infra

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// Publisher fans out notifications (cost records, world summaries) to a message bus.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close()
}

type natsPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to a NATS server.
func NewNATSPublisher(url string) (Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("wulin-chronicle"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect nats: %w", err)
	}
	return &natsPublisher{conn: conn}, nil
}

func (n *natsPublisher) Publish(_ context.Context, subject string, data []byte) error {
	return n.conn.Publish(subject, data)
}

func (n *natsPublisher) Close() {
	if n.conn != nil {
		_ = n.conn.Flush()
		n.conn.Close()
	}
}

type noopPublisher struct{}

// NewNoopPublisher is used when no bus is configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (noopPublisher) Close()                                        {}

// Message is one captured publication.
type Message struct {
	Subject string
	Data    []byte
}

// RecordingPublisher keeps every message in memory. Useful for offline runs and tests.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []Message
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (r *RecordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Subject: subject, Data: append([]byte(nil), data...)})
	return nil
}

func (r *RecordingPublisher) Close() {}

// Messages returns a copy of what has been published so far.
func (r *RecordingPublisher) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
