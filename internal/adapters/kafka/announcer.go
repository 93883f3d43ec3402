// Package kafka publishes announcements to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// MessageWriter is the subset of *kafka.Writer the announcer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Announcer implements ports.Announcer. Messages are keyed by device so a
// device's announcements stay ordered within one partition.
type Announcer struct {
	writer MessageWriter
}

// NewAnnouncer creates a writer for topic on brokers.
func NewAnnouncer(brokers []string, topic string) *Announcer {
	return NewAnnouncerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	})
}

// NewAnnouncerWithWriter wraps an existing writer.
func NewAnnouncerWithWriter(w MessageWriter) *Announcer {
	return &Announcer{writer: w}
}

func (a *Announcer) Announce(ctx context.Context, ann *domain.Announcement) error {
	data, err := json.Marshal(ann)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ann.DeviceID),
		Value: data,
		Time:  ann.CreatedAt,
		Headers: []kafka.Header{
			{Key: "announcement-id", Value: []byte(ann.ID)},
			{Key: "language", Value: []byte(ann.Language)},
		},
	}
	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (a *Announcer) Close() error {
	return a.writer.Close()
}
