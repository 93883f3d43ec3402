package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// Subscriber implements ports.LocationSubscriber using NATS JetStream.
type Subscriber struct {
	conn     *nats.Conn
	js       nats.JetStreamContext
	subjects Subjects
	subs     []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection. It
// ensures the streams exist so the tracker can start before the API.
func NewSubscriber(url, prefix string) (*Subscriber, error) {
	subjects := Subjects{Prefix: prefix}
	conn, js, err := connectJetStream(url, subjects)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js, subjects: subjects}, nil
}

func (s *Subscriber) SubscribeLocations(ctx context.Context, handler func(ctx context.Context, update *domain.LocationUpdate) error) error {
	sub, err := s.js.Subscribe(s.subjects.LocationAll(), func(msg *nats.Msg) {
		update, err := decodeLocation(s.subjects, msg.Subject, msg.Data)
		if err != nil {
			// redelivery cannot fix a malformed payload
			slog.Warn("dropping location message", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if meta, err := msg.Metadata(); err == nil {
			stampRecordedAt(update, meta)
		}
		if err := handler(ctx, update); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("location-tracker"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// stampRecordedAt fills a missing reading time from the stream timestamp,
// which stays the same across redeliveries.
func stampRecordedAt(update *domain.LocationUpdate, meta *nats.MsgMetadata) {
	if update.RecordedAt.IsZero() && meta != nil {
		update.RecordedAt = meta.Timestamp.UTC()
	}
}

// decodeLocation parses a reading; the device id defaults to the subject token.
func decodeLocation(subjects Subjects, subject string, data []byte) (*domain.LocationUpdate, error) {
	var update domain.LocationUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	if update.DeviceID == "" {
		update.DeviceID = subjects.DeviceFromSubject(subject)
	}
	if update.DeviceID == "" {
		return nil, fmt.Errorf("location on %s has no device id", subject)
	}
	return &update, nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
