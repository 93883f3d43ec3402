package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// Subjects derives the subject names used under a prefix.
type Subjects struct {
	Prefix string
}

// Announce is the subject for a device's announcements.
func (s Subjects) Announce(deviceID string) string {
	return s.Prefix + ".announce." + subjectToken(deviceID)
}

// AnnounceAll matches every device's announcements.
func (s Subjects) AnnounceAll() string {
	return s.Prefix + ".announce.>"
}

// Location is the subject a device publishes its readings to.
func (s Subjects) Location(deviceID string) string {
	return s.Prefix + ".location." + subjectToken(deviceID)
}

// LocationAll matches every device's readings.
func (s Subjects) LocationAll() string {
	return s.Prefix + ".location.>"
}

// DeviceFromSubject returns the device token of a location or announce subject.
func (s Subjects) DeviceFromSubject(subject string) string {
	rest, ok := strings.CutPrefix(subject, s.Prefix+".")
	if !ok {
		return ""
	}
	_, device, ok := strings.Cut(rest, ".")
	if !ok {
		return ""
	}
	return device
}

// subjectToken replaces characters NATS treats as separators or wildcards.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, id)
}

func streamConfigs(s Subjects) []nats.StreamConfig {
	name := strings.ToUpper(subjectToken(s.Prefix))
	return []nats.StreamConfig{
		{
			Name:      name + "_LOCATIONS",
			Subjects:  []string{s.LocationAll()},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      name + "_ANNOUNCEMENTS",
			Subjects:  []string{s.AnnounceAll()},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}
}

// streamManager is the part of nats.JetStreamContext that manages streams.
type streamManager interface {
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// ensureStreams creates the location and announcement streams, updating
// them when they already exist.
func ensureStreams(js streamManager, subjects Subjects) error {
	for _, cfg := range streamConfigs(subjects) {
		if _, err := js.AddStream(&cfg); err != nil {
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// connectJetStream connects and ensures the streams exist. The connection
// is closed when setup fails.
func connectJetStream(url string, subjects Subjects) (*nats.Conn, nats.JetStreamContext, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js, subjects); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, js, nil
}

func connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// Publisher implements ports.Announcer using NATS JetStream.
type Publisher struct {
	conn     *nats.Conn
	js       nats.JetStreamContext
	subjects Subjects
}

// NewPublisher connects to NATS and ensures the streams exist.
func NewPublisher(url, prefix string) (*Publisher, error) {
	subjects := Subjects{Prefix: prefix}
	conn, js, err := connectJetStream(url, subjects)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, js: js, subjects: subjects}, nil
}

// Announce publishes the announcement on the device's subject.
func (p *Publisher) Announce(ctx context.Context, ann *domain.Announcement) error {
	data, err := json.Marshal(ann)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(p.subjects.Announce(ann.DeviceID), data, nats.Context(ctx), nats.MsgId(ann.ID))
	return err
}

// PublishLocation publishes a reading for the tracker to consume.
func (p *Publisher) PublishLocation(ctx context.Context, update *domain.LocationUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(p.subjects.Location(update.DeviceID), data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return connect(url)
}
