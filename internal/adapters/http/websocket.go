package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/schoolmaps/internal/adapters/nats"
	"github.com/samirrijal/schoolmaps/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsCommand is sent by clients to choose which devices they follow.
type wsCommand struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Device string `json:"device"` // "" = all devices
}

type wsReply struct {
	Status  string `json:"status,omitempty"`
	Subject string `json:"subject,omitempty"`
	Error   string `json:"error,omitempty"`
}

// announcementRelay forwards NATS announcements to one WebSocket client.
// A fresh relay follows every device; subscribing to a single device
// drops the catch-all subscription.
type announcementRelay struct {
	conn     *websocket.Conn
	nc       *nats.Conn
	subjects natsadapter.Subjects

	writeMu sync.Mutex
	subs    map[string]*nats.Subscription
}

func (r *announcementRelay) write(messageType int, data []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(messageType, data)
}

func (r *announcementRelay) reply(v wsReply) {
	data, err := json.Marshal(v)
	if err == nil {
		_ = r.write(websocket.TextMessage, data)
	}
}

func (r *announcementRelay) forward(msg *nats.Msg) {
	_ = r.write(websocket.TextMessage, msg.Data)
}

func (r *announcementRelay) subscribe(device string) {
	subject := r.subjects.AnnounceAll()
	if device != "" {
		subject = r.subjects.Announce(device)
	}
	if _, ok := r.subs[subject]; ok {
		r.reply(wsReply{Status: "already subscribed", Subject: subject})
		return
	}

	sub, err := r.nc.Subscribe(subject, r.forward)
	if err != nil {
		r.reply(wsReply{Error: "subscribe failed: " + err.Error()})
		return
	}
	if device != "" {
		r.unsubscribe(r.subjects.AnnounceAll())
	}
	r.subs[subject] = sub
	r.reply(wsReply{Status: "subscribed", Subject: subject})
}

// unsubscribe reports whether subject was followed.
func (r *announcementRelay) unsubscribe(subject string) bool {
	sub, ok := r.subs[subject]
	if !ok {
		return false
	}
	_ = sub.Unsubscribe()
	delete(r.subs, subject)
	return true
}

func (r *announcementRelay) close() {
	for subject := range r.subs {
		r.unsubscribe(subject)
	}
}

func (r *announcementRelay) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// WebSocketHandler relays announcements published on NATS to clients.
// Clients send {"action":"subscribe","device":"tablet-7"} to follow one
// device, or leave the device empty to follow all of them.
func WebSocketHandler(nc *nats.Conn, subjects natsadapter.Subjects) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remote := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remote)

		relay := &announcementRelay{
			conn:     c,
			nc:       nc,
			subjects: subjects,
			subs:     make(map[string]*nats.Subscription),
		}
		defer relay.close()
		relay.subscribe("")

		done := make(chan struct{})
		defer close(done)
		go relay.keepAlive(done)

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				break
			}

			var cmd wsCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				relay.reply(wsReply{Error: "invalid JSON"})
				continue
			}

			switch cmd.Action {
			case "subscribe":
				relay.subscribe(cmd.Device)
			case "unsubscribe":
				subject := subjects.AnnounceAll()
				if cmd.Device != "" {
					subject = subjects.Announce(cmd.Device)
				}
				if relay.unsubscribe(subject) {
					relay.reply(wsReply{Status: "unsubscribed", Subject: subject})
				} else {
					relay.reply(wsReply{Error: "not subscribed to " + subject})
				}
			default:
				relay.reply(wsReply{Error: "unknown action: " + cmd.Action})
			}
		}

		slog.Info("ws client disconnected", "remote", remote)
	}
}
