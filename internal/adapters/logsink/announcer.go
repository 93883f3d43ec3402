// Package logsink writes announcements to the structured log. It is the
// default sink when no broker is configured.
package logsink

import (
	"context"
	"log/slog"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

type Announcer struct {
	logger *slog.Logger
}

// New returns an announcer writing to logger, or slog.Default when nil.
func New(logger *slog.Logger) *Announcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Announcer{logger: logger}
}

func (a *Announcer) Announce(ctx context.Context, ann *domain.Announcement) error {
	a.logger.InfoContext(ctx, "announcement",
		"id", ann.ID,
		"device", ann.DeviceID,
		"language", ann.Language,
		"rate", ann.Rate,
		"text", ann.Text,
		"alerts", len(ann.Alerts),
	)
	return nil
}
