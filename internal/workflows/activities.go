package workflows

import (
	"context"
	"fmt"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
	"github.com/samirrijal/schoolmaps/internal/core/usecases"
)

// AnnouncementActivities holds the activity implementations for the
// announcement workflow.
type AnnouncementActivities struct {
	Proximity *usecases.ProximityService
}

// AcquireSession reports whether the device may be announced to in its
// current session.
func (a *AnnouncementActivities) AcquireSession(ctx context.Context, deviceID string) (bool, error) {
	return a.Proximity.AcquireSession(ctx, deviceID)
}

// ReleaseSession reopens the device's session (saga compensation).
func (a *AnnouncementActivities) ReleaseSession(ctx context.Context, deviceID string) error {
	if err := a.Proximity.ReleaseSession(ctx, deviceID); err != nil {
		return fmt.Errorf("release session %s: %w", deviceID, err)
	}
	return nil
}

// EvaluateProximity returns the alerts for a position.
func (a *AnnouncementActivities) EvaluateProximity(ctx context.Context, current domain.GeoPoint, threshold float64) ([]domain.AlertRecord, error) {
	eval, err := a.Proximity.Evaluate(ctx, current, threshold)
	if err != nil {
		return nil, fmt.Errorf("evaluate proximity: %w", err)
	}
	return eval.Alerts, nil
}

// DeliverAnnouncement renders alerts and hands them to the speech sink.
// It returns nil when there was nothing to say.
func (a *AnnouncementActivities) DeliverAnnouncement(ctx context.Context, deviceID string, alerts []domain.AlertRecord) (*domain.Announcement, error) {
	return a.Proximity.Announce(ctx, deviceID, alerts)
}

// RecordAlerts persists the alerts of a delivered announcement.
func (a *AnnouncementActivities) RecordAlerts(ctx context.Context, deviceID string, at domain.GeoPoint, alerts []domain.AlertRecord) error {
	a.Proximity.RecordAlerts(ctx, deviceID, at, alerts)
	return nil
}
