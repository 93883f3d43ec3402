package usecases

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/schoolmaps/internal/core/announce"
	"github.com/samirrijal/schoolmaps/internal/core/domain"
	"github.com/samirrijal/schoolmaps/internal/core/ports"
	"github.com/samirrijal/schoolmaps/internal/core/proximity"
	"github.com/samirrijal/schoolmaps/internal/pkg/logging"
	"github.com/samirrijal/schoolmaps/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/schoolmaps/internal/core/usecases")

// ProximityService runs the analyzer against location readings and hands
// the resulting announcements to a speech sink.
type ProximityService struct {
	points    *PointService
	alerts    ports.AlertRepository
	locations ports.LocationStore
	latch     ports.SessionLatch
	announcer ports.Announcer
	renderer  *announce.Renderer
	threshold float64
	sink      string
}

// ProximityDeps are the optional collaborators of a ProximityService.
// A nil Latch disables the once-per-session announcement policy.
type ProximityDeps struct {
	Alerts    ports.AlertRepository
	Locations ports.LocationStore
	Latch     ports.SessionLatch
	Announcer ports.Announcer
	Sink      string // metrics label for the announcer
}

// NewProximityService creates a new ProximityService.
func NewProximityService(points *PointService, renderer *announce.Renderer, threshold float64, deps ProximityDeps) *ProximityService {
	if threshold <= 0 {
		threshold = domain.DefaultAlertThreshold
	}
	return &ProximityService{
		points:    points,
		alerts:    deps.Alerts,
		locations: deps.Locations,
		latch:     deps.Latch,
		announcer: deps.Announcer,
		renderer:  renderer,
		threshold: threshold,
		sink:      deps.Sink,
	}
}

// Threshold returns the default alert threshold in meters.
func (s *ProximityService) Threshold() float64 {
	return s.threshold
}

// Evaluate computes alerts for current. threshold <= 0 selects the default.
func (s *ProximityService) Evaluate(ctx context.Context, current domain.GeoPoint, threshold float64) (*domain.Evaluation, error) {
	if threshold <= 0 {
		threshold = s.threshold
	}

	ctx, span := tracer.Start(ctx, "ProximityService.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("location.lat", current.Lat),
		attribute.Float64("location.lon", current.Lon),
		attribute.Float64("threshold_meters", threshold),
	)

	start := time.Now()
	set, err := s.points.Near(ctx, current, threshold)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load points")
		return nil, err
	}

	alerts := proximity.BuildAlerts(current, set, threshold)

	metrics.ProximityEvaluations.Inc()
	metrics.ProximityEvaluationDuration.Observe(time.Since(start).Seconds())
	for _, a := range alerts {
		metrics.ProximityAlerts.WithLabelValues(a.Name).Inc()
	}
	span.SetAttributes(attribute.Int("alerts", len(alerts)))

	return &domain.Evaluation{
		Current:     current,
		Threshold:   threshold,
		Alerts:      alerts,
		EvaluatedAt: time.Now(),
	}, nil
}

// Markers returns the map-renderer payload: the current position first,
// followed by every point of interest.
func (s *ProximityService) Markers(ctx context.Context, current domain.GeoPoint) ([]domain.Marker, error) {
	set, err := s.points.Set(ctx)
	if err != nil {
		return nil, err
	}
	markers := make([]domain.Marker, 0, set.Len()+1)
	markers = append(markers, domain.Marker{
		Name:     domain.CurrentMarkerName,
		Label:    domain.CurrentMarkerLabel,
		Location: current,
	})
	for p := range set.All() {
		markers = append(markers, domain.Marker{Name: p.Name, Label: p.Label, Location: p.Location})
	}
	return markers, nil
}

// HandleLocation stores a reading, evaluates it and announces any alerts.
// It returns nil when nothing was announced.
func (s *ProximityService) HandleLocation(ctx context.Context, update *domain.LocationUpdate) (*domain.Announcement, error) {
	if err := validateLocation(update.Location); err != nil {
		return nil, err
	}
	if update.RecordedAt.IsZero() {
		update.RecordedAt = time.Now()
	}
	metrics.LocationUpdates.Inc()

	if s.locations != nil {
		if err := s.locations.SaveLatest(ctx, update); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "store latest location failed", "device", update.DeviceID, "error", err)
		}
	}

	// the first reading of a session consumes the latch, with or without alerts
	latched := false
	if s.latch != nil {
		acquired, err := s.AcquireSession(ctx, update.DeviceID)
		switch {
		case err != nil:
			logging.FromContext(ctx).WarnContext(ctx, "session latch unavailable", "device", update.DeviceID, "error", err)
		case !acquired:
			metrics.AnnouncementsSuppressed.Inc()
			return nil, nil
		default:
			latched = true
		}
	}

	// on failure the latch is released so the next reading retries
	eval, err := s.Evaluate(ctx, update.Location, 0)
	if err != nil {
		if latched {
			s.reopenSession(ctx, update.DeviceID)
		}
		return nil, err
	}

	ann, err := s.Announce(ctx, update.DeviceID, eval.Alerts)
	if err != nil {
		if latched {
			s.reopenSession(ctx, update.DeviceID)
		}
		return nil, err
	}
	if ann == nil {
		return nil, nil
	}

	s.RecordAlerts(ctx, update.DeviceID, update.Location, eval.Alerts)
	return ann, nil
}

// AcquireSession applies the once-per-session policy for deviceID. It
// always succeeds when no latch is configured.
func (s *ProximityService) AcquireSession(ctx context.Context, deviceID string) (bool, error) {
	if s.latch == nil {
		return true, nil
	}
	return s.latch.Acquire(ctx, deviceID)
}

// ReleaseSession reopens the session for deviceID.
func (s *ProximityService) ReleaseSession(ctx context.Context, deviceID string) error {
	if s.latch == nil {
		return nil
	}
	return s.latch.Release(ctx, deviceID)
}

func (s *ProximityService) reopenSession(ctx context.Context, deviceID string) {
	if err := s.ReleaseSession(ctx, deviceID); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "release session latch failed", "device", deviceID, "error", err)
	}
}

// Announce renders alerts and hands them to the announcer. Empty alert
// lists announce nothing and return nil.
func (s *ProximityService) Announce(ctx context.Context, deviceID string, alerts []domain.AlertRecord) (*domain.Announcement, error) {
	ann, ok := s.renderer.Render(deviceID, alerts)
	if !ok {
		return nil, nil
	}
	if s.announcer == nil {
		return &ann, nil
	}
	if err := s.announcer.Announce(ctx, &ann); err != nil {
		metrics.Announcements.WithLabelValues(s.sink, "error").Inc()
		return nil, fmt.Errorf("announce to %s: %w", deviceID, err)
	}
	metrics.Announcements.WithLabelValues(s.sink, "ok").Inc()
	return &ann, nil
}

// RecordAlerts persists alerts for history queries. Failures are logged.
func (s *ProximityService) RecordAlerts(ctx context.Context, deviceID string, at domain.GeoPoint, alerts []domain.AlertRecord) {
	if s.alerts == nil || len(alerts) == 0 {
		return
	}
	now := time.Now()
	events := make([]domain.AlertEvent, 0, len(alerts))
	for _, a := range alerts {
		events = append(events, domain.AlertEvent{
			ID:             uuid.NewString(),
			DeviceID:       deviceID,
			PointName:      a.Name,
			DistanceMeters: a.DistanceMeters,
			Direction:      a.Direction,
			Location:       at,
			CreatedAt:      now,
		})
	}
	if err := s.alerts.InsertBatch(ctx, events); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "record alerts failed", "device", deviceID, "count", len(events), "error", err)
	}
}

// Latest returns the last stored reading for deviceID.
func (s *ProximityService) Latest(ctx context.Context, deviceID string) (*domain.LocationUpdate, error) {
	if s.locations == nil {
		return nil, domain.ErrNoLocation
	}
	return s.locations.Latest(ctx, deviceID)
}

// EvaluateDevice evaluates the last stored reading for deviceID.
func (s *ProximityService) EvaluateDevice(ctx context.Context, deviceID string, threshold float64) (*domain.Evaluation, error) {
	update, err := s.Latest(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, update.Location, threshold)
}

// RecentAlerts returns recorded alerts, newest first.
func (s *ProximityService) RecentAlerts(ctx context.Context, deviceID string, limit int) ([]domain.AlertEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if s.alerts == nil {
		return []domain.AlertEvent{}, nil
	}
	return s.alerts.ListRecent(ctx, deviceID, limit)
}

func validateLocation(p domain.GeoPoint) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || !p.InRange() {
		return fmt.Errorf("%w: (%f, %f)", domain.ErrInvalidLocation, p.Lat, p.Lon)
	}
	return nil
}
