package usecases_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/samirrijal/schoolmaps/internal/core/announce"
	"github.com/samirrijal/schoolmaps/internal/core/domain"
	"github.com/samirrijal/schoolmaps/internal/core/usecases"
	"github.com/samirrijal/schoolmaps/internal/pkg/logging"
)

var nearPolice = domain.GeoPoint{Lat: 24.9860, Lon: 121.5170}

func newRenderer(t *testing.T) *announce.Renderer {
	t.Helper()
	r, err := announce.NewRenderer(announce.LanguageZhTW, 0)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestProximityService_Evaluate(t *testing.T) {
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 0, usecases.ProximityDeps{})

	if svc.Threshold() != domain.DefaultAlertThreshold {
		t.Fatalf("expected default threshold, got %g", svc.Threshold())
	}

	eval, err := svc.Evaluate(context.Background(), nearPolice, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Threshold != 500 {
		t.Errorf("expected threshold 500, got %g", eval.Threshold)
	}
	if len(eval.Alerts) != 1 || eval.Alerts[0].Name != "警車" {
		t.Fatalf("expected one alert for 警車, got %+v", eval.Alerts)
	}
	if eval.Alerts[0].Direction != domain.DirectionSouthEast {
		t.Errorf("expected SE, got %s", eval.Alerts[0].Direction)
	}

	wide, err := svc.Evaluate(context.Background(), nearPolice, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(wide.Alerts) != 2 {
		t.Errorf("expected both points within 1000m, got %+v", wide.Alerts)
	}
}

func TestProximityService_EvaluateAcrossAntimeridian(t *testing.T) {
	buoy := domain.PointOfInterest{Name: "浮標", Location: domain.GeoPoint{Lat: 0, Lon: 179.999}}
	points := usecases.NewPointService(withinRepo(buoy), nil)
	svc := usecases.NewProximityService(points, newRenderer(t), 500, usecases.ProximityDeps{})

	eval, err := svc.Evaluate(context.Background(), domain.GeoPoint{Lat: 0, Lon: -179.999}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(eval.Alerts) != 1 || eval.Alerts[0].Name != "浮標" {
		t.Fatalf("expected one alert across the antimeridian, got %+v", eval.Alerts)
	}
	if d := eval.Alerts[0].DistanceMeters; d < 222 || d > 223 {
		t.Errorf("expected about 222.6m, got %g", d)
	}
}

func TestProximityService_Markers(t *testing.T) {
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{})
	markers, err := svc.Markers(context.Background(), nearPolice)
	if err != nil {
		t.Fatal(err)
	}
	if len(markers) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(markers))
	}
	if markers[0].Name != "person" || markers[0].Label != "所在位置" || markers[0].Location != nearPolice {
		t.Errorf("unexpected current marker %+v", markers[0])
	}
	if markers[1].Name != "警車" || markers[2].Name != "救護車" {
		t.Errorf("unexpected marker order %+v", markers)
	}
}

func TestProximityService_HandleLocation(t *testing.T) {
	alerts := &mockAlertRepo{}
	locs := &mockLocationStore{}
	ann := &mockAnnouncer{}
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{
		Alerts:    alerts,
		Locations: locs,
		Announcer: ann,
		Sink:      "test",
	})

	got, err := svc.HandleLocation(context.Background(), &domain.LocationUpdate{DeviceID: "dev-1", Location: nearPolice})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected an announcement")
	}
	if len(ann.announced) != 1 {
		t.Fatalf("expected 1 announcement, got %d", len(ann.announced))
	}
	if text := ann.announced[0].Text; !strings.HasPrefix(text, "警車位於您的東南方約") {
		t.Errorf("unexpected text %q", text)
	}
	if len(alerts.inserted) != 1 || alerts.inserted[0].PointName != "警車" || alerts.inserted[0].DeviceID != "dev-1" {
		t.Errorf("unexpected recorded alerts %+v", alerts.inserted)
	}
	if latest, err := svc.Latest(context.Background(), "dev-1"); err != nil || latest.Location != nearPolice {
		t.Errorf("latest = %+v, %v", latest, err)
	}
}

func TestProximityService_HandleLocation_NothingNearby(t *testing.T) {
	ann := &mockAnnouncer{}
	alerts := &mockAlertRepo{}
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{Announcer: ann, Alerts: alerts})

	got, err := svc.HandleLocation(context.Background(), &domain.LocationUpdate{DeviceID: "dev-1", Location: domain.GeoPoint{Lat: 25.1, Lon: 121.6}})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil || len(ann.announced) != 0 || len(alerts.inserted) != 0 {
		t.Errorf("expected no announcement, got %+v", got)
	}
}

func TestProximityService_HandleLocation_OncePerSession(t *testing.T) {
	latch := &mockLatch{}
	ann := &mockAnnouncer{}
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{Latch: latch, Announcer: ann})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.HandleLocation(ctx, &domain.LocationUpdate{DeviceID: "dev-1", Location: nearPolice}); err != nil {
			t.Fatal(err)
		}
	}
	if len(ann.announced) != 1 {
		t.Fatalf("expected a single announcement per session, got %d", len(ann.announced))
	}

	// other devices have their own session
	if _, err := svc.HandleLocation(ctx, &domain.LocationUpdate{DeviceID: "dev-2", Location: nearPolice}); err != nil {
		t.Fatal(err)
	}
	if len(ann.announced) != 2 {
		t.Fatalf("expected second device to be announced, got %d", len(ann.announced))
	}
}

func TestProximityService_HandleLocation_AnnounceFailureReleasesLatch(t *testing.T) {
	latch := &mockLatch{}
	alerts := &mockAlertRepo{}
	ann := &mockAnnouncer{err: errors.New("broker down")}
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{Latch: latch, Announcer: ann, Alerts: alerts})

	_, err := svc.HandleLocation(context.Background(), &domain.LocationUpdate{DeviceID: "dev-1", Location: nearPolice})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(latch.released) != 1 {
		t.Errorf("expected latch released, got %v", latch.released)
	}
	if len(alerts.inserted) != 0 {
		t.Error("alerts must not be recorded when the announcement fails")
	}
}

func TestProximityService_HandleLocation_EvaluateFailureReleasesLatch(t *testing.T) {
	latch := &mockLatch{}
	ann := &mockAnnouncer{}
	repo := &mockPointRepo{
		listWithinFn: func(ctx context.Context, b []domain.Bounds) ([]domain.PointOfInterest, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := usecases.NewProximityService(usecases.NewPointService(repo, nil), newRenderer(t), 500, usecases.ProximityDeps{Latch: latch, Announcer: ann})
	ctx := context.Background()

	if _, err := svc.HandleLocation(ctx, &domain.LocationUpdate{DeviceID: "dev-1", Location: nearPolice}); err == nil {
		t.Fatal("expected error")
	}
	if len(latch.released) != 1 || latch.held["dev-1"] {
		t.Fatalf("expected latch released after evaluation failure, got released=%v held=%v", latch.released, latch.held)
	}

	// the next reading gets a fresh session once points load again
	repo.listWithinFn = func(ctx context.Context, b []domain.Bounds) ([]domain.PointOfInterest, error) {
		return []domain.PointOfInterest{police}, nil
	}
	got, err := svc.HandleLocation(ctx, &domain.LocationUpdate{DeviceID: "dev-1", Location: nearPolice})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(ann.announced) != 1 {
		t.Errorf("expected the retry to announce, got %+v", got)
	}
}

func TestProximityService_HandleLocation_ReleaseErrorLogged(t *testing.T) {
	latch := &mockLatch{releaseErr: errors.New("valkey timeout")}
	ann := &mockAnnouncer{err: errors.New("broker down")}
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{Latch: latch, Announcer: ann})

	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), logging.New(&buf, "info", "text"))

	_, err := svc.HandleLocation(ctx, &domain.LocationUpdate{DeviceID: "dev-1", Location: nearPolice})
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected the announce error, got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "release session latch failed") || !strings.Contains(out, "valkey timeout") {
		t.Errorf("expected release failure to be logged, got %q", out)
	}
}

func TestProximityService_HandleLocation_LatchErrorStillAnnounces(t *testing.T) {
	ann := &mockAnnouncer{}
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{
		Latch:     &mockLatch{err: errors.New("valkey down")},
		Announcer: ann,
	})
	if _, err := svc.HandleLocation(context.Background(), &domain.LocationUpdate{DeviceID: "d", Location: nearPolice}); err != nil {
		t.Fatal(err)
	}
	if len(ann.announced) != 1 {
		t.Fatalf("expected announcement despite latch error, got %d", len(ann.announced))
	}
}

func TestProximityService_HandleLocation_InvalidLocation(t *testing.T) {
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{})
	cases := []domain.GeoPoint{
		{Lat: math.NaN(), Lon: 121},
		{Lat: 95, Lon: 121},
		{Lat: 24, Lon: math.Inf(1)},
	}
	for _, p := range cases {
		_, err := svc.HandleLocation(context.Background(), &domain.LocationUpdate{DeviceID: "d", Location: p})
		if !errors.Is(err, domain.ErrInvalidLocation) {
			t.Errorf("location %+v: expected ErrInvalidLocation, got %v", p, err)
		}
	}
}

func TestProximityService_EvaluateDevice(t *testing.T) {
	locs := &mockLocationStore{}
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{Locations: locs})
	ctx := context.Background()

	if _, err := svc.EvaluateDevice(ctx, "ghost", 0); !errors.Is(err, domain.ErrNoLocation) {
		t.Fatalf("expected ErrNoLocation, got %v", err)
	}

	_ = locs.SaveLatest(ctx, &domain.LocationUpdate{DeviceID: "dev-1", Location: ambulance.Location})
	eval, err := svc.EvaluateDevice(ctx, "dev-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, a := range eval.Alerts {
		if a.Name == "救護車" {
			found = true
			if a.DistanceMeters != 0 || a.Direction != domain.DirectionCurrent {
				t.Errorf("unexpected alert at the point itself %+v", a)
			}
		}
	}
	if !found {
		t.Error("expected alert for 救護車")
	}
}

func TestProximityService_RecentAlerts(t *testing.T) {
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{})
	events, err := svc.RecentAlerts(context.Background(), "dev-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("expected empty history without a repository, got %#v", events)
	}
}

func TestProximityService_HandleLocation_FirstReadingOpensSession(t *testing.T) {
	latch := &mockLatch{}
	ann := &mockAnnouncer{}
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{Latch: latch, Announcer: ann})
	ctx := context.Background()

	// nothing nearby on the first reading; the session is still consumed
	if _, err := svc.HandleLocation(ctx, &domain.LocationUpdate{DeviceID: "dev-1", Location: domain.GeoPoint{Lat: 25.1, Lon: 121.6}}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.HandleLocation(ctx, &domain.LocationUpdate{DeviceID: "dev-1", Location: nearPolice})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil || len(ann.announced) != 0 {
		t.Errorf("expected later readings to stay silent, got %+v", got)
	}
	if len(latch.released) != 0 {
		t.Errorf("latch must not be released, got %v", latch.released)
	}
}

func TestProximityService_SessionWithoutLatch(t *testing.T) {
	svc := usecases.NewProximityService(staticPoints(t), newRenderer(t), 500, usecases.ProximityDeps{})

	ok, err := svc.AcquireSession(context.Background(), "dev-1")
	if err != nil || !ok {
		t.Errorf("AcquireSession = %v, %v; want true, nil", ok, err)
	}
	if err := svc.ReleaseSession(context.Background(), "dev-1"); err != nil {
		t.Errorf("ReleaseSession: %v", err)
	}
}
