//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/schoolmaps/internal/adapters/http"
	"github.com/samirrijal/schoolmaps/internal/adapters/postgres"
	"github.com/samirrijal/schoolmaps/internal/core/announce"
	"github.com/samirrijal/schoolmaps/internal/core/domain"
	"github.com/samirrijal/schoolmaps/internal/core/usecases"
	"github.com/samirrijal/schoolmaps/internal/pkg/config"
)

// setupTestDB connects to the test database and applies migrations.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("schoolmaps-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// setupTestDeps creates dependencies with real repos, no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *http.Dependencies {
	points := usecases.NewPointService(postgres.NewPointRepo(db), nil)
	renderer, err := announce.NewRenderer(announce.LanguageZhTW, 0)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Dependencies{
		Points: points,
		Proximity: usecases.NewProximityService(points, renderer, domain.DefaultAlertThreshold, usecases.ProximityDeps{
			Alerts: postgres.NewAlertRepo(db),
		}),
		DB: db,
	}
}

func seedPoint(t *testing.T, db *postgres.DB, p domain.PointOfInterest) {
	t.Helper()
	if err := postgres.NewPointRepo(db).Upsert(context.Background(), &p); err != nil {
		t.Fatalf("seed point: %v", err)
	}
	t.Cleanup(func() {
		_ = postgres.NewPointRepo(db).Delete(context.Background(), p.Name)
	})
}

func TestPoints_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	name := "test_point_" + time.Now().Format("20060102150405")
	seedPoint(t, db, domain.PointOfInterest{Name: name, Label: "integration", Location: domain.GeoPoint{Lat: 24.9854889, Lon: 121.5176303}})

	app := setupApp(setupTestDeps(t, db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/points/"+url.PathEscape(name), nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var p domain.PointOfInterest
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.Location.Lat < 24.985 || p.Location.Lat > 24.986 {
		t.Errorf("unexpected location %+v", p.Location)
	}
}

func TestProximity_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	name := "test_near_" + time.Now().Format("20060102150405")
	seedPoint(t, db, domain.PointOfInterest{Name: name, Location: domain.GeoPoint{Lat: 24.9854889, Lon: 121.5176303}})

	app := setupApp(setupTestDeps(t, db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/proximity?lat=24.9860&lon=121.5170", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	var eval domain.Evaluation
	if err := json.NewDecoder(resp.Body).Decode(&eval); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, a := range eval.Alerts {
		if a.Name == name && a.Direction == domain.DirectionSouthEast {
			found = true
		}
	}
	if !found {
		t.Errorf("expected alert for %s, got %+v", name, eval.Alerts)
	}
}

func TestLocations_Integration_RecordsAlerts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()

	name := "test_alert_" + time.Now().Format("20060102150405")
	seedPoint(t, db, domain.PointOfInterest{Name: name, Location: domain.GeoPoint{Lat: 24.9854889, Lon: 121.5176303}})

	app := setupApp(setupTestDeps(t, db))
	device := "device-" + name

	req := httptest.NewRequest("POST", "/v1/locations",
		strings.NewReader(`{"device_id":"`+device+`","location":{"lat":24.9860,"lon":121.5170}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/alerts/recent?device="+device, nil), -1)
	var events []domain.AlertEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(events) == 0 || events[0].DeviceID != device {
		t.Errorf("expected recorded alerts for %s, got %+v", device, events)
	}
}
