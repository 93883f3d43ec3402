package proximity_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
	"github.com/samirrijal/schoolmaps/internal/core/proximity"
	"github.com/samirrijal/schoolmaps/internal/pkg/geospatial"
)

var (
	police    = domain.PointOfInterest{Name: "警車", Label: "新和國小", Location: domain.GeoPoint{Lat: 24.9854889, Lon: 121.5176303}}
	ambulance = domain.PointOfInterest{Name: "救護車", Label: "興南夜市", Location: domain.GeoPoint{Lat: 24.9885223, Lon: 121.5119486}}
)

func mustSet(t *testing.T, points ...domain.PointOfInterest) domain.PointSet {
	t.Helper()
	set, err := domain.NewPointSet(points...)
	if err != nil {
		t.Fatalf("NewPointSet: %v", err)
	}
	return set
}

// northOf returns a point meters due north of p on the analysis sphere.
func northOf(p domain.GeoPoint, meters float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat + meters/(geospatial.EarthRadiusMeters*math.Pi/180), Lon: p.Lon}
}

func TestDistanceMeters_SymmetricAndZero(t *testing.T) {
	a := domain.GeoPoint{Lat: 24.9860, Lon: 121.5170}
	b := police.Location
	if proximity.DistanceMeters(a, b) != proximity.DistanceMeters(b, a) {
		t.Fatal("distance is not symmetric")
	}
	if d := proximity.DistanceMeters(a, a); d != 0 {
		t.Fatalf("expected 0 for equal points, got %f", d)
	}
	if d := proximity.DistanceMeters(a, b); d <= 0 {
		t.Fatalf("expected positive distance, got %f", d)
	}
}

func TestClassifyDirection_SignGrid(t *testing.T) {
	origin := domain.GeoPoint{Lat: 10, Lon: 20}
	cases := []struct {
		name   string
		dx, dy float64
		want   domain.Direction
	}{
		{"north", 0, 1, domain.DirectionNorth},
		{"north-east", 1, 1, domain.DirectionNorthEast},
		{"east", 1, 0, domain.DirectionEast},
		{"south-east", 1, -1, domain.DirectionSouthEast},
		{"south", 0, -1, domain.DirectionSouth},
		{"south-west", -1, -1, domain.DirectionSouthWest},
		{"west", -1, 0, domain.DirectionWest},
		{"north-west", -1, 1, domain.DirectionNorthWest},
		{"same point", 0, 0, domain.DirectionCurrent},
	}

	seen := make(map[domain.Direction]bool)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := domain.GeoPoint{Lat: origin.Lat + tc.dy, Lon: origin.Lon + tc.dx}
			if got := proximity.ClassifyDirection(origin, target); got != tc.want {
				t.Fatalf("ClassifyDirection(dx=%v, dy=%v) = %s; want %s", tc.dx, tc.dy, got, tc.want)
			}
		})
		seen[tc.want] = true
	}
	if len(seen) != len(domain.Directions()) {
		t.Fatalf("grid covers %d directions, want %d", len(seen), len(domain.Directions()))
	}
}

func TestClassifyDirection_IgnoresAngle(t *testing.T) {
	origin := domain.GeoPoint{Lat: 0, Lon: 0}
	// almost due north, still north-east by sign
	target := domain.GeoPoint{Lat: 1, Lon: 1e-9}
	if got := proximity.ClassifyDirection(origin, target); got != domain.DirectionNorthEast {
		t.Fatalf("expected NE, got %s", got)
	}
}

func TestClassifyDirection_NaN(t *testing.T) {
	origin := domain.GeoPoint{Lat: 0, Lon: 0}
	target := domain.GeoPoint{Lat: 1, Lon: math.NaN()}
	if got := proximity.ClassifyDirection(origin, target); got != domain.DirectionCurrent {
		t.Fatalf("expected sentinel for NaN delta, got %s", got)
	}
}

func TestClassifyDirection_PoliceIsSouthEast(t *testing.T) {
	current := domain.GeoPoint{Lat: 24.9860, Lon: 121.5170}
	if got := proximity.ClassifyDirection(current, police.Location); got != domain.DirectionSouthEast {
		t.Fatalf("expected SE, got %s", got)
	}
}

func TestBuildAlerts_AtAmbulance(t *testing.T) {
	set := mustSet(t, police, ambulance)
	alerts := proximity.BuildAlerts(ambulance.Location, set, domain.DefaultAlertThreshold)

	var found bool
	for _, a := range alerts {
		if a.Name != "救護車" {
			continue
		}
		found = true
		if a.DistanceMeters != 0 {
			t.Errorf("expected distance 0, got %f", a.DistanceMeters)
		}
		if a.Direction != domain.DirectionCurrent {
			t.Errorf("expected sentinel direction, got %s", a.Direction)
		}
	}
	if !found {
		t.Fatal("expected an alert for the point at the current location")
	}
}

func TestBuildAlerts_SourceScenario(t *testing.T) {
	current := domain.GeoPoint{Lat: 24.9860, Lon: 121.5170}
	alerts := proximity.BuildAlerts(current, mustSet(t, police, ambulance), domain.DefaultAlertThreshold)

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d: %+v", len(alerts), alerts)
	}
	if alerts[0].Name != "警車" || alerts[0].Direction != domain.DirectionSouthEast {
		t.Errorf("unexpected alert %+v", alerts[0])
	}
}

func TestBuildAlerts_Threshold(t *testing.T) {
	current := domain.GeoPoint{Lat: 24.9860, Lon: 121.5170}
	near := domain.PointOfInterest{Name: "near", Location: northOf(current, 480)}
	far := domain.PointOfInterest{Name: "far", Location: northOf(current, 520)}

	alerts := proximity.BuildAlerts(current, mustSet(t, far, near), 500)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Name != "near" {
		t.Errorf("expected near, got %s", alerts[0].Name)
	}
	if math.Abs(alerts[0].DistanceMeters-480) > 0.01 {
		t.Errorf("expected ~480m, got %f", alerts[0].DistanceMeters)
	}
	if alerts[0].Direction != domain.DirectionNorth {
		t.Errorf("expected N, got %s", alerts[0].Direction)
	}
}

func TestBuildAlerts_ExactThresholdExcluded(t *testing.T) {
	current := domain.GeoPoint{Lat: 24.9860, Lon: 121.5170}
	p := domain.PointOfInterest{Name: "edge", Location: northOf(current, 300)}
	threshold := proximity.DistanceMeters(p.Location, current)

	if alerts := proximity.BuildAlerts(current, mustSet(t, p), threshold); len(alerts) != 0 {
		t.Fatalf("point exactly at threshold must not alert, got %+v", alerts)
	}
}

func TestBuildAlerts_PreservesInsertionOrder(t *testing.T) {
	current := domain.GeoPoint{Lat: 24.9860, Lon: 121.5170}
	set := mustSet(t,
		domain.PointOfInterest{Name: "c", Location: northOf(current, 300)},
		domain.PointOfInterest{Name: "a", Location: northOf(current, 100)},
		domain.PointOfInterest{Name: "b", Location: northOf(current, 200)},
	)

	alerts := proximity.BuildAlerts(current, set, 1000)
	var names []string
	for _, a := range alerts {
		names = append(names, a.Name)
	}
	if want := []string{"c", "a", "b"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("expected order %v, got %v", want, names)
	}
}

func TestBuildAlerts_EmptySet(t *testing.T) {
	alerts := proximity.BuildAlerts(domain.GeoPoint{}, domain.PointSet{}, 500)
	if alerts == nil || len(alerts) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", alerts)
	}
}

func TestBuildAlerts_Idempotent(t *testing.T) {
	current := domain.GeoPoint{Lat: 24.9860, Lon: 121.5170}
	set := mustSet(t, police, ambulance)
	first := proximity.BuildAlerts(current, set, 1000)
	second := proximity.BuildAlerts(current, set, 1000)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
}
