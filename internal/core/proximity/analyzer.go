// Package proximity computes distance, coarse direction and threshold alerts
// between a current position and a set of points of interest. Every function
// is pure and safe for concurrent use.
package proximity

import (
	"github.com/samirrijal/schoolmaps/internal/core/domain"
	"github.com/samirrijal/schoolmaps/internal/pkg/geospatial"
)

// DistanceMeters returns the haversine distance between a and b.
func DistanceMeters(a, b domain.GeoPoint) float64 {
	return geospatial.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// ClassifyDirection buckets target relative to current using only the signs
// of the longitude and latitude deltas. It is not a true bearing: any point
// with both deltas positive is north-east regardless of the angle.
// Equal points, and NaN deltas, yield DirectionCurrent.
func ClassifyDirection(current, target domain.GeoPoint) domain.Direction {
	dx := target.Lon - current.Lon
	dy := target.Lat - current.Lat

	switch {
	case dx == 0 && dy > 0:
		return domain.DirectionNorth
	case dx > 0 && dy > 0:
		return domain.DirectionNorthEast
	case dx > 0 && dy == 0:
		return domain.DirectionEast
	case dx > 0 && dy < 0:
		return domain.DirectionSouthEast
	case dx == 0 && dy < 0:
		return domain.DirectionSouth
	case dx < 0 && dy < 0:
		return domain.DirectionSouthWest
	case dx < 0 && dy == 0:
		return domain.DirectionWest
	case dx < 0 && dy > 0:
		return domain.DirectionNorthWest
	default:
		return domain.DirectionCurrent
	}
}

// BuildAlerts returns one record per point strictly closer than threshold,
// in the set's insertion order. The result is never nil.
func BuildAlerts(current domain.GeoPoint, points domain.PointSet, threshold float64) []domain.AlertRecord {
	alerts := make([]domain.AlertRecord, 0)
	for p := range points.All() {
		distance := DistanceMeters(p.Location, current)
		if distance < threshold {
			alerts = append(alerts, domain.AlertRecord{
				Name:           p.Name,
				DistanceMeters: distance,
				Direction:      ClassifyDirection(current, p.Location),
			})
		}
	}
	return alerts
}
