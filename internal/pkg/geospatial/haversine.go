package geospatial

import "math"

// EarthRadiusMeters is the WGS-84 equatorial radius, used as a sphere.
const EarthRadiusMeters = 6378137.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	radLat1 := toRad(lat1)
	radLat2 := toRad(lat2)
	dLat := radLat1 - radLat2
	dLon := toRad(lon1) - toRad(lon2)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radLat1)*math.Cos(radLat2)*math.Pow(math.Sin(dLon/2), 2)

	// rounding can push h past 1 for antipodal points
	if h > 1 {
		h = 1
	}
	return 2 * math.Asin(math.Sqrt(h)) * EarthRadiusMeters
}

// Box is a latitude/longitude rectangle with MinLon <= MaxLon.
type Box struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// BoundingBoxes returns rectangles that together cover every point within
// radiusMeters of (lat, lon). A box crossing the antimeridian is split in
// two; a circle reaching a pole spans every longitude. The boxes are a
// superset of the haversine disc; callers filter exact distances.
func BoundingBoxes(lat, lon, radiusMeters float64) []Box {
	// 1% slack covers rounding near the edge
	angular := radiusMeters * 1.01 / EarthRadiusMeters
	latDelta := angular * 180 / math.Pi

	minLat, maxLat := lat-latDelta, lat+latDelta
	if minLat <= -90 || maxLat >= 90 {
		return []Box{{MinLat: max(minLat, -90), MinLon: -180, MaxLat: min(maxLat, 90), MaxLon: 180}}
	}

	// widest longitude extent of a spherical cap
	ratio := math.Sin(angular) / math.Cos(toRad(lat))
	if angular >= math.Pi/2 || ratio >= 1 {
		return []Box{{MinLat: minLat, MinLon: -180, MaxLat: maxLat, MaxLon: 180}}
	}
	lonDelta := math.Asin(ratio) * 180 / math.Pi
	minLon, maxLon := lon-lonDelta, lon+lonDelta

	switch {
	case maxLon-minLon >= 360:
		return []Box{{MinLat: minLat, MinLon: -180, MaxLat: maxLat, MaxLon: 180}}
	case minLon < -180:
		return []Box{
			{MinLat: minLat, MinLon: minLon + 360, MaxLat: maxLat, MaxLon: 180},
			{MinLat: minLat, MinLon: -180, MaxLat: maxLat, MaxLon: maxLon},
		}
	case maxLon > 180:
		return []Box{
			{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: 180},
			{MinLat: minLat, MinLon: -180, MaxLat: maxLat, MaxLon: maxLon - 360},
		}
	}
	return []Box{{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}}
}

// Contains reports whether (lat, lon) lies inside b, edges included.
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
