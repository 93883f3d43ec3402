package domain

import "time"

// DefaultAlertThreshold is the distance in meters under which a point alerts.
const DefaultAlertThreshold = 500.0

// AlertRecord is emitted for each point of interest closer than the threshold.
type AlertRecord struct {
	Name           string    `json:"name"`
	DistanceMeters float64   `json:"distance_meters"`
	Direction      Direction `json:"direction"`
}

// Evaluation is the result of analysing one position against the point set.
type Evaluation struct {
	Current     GeoPoint      `json:"current"`
	Threshold   float64       `json:"threshold_meters"`
	Alerts      []AlertRecord `json:"alerts"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// LocationUpdate is a single reading from a device's location provider.
type LocationUpdate struct {
	DeviceID   string    `json:"device_id"`
	Location   GeoPoint  `json:"location"`
	Accuracy   float64   `json:"accuracy,omitempty"` // meters
	RecordedAt time.Time `json:"recorded_at"`
}

// Announcement is the rendered sentence handed to a speech sink.
type Announcement struct {
	ID        string        `json:"id"`
	DeviceID  string        `json:"device_id"`
	Language  string        `json:"language"`
	Rate      float64       `json:"rate"`
	Text      string        `json:"text"`
	Alerts    []AlertRecord `json:"alerts"`
	CreatedAt time.Time     `json:"created_at"`
}

// AlertEvent is a persisted alert for history queries.
type AlertEvent struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id"`
	PointName      string    `json:"point_name"`
	DistanceMeters float64   `json:"distance_meters"`
	Direction      Direction `json:"direction"`
	Location       GeoPoint  `json:"location"`
	CreatedAt      time.Time `json:"created_at"`
}

// Marker is one annotation consumed by a map renderer.
type Marker struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Location GeoPoint `json:"location"`
}

// Marker name and caption used for the user's own position.
const (
	CurrentMarkerName  = "person"
	CurrentMarkerLabel = "所在位置"
)
