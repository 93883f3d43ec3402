package domain

import (
	"encoding/json"
	"fmt"
	"iter"
)

// PointOfInterest is a named, fixed location tracked alongside the user.
type PointOfInterest struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Location GeoPoint `json:"location"`
}

// Validate checks the name and coordinate ranges.
func (p PointOfInterest) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPoint)
	}
	if !p.Location.InRange() {
		return fmt.Errorf("%w: %s has coordinates out of range (%f, %f)",
			ErrInvalidPoint, p.Name, p.Location.Lat, p.Location.Lon)
	}
	return nil
}

// PointSet is an immutable name -> PointOfInterest mapping that remembers
// insertion order. The zero value is an empty set.
type PointSet struct {
	points []PointOfInterest
	index  map[string]int
}

// NewPointSet builds a set from points in the given order. Names must be unique.
func NewPointSet(points ...PointOfInterest) (PointSet, error) {
	s := PointSet{
		points: make([]PointOfInterest, 0, len(points)),
		index:  make(map[string]int, len(points)),
	}
	for _, p := range points {
		if _, exists := s.index[p.Name]; exists {
			return PointSet{}, fmt.Errorf("%w: %s", ErrDuplicatePoint, p.Name)
		}
		s.index[p.Name] = len(s.points)
		s.points = append(s.points, p)
	}
	return s, nil
}

// Len returns the number of points.
func (s PointSet) Len() int { return len(s.points) }

// Get looks up a point by name.
func (s PointSet) Get(name string) (PointOfInterest, bool) {
	i, ok := s.index[name]
	if !ok {
		return PointOfInterest{}, false
	}
	return s.points[i], true
}

// All iterates the points in insertion order.
func (s PointSet) All() iter.Seq[PointOfInterest] {
	return func(yield func(PointOfInterest) bool) {
		for _, p := range s.points {
			if !yield(p) {
				return
			}
		}
	}
}

// Points returns a copy of the points in insertion order.
func (s PointSet) Points() []PointOfInterest {
	out := make([]PointOfInterest, len(s.points))
	copy(out, s.points)
	return out
}

// MarshalJSON encodes the set as an ordered array.
func (s PointSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Points())
}

// UnmarshalJSON decodes an array, rejecting duplicate names.
func (s *PointSet) UnmarshalJSON(data []byte) error {
	var points []PointOfInterest
	if err := json.Unmarshal(data, &points); err != nil {
		return err
	}
	set, err := NewPointSet(points...)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
