package domain

import "errors"

var (
	// ErrDuplicatePoint is returned when two points of interest share a name.
	ErrDuplicatePoint = errors.New("duplicate point of interest")
	// ErrPointNotFound is returned when a named point of interest does not exist.
	ErrPointNotFound = errors.New("point of interest not found")
	// ErrInvalidPoint is returned for a point with an empty name or out-of-range coordinates.
	ErrInvalidPoint = errors.New("invalid point of interest")
	// ErrNoLocation is returned when no reading has been stored for a device.
	ErrNoLocation = errors.New("no location reported")
)

// ErrInvalidLocation is returned for a reading with out-of-range or non-finite coordinates.
var ErrInvalidLocation = errors.New("invalid location")

// ErrReadOnlyPoints is returned when modifying points loaded from static configuration.
var ErrReadOnlyPoints = errors.New("points of interest are read-only")
