package domain

import "fmt"

// Direction is a coarse compass bucket of one point relative to another.
// The zero value is DirectionCurrent, used when both points coincide.
type Direction int

const (
	DirectionCurrent Direction = iota
	DirectionNorth
	DirectionNorthEast
	DirectionEast
	DirectionSouthEast
	DirectionSouth
	DirectionSouthWest
	DirectionWest
	DirectionNorthWest
)

var directionCodes = [...]string{
	DirectionCurrent:   "CURRENT",
	DirectionNorth:     "N",
	DirectionNorthEast: "NE",
	DirectionEast:      "E",
	DirectionSouthEast: "SE",
	DirectionSouth:     "S",
	DirectionSouthWest: "SW",
	DirectionWest:      "W",
	DirectionNorthWest: "NW",
}

// zh-TW captions spoken in announcements.
var directionLabels = [...]string{
	DirectionCurrent:   "當前",
	DirectionNorth:     "北",
	DirectionNorthEast: "東北",
	DirectionEast:      "東",
	DirectionSouthEast: "東南",
	DirectionSouth:     "南",
	DirectionSouthWest: "西南",
	DirectionWest:      "西",
	DirectionNorthWest: "西北",
}

// Directions lists every direction value, sentinel first.
func Directions() []Direction {
	return []Direction{
		DirectionCurrent, DirectionNorth, DirectionNorthEast, DirectionEast, DirectionSouthEast,
		DirectionSouth, DirectionSouthWest, DirectionWest, DirectionNorthWest,
	}
}

func (d Direction) valid() bool {
	return d >= DirectionCurrent && d <= DirectionNorthWest
}

// String returns the short code, e.g. "NE".
func (d Direction) String() string {
	if !d.valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionCodes[d]
}

// Label returns the fixed zh-TW caption.
func (d Direction) Label() string {
	if !d.valid() {
		return ""
	}
	return directionLabels[d]
}

// ParseDirection accepts either a short code or a zh-TW label.
func ParseDirection(s string) (Direction, error) {
	for _, d := range Directions() {
		if s == directionCodes[d] || s == directionLabels[d] {
			return d, nil
		}
	}
	return DirectionCurrent, fmt.Errorf("unknown direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(directionCodes[d]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
