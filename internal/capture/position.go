package capture

import (
	"fmt"
	"strings"
)

// Position identifies which physical camera feeds the graph.
type Position int

const (
	// Front is the user-facing camera.
	Front Position = iota
	// Back is the world-facing camera.
	Back
)

// String returns the lowercase name of the position.
func (p Position) String() string {
	switch p {
	case Front:
		return "front"
	case Back:
		return "back"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// Other returns the opposite position.
func (p Position) Other() Position {
	if p == Front {
		return Back
	}
	return Front
}

// Orientation returns the default orientation of a webcam at this
// position. Webcams deliver upright frames; the front one is shown
// mirrored.
func (p Position) Orientation() Orientation {
	if p == Front {
		return OrientationMirrored
	}
	return OrientationUp
}

// MarshalText implements encoding.TextMarshaler.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Position) UnmarshalText(text []byte) error {
	pos, err := ParsePosition(string(text))
	if err != nil {
		return err
	}
	*p = pos
	return nil
}

// ParsePosition parses "front" or "back" (case-insensitive).
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front":
		return Front, nil
	case "back":
		return Back, nil
	default:
		return Front, fmt.Errorf("unknown camera position %q", s)
	}
}

// Orientation describes how raw sensor pixels map onto the upright display.
type Orientation int

const (
	// OrientationUp means the raw frame is already upright.
	OrientationUp Orientation = iota
	// OrientationMirrored means the frame is upright but shown mirrored.
	OrientationMirrored
	// OrientationRight means the frame must be rotated 90° clockwise.
	OrientationRight
	// OrientationLeftMirrored means the frame must be rotated 90°
	// counter-clockwise and mirrored horizontally.
	OrientationLeftMirrored
)

var orientationNames = map[Orientation]string{
	OrientationUp:           "up",
	OrientationMirrored:     "mirrored",
	OrientationRight:        "right",
	OrientationLeftMirrored: "left-mirrored",
}

// String returns the name of the orientation.
func (o Orientation) String() string {
	if name, ok := orientationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("orientation(%d)", int(o))
}

// ParseOrientation parses an orientation name as returned by String.
func ParseOrientation(s string) (Orientation, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for o, n := range orientationNames {
		if n == name {
			return o, nil
		}
	}
	return OrientationUp, fmt.Errorf("unknown orientation %q", s)
}
