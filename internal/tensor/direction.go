package tensor

import "fmt"

// Direction selects the axis and orientation of a corner pooling scan.
type Direction int

// Corner pooling directions. Each output position takes the maximum of
// every input position on its side of the named edge, itself included.
const (
	// Top: output[h] = max(input[h..H-1]).
	Top Direction = iota
	// Bottom: output[h] = max(input[0..h]).
	Bottom
	// Left: output[w] = max(input[w..W-1]).
	Left
	// Right: output[w] = max(input[0..w]).
	Right
)

// String returns the lowercase direction name.
func (d Direction) String() string {
	switch d {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Vertical reports whether the scan runs along the height axis.
func (d Direction) Vertical() bool {
	return d == Top || d == Bottom
}

// Reversed reports whether each output absorbs positions with larger
// indices (the scan runs from the far end of the axis toward index 0).
func (d Direction) Reversed() bool {
	return d == Top || d == Left
}

// ParseDirection converts a direction name into a Direction.
func ParseDirection(s string) (Direction, error) {
	for _, d := range []Direction{Top, Bottom, Left, Right} {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown corner pooling direction %q", s)
}
