package pager

import "fmt"

// Direction is a move in logical list order.
type Direction int

const (
	None Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "none"
	}
}

// ReadingDirection maps physical gestures onto logical order.
type ReadingDirection string

const (
	LeftToRight ReadingDirection = "ltr"
	RightToLeft ReadingDirection = "rtl"
	Vertical    ReadingDirection = "vertical"
)

// ParseReadingDirection accepts "ltr", "rtl" or "vertical".
func ParseReadingDirection(s string) (ReadingDirection, error) {
	switch ReadingDirection(s) {
	case LeftToRight, RightToLeft, Vertical:
		return ReadingDirection(s), nil
	case "":
		return LeftToRight, nil
	}
	return "", fmt.Errorf("unknown reading direction %q", s)
}

// Gesture is a physical navigation input: a swipe, tap zone or arrow key.
type Gesture int

const (
	GestureLeft Gesture = iota
	GestureRight
	GestureUp
	GestureDown
)

// Translate turns a gesture into a logical direction. Right-to-left reading
// inverts the horizontal axis; the vertical axis always reads top to bottom.
func (r ReadingDirection) Translate(g Gesture) Direction {
	switch g {
	case GestureDown:
		return Forward
	case GestureUp:
		return Backward
	case GestureRight:
		if r == RightToLeft {
			return Backward
		}
		return Forward
	case GestureLeft:
		if r == RightToLeft {
			return Forward
		}
		return Backward
	}
	return None
}
