package engine

import (
	"fmt"
	"strings"
)

var directionNames = [directionCount]string{"up", "right", "down", "left"}

var directionGlyphs = [directionCount]rune{GuardUpGlyph, GuardRightGlyph, GuardDownGlyph, GuardLeftGlyph}

// unit vectors indexed by Direction, Y grows downward
var directionDeltas = [directionCount]Coordinate{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// Valid reports whether d is one of the four cardinal directions
func (d Direction) Valid() bool {
	return d >= Up && d <= Left
}

// RotateRight returns the heading after a 90 degree clockwise turn
func (d Direction) RotateRight() Direction {
	return (d + 1) % directionCount
}

// RotateLeft returns the heading after a 90 degree counter-clockwise turn
func (d Direction) RotateLeft() Direction {
	return (d + directionCount - 1) % directionCount
}

// Opposite returns the reverse heading
func (d Direction) Opposite() Direction {
	return (d + 2) % directionCount
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Glyph returns the layout character for a guard facing d
func (d Direction) Glyph() rune {
	if !d.Valid() {
		return '?'
	}
	return directionGlyphs[d]
}

// MarshalText encodes the direction by name so JSON and YAML stay readable
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(directionNames[d]), nil
}

// UnmarshalText decodes a direction name
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection accepts a direction name ("up", "right", "down", "left")
// or a guard glyph
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range directionNames {
		if s == name {
			return Direction(i), nil
		}
	}
	if len(s) == 1 {
		if d, ok := DirectionFromGlyph(rune(s[0])); ok {
			return d, nil
		}
	}
	return Up, fmt.Errorf("unknown direction %q", s)
}

// DirectionFromGlyph maps ^ > v < to a heading
func DirectionFromGlyph(r rune) (Direction, bool) {
	switch r {
	case GuardUpGlyph:
		return Up, true
	case GuardRightGlyph:
		return Right, true
	case GuardDownGlyph:
		return Down, true
	case GuardLeftGlyph:
		return Left, true
	default:
		return Up, false
	}
}

// Step returns the neighbouring coordinate in direction d. No bounds check is done.
func (c Coordinate) Step(d Direction) Coordinate {
	delta := directionDeltas[d%directionCount]
	return Coordinate{X: c.X + delta.X, Y: c.Y + delta.Y}
}

// InBounds reports whether c lies in [minX, maxX) x [minY, maxY)
func (c Coordinate) InBounds(minX, maxX, minY, maxY int) bool {
	return minX <= c.X && c.X < maxX && minY <= c.Y && c.Y < maxY
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// NewAgentState creates a guard state
func NewAgentState(c Coordinate, d Direction) AgentState {
	return AgentState{Coordinate: c, Direction: d}
}

// Step moves the guard one cell ahead keeping its heading.
// Only valid when the cell ahead is on the grid and free.
func (s AgentState) Step() AgentState {
	return AgentState{
		Coordinate: s.Coordinate.Step(s.Direction),
		Direction:  s.Direction,
	}
}

// EncounterObstacle turns the guard right in place
func (s AgentState) EncounterObstacle() AgentState {
	return AgentState{
		Coordinate: s.Coordinate,
		Direction:  s.Direction.RotateRight(),
	}
}

// Ahead returns the coordinate the guard is facing
func (s AgentState) Ahead() Coordinate {
	return s.Coordinate.Step(s.Direction)
}

func (s AgentState) String() string {
	return fmt.Sprintf("%s facing %s", s.Coordinate, s.Direction)
}
