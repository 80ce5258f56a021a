package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptyLayout         = errors.New("layout is empty")
	ErrRaggedLayout        = errors.New("layout rows differ in length")
	ErrUnexpectedGlyph     = errors.New("unexpected glyph in layout")
	ErrMultipleStarts      = errors.New("layout has more than one guard")
	ErrMissingInitialState = errors.New("layout has no guard")
	ErrGridSize            = errors.New("layout size out of range")
	ErrStartOffGrid        = errors.New("guard is not on the grid")
)

// CheckGridSize reports ErrGridSize unless both dimensions are within
// [MinGridSize, MaxGridSize]
func CheckGridSize(width, height int) error {
	if height < MinGridSize || height > MaxGridSize {
		return fmt.Errorf("%w: layout must have between %d and %d rows, got %d", ErrGridSize, MinGridSize, MaxGridSize, height)
	}
	if width < MinGridSize || width > MaxGridSize {
		return fmt.Errorf("%w: layout rows must have between %d and %d cells, got %d", ErrGridSize, MinGridSize, MaxGridSize, width)
	}
	return nil
}

// CheckLayoutSize applies CheckGridSize to raw rows before they are parsed.
// The first row stands for the width; ParseLayout rejects ragged rows.
func CheckLayoutSize(rows []string) error {
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	return CheckGridSize(width, len(rows))
}

// ParseLayout turns rows of glyphs into an obstacle map and the guard's
// starting state. '#' marks an obstacle, '.' open floor, and one of ^ > v <
// the guard and its heading.
func ParseLayout(rows []string) (*ObstacleMap, AgentState, error) {
	var start AgentState

	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, start, ErrEmptyLayout
	}

	width := len(rows[0])
	obstacles := NewObstacleMap(width, len(rows))
	foundGuard := false

	for y, row := range rows {
		if len(row) != width {
			return nil, start, fmt.Errorf("%w: row %d has %d cells, expected %d", ErrRaggedLayout, y+1, len(row), width)
		}

		for x := 0; x < len(row); x++ {
			glyph := rune(row[x])
			c := Coordinate{X: x, Y: y}

			switch glyph {
			case FloorGlyph:
			case ObstacleGlyph:
				obstacles.AddObstacle(c)
			default:
				d, ok := DirectionFromGlyph(glyph)
				if !ok {
					return nil, start, fmt.Errorf("%w: '%c' at row %d, col %d", ErrUnexpectedGlyph, glyph, y+1, x+1)
				}
				if foundGuard {
					return nil, start, fmt.Errorf("%w: second guard at row %d, col %d", ErrMultipleStarts, y+1, x+1)
				}
				start = NewAgentState(c, d)
				foundGuard = true
			}
		}
	}

	if !foundGuard {
		return nil, start, ErrMissingInitialState
	}

	return obstacles, start, nil
}

// ReadLayout reads layout rows from r, skipping blank lines and surrounding
// whitespace
func ReadLayout(r io.Reader) ([]string, error) {
	var rows []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rows = append(rows, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	return rows, nil
}

// RenderLayout draws the grid back into rows. Cells in marked are drawn with
// VisitedGlyph, trial obstacles in trials with TrialGlyph, and the guard with
// its heading glyph. guard may be nil.
func RenderLayout(m *ObstacleMap, guard *AgentState, marked []AgentState, trials []Coordinate) []string {
	visited := make(map[Coordinate]struct{}, len(marked))
	for _, state := range marked {
		visited[state.Coordinate] = struct{}{}
	}
	trialSet := make(map[Coordinate]struct{}, len(trials))
	for _, c := range trials {
		trialSet[c] = struct{}{}
	}

	rows := make([]string, m.Height())
	var b strings.Builder
	for y := 0; y < m.Height(); y++ {
		b.Reset()
		for x := 0; x < m.Width(); x++ {
			c := Coordinate{X: x, Y: y}
			obstacle, _ := m.IsObstacle(c)
			_, isTrial := trialSet[c]
			_, wasVisited := visited[c]

			switch {
			case guard != nil && guard.Coordinate == c:
				b.WriteRune(guard.Direction.Glyph())
			case obstacle:
				b.WriteRune(ObstacleGlyph)
			case isTrial:
				b.WriteRune(TrialGlyph)
			case wasVisited:
				b.WriteRune(VisitedGlyph)
			default:
				b.WriteRune(FloorGlyph)
			}
		}
		rows[y] = b.String()
	}
	return rows
}

// CellGlyph returns the layout character at c and whether c is on the grid
func CellGlyph(m *ObstacleMap, guard AgentState, c Coordinate) (rune, bool) {
	obstacle, inBounds := m.IsObstacle(c)
	switch {
	case !inBounds:
		return ' ', false
	case guard.Coordinate == c:
		return guard.Direction.Glyph(), true
	case obstacle:
		return ObstacleGlyph, true
	default:
		return FloorGlyph, true
	}
}
