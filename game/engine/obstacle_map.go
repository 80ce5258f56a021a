package engine

import (
	"cmp"
	"slices"
)

// ObstacleMap is a fixed size grid holding point obstacles.
// Width and height never change; the obstacle set only changes through
// AddObstacle and RemoveObstacle.
type ObstacleMap struct {
	width     int
	height    int
	obstacles map[Coordinate]struct{}
}

// NewObstacleMap creates an empty map of the given size
func NewObstacleMap(width, height int) *ObstacleMap {
	return &ObstacleMap{
		width:     width,
		height:    height,
		obstacles: make(map[Coordinate]struct{}),
	}
}

// Width returns the number of columns
func (m *ObstacleMap) Width() int {
	return m.width
}

// Height returns the number of rows
func (m *ObstacleMap) Height() int {
	return m.height
}

// InBounds reports whether c is a cell of the grid
func (m *ObstacleMap) InBounds(c Coordinate) bool {
	return c.InBounds(0, m.width, 0, m.height)
}

// IsObstacle reports whether c holds an obstacle. inBounds is false when c
// is off the grid, which is how callers detect the guard leaving.
func (m *ObstacleMap) IsObstacle(c Coordinate) (obstacle bool, inBounds bool) {
	if !m.InBounds(c) {
		return false, false
	}
	_, obstacle = m.obstacles[c]
	return obstacle, true
}

// AddObstacle places an obstacle at c. It returns false if c is off the grid
// or already obstructed.
func (m *ObstacleMap) AddObstacle(c Coordinate) bool {
	if !m.InBounds(c) {
		return false
	}
	if _, exists := m.obstacles[c]; exists {
		return false
	}
	m.obstacles[c] = struct{}{}
	return true
}

// RemoveObstacle removes the obstacle at c and reports whether one was present
func (m *ObstacleMap) RemoveObstacle(c Coordinate) bool {
	if _, exists := m.obstacles[c]; !exists {
		return false
	}
	delete(m.obstacles, c)
	return true
}

// Len returns the number of obstacles
func (m *ObstacleMap) Len() int {
	return len(m.obstacles)
}

// Obstacles returns the obstacle coordinates in row-major order
func (m *ObstacleMap) Obstacles() []Coordinate {
	coords := make([]Coordinate, 0, len(m.obstacles))
	for c := range m.obstacles {
		coords = append(coords, c)
	}
	sortCoordinates(coords)
	return coords
}

// Clone returns an independent copy of the map
func (m *ObstacleMap) Clone() *ObstacleMap {
	clone := &ObstacleMap{
		width:     m.width,
		height:    m.height,
		obstacles: make(map[Coordinate]struct{}, len(m.obstacles)),
	}
	for c := range m.obstacles {
		clone.obstacles[c] = struct{}{}
	}
	return clone
}

// Equal reports whether both maps have the same size and obstacles
func (m *ObstacleMap) Equal(other *ObstacleMap) bool {
	if other == nil {
		return false
	}
	if m.width != other.width || m.height != other.height || len(m.obstacles) != len(other.obstacles) {
		return false
	}
	for c := range m.obstacles {
		if _, ok := other.obstacles[c]; !ok {
			return false
		}
	}
	return true
}

// sortCoordinates orders coordinates by row, then column
func sortCoordinates(coords []Coordinate) {
	slices.SortFunc(coords, func(a, b Coordinate) int {
		if a.Y != b.Y {
			return cmp.Compare(a.Y, b.Y)
		}
		return cmp.Compare(a.X, b.X)
	})
}
