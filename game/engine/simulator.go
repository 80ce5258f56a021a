package engine

// stateSet records visited guard states for one grid. Every recorded state is
// on the grid, so states map to a dense index instead of a hashed key.
type stateSet struct {
	width int
	seen  []bool
}

func newStateSet(width, height int) *stateSet {
	return &stateSet{
		width: width,
		seen:  make([]bool, width*height*directionCount),
	}
}

func (s *stateSet) index(state AgentState) int {
	return (state.Coordinate.Y*s.width+state.Coordinate.X)*directionCount + int(state.Direction)
}

// add records state and returns false if it was already present
func (s *stateSet) add(state AgentState) bool {
	i := s.index(state)
	if s.seen[i] {
		return false
	}
	s.seen[i] = true
	return true
}

// Simulate walks the guard from start until it leaves the grid or repeats a
// state. When the guard leaves, it returns every state occupied in order,
// ending with the last one on the grid, and exited is true. When a state
// repeats, the guard is looping: trace is nil and exited is false.
//
// start must lie on the grid; an off-grid start yields no trace and exited
// is false. The loop runs at most width*height*4 times since there are no
// more distinct states than that.
func Simulate(m *ObstacleMap, start AgentState) (trace []AgentState, exited bool) {
	if !m.InBounds(start.Coordinate) || !start.Direction.Valid() {
		return nil, false
	}

	visited := newStateSet(m.Width(), m.Height())
	current := start

	for {
		if !visited.add(current) {
			return nil, false
		}
		trace = append(trace, current)

		obstacle, inBounds := m.IsObstacle(current.Ahead())
		switch {
		case !inBounds:
			return trace, true
		case obstacle:
			current = current.EncounterObstacle()
		default:
			current = current.Step()
		}
	}
}

// DistinctCoordinates counts the cells covered by a trace, ignoring heading
func DistinctCoordinates(trace []AgentState) int {
	cells := make(map[Coordinate]struct{}, len(trace))
	for _, state := range trace {
		cells[state.Coordinate] = struct{}{}
	}
	return len(cells)
}
