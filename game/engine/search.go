package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// obstructionTrial is one candidate cell and the trace state the guard
// resumes from once the obstacle is in front of it
type obstructionTrial struct {
	at   Coordinate
	from AgentState
}

// obstructionTrials walks the trace once and returns the cells worth
// obstructing, each paired with the first state that faces it. A cell is
// skipped when the guard already walked through it earlier in the trace, when
// it is off the grid or already obstructed, or when it is the start cell.
func obstructionTrials(m *ObstacleMap, trace []AgentState) []obstructionTrial {
	if len(trace) == 0 {
		return nil
	}
	startCell := trace[0].Coordinate

	walked := make(map[Coordinate]struct{}, len(trace))
	trials := make([]obstructionTrial, 0, len(trace))

	for _, state := range trace {
		walked[state.Coordinate] = struct{}{}

		ahead := state.Ahead()
		if _, seen := walked[ahead]; seen {
			continue
		}
		obstacle, inBounds := m.IsObstacle(ahead)
		if !inBounds || obstacle {
			continue
		}
		if ahead == startCell {
			continue
		}
		trials = append(trials, obstructionTrial{at: ahead, from: state})
	}

	return trials
}

// loopsWithObstacle installs a trial obstacle, simulates from the given
// state and always removes the obstacle again before returning.
func loopsWithObstacle(m *ObstacleMap, at Coordinate, from AgentState) bool {
	if !m.AddObstacle(at) {
		return false
	}
	defer m.RemoveObstacle(at)

	_, exited := Simulate(m, from)
	return !exited
}

// FindLoopObstructions returns, in row-major order, every cell where a single
// new obstacle makes the guard loop instead of leaving the grid. trace must be
// the unobstructed trace produced by Simulate on m. m is mutated during the
// search but holds exactly its original obstacles when the call returns.
func FindLoopObstructions(m *ObstacleMap, trace []AgentState) []Coordinate {
	found := make(map[Coordinate]struct{})
	for _, trial := range obstructionTrials(m, trace) {
		if loopsWithObstacle(m, trial.at, trial.from) {
			found[trial.at] = struct{}{}
		}
	}
	return collectCoordinates(found)
}

// FindLoopObstructionsParallel computes the same result as
// FindLoopObstructions using up to workers goroutines. Each worker runs its
// trials on a private clone of m, so m itself is never modified.
func FindLoopObstructionsParallel(ctx context.Context, m *ObstacleMap, trace []AgentState, workers int) ([]Coordinate, error) {
	if workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", workers)
	}

	trials := obstructionTrials(m, trace)
	if workers > len(trials) {
		workers = len(trials)
	}
	if workers == 0 {
		return []Coordinate{}, nil
	}

	// results[w] is written only by worker w
	results := make([][]Coordinate, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			private := m.Clone()
			for i := w; i < len(trials); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				if loopsWithObstacle(private, trials[i].at, trials[i].from) {
					results[w] = append(results[w], trials[i].at)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("obstruction search: %w", err)
	}

	found := make(map[Coordinate]struct{})
	for _, coords := range results {
		for _, c := range coords {
			found[c] = struct{}{}
		}
	}
	return collectCoordinates(found), nil
}

// CountObstructionCandidates returns how many trials a search over trace runs
func CountObstructionCandidates(m *ObstacleMap, trace []AgentState) int {
	return len(obstructionTrials(m, trace))
}

func collectCoordinates(set map[Coordinate]struct{}) []Coordinate {
	coords := make([]Coordinate, 0, len(set))
	for c := range set {
		coords = append(coords, c)
	}
	sortCoordinates(coords)
	return coords
}
