package engine

import (
	"context"
	"fmt"
	"time"
)

// Engine provides the main interface for patrol operations
type Engine interface {
	// Patrol state management
	GetState() *PatrolState
	SetState(state *PatrolState) error
	Reset() *PatrolState
	IsFinished() bool
	IsLooping() bool
	GetGuard() AgentState

	// Stepping
	Step() bool
	Run(limit int) int

	// Configuration
	GetConfig() *PatrolConfig
	GetMap() *ObstacleMap

	// History
	GetHistory() []StepHistoryEntry
	GetLastStep() *StepHistoryEntry

	// Whole-route computations
	Route() ([]AgentState, bool)
	LoopObstructions(ctx context.Context) ([]Coordinate, error)
	Analyze(ctx context.Context) (*Analysis, error)
}

// PatrolEngine implements the Engine interface
type PatrolEngine struct {
	config    *PatrolConfig
	messages  PatrolMessages
	obstacles *ObstacleMap
	start     AgentState
	state     *PatrolState
	visited   *stateSet
	cells     map[Coordinate]struct{}
}

// NewEngine creates a new patrol engine with the provided configuration
func NewEngine(config *PatrolConfig) (*PatrolEngine, error) {
	if err := ValidatePatrolConfig(config); err != nil {
		return nil, err
	}

	obstacles, start, err := ParseLayout(config.Layout)
	if err != nil {
		return nil, err
	}

	e := &PatrolEngine{
		config:    config,
		messages:  messagesWithDefaults(config.Messages),
		obstacles: obstacles,
		start:     start,
	}
	e.state = e.initState()

	return e, nil
}

// NewEngineWithDefaults creates a new patrol engine over the classic layout
func NewEngineWithDefaults() *PatrolEngine {
	e, err := NewEngine(DefaultPatrolConfig())
	if err != nil {
		// the built-in layout is always valid
		panic(err)
	}
	return e
}

func (e *PatrolEngine) initState() *PatrolState {
	e.visited = newStateSet(e.obstacles.Width(), e.obstacles.Height())
	e.cells = make(map[Coordinate]struct{})

	return &PatrolState{
		Width:      e.obstacles.Width(),
		Height:     e.obstacles.Height(),
		Start:      e.start,
		Guard:      e.start,
		Status:     StatusPatrolling,
		Visited:    []AgentState{},
		Message:    e.messages.Welcome,
		ConfigName: e.config.Name,
		History:    []StepHistoryEntry{},
	}
}

// GetState returns the current patrol state
func (e *PatrolEngine) GetState() *PatrolState {
	return e.state
}

// SetState replaces the patrol state (used for persistence loading). The
// visited index is rebuilt from state.Visited so loop detection resumes
// where the saved patrol stopped.
func (e *PatrolEngine) SetState(state *PatrolState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.Width != e.obstacles.Width() || state.Height != e.obstacles.Height() {
		return fmt.Errorf("state grid %dx%d does not match layout %dx%d",
			state.Width, state.Height, e.obstacles.Width(), e.obstacles.Height())
	}
	if !e.obstacles.InBounds(state.Guard.Coordinate) || !state.Guard.Direction.Valid() {
		return fmt.Errorf("%w: %s", ErrStartOffGrid, state.Guard)
	}

	visited := newStateSet(e.obstacles.Width(), e.obstacles.Height())
	cells := make(map[Coordinate]struct{}, len(state.Visited))
	for _, s := range state.Visited {
		if !e.obstacles.InBounds(s.Coordinate) || !s.Direction.Valid() {
			return fmt.Errorf("visited state %s is not on the grid", s)
		}
		visited.add(s)
		cells[s.Coordinate] = struct{}{}
	}

	if state.Visited == nil {
		state.Visited = []AgentState{}
	}
	if state.History == nil {
		state.History = []StepHistoryEntry{}
	}
	state.DistinctCells = len(cells)

	e.visited = visited
	e.cells = cells
	e.state = state
	return nil
}

// Reset restarts the patrol from the initial guard state
func (e *PatrolEngine) Reset() *PatrolState {
	e.state = e.initState()
	return e.state
}

// IsFinished returns whether the guard has left the grid or is looping
func (e *PatrolEngine) IsFinished() bool {
	return e.state.Status != StatusPatrolling
}

// IsLooping returns whether the patrol ended in a loop
func (e *PatrolEngine) IsLooping() bool {
	return e.state.Status == StatusLooping
}

// GetGuard returns the current guard state
func (e *PatrolEngine) GetGuard() AgentState {
	return e.state.Guard
}

// Step applies one iteration of the patrol state machine: detect a repeat,
// record the state, then exit, turn or move depending on the cell ahead.
// It returns false once the patrol is finished.
func (e *PatrolEngine) Step() bool {
	if e.IsFinished() {
		return false
	}

	state := e.state
	current := state.Guard

	if !e.visited.add(current) {
		repeated := current
		state.Status = StatusLooping
		state.RepeatedState = &repeated
		state.Message = fmt.Sprintf(e.messages.LoopDetected, current)
		e.addHistory("loop", current, current)
		return false
	}
	state.Visited = append(state.Visited, current)
	e.cells[current.Coordinate] = struct{}{}
	state.DistinctCells = len(e.cells)

	obstacle, inBounds := e.obstacles.IsObstacle(current.Ahead())
	switch {
	case !inBounds:
		state.Status = StatusExited
		state.Message = fmt.Sprintf(e.messages.Exited, state.DistinctCells)
		e.addHistory("exit", current, current)
		return false
	case obstacle:
		next := current.EncounterObstacle()
		state.Guard = next
		state.Turns++
		state.Message = fmt.Sprintf(e.messages.Turned, next.Direction)
		e.addHistory("turn", current, next)
	default:
		next := current.Step()
		state.Guard = next
		state.Moves++
		state.Message = fmt.Sprintf(e.messages.Moved, next.Coordinate)
		e.addHistory("move", current, next)
	}

	return true
}

// Run steps the patrol until it finishes or limit transitions have been
// applied. A limit of zero or less means no limit. It returns the number of
// transitions applied.
func (e *PatrolEngine) Run(limit int) int {
	applied := 0
	for limit <= 0 || applied < limit {
		if !e.Step() {
			break
		}
		applied++
	}
	return applied
}

// GetConfig returns the patrol configuration
func (e *PatrolEngine) GetConfig() *PatrolConfig {
	return e.config
}

// GetMap returns the obstacle map. Callers must not mutate it.
func (e *PatrolEngine) GetMap() *ObstacleMap {
	return e.obstacles
}

// GetHistory returns the complete step history
func (e *PatrolEngine) GetHistory() []StepHistoryEntry {
	return e.state.History
}

// GetLastStep returns the last history entry, or nil if nothing happened yet
func (e *PatrolEngine) GetLastStep() *StepHistoryEntry {
	if len(e.state.History) == 0 {
		return nil
	}
	return &e.state.History[len(e.state.History)-1]
}

// Route simulates the whole unobstructed patrol from the initial state
func (e *PatrolEngine) Route() ([]AgentState, bool) {
	return Simulate(e.obstacles, e.start)
}

// LoopObstructions finds every cell where one extra obstacle traps the guard
func (e *PatrolEngine) LoopObstructions(ctx context.Context) ([]Coordinate, error) {
	analysis, err := e.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.LoopObstructions, nil
}

// Analyze runs both computations for the layout on a copy of the obstacle
// map, using the configured number of workers
func (e *PatrolEngine) Analyze(ctx context.Context) (*Analysis, error) {
	return AnalyzeLayout(ctx, e.obstacles.Clone(), e.start, e.config.Workers)
}

// AnalyzeLayout simulates the unobstructed patrol from start and, when the
// guard leaves the grid, searches for loop-creating obstructions. workers
// above one selects the parallel search. obstacles is left unchanged. A start
// off the grid is ErrStartOffGrid rather than a looping verdict.
func AnalyzeLayout(ctx context.Context, obstacles *ObstacleMap, start AgentState, workers int) (*Analysis, error) {
	if !obstacles.InBounds(start.Coordinate) || !start.Direction.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrStartOffGrid, start)
	}
	began := time.Now()

	analysis := &Analysis{
		LoopObstructions: []Coordinate{},
		Workers:          workers,
	}

	trace, exited := Simulate(obstacles, start)
	analysis.Exited = exited
	if !exited {
		analysis.ElapsedNanos = time.Since(began).Nanoseconds()
		return analysis, nil
	}
	analysis.TraceLength = len(trace)
	analysis.DistinctCells = DistinctCoordinates(trace)
	analysis.Candidates = CountObstructionCandidates(obstacles, trace)

	var (
		found []Coordinate
		err   error
	)
	if workers > 1 {
		found, err = FindLoopObstructionsParallel(ctx, obstacles, trace, workers)
		if err != nil {
			return nil, err
		}
	} else {
		found = FindLoopObstructions(obstacles, trace)
	}

	analysis.LoopObstructions = found
	analysis.LoopCount = len(found)
	analysis.ElapsedNanos = time.Since(began).Nanoseconds()
	return analysis, nil
}

// addHistory appends a transition to the patrol history
func (e *PatrolEngine) addHistory(action string, from, to AgentState) {
	e.state.TotalSteps++
	e.state.History = append(e.state.History, StepHistoryEntry{
		Action:     action,
		From:       from,
		To:         to,
		Timestamp:  time.Now().Unix(),
		StepNumber: e.state.TotalSteps,
	})
}
