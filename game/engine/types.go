package engine

// Direction is the heading of the guard.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// Layout glyphs
const (
	FloorGlyph      = '.'
	ObstacleGlyph   = '#'
	GuardUpGlyph    = '^'
	GuardRightGlyph = '>'
	GuardDownGlyph  = 'v'
	GuardLeftGlyph  = '<'
	VisitedGlyph    = 'X'
	TrialGlyph      = 'O'
)

const (
	// Validation constants
	MinGridSize    = 1
	MaxGridSize    = 256
	MaxWorkers     = 64
	MaxBulkSteps   = 1000
	directionCount = 4
)

// PatrolStatus describes where a patrol is in its lifecycle
type PatrolStatus string

const (
	StatusPatrolling PatrolStatus = "patrolling"
	StatusExited     PatrolStatus = "exited"
	StatusLooping    PatrolStatus = "looping"
)

// Coordinate is a grid cell. X grows to the right and Y grows downward.
type Coordinate struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// AgentState is the guard's position and heading. It is the unit of loop
// detection: the transition function depends on nothing else.
type AgentState struct {
	Coordinate Coordinate `json:"coordinate"`
	Direction  Direction  `json:"direction"`
}

// PatrolMessages holds optional overrides for the messages reported by a patrol
type PatrolMessages struct {
	Welcome      string `json:"welcome,omitempty" yaml:"welcome,omitempty"`
	Moved        string `json:"moved,omitempty" yaml:"moved,omitempty"`
	Turned       string `json:"turned,omitempty" yaml:"turned,omitempty"`
	Exited       string `json:"exited,omitempty" yaml:"exited,omitempty"`
	LoopDetected string `json:"loop_detected,omitempty" yaml:"loop_detected,omitempty"`
}

// PatrolConfig represents a named patrol layout loaded from JSON or YAML
type PatrolConfig struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Layout      []string       `json:"layout" yaml:"layout"`
	Workers     int            `json:"workers,omitempty" yaml:"workers,omitempty"`
	Messages    PatrolMessages `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// PatrolState represents the complete state of an interactive patrol
type PatrolState struct {
	Width         int                `json:"width"`
	Height        int                `json:"height"`
	Start         AgentState         `json:"start"`
	Guard         AgentState         `json:"guard"`
	Status        PatrolStatus       `json:"status"`
	Visited       []AgentState       `json:"visited"`
	DistinctCells int                `json:"distinct_cells"`
	Moves         int                `json:"moves"`
	Turns         int                `json:"turns"`
	RepeatedState *AgentState        `json:"repeated_state,omitempty"`
	Message       string             `json:"message"`
	ConfigName    string             `json:"config_name"`
	History       []StepHistoryEntry `json:"history"`
	TotalSteps    int                `json:"total_steps"`
}

// Clone returns a copy of the state that shares no slices or pointers
// with s, so it can be encoded while the engine keeps stepping.
func (s *PatrolState) Clone() *PatrolState {
	if s == nil {
		return nil
	}
	c := *s
	c.Visited = append([]AgentState{}, s.Visited...)
	c.History = append([]StepHistoryEntry{}, s.History...)
	if s.RepeatedState != nil {
		repeated := *s.RepeatedState
		c.RepeatedState = &repeated
	}
	return &c
}

// StepHistoryEntry represents a single transition in the patrol history
type StepHistoryEntry struct {
	Action     string     `json:"action"` // "move", "turn", "exit" or "loop"
	From       AgentState `json:"from"`
	To         AgentState `json:"to"`
	Timestamp  int64      `json:"timestamp"`
	StepNumber int        `json:"step_number"`
}

// Analysis is the result of both patrol computations over one layout
type Analysis struct {
	Exited           bool         `json:"exited"`
	DistinctCells    int          `json:"distinct_cells"`
	TraceLength      int          `json:"trace_length"`
	LoopObstructions []Coordinate `json:"loop_obstructions"`
	LoopCount        int          `json:"loop_count"`
	Candidates       int          `json:"candidates"`
	Workers          int          `json:"workers"`
	ElapsedNanos     int64        `json:"elapsed_nanos"`
}
