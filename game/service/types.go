package service

import (
	"time"

	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
)

// SessionInfo provides information about a patrol session
type SessionInfo struct {
	ID             string               `json:"id"`
	ConfigName     string               `json:"config_name"`
	CreatedAt      time.Time            `json:"created_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
	PatrolState    *engine.PatrolState  `json:"patrol_state"`
	PatrolConfig   *engine.PatrolConfig `json:"patrol_config"`
	Analysis       *engine.Analysis     `json:"analysis,omitempty"`
}

// StepResult contains the result of a single patrol step
type StepResult struct {
	Advanced    bool                     `json:"advanced"`
	Finished    bool                     `json:"finished"`
	PatrolState *engine.PatrolState      `json:"patrol_state"`
	Message     string                   `json:"message"`
	Step        *engine.StepHistoryEntry `json:"step,omitempty"`
	Events      []PatrolEvent            `json:"events,omitempty"`
}

// RunResult contains the result of running a patrol for several steps
type RunResult struct {
	// Summary
	StepsApplied   int                 `json:"steps_applied"`
	RequestedLimit int                 `json:"requested_limit"` // 0 means until the patrol finishes
	Truncated      bool                `json:"truncated,omitempty"`
	Limit          int                 `json:"limit,omitempty"`
	Finished       bool                `json:"finished"`
	StopReasonCode string              `json:"stop_reason_code"` // exited|looping|limit
	PatrolState    *engine.PatrolState `json:"patrol_state"`
	Events         []PatrolEvent       `json:"events"`

	// Start/end snapshot
	StartGuard engine.AgentState `json:"start_guard"`
	EndGuard   engine.AgentState `json:"end_guard"`
	Moves      int               `json:"moves"`
	Turns      int               `json:"turns"`

	Message string `json:"message,omitempty"`
}

// SolveResult is the analysis of an ad-hoc layout that belongs to no session
type SolveResult struct {
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Start    engine.AgentState `json:"start"`
	Analysis *engine.Analysis  `json:"analysis"`
}

// RouteResult describes the unobstructed patrol of an ad-hoc layout without
// the obstruction search
type RouteResult struct {
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Start         engine.AgentState `json:"start"`
	Exited        bool              `json:"exited"`
	DistinctCells int               `json:"distinct_cells"`
	TraceLength   int               `json:"trace_length"`
}

// PatrolEvent represents something noteworthy that happened during a patrol
type PatrolEvent struct {
	Type      string             `json:"type"` // "reset", "exited", "looping"
	Message   string             `json:"message"`
	Timestamp time.Time          `json:"timestamp"`
	Guard     *engine.AgentState `json:"guard,omitempty"`
}

// HistoryOptions configures step history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated step history
type HistoryResponse struct {
	Steps       []engine.StepHistoryEntry `json:"steps"`
	TotalSteps  int                       `json:"total_steps"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a patrol configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Obstacles   int    `json:"obstacles"`
	Workers     int    `json:"workers"`
}
