package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
)

// patrolServiceImpl implements the PatrolService interface
type patrolServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.RWMutex
}

// NewPatrolService creates a new patrol service instance
func NewPatrolService(sessions SessionManager, configs ConfigManager) PatrolService {
	return &patrolServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// getConfigID returns the config_id for a given display name, used for consistent API responses
func (s *patrolServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func (s *patrolServiceImpl) sessionInfo(sess *Session, configID string) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		PatrolState:    sess.Engine.GetState().Clone(),
		PatrolConfig:   sess.Config,
		Analysis:       sess.Analysis,
	}
}

// getSession looks a session up and marks it as accessed
func (s *patrolServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// persist saves a session, logging instead of failing the operation
func (s *patrolServiceImpl) persist(sessionID, after string) {
	if err := s.sessions.Save(sessionID); err != nil {
		log.Printf("Warning: failed to persist session %s after %s: %v", sessionID, after, err)
	}
}

// CreateSession creates a new patrol session
func (s *patrolServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.PatrolConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// The session manager generates the 4-character ID
	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	configID := configName
	if configID == "" {
		configID = s.getConfigID(config.Name)
	}

	return s.sessionInfo(sess, configID), nil
}

// GetSession retrieves session information
func (s *patrolServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	return s.sessionInfo(sess, s.getConfigID(sess.Config.Name)), nil
}

// ListSessions returns all active sessions
func (s *patrolServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess, s.getConfigID(sess.Config.Name)))
	}

	return result, nil
}

// DeleteSession removes a session
func (s *patrolServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	return nil
}

// Step advances a session's patrol by one transition
func (s *patrolServiceImpl) Step(ctx context.Context, sessionID string, reset bool) (*StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	events := []PatrolEvent{}
	if reset {
		sess.Engine.Reset()
		events = append(events, resetEvent())
	}

	advanced := sess.Engine.Step()
	state := sess.Engine.GetState().Clone()

	result := &StepResult{
		Advanced:    advanced,
		Finished:    sess.Engine.IsFinished(),
		PatrolState: state,
		Message:     state.Message,
		Events:      append(events, finishEvents(state)...),
	}
	if last := sess.Engine.GetLastStep(); last != nil {
		step := *last
		result.Step = &step
	}

	s.persist(sessionID, "step")
	return result, nil
}

// Run advances a session's patrol until it finishes or limit transitions are
// applied. A limit of zero or less runs to the end; a positive limit is capped
// at engine.MaxBulkSteps.
func (s *patrolServiceImpl) Run(ctx context.Context, sessionID string, limit int, reset bool) (*RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RequestedLimit: limit,
		Events:         []PatrolEvent{},
	}

	if reset {
		sess.Engine.Reset()
		result.Events = append(result.Events, resetEvent())
	}

	if limit > engine.MaxBulkSteps {
		result.Truncated = true
		result.Limit = engine.MaxBulkSteps
		limit = engine.MaxBulkSteps
	}

	start := sess.Engine.GetState()
	result.StartGuard = start.Guard
	startMoves, startTurns := start.Moves, start.Turns

	result.StepsApplied = sess.Engine.Run(limit)

	state := sess.Engine.GetState().Clone()
	result.PatrolState = state
	result.EndGuard = state.Guard
	result.Moves = state.Moves - startMoves
	result.Turns = state.Turns - startTurns
	result.Finished = sess.Engine.IsFinished()
	result.Message = state.Message
	result.Events = append(result.Events, finishEvents(state)...)

	switch state.Status {
	case engine.StatusExited:
		result.StopReasonCode = "exited"
	case engine.StatusLooping:
		result.StopReasonCode = "looping"
	default:
		result.StopReasonCode = "limit"
	}

	s.persist(sessionID, "run")
	return result, nil
}

// Reset restarts a session's patrol from the initial guard state
func (s *patrolServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.PatrolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	state := sess.Engine.Reset().Clone()
	s.persist(sessionID, "reset")
	return state, nil
}

// GetPatrolState retrieves the current patrol state
func (s *patrolServiceImpl) GetPatrolState(ctx context.Context, sessionID string) (*engine.PatrolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.GetState().Clone(), nil
}

// GetStepHistory returns paginated step history
func (s *patrolServiceImpl) GetStepHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	return paginateHistory(sess.Engine.GetHistory(), opts), nil
}

// paginateHistory slices history into one page. Descending order puts the
// most recent step first.
func paginateHistory(history []engine.StepHistoryEntry, opts HistoryOptions) *HistoryResponse {
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	steps := []engine.StepHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			for i := total - 1 - start; i >= total-end; i-- {
				steps = append(steps, history[i])
			}
		} else {
			steps = append(steps, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Steps:       steps,
		TotalSteps:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}
}

// Analyze returns the route and obstruction analysis of a session's layout.
// The first call computes it outside the service lock; later calls reuse
// the cached result.
func (s *patrolServiceImpl) Analyze(ctx context.Context, sessionID string) (*engine.Analysis, error) {
	s.mu.RLock()
	sess, err := s.getSession(sessionID)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	if cached := sess.Analysis; cached != nil {
		s.mu.RUnlock()
		return cached, nil
	}
	eng := sess.Engine
	s.mu.RUnlock()

	analysis, err := eng.Analyze(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze session %s: %w", sessionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Analysis = analysis
	s.persist(sessionID, "analysis")

	return analysis, nil
}

// parseAdHocLayout parses a layout sent by a client, holding it to the grid
// bounds a configuration file must respect
func parseAdHocLayout(layout []string) (*engine.ObstacleMap, engine.AgentState, error) {
	if err := engine.CheckLayoutSize(layout); err != nil {
		return nil, engine.AgentState{}, fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}
	obstacles, start, err := engine.ParseLayout(layout)
	if err != nil {
		return nil, engine.AgentState{}, fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}
	return obstacles, start, nil
}

// Solve analyses a layout that is not tied to any session
func (s *patrolServiceImpl) Solve(ctx context.Context, layout []string, workers int) (*SolveResult, error) {
	if workers < 0 || workers > engine.MaxWorkers {
		return nil, fmt.Errorf("%w: workers must be between 0 and %d, got %d", ErrInvalidLayout, engine.MaxWorkers, workers)
	}

	obstacles, start, err := parseAdHocLayout(layout)
	if err != nil {
		return nil, err
	}

	analysis, err := engine.AnalyzeLayout(ctx, obstacles, start, workers)
	if err != nil {
		return nil, fmt.Errorf("failed to solve layout: %w", err)
	}

	return &SolveResult{
		Width:    obstacles.Width(),
		Height:   obstacles.Height(),
		Start:    start,
		Analysis: analysis,
	}, nil
}

// Route simulates the unobstructed patrol of a layout not tied to any session
func (s *patrolServiceImpl) Route(ctx context.Context, layout []string) (*RouteResult, error) {
	obstacles, start, err := parseAdHocLayout(layout)
	if err != nil {
		return nil, err
	}

	trace, exited := engine.Simulate(obstacles, start)
	result := &RouteResult{
		Width:  obstacles.Width(),
		Height: obstacles.Height(),
		Start:  start,
		Exited: exited,
	}
	if exited {
		result.DistinctCells = engine.DistinctCoordinates(trace)
		result.TraceLength = len(trace)
	}
	return result, nil
}

// ListConfigs returns available patrol configurations
func (s *patrolServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific patrol configuration
func (s *patrolServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.PatrolConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a patrol configuration to disk
func (s *patrolServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.PatrolConfig) error {
	return s.configs.SaveConfig(configName, config)
}

func resetEvent() PatrolEvent {
	return PatrolEvent{
		Type:      "reset",
		Message:   "Patrol reset to the initial guard state",
		Timestamp: time.Now(),
	}
}

// finishEvents reports how a patrol ended, if it has
func finishEvents(state *engine.PatrolState) []PatrolEvent {
	guard := state.Guard
	switch state.Status {
	case engine.StatusExited:
		return []PatrolEvent{{
			Type:      "exited",
			Message:   state.Message,
			Timestamp: time.Now(),
			Guard:     &guard,
		}}
	case engine.StatusLooping:
		return []PatrolEvent{{
			Type:      "looping",
			Message:   state.Message,
			Timestamp: time.Now(),
			Guard:     state.RepeatedState,
		}}
	}
	return nil
}
