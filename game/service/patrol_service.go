package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidLayout   = errors.New("invalid layout")
)

// PatrolService defines all patrol-related operations
type PatrolService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Patrol Operations
	Step(ctx context.Context, sessionID string, reset bool) (*StepResult, error)
	Run(ctx context.Context, sessionID string, limit int, reset bool) (*RunResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.PatrolState, error)

	// Patrol State
	GetPatrolState(ctx context.Context, sessionID string) (*engine.PatrolState, error)
	GetStepHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Analysis
	Analyze(ctx context.Context, sessionID string) (*engine.Analysis, error)
	Solve(ctx context.Context, layout []string, workers int) (*SolveResult, error)
	Route(ctx context.Context, layout []string) (*RouteResult, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.PatrolConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.PatrolConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.PatrolConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *engine.PatrolConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles patrol configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.PatrolConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.PatrolConfig
	SaveConfig(name string, config *engine.PatrolConfig) error
}

// Session represents an active patrol session. Analysis is filled the first
// time the session's layout is analysed and reused afterwards, since the
// layout of a session never changes.
type Session struct {
	ID             string
	Engine         *engine.PatrolEngine
	Config         *engine.PatrolConfig
	Analysis       *engine.Analysis
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
