package session

import (
	"time"

	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
	"github.com/wricardo/mcp-training/guardpatrol/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	Save(session *service.Session) error
	Load(id string) (*service.Session, error)
	Delete(id string) error
	ListAll() ([]string, error)
	Exists(id string) bool
}

// PersistedSessionData is the on-disk form of a session. Loading prefers the
// configuration named by ConfigName and falls back to the embedded Config
// when that name no longer resolves.
type PersistedSessionData struct {
	ID             string               `json:"id"`
	ConfigName     string               `json:"config_name"`
	Config         *engine.PatrolConfig `json:"config,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
	PatrolState    *engine.PatrolState  `json:"patrol_state"`
	Analysis       *engine.Analysis     `json:"analysis,omitempty"`
}
