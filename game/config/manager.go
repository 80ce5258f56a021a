package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
	"github.com/wricardo/mcp-training/guardpatrol/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = service.ErrInvalidConfig
)

// DefaultConfigID is the configuration used when a session names none
const DefaultConfigID = "classic"

// Manager loads patrol configurations from a directory and caches them by ID
type Manager struct {
	configDir     string
	defaultConfig *engine.PatrolConfig
	configs       map[string]*engine.PatrolConfig
	mu            sync.RWMutex
}

// NewManager creates a configuration manager over an existing directory
func NewManager(configDir string) (*Manager, error) {
	info, err := os.Stat(configDir)
	if err != nil {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config path is not a directory: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.PatrolConfig),
	}
	m.defaultConfig = m.resolveDefault()

	return m, nil
}

// LoadConfig loads a configuration by ID. The ID may carry a .json, .yaml or
// .yml extension; without one each extension is tried in that order.
func (m *Manager) LoadConfig(name string) (*engine.PatrolConfig, error) {
	id := engine.ConfigID(name)
	if !validConfigName(name) {
		return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
	}

	m.mu.RLock()
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	path, err := m.findConfigFile(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := engine.DecodePatrolConfig(path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := engine.ValidatePatrolConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m.configs[id] = config
	return config, nil
}

// validConfigName reports whether name can only refer to a file directly
// inside the config directory
func validConfigName(name string) bool {
	if name == "" || name != strings.TrimSpace(name) {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return false
	}
	return engine.ConfigID(name) != ""
}

// findConfigFile resolves a config name to a file in the config directory
func (m *Manager) findConfigFile(name string) (string, error) {
	candidates := []string{name}
	if !engine.IsConfigFile(name) {
		candidates = candidates[:0]
		for _, ext := range engine.ConfigExtensions {
			candidates = append(candidates, name+ext)
		}
	}

	for _, candidate := range candidates {
		path := filepath.Join(m.configDir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrConfigNotFound, name)
}

// ListConfigs returns information about every valid configuration in the
// directory. Invalid files are skipped.
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	configs := []*service.ConfigInfo{}
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !engine.IsConfigFile(entry.Name()) {
			continue
		}

		id := engine.ConfigID(entry.Name())
		if seen[id] {
			continue
		}

		config, err := m.LoadConfig(entry.Name())
		if err != nil {
			continue
		}
		seen[id] = true

		configs = append(configs, describeConfig(entry.Name(), id, config))
	}

	return configs, nil
}

func describeConfig(filename, id string, config *engine.PatrolConfig) *service.ConfigInfo {
	info := &service.ConfigInfo{
		Filename:    filename,
		ConfigID:    id,
		Name:        config.Name,
		Description: config.Description,
		Height:      len(config.Layout),
		Workers:     config.Workers,
	}
	if len(config.Layout) > 0 {
		info.Width = len(config.Layout[0])
	}
	for _, row := range config.Layout {
		info.Obstacles += strings.Count(row, string(engine.ObstacleGlyph))
	}
	return info
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.PatrolConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default configuration by ID
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	return nil
}

// RefreshCache drops every cached configuration and resolves the default
// again from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.PatrolConfig)
	m.mu.Unlock()

	def := m.resolveDefault()

	m.mu.Lock()
	m.defaultConfig = def
	m.mu.Unlock()
	return nil
}

// resolveDefault picks classic, then the first valid file, then the built-in
// classic layout
func (m *Manager) resolveDefault() *engine.PatrolConfig {
	if config, err := m.LoadConfig(DefaultConfigID); err == nil {
		return config
	}

	configs, err := m.ListConfigs()
	if err == nil && len(configs) > 0 {
		if config, err := m.LoadConfig(configs[0].Filename); err == nil {
			return config
		}
	}

	return engine.DefaultPatrolConfig()
}

// SaveConfig validates a configuration and writes it to disk. A name ending
// in .yaml or .yml is written as YAML, anything else as JSON.
func (m *Manager) SaveConfig(name string, config *engine.PatrolConfig) error {
	if err := engine.ValidatePatrolConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if !validConfigName(name) {
		return fmt.Errorf("%w: bad config name %q", ErrInvalidConfig, name)
	}
	id := engine.ConfigID(name)

	filename := name
	if !engine.IsConfigFile(filename) {
		filename = name + ".json"
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.configDir, filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[id] = config
	m.mu.Unlock()

	return nil
}
