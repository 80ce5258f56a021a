package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigExtensions lists the file extensions a patrol configuration may use,
// in lookup order
var ConfigExtensions = []string{".json", ".yaml", ".yml"}

// ValidatePatrolConfig validates a patrol configuration for correctness
func ValidatePatrolConfig(config *PatrolConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	// Validate grid size
	if err := CheckLayoutSize(config.Layout); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if config.Workers < 0 || config.Workers > MaxWorkers {
		return fmt.Errorf("config validation: workers must be between 0 and %d, got %d", MaxWorkers, config.Workers)
	}

	// Validate glyphs and the guard
	if _, _, err := ParseLayout(config.Layout); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	return nil
}

// LoadPatrolConfig loads a patrol configuration from a JSON or YAML file
func LoadPatrolConfig(filename string) (*PatrolConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config, err := DecodePatrolConfig(filename, data)
	if err != nil {
		return nil, err
	}

	// Validate the loaded configuration
	if err := ValidatePatrolConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// DecodePatrolConfig decodes data as YAML when filename ends in .yaml or
// .yml and as JSON otherwise. The result is not validated.
func DecodePatrolConfig(filename string, data []byte) (*PatrolConfig, error) {
	var config PatrolConfig

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	return &config, nil
}

// IsConfigFile reports whether name has a patrol configuration extension
func IsConfigFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range ConfigExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// ConfigID strips the configuration extension from a file name
func ConfigID(filename string) string {
	base := filepath.Base(filename)
	if IsConfigFile(base) {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base
}

// DefaultPatrolConfig returns the classic 10x10 sample patrol
func DefaultPatrolConfig() *PatrolConfig {
	return &PatrolConfig{
		Name:        "Classic",
		Description: "The classic 10x10 lab with a guard facing north",
		Layout: []string{
			"....#.....",
			".........#",
			"..........",
			"..#.......",
			".......#..",
			"..........",
			".#..^.....",
			"........#.",
			"#.........",
			"......#...",
		},
		Messages: DefaultMessages(),
	}
}

// DefaultMessages returns the messages used when a config leaves them empty
func DefaultMessages() PatrolMessages {
	return PatrolMessages{
		Welcome:      "The guard is on patrol. Step through the route or run it to the end.",
		Moved:        "Guard moved to %s",
		Turned:       "Obstacle ahead, guard turned to face %s",
		Exited:       "Guard left the grid after covering %d cells",
		LoopDetected: "Guard is looping: %s was already visited",
	}
}

// messagesWithDefaults fills empty messages from DefaultMessages. A custom
// message must hold exactly the one verb its default uses; anything else
// would render as %!s(MISSING) or a mistyped value, so it is replaced too.
func messagesWithDefaults(m PatrolMessages) PatrolMessages {
	defaults := DefaultMessages()
	if m.Welcome == "" {
		m.Welcome = defaults.Welcome
	}
	if formatVerbs(m.Moved) != "s" {
		m.Moved = defaults.Moved
	}
	if formatVerbs(m.Turned) != "s" {
		m.Turned = defaults.Turned
	}
	if formatVerbs(m.Exited) != "d" {
		m.Exited = defaults.Exited
	}
	if formatVerbs(m.LoopDetected) != "s" {
		m.LoopDetected = defaults.LoopDetected
	}
	return m
}

// formatVerbs returns the verbs of a printf format in order, skipping %%.
// Flags, width and precision are not accepted: "%5d" yields "5".
func formatVerbs(format string) string {
	var verbs []byte
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		if i == len(format) {
			verbs = append(verbs, '%')
			break
		}
		if format[i] != '%' {
			verbs = append(verbs, format[i])
		}
	}
	return string(verbs)
}
