// Command validate checks the patrol configuration files in a directory
// (../configs unless another directory is given as the first argument). It
// checks:
//   - JSON or YAML structure and required fields
//   - Layout shape, allowed glyphs (. # ^ > v <) and exactly one guard
//   - Worker count limits
//   - Message overrides keep their format verb
//   - The unobstructed route: whether the guard leaves the grid or loops
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
)

// ValidationResult captures the outcome of validating a single file. Errors
// make the file invalid; Info lines are printed for valid files.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Info   []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// messageVerbs lists the format verb each message override must keep
var messageVerbs = []struct {
	name string
	verb string
	get  func(engine.PatrolMessages) string
}{
	{"moved", "%s", func(m engine.PatrolMessages) string { return m.Moved }},
	{"turned", "%s", func(m engine.PatrolMessages) string { return m.Turned }},
	{"exited", "%d", func(m engine.PatrolMessages) string { return m.Exited }},
	{"loop_detected", "%s", func(m engine.PatrolMessages) string { return m.LoopDetected }},
}

// validateConfig loads and validates a single configuration file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, err := engine.DecodePatrolConfig(filePath, data)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	if config.Name == "" {
		result.fail("name is required")
	}
	if config.Description == "" {
		result.fail("description is required")
	}
	if config.Workers < 0 || config.Workers > engine.MaxWorkers {
		result.fail("workers must be between 0 and %d, got %d", engine.MaxWorkers, config.Workers)
	}

	for _, m := range messageVerbs {
		if text := m.get(config.Messages); text != "" && !strings.Contains(text, m.verb) {
			result.fail("message %s must contain %s", m.name, m.verb)
		}
	}

	if len(config.Layout) > engine.MaxGridSize || (len(config.Layout) > 0 && len(config.Layout[0]) > engine.MaxGridSize) {
		result.fail("layout is larger than %dx%d", engine.MaxGridSize, engine.MaxGridSize)
		return result
	}

	obstacles, start, err := engine.ParseLayout(config.Layout)
	if err != nil {
		result.fail("layout: %v", err)
		return result
	}

	if result.Valid {
		result.Info = append(result.Info,
			fmt.Sprintf("✓ Name: %s", config.Name),
			fmt.Sprintf("✓ Grid: %dx%d", obstacles.Width(), obstacles.Height()),
			fmt.Sprintf("✓ Obstacles: %d", obstacles.Len()),
			fmt.Sprintf("✓ Guard: %s", start),
		)
		result.Info = append(result.Info, validateRoute(obstacles, start))
	}

	return result
}

// validateRoute simulates the unobstructed patrol and describes its outcome.
// A looping route is reported but does not make a configuration invalid.
func validateRoute(obstacles *engine.ObstacleMap, start engine.AgentState) string {
	trace, exited := engine.Simulate(obstacles, start)
	if !exited {
		return "⚠ Route: the guard loops without any extra obstruction"
	}
	return fmt.Sprintf("✓ Route: the guard leaves the grid after %d states covering %d cells",
		len(trace), engine.DistinctCoordinates(trace))
}

// configFiles returns the configuration files in dir, sorted by name
func configFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !engine.IsConfigFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// main validates every configuration file in the directory, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := configFiles(configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No configuration files found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Info {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
