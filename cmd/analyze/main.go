// Command analyze prints a report for every patrol configuration in a
// directory: dimensions, obstacle count, the guard's start, the cells covered
// by the unobstructed route and every cell where one extra obstacle would trap
// the guard in a loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
)

var (
	configDir = flag.String("dir", "configs", "Directory containing patrol configurations")
	workers   = flag.Int("workers", -1, "Search workers (-1 uses each config's own setting)")
	render    = flag.Bool("render", false, "Draw the route and loop obstructions for each layout")
)

func main() {
	flag.Parse()

	files, err := configFiles(*configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}

	failed := false
	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		if err := analyzeConfig(context.Background(), os.Stdout, file, *workers, *render); err != nil {
			fmt.Printf("Error: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// configFiles returns the configuration files in dir, sorted by name
func configFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && engine.IsConfigFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// analyzeConfig writes the report for one configuration file to w. A negative
// workerOverride keeps the configuration's own worker count.
func analyzeConfig(ctx context.Context, w io.Writer, path string, workerOverride int, draw bool) error {
	config, err := engine.LoadPatrolConfig(path)
	if err != nil {
		return err
	}

	obstacles, start, err := engine.ParseLayout(config.Layout)
	if err != nil {
		return err
	}

	n := config.Workers
	if workerOverride >= 0 {
		n = workerOverride
	}

	analysis, err := engine.AnalyzeLayout(ctx, obstacles, start, n)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Name: %s\n", config.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d\n", obstacles.Width(), obstacles.Height())
	fmt.Fprintf(w, "Obstacles: %d\n", obstacles.Len())
	fmt.Fprintf(w, "Guard Start: %s\n", start)

	if !analysis.Exited {
		fmt.Fprintf(w, "⚠️  The guard loops without any extra obstruction\n")
		return nil
	}

	fmt.Fprintf(w, "Distinct Cells: %d (route of %d states)\n", analysis.DistinctCells, analysis.TraceLength)
	fmt.Fprintf(w, "Loop Obstructions: %d of %d candidates\n", analysis.LoopCount, analysis.Candidates)
	for i, c := range analysis.LoopObstructions {
		if i == 5 {
			fmt.Fprintf(w, "   ... and %d more\n", len(analysis.LoopObstructions)-5)
			break
		}
		fmt.Fprintf(w, "   Obstruction: %s\n", c)
	}
	fmt.Fprintf(w, "Elapsed: %dns (workers: %d)\n", analysis.ElapsedNanos, analysis.Workers)

	if draw {
		trace, _ := engine.Simulate(obstacles, start)
		fmt.Fprintln(w)
		for _, row := range engine.RenderLayout(obstacles, &start, trace, analysis.LoopObstructions) {
			fmt.Fprintln(w, row)
		}
	}

	return nil
}
