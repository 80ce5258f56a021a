// Command patrol solves a guard patrol puzzle read from a file.
//
// Part 1 prints how many distinct cells the guard covers before leaving the
// grid. Part 2 prints how many cells would trap the guard in a loop if a
// single obstacle were placed there. Both print the computation time in
// nanoseconds.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
)

// ErrGuardLoops is returned when the unobstructed patrol never leaves the grid
var ErrGuardLoops = errors.New("the guard loops without leaving the grid")

// options holds the parsed command line
type options struct {
	inputFile string
	part      int
	workers   int
	debug     bool
	render    bool
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "patrol",
		Usage: "count the cells a guard patrols and the obstructions that trap it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input-file",
				Aliases: []string{"i"},
				Value:   "puzzleInput",
				Usage:   "path to the puzzle input",
			},
			&cli.IntFlag{
				Name:    "part",
				Aliases: []string{"p"},
				Value:   1,
				Usage:   "part to execute, 1 or 2",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: 0,
				Usage: fmt.Sprintf("parallel search workers for part 2 (0-%d, 0 or 1 is sequential)", engine.MaxWorkers),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log parsing and search details",
			},
			&cli.BoolFlag{
				Name:  "render",
				Usage: "draw the route (and part 2 obstructions) after the result",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, out, options{
				inputFile: cmd.String("input-file"),
				part:      cmd.Int("part"),
				workers:   cmd.Int("workers"),
				debug:     cmd.Bool("debug"),
				render:    cmd.Bool("render"),
			})
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatalf("patrol: %v", err)
	}
}

// run solves the selected part and writes the result to out
func run(ctx context.Context, out io.Writer, opts options) error {
	if opts.part != 1 && opts.part != 2 {
		return fmt.Errorf("invalid part %d, part must be 1 or 2", opts.part)
	}
	if opts.workers < 0 || opts.workers > engine.MaxWorkers {
		return fmt.Errorf("workers must be between 0 and %d, got %d", engine.MaxWorkers, opts.workers)
	}

	logger := log.New(io.Discard, "[patrol] ", log.LstdFlags|log.Lmicroseconds)
	if opts.debug {
		logger.SetOutput(os.Stderr)
	}

	f, err := os.Open(opts.inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	rows, err := engine.ReadLayout(f)
	if err != nil {
		return err
	}

	obstacles, start, err := engine.ParseLayout(rows)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", opts.inputFile, err)
	}
	logger.Printf("parsed %dx%d grid with %d obstacles, guard at %s",
		obstacles.Width(), obstacles.Height(), obstacles.Len(), start)

	began := time.Now()
	trace, exited := engine.Simulate(obstacles, start)
	if !exited {
		return ErrGuardLoops
	}
	logger.Printf("route has %d states", len(trace))

	var (
		result int
		found  []engine.Coordinate
	)
	switch opts.part {
	case 1:
		result = engine.DistinctCoordinates(trace)
	case 2:
		logger.Printf("searching %d candidate cells with %d workers",
			engine.CountObstructionCandidates(obstacles, trace), opts.workers)
		if opts.workers > 1 {
			found, err = engine.FindLoopObstructionsParallel(ctx, obstacles, trace, opts.workers)
			if err != nil {
				return err
			}
		} else {
			found = engine.FindLoopObstructions(obstacles, trace)
		}
		for _, c := range found {
			logger.Printf("obstruction at %s traps the guard", c)
		}
		result = len(found)
	}
	elapsed := time.Since(began)

	fmt.Fprintf(out, "part %d result: %d\n", opts.part, result)
	fmt.Fprintf(out, "computation time elapsed (ns): %d\n", elapsed.Nanoseconds())

	if opts.render {
		fmt.Fprintln(out)
		for _, row := range engine.RenderLayout(obstacles, &start, trace, found) {
			fmt.Fprintln(out, row)
		}
	}

	return nil
}
