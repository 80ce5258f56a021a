package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
	"github.com/wricardo/mcp-training/guardpatrol/game/service"
	"golang.org/x/sync/errgroup"
)

// Verifier replays a session's patrol against the server and brute-forces
// the loop-creating obstructions of its layout
type Verifier struct {
	client        *Client
	workers       int
	maxCandidates int
	keepSession   bool
	logger        *log.Logger
}

// Report is the outcome of one verification
type Report struct {
	SessionID        string
	Config           string
	Steps            int
	Looping          bool
	DistinctCells    int
	Candidates       int
	Tried            int
	LoopObstructions []engine.Coordinate
	Server           *engine.Analysis
	Mismatches       []string
}

func (r *Report) mismatch(format string, args ...interface{}) {
	r.Mismatches = append(r.Mismatches, fmt.Sprintf(format, args...))
}

// Truncated reports whether only part of the candidates were tried
func (r *Report) Truncated() bool {
	return r.Tried < r.Candidates
}

// Verify checks one session. With an empty sessionID a new session is created
// for configName; otherwise the existing session is reset and replayed.
func (v *Verifier) Verify(ctx context.Context, configName, sessionID string) (*Report, error) {
	info, err := v.open(ctx, configName, sessionID)
	if err != nil {
		return nil, err
	}
	if !v.keepSession {
		defer func() {
			if err := v.client.DeleteSession(context.Background()); err != nil {
				v.logger.Printf("failed to delete session %s: %v", info.ID, err)
			}
		}()
	}

	if info.PatrolConfig == nil {
		return nil, fmt.Errorf("session %s has no configuration", info.ID)
	}
	layout := info.PatrolConfig.Layout
	obstacles, start, err := engine.ParseLayout(layout)
	if err != nil {
		return nil, fmt.Errorf("session %s layout: %w", info.ID, err)
	}

	report := &Report{SessionID: info.ID, Config: info.PatrolConfig.Name}
	v.logger.Printf("session %s: %dx%d grid, guard at %s", info.ID, obstacles.Width(), obstacles.Height(), start)

	route, state, err := v.walk(ctx, obstacles, report)
	if err != nil {
		return nil, err
	}

	report.Server, err = v.client.Analysis(ctx)
	if err != nil {
		return nil, err
	}

	if state.Status == engine.StatusLooping {
		report.Looping = true
		if report.Server.Exited {
			report.mismatch("walked patrol loops but the server analysis says the guard exits")
		}
		return report, nil
	}

	cells := distinctCells(route)
	report.DistinctCells = len(cells)
	if state.DistinctCells != report.DistinctCells {
		report.mismatch("patrol state counts %d cells, walked route covers %d", state.DistinctCells, report.DistinctCells)
	}
	if report.Server.DistinctCells != report.DistinctCells {
		report.mismatch("analysis counts %d cells, walked route covers %d", report.Server.DistinctCells, report.DistinctCells)
	}

	candidates := make([]engine.Coordinate, 0, len(cells))
	for _, c := range cells {
		if c != start.Coordinate {
			candidates = append(candidates, c)
		}
	}
	report.Candidates = len(candidates)
	if report.Server.Candidates != report.Candidates {
		report.mismatch("analysis reports %d candidates, walked route has %d", report.Server.Candidates, report.Candidates)
	}
	if v.maxCandidates > 0 && len(candidates) > v.maxCandidates {
		candidates = candidates[:v.maxCandidates]
	}
	report.Tried = len(candidates)

	report.LoopObstructions, err = v.tryCandidates(ctx, layout, candidates)
	if err != nil {
		return nil, err
	}

	compareObstructions(report, candidates)
	return report, nil
}

// open creates a session or resumes and resets an existing one
func (v *Verifier) open(ctx context.Context, configName, sessionID string) (*service.SessionInfo, error) {
	if sessionID == "" {
		info, err := v.client.CreateSession(ctx, configName)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		log.Printf("Session created: %s", info.ID)
		return info, nil
	}

	v.client.sessionID = sessionID
	info, err := v.client.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume session %s: %w", sessionID, err)
	}
	if _, err := v.client.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset session %s: %w", sessionID, err)
	}
	log.Printf("Session resumed: %s", info.ID)
	return info, nil
}

// walk steps the patrol to its end, checking each transition against the
// layout, and returns the states the guard occupied
func (v *Verifier) walk(ctx context.Context, obstacles *engine.ObstacleMap, report *Report) ([]engine.AgentState, *engine.PatrolState, error) {
	var route []engine.AgentState

	// one more than the number of distinct states
	limit := obstacles.Width()*obstacles.Height()*4 + 1
	for i := 0; i < limit; i++ {
		result, err := v.client.Step(ctx)
		if err != nil {
			return nil, nil, err
		}

		if st := result.Step; st != nil && st.Action != "loop" {
			action, to := expectedTransition(obstacles, st.From)
			if st.Action != action || st.To != to {
				report.mismatch("step %d from %s: server did %s to %s, expected %s to %s",
					st.StepNumber, st.From, st.Action, st.To, action, to)
			}
			route = append(route, st.From)
		}

		if result.Finished {
			report.Steps = len(route)
			v.logger.Printf("patrol finished after %d steps: %s", report.Steps, result.PatrolState.Status)
			return route, result.PatrolState, nil
		}
	}
	return nil, nil, fmt.Errorf("patrol did not finish after %d steps", limit)
}

// expectedTransition applies the patrol rule to from
func expectedTransition(obstacles *engine.ObstacleMap, from engine.AgentState) (string, engine.AgentState) {
	obstacle, inBounds := obstacles.IsObstacle(from.Ahead())
	switch {
	case !inBounds:
		return "exit", from
	case obstacle:
		return "turn", from.EncounterObstacle()
	default:
		return "move", from.Step()
	}
}

// distinctCells returns the cells of route in row-major order
func distinctCells(route []engine.AgentState) []engine.Coordinate {
	seen := make(map[engine.Coordinate]struct{}, len(route))
	var cells []engine.Coordinate
	for _, s := range route {
		if _, ok := seen[s.Coordinate]; ok {
			continue
		}
		seen[s.Coordinate] = struct{}{}
		cells = append(cells, s.Coordinate)
	}
	sortRowMajor(cells)
	return cells
}

func sortRowMajor(cells []engine.Coordinate) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
}

// withObstacle returns a copy of layout with an obstacle at c
func withObstacle(layout []string, c engine.Coordinate) []string {
	rows := append([]string(nil), layout...)
	row := []byte(rows[c.Y])
	row[c.X] = engine.ObstacleGlyph
	rows[c.Y] = string(row)
	return rows
}

// tryCandidates asks the server for the route of every candidate layout and
// returns the candidates whose route loops
func (v *Verifier) tryCandidates(ctx context.Context, layout []string, candidates []engine.Coordinate) ([]engine.Coordinate, error) {
	var (
		mu    sync.Mutex
		found = []engine.Coordinate{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(v.workers, 1))

	for _, c := range candidates {
		g.Go(func() error {
			route, err := v.client.Route(gctx, withObstacle(layout, c))
			if err != nil {
				return fmt.Errorf("candidate %s: %w", c, err)
			}
			if route.Exited {
				return nil
			}
			v.logger.Printf("obstruction at %s traps the guard", c)
			mu.Lock()
			found = append(found, c)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	sortRowMajor(found)
	return found, nil
}

// compareObstructions records where the brute-forced obstructions disagree
// with the server analysis. When only some candidates were tried, only those
// are compared.
func compareObstructions(report *Report, tried []engine.Coordinate) {
	want := report.Server.LoopObstructions
	if report.Truncated() {
		triedSet := make(map[engine.Coordinate]struct{}, len(tried))
		for _, c := range tried {
			triedSet[c] = struct{}{}
		}
		var subset []engine.Coordinate
		for _, c := range want {
			if _, ok := triedSet[c]; ok {
				subset = append(subset, c)
			}
		}
		want = subset
	}

	if diff := cmp.Diff(want, report.LoopObstructions, cmpopts.EquateEmpty()); diff != "" {
		report.mismatch("loop obstructions differ (-server +brute force):\n%s", diff)
	}
}

// Print writes the report in the format of the analyze command
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Session: %s\n", r.SessionID)
	fmt.Fprintf(w, "Config: %s\n", r.Config)
	fmt.Fprintf(w, "Steps Walked: %d\n", r.Steps)

	if r.Looping {
		fmt.Fprintln(w, "The guard loops without any extra obstruction")
	} else {
		fmt.Fprintf(w, "Distinct Cells: %d\n", r.DistinctCells)
		fmt.Fprintf(w, "Candidates Tried: %d of %d\n", r.Tried, r.Candidates)
		fmt.Fprintf(w, "Loop Obstructions: %d\n", len(r.LoopObstructions))
		for _, c := range r.LoopObstructions {
			fmt.Fprintf(w, "   Obstruction: %s\n", c)
		}
	}

	if len(r.Mismatches) == 0 {
		fmt.Fprintln(w, "✅ Server agrees with the brute force")
		return
	}
	fmt.Fprintf(w, "❌ %d mismatches\n", len(r.Mismatches))
	for _, m := range r.Mismatches {
		fmt.Fprintf(w, "   %s\n", m)
	}
}
