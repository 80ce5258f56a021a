package mcp

import (
	"fmt"
	"strings"

	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
	"github.com/wricardo/mcp-training/guardpatrol/game/service"
)

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	result := fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatPatrolState(session.PatrolConfig, session.PatrolState))
	if session.Analysis != nil {
		result += "\n\n" + formatAnalysis(session.Analysis)
	}
	return result
}

// formatPatrolState prints the counters and, when config is known, the grid
// with visited cells marked
func formatPatrolState(config *engine.PatrolConfig, state *engine.PatrolState) string {
	if state == nil {
		return "No patrol state available"
	}

	var result strings.Builder

	fmt.Fprintf(&result, "Guard: %s | Status: %s | Cells: %d | Moves: %d | Turns: %d | Steps: %d\n",
		state.Guard, state.Status, state.DistinctCells, state.Moves, state.Turns, state.TotalSteps)

	if config != nil {
		if obstacles, _, err := engine.ParseLayout(config.Layout); err == nil {
			guard := state.Guard
			result.WriteString("\n")
			for _, row := range engine.RenderLayout(obstacles, &guard, state.Visited, nil) {
				result.WriteString(row + "\n")
			}
		}
	}

	switch state.Status {
	case engine.StatusExited:
		result.WriteString("\nGUARD LEFT THE GRID")
	case engine.StatusLooping:
		result.WriteString("\nGUARD IS LOOPING")
		if state.RepeatedState != nil {
			fmt.Fprintf(&result, " (repeated %s)", *state.RepeatedState)
		}
	}

	if state.Message != "" {
		fmt.Fprintf(&result, "\nMessage: %s", state.Message)
	}

	return result.String()
}

func formatStepResult(result *service.StepResult) string {
	var response strings.Builder
	if result.Advanced {
		response.WriteString("✓ Guard advanced\n")
	} else {
		response.WriteString("■ Patrol finished\n")
	}

	if result.Step != nil {
		response.WriteString(formatStepLine(*result.Step) + "\n")
	}

	if len(result.Events) > 0 {
		response.WriteString("Events:\n")
		for _, event := range result.Events {
			fmt.Fprintf(&response, "- %s: %s\n", event.Type, event.Message)
		}
	}

	response.WriteString("\n" + formatPatrolState(nil, result.PatrolState))
	return response.String()
}

func formatRunResult(sessionID string, result *service.RunResult) string {
	var response strings.Builder

	fmt.Fprintf(&response, "Run on session %s: %d transitions applied", sessionID, result.StepsApplied)
	if result.RequestedLimit > 0 {
		fmt.Fprintf(&response, " (requested %d)", result.RequestedLimit)
	}
	response.WriteString("\n")
	if result.Truncated {
		fmt.Fprintf(&response, "Request truncated to %d transitions\n", result.Limit)
	}
	fmt.Fprintf(&response, "Stopped: %s\n", result.StopReasonCode)
	fmt.Fprintf(&response, "Guard: %s → %s (%d moves, %d turns)\n",
		result.StartGuard, result.EndGuard, result.Moves, result.Turns)

	if result.PatrolState != nil {
		for _, entry := range recentSteps(result.PatrolState, 5) {
			response.WriteString("  " + formatStepLine(entry) + "\n")
		}
	}

	if len(result.Events) > 0 {
		response.WriteString("Events:\n")
		for _, event := range result.Events {
			fmt.Fprintf(&response, "- %s: %s\n", event.Type, event.Message)
		}
	}

	response.WriteString("\n" + formatPatrolState(nil, result.PatrolState))
	return response.String()
}

// recentSteps returns up to the last n history entries
func recentSteps(state *engine.PatrolState, n int) []engine.StepHistoryEntry {
	if len(state.History) <= n {
		return state.History
	}
	return state.History[len(state.History)-n:]
}

func formatStepLine(entry engine.StepHistoryEntry) string {
	switch entry.Action {
	case "move":
		return fmt.Sprintf("#%d move %s → %s", entry.StepNumber, entry.From.Coordinate, entry.To.Coordinate)
	case "turn":
		return fmt.Sprintf("#%d turn at %s: %s → %s", entry.StepNumber, entry.From.Coordinate, entry.From.Direction, entry.To.Direction)
	default:
		return fmt.Sprintf("#%d %s at %s", entry.StepNumber, entry.Action, entry.From)
	}
}

func formatHistory(history *service.HistoryResponse) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Step History (page %d/%d, %d total):\n\n",
		history.Page, history.TotalPages, history.TotalSteps)

	for _, entry := range history.Steps {
		result.WriteString(formatStepLine(entry) + "\n")
	}

	if history.HasPrevious {
		result.WriteString("\n← previous page available")
	}
	if history.HasNext {
		result.WriteString("\n→ next page available")
	}

	return result.String()
}

func formatAnalysis(analysis *engine.Analysis) string {
	if analysis == nil {
		return "No analysis available"
	}
	if !analysis.Exited {
		return "The unobstructed patrol loops forever: the guard never leaves the grid."
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Distinct cells visited: %d (trace of %d states)\n", analysis.DistinctCells, analysis.TraceLength)
	fmt.Fprintf(&result, "Loop-creating obstructions: %d (of %d candidates", analysis.LoopCount, analysis.Candidates)
	if analysis.Workers > 1 {
		fmt.Fprintf(&result, ", %d workers", analysis.Workers)
	}
	result.WriteString(")\n")

	if len(analysis.LoopObstructions) > 0 {
		cells := make([]string, len(analysis.LoopObstructions))
		for i, c := range analysis.LoopObstructions {
			cells[i] = c.String()
		}
		fmt.Fprintf(&result, "Cells: %s\n", strings.Join(cells, " "))
	}
	fmt.Fprintf(&result, "Elapsed: %dns", analysis.ElapsedNanos)

	return result.String()
}
