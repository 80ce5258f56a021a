// Package engine provides the core patrol logic for the Guard Patrol server.
//
// The engine package implements the patrol mechanics including:
//   - Grid coordinates, headings and obstacle maps
//   - The guard state machine: step forward, turn right on collision
//   - Loop detection over (position, heading) states
//   - Exhaustive search for single obstructions that trap the guard in a loop
//   - Layout parsing and configuration loading and validation
//
// Core Types:
//
// Simulate drives a guard from an initial AgentState across an ObstacleMap
// until it leaves the grid or revisits a state. FindLoopObstructions reuses
// the resulting trace to find every cell where one extra obstacle forces a
// loop. The Engine interface, implemented by PatrolEngine, exposes the same
// state machine one transition at a time for interactive sessions.
//
// Usage:
//
//	obstacles, start, err := engine.ParseLayout(rows)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	trace, exited := engine.Simulate(obstacles, start)
//	if !exited {
//		log.Fatal("guard is already looping")
//	}
//
//	cells := engine.DistinctCoordinates(trace)
//	loops := engine.FindLoopObstructions(obstacles, trace)
//
// Patrol Rules:
//
// The guard walks straight ahead. When the cell in front of it holds an
// obstacle it turns 90 degrees to the right without moving. The patrol ends
// when the guard steps off the grid, or when it reaches a position and
// heading it has already occupied, which proves it will loop forever.
package engine
