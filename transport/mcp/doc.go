// Package mcp exposes the guard patrol to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API, and the response is rendered as text for the agent. Grids are
// drawn from the session's layout with visited cells marked X.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - patrol_state, step, run_patrol, reset_patrol, step_history
//   - analyze: distinct cells and loop-creating obstructions for a session
//   - solve_layout: the same analysis for a pasted layout
//   - list_configs, patrol_instructions, describe_cell
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
