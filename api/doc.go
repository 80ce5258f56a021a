// Package api provides the HTTP REST API for guard patrols.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"config_name": "classic"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Session details, layout and cached analysis
//   - DELETE /api/sessions/{id} - Delete a session
//
// Patrol:
//   - GET /api/sessions/{id}/state - Current patrol state
//   - POST /api/sessions/{id}/step - One transition ({"reset": false})
//   - POST /api/sessions/{id}/run - Many transitions ({"limit": 0, "reset": false})
//   - POST /api/sessions/{id}/reset - Restart from the initial guard state
//   - GET /api/sessions/{id}/history - Paginated transitions (?page&limit&order)
//   - GET /api/sessions/{id}/analysis - Distinct cells and loop obstructions
//
// Layouts:
//   - POST /api/solve - Analyse an ad-hoc layout ({"layout": [...]} or {"grid": "..."})
//   - POST /api/route - Simulate an ad-hoc layout's unobstructed patrol only
//   - GET /api/configs, POST /api/configs, GET /api/configs/{name}
//
// Other:
//   - GET /api/health
//   - GET /ws?session={id} - WebSocket push of state_update and analysis_complete
//
// Errors are returned as {"error": "..."}. Unknown sessions and configs map to
// 404, invalid layouts and configs to 400.
package api
