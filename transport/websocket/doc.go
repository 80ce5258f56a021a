// Package websocket pushes live patrol updates to browser clients.
//
// Clients connect to /ws?session=<id> and receive JSON messages for that
// session only:
//
//	{"session_id": "ab12", "event": "state_update", "patrol_state": {...}}
//	{"session_id": "ab12", "event": "analysis_complete", "data": {...}}
//
// The Hub owns all client bookkeeping on the goroutine running Run.
// Broadcasts are queued without blocking the caller, so HTTP handlers can
// publish after every step. Clients that fall behind are disconnected.
package websocket
