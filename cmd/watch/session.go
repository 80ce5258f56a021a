package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
	"github.com/wricardo/mcp-training/guardpatrol/game/service"
	hub "github.com/wricardo/mcp-training/guardpatrol/transport/websocket"
)

// update is one message from the session feed. Data stays raw until the
// event says what it holds.
type update struct {
	SessionID   string              `json:"session_id"`
	Event       string              `json:"event"`
	PatrolState *engine.PatrolState `json:"patrol_state,omitempty"`
	Data        json.RawMessage     `json:"data,omitempty"`
}

// watchedSession is the local view of one session. Fields are guarded by
// the Watcher's mutex.
type watchedSession struct {
	id        string
	name      string
	obstacles *engine.ObstacleMap
	state     *engine.PatrolState
	trials    []engine.Coordinate

	done     chan struct{}
	doneOnce sync.Once
}

func newWatchedSession(info *service.SessionInfo) (*watchedSession, error) {
	if info.PatrolConfig == nil {
		return nil, fmt.Errorf("session %s has no configuration", info.ID)
	}
	obstacles, _, err := engine.ParseLayout(info.PatrolConfig.Layout)
	if err != nil {
		return nil, fmt.Errorf("session %s layout: %w", info.ID, err)
	}

	s := &watchedSession{
		id:        info.ID,
		name:      info.PatrolConfig.Name,
		obstacles: obstacles,
		done:      make(chan struct{}),
	}
	if info.Analysis != nil {
		s.trials = info.Analysis.LoopObstructions
	}
	s.apply(&update{SessionID: info.ID, Event: hub.EventStateUpdate, PatrolState: info.PatrolState})
	return s, nil
}

// progress orders states of one patrol; a reset starts again from zero
func progress(state *engine.PatrolState) int {
	n := state.Moves + state.Turns
	if state.Status != engine.StatusPatrolling {
		n++
	}
	return n
}

// apply folds an update into the session. Stale states that arrive after a
// newer one are ignored, except for a fresh patrol after a reset.
func (s *watchedSession) apply(u *update) {
	switch u.Event {
	case hub.EventStateUpdate:
		next := u.PatrolState
		if next == nil {
			return
		}
		if s.state != nil && progress(next) < progress(s.state) && progress(next) > 0 {
			return
		}
		s.state = next
		if next.Status != engine.StatusPatrolling {
			s.doneOnce.Do(func() { close(s.done) })
		}

	case hub.EventAnalysisComplete:
		var analysis engine.Analysis
		if err := json.Unmarshal(u.Data, &analysis); err == nil {
			s.trials = analysis.LoopObstructions
		}
	}
}

func (s *watchedSession) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// render draws the header, the grid and the latest message
func (s *watchedSession) render() []string {
	if s.state == nil {
		return []string{fmt.Sprintf("Session %s: waiting for state", s.id)}
	}

	st := s.state
	lines := []string{
		fmt.Sprintf("Session %s (%s) | Status: %s | Cells: %d | Moves: %d | Turns: %d",
			s.id, s.name, st.Status, st.DistinctCells, st.Moves, st.Turns),
	}

	var guard *engine.AgentState
	if st.Status != engine.StatusExited {
		guard = &st.Guard
	}
	lines = append(lines, engine.RenderLayout(s.obstacles, guard, st.Visited, s.trials)...)
	if st.Message != "" {
		lines = append(lines, st.Message)
	}
	return lines
}

// readUpdate reads and decodes the next feed message
func readUpdate(conn *websocket.Conn) (*update, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var u update
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	return &u, nil
}

// wsURL maps the server URL to the session feed URL
func (w *Watcher) wsURL(sessionID string) (string, error) {
	u, err := url.Parse(w.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"session": {sessionID}}.Encode()
	return u.String(), nil
}

func (w *Watcher) subscribe(ctx context.Context, sessionID string) (*websocket.Conn, error) {
	target, err := w.wsURL(sessionID)
	if err != nil {
		return nil, err
	}
	conn, _, err := w.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// call performs a REST request and decodes a 2xx JSON response into out
func (w *Watcher) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (w *Watcher) load(ctx context.Context, sessionID string) (*watchedSession, error) {
	var info service.SessionInfo
	if err := w.call(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID), nil, &info); err != nil {
		return nil, err
	}
	return newWatchedSession(&info)
}

func (w *Watcher) create(ctx context.Context, configName string) (string, error) {
	body := map[string]string{}
	if configName != "" {
		body["config_name"] = configName
	}
	var info service.SessionInfo
	if err := w.call(ctx, http.MethodPost, "/api/sessions", body, &info); err != nil {
		return "", err
	}
	return info.ID, nil
}

func (w *Watcher) step(ctx context.Context, sessionID string) (*engine.PatrolState, error) {
	var result service.StepResult
	if err := w.call(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/step", nil, &result); err != nil {
		return nil, err
	}
	return result.PatrolState, nil
}
