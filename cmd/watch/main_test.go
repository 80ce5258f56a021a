package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/guardpatrol/api"
	"github.com/wricardo/mcp-training/guardpatrol/game/config"
	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
	"github.com/wricardo/mcp-training/guardpatrol/game/service"
	"github.com/wricardo/mcp-training/guardpatrol/game/session"
	hub "github.com/wricardo/mcp-training/guardpatrol/transport/websocket"
)

// syncBuffer is a bytes.Buffer safe for the watcher goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startServer(t *testing.T) (*httptest.Server, service.PatrolService, *hub.Hub) {
	t.Helper()

	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("config.NewManager: %v", err)
	}
	svc := service.NewPatrolService(session.NewManager(), configs)

	h := hub.NewHub()
	go h.Run()
	t.Cleanup(h.Stop)

	ts := httptest.NewServer(api.NewServer(svc, h))
	t.Cleanup(ts.Close)
	return ts, svc, h
}

func waitForClients(t *testing.T, h *hub.Hub, sessionID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount(sessionID) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients on %s", n, sessionID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatch_DrivesPatrolToTheEnd(t *testing.T) {
	ts, svc, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := svc.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	var out syncBuffer
	w := NewWatcher(ts.URL, &out)
	if err := w.Watch(ctx, []string{info.ID}, time.Millisecond); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	state, err := svc.GetPatrolState(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetPatrolState: %v", err)
	}
	if state.Status != engine.StatusExited {
		t.Errorf("Expected the patrol to exit, got %s", state.Status)
	}

	for _, want := range []string{"Status: patrolling", "Status: exited | Cells: 41", "....^....."} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output", want)
		}
	}
	if strings.Contains(out.String(), clearScreen) {
		t.Error("Expected no clear-screen sequence unless enabled")
	}
}

func TestWatch_FinishedSessionReturnsImmediately(t *testing.T) {
	ts, svc, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := svc.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.Run(ctx, info.ID, 0, false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var out syncBuffer
	if err := NewWatcher(ts.URL, &out).Watch(ctx, []string{info.ID}, 0); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if !strings.Contains(out.String(), "Status: exited") {
		t.Errorf("Expected the final state, got:\n%s", out.String())
	}
}

func TestWatch_UnknownSession(t *testing.T) {
	ts, _, _ := startServer(t)
	err := NewWatcher(ts.URL, &syncBuffer{}).Watch(context.Background(), []string{"nope"}, 0)
	if err == nil || !strings.Contains(err.Error(), "session not found") {
		t.Errorf("Expected session not found, got %v", err)
	}
}

func TestFollow_AppliesFeedUpdates(t *testing.T) {
	ts, svc, h := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := svc.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	w := NewWatcher(ts.URL, &syncBuffer{})
	s, err := w.load(ctx, info.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	conn, err := w.subscribe(ctx, info.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer conn.Close()
	waitForClients(t, h, info.ID, 1)

	resp, err := http.Post(ts.URL+"/api/sessions/"+info.ID+"/step", "application/json", nil)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	resp.Body.Close()

	u, err := readUpdate(conn)
	if err != nil {
		t.Fatalf("readUpdate: %v", err)
	}
	if u.Event != hub.EventStateUpdate {
		t.Fatalf("Expected %s, got %s", hub.EventStateUpdate, u.Event)
	}
	s.apply(u)

	if s.state.Moves != 1 {
		t.Errorf("Expected one move, got %d", s.state.Moves)
	}
	frame := strings.Join(s.render(), "\n")
	if !strings.Contains(frame, "....^.....\n.#..X.....") {
		t.Errorf("Expected guard above its visited start cell:\n%s", frame)
	}
}

func TestApply(t *testing.T) {
	info := &service.SessionInfo{
		ID:           "ab12",
		PatrolConfig: engine.DefaultPatrolConfig(),
		PatrolState:  &engine.PatrolState{Status: engine.StatusPatrolling},
	}
	s, err := newWatchedSession(info)
	if err != nil {
		t.Fatalf("newWatchedSession: %v", err)
	}

	s.apply(&update{Event: hub.EventStateUpdate, PatrolState: &engine.PatrolState{Status: engine.StatusPatrolling, Moves: 5}})
	s.apply(&update{Event: hub.EventStateUpdate, PatrolState: &engine.PatrolState{Status: engine.StatusPatrolling, Moves: 3}})
	if s.state.Moves != 5 {
		t.Errorf("Expected a stale state to be ignored, got %d moves", s.state.Moves)
	}

	s.apply(&update{Event: hub.EventStateUpdate, PatrolState: &engine.PatrolState{Status: engine.StatusPatrolling}})
	if s.state.Moves != 0 {
		t.Errorf("Expected a reset state to be applied, got %d moves", s.state.Moves)
	}

	data, _ := json.Marshal(engine.Analysis{LoopObstructions: []engine.Coordinate{{X: 3, Y: 6}}})
	s.apply(&update{Event: hub.EventAnalysisComplete, Data: data})
	if len(s.trials) != 1 {
		t.Errorf("Expected analysis obstructions to be kept, got %v", s.trials)
	}

	if s.finished() {
		t.Error("Expected the session to be running")
	}
	s.apply(&update{Event: hub.EventStateUpdate, PatrolState: &engine.PatrolState{Status: engine.StatusLooping, Moves: 9}})
	if !s.finished() {
		t.Error("Expected the session to be finished")
	}
}

func TestNewWatchedSession_NoConfig(t *testing.T) {
	if _, err := newWatchedSession(&service.SessionInfo{ID: "x"}); err == nil {
		t.Error("Expected an error for a session without configuration")
	}
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws?session=ab12"},
		{"https://patrol.example.com/", "wss://patrol.example.com/ws?session=ab12"},
		{"http://host/prefix", "ws://host/prefix/ws?session=ab12"},
	}

	for _, tt := range tests {
		got, err := NewWatcher(tt.base, &syncBuffer{}).wsURL("ab12")
		if err != nil {
			t.Fatalf("wsURL(%s): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("wsURL(%s) = %s, want %s", tt.base, got, tt.want)
		}
	}
}
