package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/wricardo/mcp-training/guardpatrol/game/config"
	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
	"github.com/wricardo/mcp-training/guardpatrol/game/service"
	"github.com/wricardo/mcp-training/guardpatrol/game/session"
	"github.com/wricardo/mcp-training/guardpatrol/transport/websocket"
)

// MockPatrolService implements service.PatrolService for testing
type MockPatrolService struct {
	// Session Management
	CreateSessionFunc func(ctx context.Context, configName string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	// Patrol Operations
	StepFunc  func(ctx context.Context, sessionID string, reset bool) (*service.StepResult, error)
	RunFunc   func(ctx context.Context, sessionID string, limit int, reset bool) (*service.RunResult, error)
	ResetFunc func(ctx context.Context, sessionID string) (*engine.PatrolState, error)

	// Patrol State
	GetPatrolStateFunc func(ctx context.Context, sessionID string) (*engine.PatrolState, error)
	GetStepHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)

	// Analysis
	AnalyzeFunc func(ctx context.Context, sessionID string) (*engine.Analysis, error)
	SolveFunc   func(ctx context.Context, layout []string, workers int) (*service.SolveResult, error)
	RouteFunc   func(ctx context.Context, layout []string) (*service.RouteResult, error)

	// Configuration
	ListConfigsFunc func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc  func(ctx context.Context, configName string) (*engine.PatrolConfig, error)
	SaveConfigFunc  func(ctx context.Context, configName string, config *engine.PatrolConfig) error
}

func (m *MockPatrolService) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, configName)
	}
	return &service.SessionInfo{
		ID:         "test",
		ConfigName: configName,
		CreatedAt:  time.Now(),
	}, nil
}

func (m *MockPatrolService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{
		ID:         sessionID,
		ConfigName: "test-config",
		CreatedAt:  time.Now(),
	}, nil
}

func (m *MockPatrolService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockPatrolService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockPatrolService) Step(ctx context.Context, sessionID string, reset bool) (*service.StepResult, error) {
	if m.StepFunc != nil {
		return m.StepFunc(ctx, sessionID, reset)
	}
	return &service.StepResult{
		Advanced:    true,
		PatrolState: &engine.PatrolState{Status: engine.StatusPatrolling},
	}, nil
}

func (m *MockPatrolService) Run(ctx context.Context, sessionID string, limit int, reset bool) (*service.RunResult, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, sessionID, limit, reset)
	}
	return &service.RunResult{
		StopReasonCode: "limit",
		PatrolState:    &engine.PatrolState{Status: engine.StatusPatrolling},
	}, nil
}

func (m *MockPatrolService) Reset(ctx context.Context, sessionID string) (*engine.PatrolState, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, sessionID)
	}
	return &engine.PatrolState{Status: engine.StatusPatrolling}, nil
}

func (m *MockPatrolService) GetPatrolState(ctx context.Context, sessionID string) (*engine.PatrolState, error) {
	if m.GetPatrolStateFunc != nil {
		return m.GetPatrolStateFunc(ctx, sessionID)
	}
	return &engine.PatrolState{Status: engine.StatusPatrolling}, nil
}

func (m *MockPatrolService) GetStepHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetStepHistoryFunc != nil {
		return m.GetStepHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{
		Steps: []engine.StepHistoryEntry{},
		Page:  opts.Page,
	}, nil
}

func (m *MockPatrolService) Analyze(ctx context.Context, sessionID string) (*engine.Analysis, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, sessionID)
	}
	return &engine.Analysis{LoopObstructions: []engine.Coordinate{}}, nil
}

func (m *MockPatrolService) Solve(ctx context.Context, layout []string, workers int) (*service.SolveResult, error) {
	if m.SolveFunc != nil {
		return m.SolveFunc(ctx, layout, workers)
	}
	return &service.SolveResult{Analysis: &engine.Analysis{}}, nil
}

func (m *MockPatrolService) Route(ctx context.Context, layout []string) (*service.RouteResult, error) {
	if m.RouteFunc != nil {
		return m.RouteFunc(ctx, layout)
	}
	return &service.RouteResult{}, nil
}

func (m *MockPatrolService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockPatrolService) LoadConfig(ctx context.Context, configName string) (*engine.PatrolConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, configName)
	}
	return &engine.PatrolConfig{
		Name:        configName,
		Description: "Test config",
	}, nil
}

func (m *MockPatrolService) SaveConfig(ctx context.Context, configName string, config *engine.PatrolConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, configName, config)
	}
	return nil
}

// Test helpers
func setupTestServer(t *testing.T, svc service.PatrolService) *Server {
	t.Helper()
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return NewServer(svc, hub)
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v (body %q)", err, w.Body.String())
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, contains string) {
	t.Helper()
	var resp map[string]string
	parseResponse(t, w, &resp)
	if !strings.Contains(resp["error"], contains) {
		t.Errorf("Expected error containing %q, got %q", contains, resp["error"])
	}
}

func notFound(id string) error {
	return fmt.Errorf("session %s: %w", id, service.ErrSessionNotFound)
}

// Session Management Tests

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*MockPatrolService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:        "Create session with default config",
			requestBody: nil,
			setupMock: func(m *MockPatrolService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != "" {
						t.Errorf("Expected empty config name, got %s", configName)
					}
					return &service.SessionInfo{ID: "ab12", ConfigName: "classic"}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ID != "ab12" {
					t.Errorf("Expected session ID 'ab12', got %s", resp.ID)
				}
			},
		},
		{
			name:        "Create session with config_name",
			requestBody: map[string]string{"config_name": "looping"},
			setupMock: func(m *MockPatrolService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != "looping" {
						t.Errorf("Expected config name 'looping', got %s", configName)
					}
					return &service.SessionInfo{ID: "cd34", ConfigName: configName}, nil
				}
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "config_id wins over config_name",
			requestBody: map[string]string{"config_id": "classic", "config_name": "looping"},
			setupMock: func(m *MockPatrolService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != "classic" {
						t.Errorf("Expected config id 'classic', got %s", configName)
					}
					return &service.SessionInfo{ID: "ef56", ConfigName: configName}, nil
				}
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "Unknown config",
			requestBody: map[string]string{"config_name": "nope"},
			setupMock: func(m *MockPatrolService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("%w: nope", service.ErrConfigNotFound)
				}
			},
			expectedStatus: http.StatusNotFound,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				expectError(t, w, "configuration not found")
			},
		},
		{
			name:        "Handle service error",
			requestBody: nil,
			setupMock: func(m *MockPatrolService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("service error")
				}
			},
			expectedStatus: http.StatusInternalServerError,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				expectError(t, w, "service error")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockPatrolService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/sessions", tt.requestBody))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	base := time.Date(2024, 12, 6, 0, 0, 0, 0, time.UTC)
	sessions := func() []*service.SessionInfo {
		return []*service.SessionInfo{
			{ID: "aaaa", CreatedAt: base, LastAccessedAt: base.Add(3 * time.Hour)},
			{ID: "bbbb", CreatedAt: base.Add(time.Hour), LastAccessedAt: base.Add(time.Hour)},
			{ID: "cccc", CreatedAt: base.Add(2 * time.Hour), LastAccessedAt: base.Add(2 * time.Hour)},
		}
	}

	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantTotal float64
	}{
		{name: "default sorts by access, newest first", query: "", wantIDs: []string{"aaaa", "cccc", "bbbb"}, wantTotal: 3},
		{name: "created ascending", query: "?sort=created&order=asc", wantIDs: []string{"aaaa", "bbbb", "cccc"}, wantTotal: 3},
		{name: "limit", query: "?sort=created&limit=2", wantIDs: []string{"cccc", "bbbb"}, wantTotal: 3},
		{name: "invalid limit ignored", query: "?limit=abc", wantIDs: []string{"aaaa", "cccc", "bbbb"}, wantTotal: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockPatrolService{
				ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
					return sessions(), nil
				},
			}
			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var resp struct {
				Count    int                   `json:"count"`
				Total    float64               `json:"total"`
				Sessions []service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)

			var ids []string
			for _, s := range resp.Sessions {
				ids = append(ids, s.ID)
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("session order mismatch (-want +got):\n%s", diff)
			}
			if resp.Count != len(tt.wantIDs) || resp.Total != tt.wantTotal {
				t.Errorf("count/total = %d/%v, want %d/%v", resp.Count, resp.Total, len(tt.wantIDs), tt.wantTotal)
			}
		})
	}

	t.Run("service error", func(t *testing.T) {
		mockService := &MockPatrolService{
			ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
				return nil, fmt.Errorf("disk error")
			},
		}
		server := setupTestServer(t, mockService)
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", "/api/sessions", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", w.Code)
		}
		expectError(t, w, "disk error")
	})
}

func TestGetAndDeleteSession(t *testing.T) {
	mockService := &MockPatrolService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			if sessionID != "ab12" {
				return nil, notFound(sessionID)
			}
			return &service.SessionInfo{ID: sessionID, ConfigName: "classic"}, nil
		},
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			if sessionID != "ab12" {
				return notFound(sessionID)
			}
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	tests := []struct {
		method         string
		path           string
		expectedStatus int
	}{
		{"GET", "/api/sessions/ab12", http.StatusOK},
		{"GET", "/api/sessions/zzzz", http.StatusNotFound},
		{"DELETE", "/api/sessions/ab12", http.StatusOK},
		{"DELETE", "/api/sessions/zzzz", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest(tt.method, tt.path, nil))
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusNotFound {
				expectError(t, w, "session not found")
			}
		})
	}
}

// Patrol Operation Tests

func TestStep(t *testing.T) {
	from := engine.NewAgentState(engine.Coordinate{X: 4, Y: 6}, engine.Up)

	tests := []struct {
		name           string
		requestBody    interface{}
		wantReset      bool
		stepErr        error
		expectedStatus int
	}{
		{name: "step without body", requestBody: nil, expectedStatus: http.StatusOK},
		{name: "step with reset", requestBody: map[string]bool{"reset": true}, wantReset: true, expectedStatus: http.StatusOK},
		{name: "unknown session", requestBody: nil, stepErr: notFound("ab12"), expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockPatrolService{
				StepFunc: func(ctx context.Context, sessionID string, reset bool) (*service.StepResult, error) {
					if tt.stepErr != nil {
						return nil, tt.stepErr
					}
					if reset != tt.wantReset {
						t.Errorf("reset = %v, want %v", reset, tt.wantReset)
					}
					return &service.StepResult{
						Advanced:    true,
						PatrolState: &engine.PatrolState{Guard: from.Step(), Status: engine.StatusPatrolling, Moves: 1},
						Step:        &engine.StepHistoryEntry{Action: "move", From: from, To: from.Step(), StepNumber: 1},
					}, nil
				},
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/step", tt.requestBody))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if w.Code != http.StatusOK {
				return
			}

			var resp service.StepResult
			parseResponse(t, w, &resp)
			if resp.Step == nil || resp.Step.To.Coordinate != (engine.Coordinate{X: 4, Y: 5}) {
				t.Errorf("Unexpected step in response: %+v", resp.Step)
			}
		})
	}
}

func TestStep_InvalidBody(t *testing.T) {
	server := setupTestServer(t, &MockPatrolService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/sessions/ab12/step", strings.NewReader("{not json"))
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestRun(t *testing.T) {
	var gotLimit int
	var gotReset bool
	mockService := &MockPatrolService{
		RunFunc: func(ctx context.Context, sessionID string, limit int, reset bool) (*service.RunResult, error) {
			gotLimit, gotReset = limit, reset
			return &service.RunResult{
				StepsApplied:   limit,
				RequestedLimit: limit,
				StopReasonCode: "limit",
				PatrolState:    &engine.PatrolState{Status: engine.StatusPatrolling, DistinctCells: 6},
			}, nil
		},
	}

	server := setupTestServer(t, mockService)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/run", map[string]interface{}{"limit": 7, "reset": true}))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotLimit != 7 || !gotReset {
		t.Errorf("service got limit=%d reset=%v", gotLimit, gotReset)
	}

	var resp service.RunResult
	parseResponse(t, w, &resp)
	if resp.StepsApplied != 7 || resp.StopReasonCode != "limit" {
		t.Errorf("Unexpected run result: %+v", resp)
	}
}

func TestReset(t *testing.T) {
	mockService := &MockPatrolService{
		ResetFunc: func(ctx context.Context, sessionID string) (*engine.PatrolState, error) {
			if sessionID != "ab12" {
				return nil, notFound(sessionID)
			}
			return &engine.PatrolState{Status: engine.StatusPatrolling, Message: "fresh"}, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/reset", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Message string              `json:"message"`
		State   *engine.PatrolState `json:"state"`
	}
	parseResponse(t, w, &resp)
	if resp.State == nil || resp.State.Message != "fresh" {
		t.Errorf("Unexpected reset response: %+v", resp)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/zzzz/reset", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetHistory(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantOpts service.HistoryOptions
	}{
		{name: "defaults", query: "", wantOpts: service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
		{name: "explicit", query: "?page=3&limit=5&order=asc", wantOpts: service.HistoryOptions{Page: 3, Limit: 5, Order: "asc"}},
		{name: "invalid values ignored", query: "?page=-1&limit=x&order=sideways", wantOpts: service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOpts service.HistoryOptions
			mockService := &MockPatrolService{
				GetStepHistoryFunc: func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
					gotOpts = opts
					return &service.HistoryResponse{Steps: []engine.StepHistoryEntry{}, Page: opts.Page}, nil
				},
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions/ab12/history"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if diff := cmp.Diff(tt.wantOpts, gotOpts); diff != "" {
				t.Errorf("history options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetPatrolState(t *testing.T) {
	mockService := &MockPatrolService{
		GetPatrolStateFunc: func(ctx context.Context, sessionID string) (*engine.PatrolState, error) {
			return &engine.PatrolState{Width: 10, Height: 10, Status: engine.StatusExited, DistinctCells: 41}, nil
		},
	}
	server := setupTestServer(t, mockService)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/ab12/state", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var state engine.PatrolState
	parseResponse(t, w, &state)
	if state.Status != engine.StatusExited || state.DistinctCells != 41 {
		t.Errorf("Unexpected state: %+v", state)
	}
}

// Analysis Tests

func TestAnalysis(t *testing.T) {
	want := &engine.Analysis{
		Exited:           true,
		DistinctCells:    41,
		LoopObstructions: []engine.Coordinate{{X: 3, Y: 6}},
		LoopCount:        1,
	}
	mockService := &MockPatrolService{
		AnalyzeFunc: func(ctx context.Context, sessionID string) (*engine.Analysis, error) {
			if sessionID != "ab12" {
				return nil, notFound(sessionID)
			}
			return want, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/ab12/analysis", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got engine.Analysis
	parseResponse(t, w, &got)
	if diff := cmp.Diff(want, &got); diff != "" {
		t.Errorf("analysis mismatch (-want +got):\n%s", diff)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/zzzz/analysis", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestSolve(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		wantLayout     []string
		wantWorkers    int
		solveErr       error
		expectedStatus int
	}{
		{
			name:           "layout rows",
			requestBody:    map[string]interface{}{"layout": []string{"#.", "^."}, "workers": 2},
			wantLayout:     []string{"#.", "^."},
			wantWorkers:    2,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "grid text",
			requestBody:    map[string]interface{}{"grid": "#.\n^.\n"},
			wantLayout:     []string{"#.", "^."},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid layout",
			requestBody:    map[string]interface{}{"layout": []string{"..", ".."}},
			wantLayout:     []string{"..", ".."},
			solveErr:       fmt.Errorf("%w: %w", service.ErrInvalidLayout, engine.ErrMissingInitialState),
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockPatrolService{
				SolveFunc: func(ctx context.Context, layout []string, workers int) (*service.SolveResult, error) {
					if diff := cmp.Diff(tt.wantLayout, layout); diff != "" {
						t.Errorf("layout mismatch (-want +got):\n%s", diff)
					}
					if workers != tt.wantWorkers {
						t.Errorf("workers = %d, want %d", workers, tt.wantWorkers)
					}
					if tt.solveErr != nil {
						return nil, tt.solveErr
					}
					return &service.SolveResult{Width: 2, Height: 2, Analysis: &engine.Analysis{Exited: true}}, nil
				},
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/solve", tt.requestBody))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestRoute(t *testing.T) {
	mockService := &MockPatrolService{
		RouteFunc: func(ctx context.Context, layout []string) (*service.RouteResult, error) {
			if len(layout) != 2 {
				return nil, fmt.Errorf("%w: %w", service.ErrInvalidLayout, engine.ErrEmptyLayout)
			}
			return &service.RouteResult{Width: 2, Height: 2, Exited: true, DistinctCells: 2, TraceLength: 3}, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/route", map[string]interface{}{"grid": "#.\n^.\n"}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var got service.RouteResult
	parseResponse(t, w, &got)
	want := service.RouteResult{Width: 2, Height: 2, Exited: true, DistinctCells: 2, TraceLength: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("route mismatch (-want +got):\n%s", diff)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/route", map[string]interface{}{"layout": []string{}}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an empty layout, got %d", w.Code)
	}
}

func TestOversizedLayouts(t *testing.T) {
	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("config.NewManager: %v", err)
	}
	server := setupTestServer(t, service.NewPatrolService(session.NewManager(), configs))

	grid := func(rows, cols int) string {
		row := strings.Repeat(".", cols)
		return "^" + row[1:] + "\n" + strings.Repeat(row+"\n", rows-1)
	}

	tests := []struct {
		name      string
		path      string
		grid      string
		wantCode  int
		wantError string
	}{
		{"solve beyond the grid bound", "/api/solve", grid(600, 600), http.StatusBadRequest, "layout size out of range"},
		{"route beyond the grid bound", "/api/route", grid(engine.MaxGridSize+1, 4), http.StatusBadRequest, "layout size out of range"},
		{"body beyond the size cap", "/api/route", grid(1100, 1000), http.StatusBadRequest, "Invalid request body"},
		{"largest grid allowed", "/api/route", grid(engine.MaxGridSize, engine.MaxGridSize), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", tt.path, map[string]string{"grid": tt.grid}))
			if w.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d: %.200s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantError != "" {
				expectError(t, w, tt.wantError)
			}
		})
	}
}

// Configuration Tests

func TestConfigs(t *testing.T) {
	var saved *engine.PatrolConfig
	var savedID string
	mockService := &MockPatrolService{
		ListConfigsFunc: func(ctx context.Context) ([]*service.ConfigInfo, error) {
			return []*service.ConfigInfo{{ConfigID: "classic", Name: "Classic", Width: 10, Height: 10}}, nil
		},
		LoadConfigFunc: func(ctx context.Context, configName string) (*engine.PatrolConfig, error) {
			if configName != "classic" {
				return nil, fmt.Errorf("%w: %s", service.ErrConfigNotFound, configName)
			}
			return engine.DefaultPatrolConfig(), nil
		},
		SaveConfigFunc: func(ctx context.Context, configName string, config *engine.PatrolConfig) error {
			savedID, saved = configName, config
			if len(config.Layout) == 0 {
				return fmt.Errorf("%w: layout is empty", service.ErrInvalidConfig)
			}
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", "/api/configs", nil))
		var configs []service.ConfigInfo
		parseResponse(t, w, &configs)
		if len(configs) != 1 || configs[0].ConfigID != "classic" {
			t.Errorf("Unexpected configs: %+v", configs)
		}
	})

	t.Run("get strips extension", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", "/api/configs/classic.yaml", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var config engine.PatrolConfig
		parseResponse(t, w, &config)
		if config.Name != "Classic" {
			t.Errorf("Expected Classic config, got %q", config.Name)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", "/api/configs/missing", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("create", func(t *testing.T) {
		body := map[string]interface{}{
			"config_id":   "lab",
			"name":        "Lab",
			"description": "A small lab",
			"layout":      []string{"#.", "^."},
		}
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("POST", "/api/configs", body))
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}
		if savedID != "lab" || saved == nil || saved.Name != "Lab" || len(saved.Layout) != 2 {
			t.Errorf("Unexpected saved config %q: %+v", savedID, saved)
		}
	})

	t.Run("create without name", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("POST", "/api/configs", map[string]string{"description": "x"}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("create invalid", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("POST", "/api/configs", map[string]string{"name": "Empty"}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
		if savedID != "Empty" {
			t.Errorf("Expected name to be used as the config ID, got %q", savedID)
		}
	})
}

func TestHealthAndIndex(t *testing.T) {
	server := setupTestServer(t, &MockPatrolService{})

	for _, path := range []string{"/api/health", "/api"} {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected status 200, got %d", path, w.Code)
		}
	}
}

func TestWebSocket(t *testing.T) {
	tests := []struct {
		name           string
		queryParams    string
		setupMock      func(*MockPatrolService)
		expectedStatus int
	}{
		{
			name:           "Missing session parameter",
			queryParams:    "",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "Invalid session",
			queryParams: "?session=zzzz",
			setupMock: func(m *MockPatrolService) {
				m.GetSessionFunc = func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
					return nil, notFound(sessionID)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockPatrolService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest("GET", "/ws"+tt.queryParams, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

// TestPatrolFlow drives the API against the real service, managers and engine
func TestPatrolFlow(t *testing.T) {
	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("config.NewManager: %v", err)
	}
	svc := service.NewPatrolService(session.NewManager(), configs)
	server := setupTestServer(t, svc)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var info service.SessionInfo
	parseResponse(t, w, &info)

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/"+info.ID+"/run", map[string]int{"limit": 0}))
	if w.Code != http.StatusOK {
		t.Fatalf("run: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var run service.RunResult
	parseResponse(t, w, &run)
	if run.StopReasonCode != "exited" || run.PatrolState.DistinctCells != 41 {
		t.Errorf("run: stop=%s cells=%d, want exited/41", run.StopReasonCode, run.PatrolState.DistinctCells)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/"+strings.ToUpper(info.ID)+"/analysis", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("analysis: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var analysis engine.Analysis
	parseResponse(t, w, &analysis)
	want := []engine.Coordinate{{X: 3, Y: 6}, {X: 6, Y: 7}, {X: 7, Y: 7}, {X: 1, Y: 8}, {X: 3, Y: 8}, {X: 7, Y: 9}}
	if diff := cmp.Diff(want, analysis.LoopObstructions); diff != "" {
		t.Errorf("loop obstructions mismatch (-want +got):\n%s", diff)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("DELETE", "/api/sessions/"+info.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/"+info.ID+"/state", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("state after delete: expected 404, got %d", w.Code)
	}
}
