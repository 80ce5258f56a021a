package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
	"github.com/wricardo/mcp-training/guardpatrol/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// analyses of large layouts can take a while
			Timeout: 60 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Guard Patrol",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Guard Patrol - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A guard (^ > v <) walks a grid of floor (.) and obstacles (#). Each step it
moves forward one cell, or turns right in place when an obstacle is ahead.
The patrol ends when the guard leaves the grid or repeats a position and
heading (a loop).

AVAILABLE TOOLS:
- create_session: Create a new patrol session
- list_sessions / get_session: Inspect sessions
- patrol_state: Current guard, grid and counters
- step: Apply one transition
- run_patrol: Apply many transitions (optionally until the patrol ends)
- reset_patrol: Restart from the initial guard state
- step_history: View past transitions
- analyze: Distinct cells covered and every loop-creating obstruction
- solve_layout: Analyze an ad-hoc layout without a session
- list_configs: List available layouts
- patrol_instructions: Full rules
- describe_cell: Inspect one grid cell`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	sessionIDProperty := map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}

	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new patrol session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_name": map[string]interface{}{
					"type":        "string",
					"description": "Configuration ID (e.g. 'classic'). Use list_configs to see options.",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active patrol sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty,
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Patrol operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "patrol_state",
		Description: "Get the current patrol state with the grid drawn (X marks visited cells)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty,
			},
			Required: []string{"session_id"},
		},
	}, c.handlePatrolState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: "Apply a single patrol transition: move forward, turn right, exit or detect a loop",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty,
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset the patrol before stepping",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_patrol",
		Description: fmt.Sprintf("Apply up to 'limit' transitions (at most %d). Omit limit or pass 0 to run until the guard exits or loops.", engine.MaxBulkSteps),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty,
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of transitions",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset the patrol before running",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRunPatrol)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_patrol",
		Description: "Reset the patrol to the initial guard state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty,
			},
			Required: []string{"session_id"},
		},
	}, c.handleResetPatrol)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step_history",
		Description: "Get the transition history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty,
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"description": "'asc' (oldest first) or 'desc' (newest first, default)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStepHistory)

	// Analysis
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "analyze",
		Description: "Count the distinct cells of the unobstructed patrol and find every cell where one new obstacle traps the guard in a loop",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty,
			},
			Required: []string{"session_id"},
		},
	}, c.handleAnalyze)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "solve_layout",
		Description: "Analyze an ad-hoc layout without creating a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"layout": map[string]interface{}{
					"type":        "string",
					"description": "Grid rows separated by newlines, using . # and one of ^ > v <",
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Parallel search workers (0-%d, 0 or 1 means sequential)", engine.MaxWorkers),
				},
			},
			Required: []string{"layout"},
		},
	}, c.handleSolveLayout)

	// Configuration and help
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available patrol layouts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "patrol_instructions",
		Description: "Get the complete patrol rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handlePatrolInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get detailed information about one grid cell: its glyph, whether it is an obstacle and whether the guard has visited it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty,
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate (column) of the cell (0-based)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate (row) of the cell (0-based)",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil {
			if msg, ok := errResp["error"]; ok {
				return fmt.Errorf("%s", msg)
			}
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// intArg reads an integer argument. JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	configName, _ := args["config_name"].(string)

	body := map[string]string{}
	if configName != "" {
		body["config_name"] = configName
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, http.MethodPost, "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s",
		session.ID, session.ConfigName, formatPatrolState(session.PatrolConfig, session.PatrolState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, http.MethodGet, "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status := "unknown"
		if s.PatrolState != nil {
			status = string(s.PatrolState.Status)
		}
		fmt.Fprintf(&result, "- %s (Config: %s, Status: %s, Created: %s)\n",
			s.ID, s.ConfigName, status, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, http.MethodGet, sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handlePatrolState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	// the session carries the layout needed to draw the grid
	var session service.SessionInfo
	if err := c.apiCall(ctx, http.MethodGet, sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPatrolState(session.PatrolConfig, session.PatrolState)), nil
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	reset, _ := args["reset"].(bool)

	body := map[string]interface{}{
		"reset": reset,
	}

	var result service.StepResult
	if err := c.apiCall(ctx, http.MethodPost, sessionPath(sessionID, "/step"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleRunPatrol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	reset, _ := args["reset"].(bool)
	limit, _ := intArg(args, "limit")

	body := map[string]interface{}{
		"limit": limit,
		"reset": reset,
	}

	var result service.RunResult
	if err := c.apiCall(ctx, http.MethodPost, sessionPath(sessionID, "/run"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRunResult(sessionID, &result)), nil
}

func (c *Client) handleResetPatrol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var response struct {
		Message string              `json:"message"`
		State   *engine.PatrolState `json:"state"`
	}

	if err := c.apiCall(ctx, http.MethodPost, sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatPatrolState(nil, response.State))), nil
}

func (c *Client) handleStepHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)

	params := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		params.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		params.Set("limit", fmt.Sprint(limit))
	}
	if order, ok := args["order"].(string); ok && order != "" {
		params.Set("order", order)
	}

	path := sessionPath(sessionID, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, http.MethodGet, path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var analysis engine.Analysis
	if err := c.apiCall(ctx, http.MethodGet, sessionPath(sessionID, "/analysis"), nil, &analysis); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatAnalysis(&analysis)), nil
}

func (c *Client) handleSolveLayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, _ := args["layout"].(string)
	workers, _ := intArg(args, "workers")

	layout, err := engine.ReadLayout(strings.NewReader(raw))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(layout) == 0 {
		return mcp.NewToolResultError("layout is empty"), nil
	}

	body := map[string]interface{}{
		"layout":  layout,
		"workers": workers,
	}

	var result service.SolveResult
	if err := c.apiCall(ctx, http.MethodPost, "/api/solve", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Layout %dx%d, guard starts at %s\n\n%s",
		result.Width, result.Height, result.Start, formatAnalysis(result.Analysis))
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, http.MethodGet, "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&result, "• %s (id: %s)\n  %s\n  Grid: %dx%d, Obstacles: %d\n\n",
			config.Name, config.ConfigID, config.Description, config.Width, config.Height, config.Obstacles)
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handlePatrolInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Guard Patrol - Complete Instructions

THE GRID:
• . - open floor
• # - obstacle
• ^ > v < - the guard and the way it faces
• X - a cell the guard has already visited (patrol_state only)
• Coordinates are (x,y): x is the column, y the row, both 0-based, y grows downward

THE PATROL RULES:
Every transition looks at the cell directly ahead of the guard:
1. If that cell is off the grid, the guard leaves and the patrol ends (exited).
2. If that cell holds an obstacle, the guard turns 90 degrees right and stays put.
3. Otherwise the guard moves one cell forward.
Before each transition the current position and heading is recorded. If the
guard is ever in a position and heading it held before, it will repeat the same
route forever and the patrol ends (looping).

WHAT THE ANALYSIS COMPUTES:
• distinct cells: how many different cells the unobstructed patrol covers
  before the guard leaves the grid
• loop obstructions: every empty cell where placing exactly one new obstacle
  traps the guard in a loop. The guard's starting cell never counts.

TOOLS:
- step: one transition at a time, good for following the route closely
- run_patrol: many transitions at once; limit 0 runs to the end
- reset_patrol: start over from the initial guard state
- step_history: every transition with its from/to states
- analyze: both results for the session's layout (cached after the first call)
- solve_layout: both results for a layout you paste in
- describe_cell: check a single cell

TIPS:
- A layout where the guard is looping has no distinct-cell count and no
  obstruction search: analyze reports exited=false.
- Trial obstacles are only placed on cells the guard actually walks through;
  any other cell cannot change the route.`

	return mcp.NewToolResultText(instructions), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required integers"), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, http.MethodGet, sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if session.PatrolConfig == nil || session.PatrolState == nil {
		return mcp.NewToolResultError("session has no layout"), nil
	}

	obstacles, _, err := engine.ParseLayout(session.PatrolConfig.Layout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state := session.PatrolState
	cell := engine.Coordinate{X: x, Y: y}
	glyph, inBounds := engine.CellGlyph(obstacles, state.Guard, cell)
	if !inBounds {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds. Grid is %dx%d (x 0-%d, y 0-%d)",
			x, y, obstacles.Width(), obstacles.Height(), obstacles.Width()-1, obstacles.Height()-1)), nil
	}

	var description string
	switch glyph {
	case engine.ObstacleGlyph:
		description = "Obstacle - the guard turns right when facing it"
	case engine.FloorGlyph:
		description = "Open floor"
	default:
		description = fmt.Sprintf("The guard, facing %s", state.Guard.Direction)
	}

	var headings []string
	for _, s := range state.Visited {
		if s.Coordinate == cell {
			headings = append(headings, s.Direction.String())
		}
	}
	visited := "no"
	if len(headings) > 0 {
		visited = "yes, facing " + strings.Join(headings, ", ")
	}

	result := fmt.Sprintf(`Cell at position (%d, %d):
━━━━━━━━━━━━━━━━━━━━━━━━
Character: %c
Obstacle: %v
Visited: %s
Description: %s`,
		x, y, glyph, glyph == engine.ObstacleGlyph, visited, description)

	return mcp.NewToolResultText(result), nil
}
