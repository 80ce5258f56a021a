// Command bruteforcer cross-checks a running patrol server through its REST
// API. It walks a session's patrol one step at a time, checking every
// transition, then tries every obstruction candidate as an ad-hoc layout and
// compares the loops it finds with the server's own analysis.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/guardpatrol/game/engine"
	"github.com/wricardo/mcp-training/guardpatrol/game/service"
)

// Client talks to the patrol REST API on behalf of one session
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do sends body as JSON and decodes the response into out. Non-2xx
// responses become errors carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s failed: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

func (c *Client) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	var body interface{}
	if configName != "" {
		body = map[string]string{"config_name": configName}
	}

	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) GetSession(ctx context.Context) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodGet, c.sessionPath(""), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) DeleteSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.sessionPath(""), nil, nil)
}

type ResetResponse struct {
	Message string              `json:"message"`
	State   *engine.PatrolState `json:"state"`
}

func (c *Client) Reset(ctx context.Context) (*engine.PatrolState, error) {
	var resp ResetResponse
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/reset"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.State, nil
}

func (c *Client) Step(ctx context.Context) (*service.StepResult, error) {
	var result service.StepResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/step"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Analysis(ctx context.Context) (*engine.Analysis, error) {
	var analysis engine.Analysis
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/analysis"), nil, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Route asks the server for the unobstructed patrol of an ad-hoc layout
func (c *Client) Route(ctx context.Context, layout []string) (*service.RouteResult, error) {
	var result service.RouteResult
	if err := c.do(ctx, http.MethodPost, "/api/route", map[string]interface{}{"layout": layout}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Patrol server URL")
	configName := flag.String("config", "", "Patrol configuration to verify (server default when empty)")
	continueSession := flag.String("continue", "", "Verify an existing session by ID instead of creating one")
	workers := flag.Int("workers", 8, "Concurrent candidate requests")
	maxCandidates := flag.Int("max-candidates", 0, "Try at most this many candidates (0 = all)")
	keep := flag.Bool("keep", false, "Keep the session after verifying it")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	log.Printf("Connecting to patrol server at %s", *serverURL)

	logger := log.New(io.Discard, "[bruteforce] ", log.LstdFlags)
	if *verbose {
		logger.SetOutput(os.Stderr)
	}

	v := &Verifier{
		client:        NewClient(*serverURL),
		workers:       *workers,
		maxCandidates: *maxCandidates,
		keepSession:   *keep || *continueSession != "",
		logger:        logger,
	}

	report, err := v.Verify(context.Background(), *configName, *continueSession)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}

	report.Print(os.Stdout)
	if len(report.Mismatches) > 0 {
		os.Exit(1)
	}
}
