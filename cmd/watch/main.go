// Command watch follows patrol sessions live in the terminal. It subscribes
// to each session's WebSocket feed and redraws the grid on every update.
// With -step-every it also drives the patrols itself, one step per tick.
//
// Usage:
//
//	watch [flags] [session-id ...]
//
// Without session IDs a new session is created from -config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	hub "github.com/wricardo/mcp-training/guardpatrol/transport/websocket"
	"golang.org/x/sync/errgroup"
)

const clearScreen = "\033[H\033[2J"

// Watcher renders a set of sessions from their WebSocket updates
type Watcher struct {
	baseURL string
	client  *http.Client
	dialer  *websocket.Dialer
	out     io.Writer
	clear   bool

	mu sync.Mutex
}

func NewWatcher(baseURL string, out io.Writer) *Watcher {
	return &Watcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		dialer:  websocket.DefaultDialer,
		out:     out,
	}
}

// Watch draws every session until all of them have finished or ctx ends
func (w *Watcher) Watch(ctx context.Context, ids []string, every time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessions := make([]*watchedSession, 0, len(ids))
	for _, id := range ids {
		s, err := w.load(ctx, id)
		if err != nil {
			return err
		}
		sessions = append(sessions, s)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		conn, err := w.subscribe(gctx, s.id)
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.id, err)
		}
		g.Go(func() error {
			return w.follow(gctx, conn, s, sessions)
		})
		if every > 0 {
			g.Go(func() error {
				return w.drive(gctx, s, sessions, every)
			})
		}
	}

	w.redraw(sessions)
	return g.Wait()
}

// follow applies WebSocket updates to s until it finishes
func (w *Watcher) follow(ctx context.Context, conn *websocket.Conn, s *watchedSession, all []*watchedSession) error {
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		conn.Close()
	}()

	for {
		u, err := readUpdate(conn)
		if err != nil {
			if s.finished() {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("session %s feed: %w", s.id, err)
		}
		if !strings.EqualFold(u.SessionID, s.id) {
			continue
		}

		w.mu.Lock()
		s.apply(u)
		w.mu.Unlock()
		w.redraw(all)
	}
}

// drive steps s once per tick until it finishes
func (w *Watcher) drive(ctx context.Context, s *watchedSession, all []*watchedSession, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for !s.finished() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.C:
		}

		state, err := w.step(ctx, s.id)
		if err != nil {
			return err
		}

		w.mu.Lock()
		s.apply(&update{SessionID: s.id, Event: hub.EventStateUpdate, PatrolState: state})
		w.mu.Unlock()
		w.redraw(all)
	}
	return nil
}

// redraw writes one frame per session
func (w *Watcher) redraw(sessions []*watchedSession) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	if w.clear {
		b.WriteString(clearScreen)
	}
	for i, s := range sessions {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, line := range s.render() {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	io.WriteString(w.out, b.String())
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Patrol server URL")
	configName := flag.String("config", "", "Configuration for a new session when no IDs are given")
	every := flag.Duration("step-every", 0, "Step each patrol at this interval (0 only watches)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := NewWatcher(*serverURL, os.Stdout)
	w.clear = true

	ids := flag.Args()
	if len(ids) == 0 {
		id, err := w.create(ctx, *configName)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		log.Printf("Created session %s", id)
		ids = []string{id}
	}

	if err := w.Watch(ctx, ids, *every); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("watch: %v", err)
	}
}
