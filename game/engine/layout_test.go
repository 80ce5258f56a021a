package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLayout(t *testing.T) {
	m, start := mustParse(t, []string{
		"#..",
		".>.",
		"..#",
	})

	if m.Width() != 3 || m.Height() != 3 {
		t.Errorf("expected 3x3 map, got %dx%d", m.Width(), m.Height())
	}
	want := NewAgentState(Coordinate{X: 1, Y: 1}, Right)
	if start != want {
		t.Errorf("expected start %v, got %v", want, start)
	}
	if diff := cmp.Diff([]Coordinate{{X: 0, Y: 0}, {X: 2, Y: 2}}, m.Obstacles()); diff != "" {
		t.Errorf("obstacles mismatch (-want +got):\n%s", diff)
	}
	if obstacle, _ := m.IsObstacle(start.Coordinate); obstacle {
		t.Error("guard cell must be open floor")
	}
}

func TestParseLayout_Headings(t *testing.T) {
	tests := []struct {
		glyph string
		want  Direction
	}{
		{"^", Up},
		{">", Right},
		{"v", Down},
		{"<", Left},
	}

	for _, tt := range tests {
		t.Run(tt.glyph, func(t *testing.T) {
			_, start := mustParse(t, []string{tt.glyph})
			if start.Direction != tt.want {
				t.Errorf("expected %v, got %v", tt.want, start.Direction)
			}
		})
	}
}

func TestParseLayout_Errors(t *testing.T) {
	tests := []struct {
		name string
		rows []string
		want error
	}{
		{"nil", nil, ErrEmptyLayout},
		{"empty row", []string{""}, ErrEmptyLayout},
		{"ragged", []string{"...", ".^"}, ErrRaggedLayout},
		{"bad glyph", []string{"..x", ".^."}, ErrUnexpectedGlyph},
		{"two guards", []string{"^.", ".v"}, ErrMultipleStarts},
		{"no guard", []string{"..", ".#"}, ErrMissingInitialState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseLayout(tt.rows)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReadLayout(t *testing.T) {
	input := "\n  ..#  \n.^.\n\n#..\n"

	rows, err := ReadLayout(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadLayout: %v", err)
	}
	if diff := cmp.Diff([]string{"..#", ".^.", "#.."}, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderLayout_RoundTrip(t *testing.T) {
	m, start := mustParse(t, classicLayout)

	got := RenderLayout(m, &start, nil, nil)
	if diff := cmp.Diff(classicLayout, got); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderLayout_Markers(t *testing.T) {
	m, start := mustParse(t, []string{
		"...",
		".^#",
		"...",
	})
	marked := []AgentState{
		start,
		NewAgentState(Coordinate{X: 1, Y: 0}, Up),
	}
	trials := []Coordinate{{X: 0, Y: 2}}

	got := RenderLayout(m, nil, marked, trials)
	want := []string{
		".X.",
		".X#",
		"O..",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestCellGlyph(t *testing.T) {
	m, start := mustParse(t, []string{"#^"})

	tests := []struct {
		c        Coordinate
		want     rune
		inBounds bool
	}{
		{Coordinate{X: 0, Y: 0}, ObstacleGlyph, true},
		{Coordinate{X: 1, Y: 0}, GuardUpGlyph, true},
		{Coordinate{X: 2, Y: 0}, ' ', false},
	}

	for _, tt := range tests {
		got, ok := CellGlyph(m, start, tt.c)
		if got != tt.want || ok != tt.inBounds {
			t.Errorf("CellGlyph(%v) = %q, %v; want %q, %v", tt.c, got, ok, tt.want, tt.inBounds)
		}
	}
}
