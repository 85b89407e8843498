package tui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/geometry"
)

func TestRenderPlacementPreview_Frame(t *testing.T) {
	m := geometry.ScreenMetrics{WidthPx: 1920, HeightPx: 1080, Density: 1, Orientation: geometry.OrientationLandscape}
	lines := renderPlacementPreview(m, geometry.Placement{X: 960, Y: 540, Size: 192}, 40, 12)

	if len(lines) != 12 {
		t.Fatalf("expected 12 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if n := utf8.RuneCountInString(line); n != 40 {
			t.Fatalf("line %d: expected width 40, got %d", i, n)
		}
	}
	if !strings.HasPrefix(lines[0], "╔") || !strings.HasSuffix(lines[11], "╝") {
		t.Fatalf("expected framed canvas, got %q / %q", lines[0], lines[11])
	}

	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "█") {
		t.Fatalf("expected overlay cell in preview:\n%s", joined)
	}
	if strings.Contains(joined, "·") {
		t.Fatalf("did not expect a safe area outline without insets:\n%s", joined)
	}
}

func TestRenderPlacementPreview_TinyOverlayStillVisible(t *testing.T) {
	m := geometry.ScreenMetrics{WidthPx: 3840, HeightPx: 2160, Density: 1}
	lines := renderPlacementPreview(m, geometry.Placement{X: 0, Y: 0, Size: 1}, 20, 8)
	if !strings.Contains(strings.Join(lines, ""), "█") {
		t.Fatalf("expected a one-cell overlay")
	}
}

func TestRenderPlacementPreview_SafeArea(t *testing.T) {
	safe := geometry.Rect{X: 0, Y: 200, Width: 1080, Height: 2000}
	m := geometry.ScreenMetrics{WidthPx: 1080, HeightPx: 2400, Density: 2.75, SafeArea: &safe}
	lines := renderPlacementPreview(m, geometry.Placement{X: 500, Y: 1200, Size: 100}, 30, 24)
	if !strings.Contains(strings.Join(lines, ""), "·") {
		t.Fatalf("expected dotted safe area:\n%s", strings.Join(lines, "\n"))
	}
}

func TestRenderPlacementPreview_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		m      geometry.ScreenMetrics
		width  int
		height int
	}{
		{"zero metrics", geometry.ScreenMetrics{}, 20, 8},
		{"too narrow", geometry.ScreenMetrics{WidthPx: 100, HeightPx: 100}, 3, 8},
		{"too short", geometry.ScreenMetrics{WidthPx: 100, HeightPx: 100}, 20, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := renderPlacementPreview(tt.m, geometry.Placement{Size: 10}, tt.width, tt.height)
			if len(lines) != tt.height {
				t.Fatalf("expected %d lines, got %d", tt.height, len(lines))
			}
			if strings.TrimSpace(strings.Join(lines, "")) != "" {
				t.Fatalf("expected blank canvas, got %q", lines)
			}
		})
	}
}

func TestSummarizePlacement(t *testing.T) {
	pv := daemon.Preview{
		ProfileID: "Default",
		Known:     false,
		Suitable:  false,
		Metrics:   geometry.ScreenMetrics{WidthPx: 800, HeightPx: 600, Density: 1, Orientation: geometry.OrientationLandscape},
		Placement: geometry.Placement{X: 83, Y: 166, Size: 50},
	}
	got := summarizePlacement(pv)
	for _, want := range []string{"800×600", "50px at (83,166)", "default profile", "screen too small"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary %q missing %q", got, want)
		}
	}

	pv.Known, pv.Suitable = true, true
	got = summarizePlacement(pv)
	if strings.Contains(got, "default profile") || strings.Contains(got, "too small") {
		t.Fatalf("unexpected notes in %q", got)
	}
}
