package tui

import (
	"fmt"
	"strings"

	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/geometry"
)

// screenPreset is a screen the preview can be drawn against.
type screenPreset struct {
	name    string
	metrics geometry.ScreenMetrics
}

var screenPresets = []screenPreset{
	{"reference", geometry.ScreenMetrics{WidthPx: 1920, HeightPx: 1080, Density: 1, Orientation: geometry.OrientationLandscape}},
	{"phone", geometry.ScreenMetrics{WidthPx: 1080, HeightPx: 2400, Density: 2.75, Orientation: geometry.OrientationPortrait}},
	{"phone landscape", geometry.ScreenMetrics{WidthPx: 2400, HeightPx: 1080, Density: 2.75, Orientation: geometry.OrientationLandscape}},
	{"tablet", geometry.ScreenMetrics{WidthPx: 2560, HeightPx: 1600, Density: 2, Orientation: geometry.OrientationLandscape}},
}

func summarizePlacement(pv daemon.Preview) string {
	m := pv.Metrics
	s := fmt.Sprintf("%d×%d @%.2f %s • overlay %dpx at (%d,%d)",
		m.WidthPx, m.HeightPx, m.EffectiveDensity(), m.Orientation,
		pv.Placement.Size, pv.Placement.X, pv.Placement.Y)
	if !pv.Known {
		s += " • default profile"
	}
	if !pv.Suitable {
		s += " • screen too small, overlay stays hidden"
	}
	return s
}

// renderPlacementPreview draws the screen as a framed canvas with the safe
// area dotted and the overlay square filled in.
func renderPlacementPreview(m geometry.ScreenMetrics, p geometry.Placement, width, height int) []string {
	if width < 5 || height < 3 || m.WidthPx <= 0 || m.HeightPx <= 0 {
		return emptyCanvas(width, height)
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	innerW, innerH := width-2, height-2
	toCanvas := func(r geometry.Rect) (x1, y1, x2, y2 int) {
		x1 = 1 + r.X*innerW/m.WidthPx
		y1 = 1 + r.Y*innerH/m.HeightPx
		x2 = 1 + (r.X+r.Width)*innerW/m.WidthPx
		y2 = 1 + (r.Y+r.Height)*innerH/m.HeightPx
		return
	}

	if m.SafeArea != nil && *m.SafeArea != m.Bounds() {
		x1, y1, x2, y2 := toCanvas(*m.SafeArea)
		drawDotted(canvas, x1, y1, x2-1, y2-1, width, height)
	}

	x1, y1, x2, y2 := toCanvas(p.Rect())
	// Always show at least one cell so tiny overlays stay visible.
	if x2 <= x1 {
		x2 = x1 + 1
	}
	if y2 <= y1 {
		y2 = y1 + 1
	}
	for y := y1; y < y2 && y < height-1; y++ {
		for x := x1; x < x2 && x < width-1; x++ {
			canvas[y][x] = '█'
		}
	}

	drawBorder(canvas, width, height)

	lines := make([]string, height)
	for i, row := range canvas {
		lines[i] = string(row)
	}
	return lines
}

func drawDotted(canvas [][]rune, x1, y1, x2, y2, canvasW, canvasH int) {
	x1, y1 = max(x1, 1), max(y1, 1)
	x2, y2 = min(x2, canvasW-2), min(y2, canvasH-2)
	if x2 <= x1 || y2 <= y1 {
		return
	}
	for x := x1; x <= x2; x++ {
		canvas[y1][x] = '·'
		canvas[y2][x] = '·'
	}
	for y := y1; y <= y2; y++ {
		canvas[y][x1] = '·'
		canvas[y][x2] = '·'
	}
}

func drawBorder(canvas [][]rune, width, height int) {
	// Top and bottom borders
	for x := 0; x < width; x++ {
		canvas[0][x] = '═'
		canvas[height-1][x] = '═'
	}

	// Left and right borders
	for y := 0; y < height; y++ {
		canvas[y][0] = '║'
		canvas[y][width-1] = '║'
	}

	// Corners
	canvas[0][0] = '╔'
	canvas[0][width-1] = '╗'
	canvas[height-1][0] = '╚'
	canvas[height-1][width-1] = '╝'
}

func emptyCanvas(width, height int) []string {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	lines := make([]string, height)
	empty := strings.Repeat(" ", width)
	for i := range lines {
		lines[i] = empty
	}
	return lines
}
