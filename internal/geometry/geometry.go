package geometry

import "fmt"

// Point is a position in device pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect represents an axis-aligned rectangle in device pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Intersect returns the overlap of r and o, or a zero Rect when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width &&
		o.Y+o.Height <= r.Y+r.Height
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Insets are per-edge reservations, such as display cutouts.
type Insets struct {
	Top    int `json:"top" yaml:"top"`
	Bottom int `json:"bottom" yaml:"bottom"`
	Left   int `json:"left" yaml:"left"`
	Right  int `json:"right" yaml:"right"`
}

// Zero reports whether no edge is reserved.
func (in Insets) Zero() bool {
	return in == Insets{}
}

// Orientation of the screen as reported by the host.
type Orientation int

const (
	OrientationPortrait Orientation = iota
	OrientationLandscape
	OrientationReversePortrait
	OrientationReverseLandscape
)

func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationLandscape:
		return "landscape"
	case OrientationReversePortrait:
		return "reverse-portrait"
	case OrientationReverseLandscape:
		return "reverse-landscape"
	default:
		return fmt.Sprintf("orientation(%d)", int(o))
	}
}

// Portrait reports whether o is portrait or reverse-portrait.
func (o Orientation) Portrait() bool {
	return o == OrientationPortrait || o == OrientationReversePortrait
}

// ParseOrientation accepts the names produced by Orientation.String.
func ParseOrientation(s string) (Orientation, error) {
	for _, o := range []Orientation{OrientationPortrait, OrientationLandscape, OrientationReversePortrait, OrientationReverseLandscape} {
		if s == o.String() {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown orientation %q", s)
}

// OrientationFor infers orientation from pixel dimensions.
func OrientationFor(width, height int) Orientation {
	if height > width {
		return OrientationPortrait
	}
	return OrientationLandscape
}

// ScreenMetrics is a read-only snapshot of the display the overlay lives on.
// SafeArea is nil when the host could not compute one.
type ScreenMetrics struct {
	WidthPx     int         `json:"width_px"`
	HeightPx    int         `json:"height_px"`
	Density     float64     `json:"density"`
	Orientation Orientation `json:"orientation"`
	SafeArea    *Rect       `json:"safe_area,omitempty"`
}

// Bounds returns the full screen rectangle.
func (m ScreenMetrics) Bounds() Rect {
	return Rect{Width: m.WidthPx, Height: m.HeightPx}
}

// EffectiveDensity returns Density, or 1 when the host reported nothing usable.
func (m ScreenMetrics) EffectiveDensity() float64 {
	if m.Density <= 0 {
		return 1
	}
	return m.Density
}

// Placement is a resolved on-screen square for the overlay.
type Placement struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Size int `json:"size"`
}

// Position returns the placement origin.
func (p Placement) Position() Point {
	return Point{X: p.X, Y: p.Y}
}

// Rect returns the size×size rectangle covered by p.
func (p Placement) Rect() Rect {
	return Rect{X: p.X, Y: p.Y, Width: p.Size, Height: p.Size}
}

// ClampOrigin keeps a w×h rectangle with origin (x, y) inside bounds. When the
// rectangle is larger than bounds on an axis, it is pinned to the bounds origin.
func ClampOrigin(x, y int, bounds Rect, w, h int) (int, int) {
	maxX := bounds.X + bounds.Width - w
	maxY := bounds.Y + bounds.Height - h
	if maxX < bounds.X {
		maxX = bounds.X
	}
	if maxY < bounds.Y {
		maxY = bounds.Y
	}
	return clampInt(x, bounds.X, maxX), clampInt(y, bounds.Y, maxY)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
