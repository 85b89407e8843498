package profile

import (
	"fmt"
	"math"

	"github.com/1broseidon/overlayd/internal/geometry"
)

// Overlay size bounds in device pixels.
const (
	DefaultMinSize = 50
	DefaultMaxSize = 200
)

// AxisSwapPolicy decides whether the scaled X/Y components are exchanged for a
// profile shown on a screen with the given orientation. It is a heuristic: a
// profile authored in landscape and shown in portrait usually wants its
// horizontal offset to run down the long edge, but not every target lays out
// that way.
type AxisSwapPolicy interface {
	Name() string
	Swap(p GeometryProfile, o geometry.Orientation) bool
}

type swapFunc struct {
	name string
	fn   func(GeometryProfile, geometry.Orientation) bool
}

func (s swapFunc) Name() string { return s.name }

func (s swapFunc) Swap(p GeometryProfile, o geometry.Orientation) bool { return s.fn(p, o) }

var (
	// SwapOnAspectMismatch swaps when the screen orientation disagrees with the
	// profile's authored aspect.
	SwapOnAspectMismatch AxisSwapPolicy = swapFunc{"mismatch", func(p GeometryProfile, o geometry.Orientation) bool {
		return o.Portrait() == p.Landscape()
	}}

	// SwapWhenPortrait swaps on any portrait screen regardless of the profile.
	SwapWhenPortrait AxisSwapPolicy = swapFunc{"portrait", func(_ GeometryProfile, o geometry.Orientation) bool {
		return o.Portrait()
	}}

	// NeverSwap keeps the scaled axes as they are.
	NeverSwap AxisSwapPolicy = swapFunc{"never", func(GeometryProfile, geometry.Orientation) bool {
		return false
	}}
)

// AxisSwapPolicyByName returns the named policy. An empty name selects the default.
func AxisSwapPolicyByName(name string) (AxisSwapPolicy, error) {
	switch name {
	case "", SwapOnAspectMismatch.Name():
		return SwapOnAspectMismatch, nil
	case SwapWhenPortrait.Name():
		return SwapWhenPortrait, nil
	case NeverSwap.Name():
		return NeverSwap, nil
	default:
		return nil, fmt.Errorf("unknown axis swap policy %q (expected mismatch, portrait or never)", name)
	}
}

// Resolver turns profiles into placements for the current screen.
type Resolver struct {
	registry *Registry
	swap     AxisSwapPolicy
	minSize  int
	maxSize  int
}

// ResolverConfig holds the overridable resolver policy.
type ResolverConfig struct {
	AxisSwap AxisSwapPolicy
	MinSize  int
	MaxSize  int
}

// NewResolver creates a resolver that looks profiles up in registry.
func NewResolver(registry *Registry, cfg ResolverConfig) *Resolver {
	r := &Resolver{
		registry: registry,
		swap:     cfg.AxisSwap,
		minSize:  cfg.MinSize,
		maxSize:  cfg.MaxSize,
	}
	if r.swap == nil {
		r.swap = SwapOnAspectMismatch
	}
	if r.minSize <= 0 {
		r.minSize = DefaultMinSize
	}
	if r.maxSize < r.minSize {
		r.maxSize = max(DefaultMaxSize, r.minSize)
	}
	return r
}

// Resolve looks up profileID (falling back to the default profile) and places it.
func (r *Resolver) Resolve(profileID string, m geometry.ScreenMetrics) geometry.Placement {
	return r.Place(r.registry.ResolveProfileFor(profileID), m)
}

// Place computes the on-screen square for p. It is pure and deterministic.
func (r *Resolver) Place(p GeometryProfile, m geometry.ScreenMetrics) geometry.Placement {
	p = p.Normalize()

	scaleX := float64(m.WidthPx) / float64(p.TargetWidth)
	scaleY := float64(m.HeightPx) / float64(p.TargetHeight)

	x := float64(p.BasePosition.X) * scaleX
	y := float64(p.BasePosition.Y) * scaleY
	if r.swap.Swap(p, m.Orientation) {
		x, y = y, x
	}

	sizeScale := math.Min(scaleX, scaleY) * m.EffectiveDensity()
	size := clampSize(int(float64(p.BaseSize)*sizeScale), r.minSize, r.maxSize)

	// A screen smaller than the minimum overlay still has to contain it.
	if limit := min(m.WidthPx, m.HeightPx); limit > 0 && size > limit {
		size = limit
	}

	px, py := int(x), int(y)
	screen := m.Bounds()
	if m.SafeArea != nil {
		if safe := m.SafeArea.Intersect(screen); !safe.Empty() {
			px, py = geometry.ClampOrigin(px, py, safe, size, size)
		}
	}
	px, py = geometry.ClampOrigin(px, py, screen, size, size)

	return geometry.Placement{X: px, Y: py, Size: size}
}

// Unplace maps an on-screen placement back into p's authored coordinates, so a
// position the user dragged to can be stored as a profile. Only BasePosition
// and BaseSize change. Rounding makes Place(Unplace(q)) land within a pixel
// of q when no clamping was involved.
func (r *Resolver) Unplace(p GeometryProfile, q geometry.Placement, m geometry.ScreenMetrics) GeometryProfile {
	p = p.Normalize()
	if m.WidthPx <= 0 || m.HeightPx <= 0 {
		return p
	}

	scaleX := float64(m.WidthPx) / float64(p.TargetWidth)
	scaleY := float64(m.HeightPx) / float64(p.TargetHeight)

	x, y := float64(q.X), float64(q.Y)
	if r.swap.Swap(p, m.Orientation) {
		x, y = y, x
	}
	p.BasePosition = geometry.Point{
		X: int(math.Round(x / scaleX)),
		Y: int(math.Round(y / scaleY)),
	}

	if sizeScale := math.Min(scaleX, scaleY) * m.EffectiveDensity(); sizeScale > 0 && q.Size > 0 {
		p.BaseSize = max(1, int(math.Round(float64(q.Size)/sizeScale)))
	}
	return p
}

func clampSize(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
