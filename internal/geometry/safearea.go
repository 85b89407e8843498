package geometry

import "math"

// Safe-area policy defaults.
const (
	// DefaultNavBarDp is the estimated navigation bar height in density-independent units.
	DefaultNavBarDp = 48.0
	// DefaultMinShortSidePx and DefaultMinLongSidePx are the smallest screen
	// the overlay is considered usable on (720×1280 in either orientation).
	DefaultMinShortSidePx = 720
	DefaultMinLongSidePx  = 1280
	// DefaultMinUsableDp is the smallest usable area, per axis, after insets.
	DefaultMinUsableDp = 200.0
)

// SafeAreaPolicy holds the named constants used to compute and judge the
// usable screen area. Zero fields fall back to the defaults above.
type SafeAreaPolicy struct {
	NavBarDp       float64
	MinShortSidePx int
	MinLongSidePx  int
	MinUsableDp    float64
}

// DefaultSafeAreaPolicy returns the policy with every default applied.
func DefaultSafeAreaPolicy() SafeAreaPolicy {
	return SafeAreaPolicy{
		NavBarDp:       DefaultNavBarDp,
		MinShortSidePx: DefaultMinShortSidePx,
		MinLongSidePx:  DefaultMinLongSidePx,
		MinUsableDp:    DefaultMinUsableDp,
	}
}

func (p SafeAreaPolicy) withDefaults() SafeAreaPolicy {
	d := DefaultSafeAreaPolicy()
	if p.NavBarDp < 0 {
		p.NavBarDp = 0
	} else if p.NavBarDp == 0 {
		p.NavBarDp = d.NavBarDp
	}
	if p.MinShortSidePx <= 0 {
		p.MinShortSidePx = d.MinShortSidePx
	}
	if p.MinLongSidePx <= 0 {
		p.MinLongSidePx = d.MinLongSidePx
	}
	if p.MinUsableDp <= 0 {
		p.MinUsableDp = d.MinUsableDp
	}
	return p
}

// NavBarPx returns the navigation bar margin for the given density.
func (p SafeAreaPolicy) NavBarPx(density float64) int {
	p = p.withDefaults()
	if density <= 0 {
		density = 1
	}
	return int(math.Round(p.NavBarDp * density))
}

// UsableRect returns the screen minus cutout insets minus the navigation bar
// margin. The bar sits on the bottom edge in portrait and on the right edge in
// landscape. Without cutout data the full screen rect is returned.
func (p SafeAreaPolicy) UsableRect(m ScreenMetrics, cutout *Insets) Rect {
	full := m.Bounds()
	if cutout == nil {
		return full
	}

	r := Rect{
		X:      cutout.Left,
		Y:      cutout.Top,
		Width:  m.WidthPx - cutout.Left - cutout.Right,
		Height: m.HeightPx - cutout.Top - cutout.Bottom,
	}

	nav := p.NavBarPx(m.EffectiveDensity())
	if m.Orientation.Portrait() {
		r.Height -= nav
	} else {
		r.Width -= nav
	}

	if r.Width < 0 {
		r.Width = 0
	}
	if r.Height < 0 {
		r.Height = 0
	}
	return r.Intersect(full)
}

// IsSuitable reports whether the screen is large enough to host the overlay.
func (p SafeAreaPolicy) IsSuitable(m ScreenMetrics, cutout *Insets) bool {
	p = p.withDefaults()

	short, long := m.WidthPx, m.HeightPx
	if short > long {
		short, long = long, short
	}
	if short < p.MinShortSidePx || long < p.MinLongSidePx {
		return false
	}

	usable := p.UsableRect(m, cutout)
	minPx := int(math.Round(p.MinUsableDp * m.EffectiveDensity()))
	return usable.Width >= minPx && usable.Height >= minPx
}

// WithSafeArea returns m with SafeArea set from the policy.
func (p SafeAreaPolicy) WithSafeArea(m ScreenMetrics, cutout *Insets) ScreenMetrics {
	if cutout == nil {
		m.SafeArea = nil
		return m
	}
	r := p.UsableRect(m, cutout)
	m.SafeArea = &r
	return m
}
