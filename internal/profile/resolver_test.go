package profile

import (
	"testing"

	"github.com/1broseidon/overlayd/internal/geometry"
)

func poolProfile() GeometryProfile {
	p := New("pool")
	p.TargetWidth = 1920
	p.TargetHeight = 1080
	p.BasePosition = geometry.Point{X: 200, Y: 300}
	p.BaseSize = 70
	return p
}

func TestPlace_PortraitPhoneSwapsAxesAndScalesSize(t *testing.T) {
	r := NewResolver(NewBuiltinRegistry(), ResolverConfig{})
	m := geometry.ScreenMetrics{
		WidthPx:     1080,
		HeightPx:    2400,
		Density:     2.75,
		Orientation: geometry.OrientationPortrait,
	}

	got := r.Place(poolProfile(), m)

	// scaleX = 0.5625, scaleY = 2.222; scaled = (112.5, 666.6) then swapped.
	// size = 70 * 0.5625 * 2.75 = 108.28.
	want := geometry.Placement{X: 666, Y: 112, Size: 108}
	if got != want {
		t.Fatalf("Place() = %+v, want %+v", got, want)
	}
	if !m.Bounds().Contains(got.Rect()) {
		t.Fatalf("placement %+v not on screen %+v", got.Rect(), m.Bounds())
	}
}

func TestPlace_Table(t *testing.T) {
	landscape := geometry.ScreenMetrics{WidthPx: 1920, HeightPx: 1080, Density: 1, Orientation: geometry.OrientationLandscape}
	safe := geometry.Rect{X: 100, Y: 50, Width: 1700, Height: 980}

	tests := []struct {
		name    string
		cfg     ResolverConfig
		profile func() GeometryProfile
		metrics geometry.ScreenMetrics
		want    geometry.Placement
	}{
		{
			name:    "identity at reference resolution",
			profile: poolProfile,
			metrics: landscape,
			want:    geometry.Placement{X: 200, Y: 300, Size: 70},
		},
		{
			name: "size clamped to minimum",
			profile: func() GeometryProfile {
				p := poolProfile()
				p.BaseSize = 10
				return p
			},
			metrics: landscape,
			want:    geometry.Placement{X: 200, Y: 300, Size: 50},
		},
		{
			name:    "size clamped to maximum",
			profile: poolProfile,
			metrics: geometry.ScreenMetrics{WidthPx: 3840, HeightPx: 2160, Density: 3, Orientation: geometry.OrientationLandscape},
			want:    geometry.Placement{X: 400, Y: 600, Size: 200},
		},
		{
			name: "position clamped to right and bottom edge",
			profile: func() GeometryProfile {
				p := poolProfile()
				p.BasePosition = geometry.Point{X: 5000, Y: 5000}
				return p
			},
			metrics: landscape,
			want:    geometry.Placement{X: 1920 - 70, Y: 1080 - 70, Size: 70},
		},
		{
			name: "negative position clamped to origin",
			profile: func() GeometryProfile {
				p := poolProfile()
				p.BasePosition = geometry.Point{X: -40, Y: -1}
				return p
			},
			metrics: landscape,
			want:    geometry.Placement{X: 0, Y: 0, Size: 70},
		},
		{
			name: "safe area pulls placement inward",
			profile: func() GeometryProfile {
				p := poolProfile()
				p.BasePosition = geometry.Point{X: 0, Y: 0}
				return p
			},
			metrics: func() geometry.ScreenMetrics {
				m := landscape
				m.SafeArea = &safe
				return m
			}(),
			want: geometry.Placement{X: 100, Y: 50, Size: 70},
		},
		{
			name:    "never swap keeps axes",
			cfg:     ResolverConfig{AxisSwap: NeverSwap},
			profile: poolProfile,
			metrics: geometry.ScreenMetrics{WidthPx: 1080, HeightPx: 2400, Density: 2.75, Orientation: geometry.OrientationPortrait},
			want:    geometry.Placement{X: 112, Y: 666, Size: 108},
		},
		{
			name:    "custom size bounds",
			cfg:     ResolverConfig{MinSize: 20, MaxSize: 60},
			profile: poolProfile,
			metrics: landscape,
			want:    geometry.Placement{X: 200, Y: 300, Size: 60},
		},
		{
			name: "zero target resolution uses reference",
			profile: func() GeometryProfile {
				p := poolProfile()
				p.TargetWidth, p.TargetHeight = 0, 0
				return p
			},
			metrics: landscape,
			want:    geometry.Placement{X: 200, Y: 300, Size: 70},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(NewBuiltinRegistry(), tt.cfg)
			got := r.Place(tt.profile(), tt.metrics)
			if got != tt.want {
				t.Fatalf("Place() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlace_AlwaysOnScreen(t *testing.T) {
	r := NewResolver(NewBuiltinRegistry(), ResolverConfig{})
	screens := []geometry.ScreenMetrics{
		{WidthPx: 720, HeightPx: 1280, Density: 2, Orientation: geometry.OrientationPortrait},
		{WidthPx: 1080, HeightPx: 2400, Density: 2.75, Orientation: geometry.OrientationPortrait},
		{WidthPx: 2400, HeightPx: 1080, Density: 2.75, Orientation: geometry.OrientationReverseLandscape},
		{WidthPx: 1280, HeightPx: 800, Density: 1, Orientation: geometry.OrientationLandscape},
		{WidthPx: 40, HeightPx: 30, Density: 1, Orientation: geometry.OrientationLandscape},
	}
	positions := []geometry.Point{{X: 0, Y: 0}, {X: 1919, Y: 1079}, {X: -500, Y: 9000}, {X: 960, Y: 540}}
	sizes := []int{1, 70, 150, 1000}

	for _, m := range screens {
		for _, pos := range positions {
			for _, size := range sizes {
				p := poolProfile()
				p.BasePosition = pos
				p.BaseSize = size
				got := r.Place(p, m)
				if !m.Bounds().Contains(got.Rect()) {
					t.Fatalf("screen %dx%d pos %+v size %d: placement %+v off screen",
						m.WidthPx, m.HeightPx, pos, size, got)
				}
			}
		}
	}
}

func TestResolve_UnknownIDUsesDefault(t *testing.T) {
	reg := NewBuiltinRegistry()
	r := NewResolver(reg, ResolverConfig{})
	m := geometry.ScreenMetrics{WidthPx: 1920, HeightPx: 1080, Density: 1, Orientation: geometry.OrientationLandscape}

	got := r.Resolve("org.example.unknown", m)
	want := r.Place(BuiltinDefault(), m)
	if got != want {
		t.Fatalf("Resolve(unknown) = %+v, want default placement %+v", got, want)
	}
}

func TestAxisSwapPolicies(t *testing.T) {
	landscapeProfile := poolProfile()
	portraitProfile := poolProfile()
	portraitProfile.TargetWidth, portraitProfile.TargetHeight = 1080, 1920

	tests := []struct {
		policy AxisSwapPolicy
		p      GeometryProfile
		o      geometry.Orientation
		want   bool
	}{
		{SwapOnAspectMismatch, landscapeProfile, geometry.OrientationPortrait, true},
		{SwapOnAspectMismatch, landscapeProfile, geometry.OrientationLandscape, false},
		{SwapOnAspectMismatch, portraitProfile, geometry.OrientationReverseLandscape, true},
		{SwapOnAspectMismatch, portraitProfile, geometry.OrientationReversePortrait, false},
		{SwapWhenPortrait, portraitProfile, geometry.OrientationPortrait, true},
		{SwapWhenPortrait, landscapeProfile, geometry.OrientationLandscape, false},
		{NeverSwap, landscapeProfile, geometry.OrientationPortrait, false},
	}
	for _, tt := range tests {
		if got := tt.policy.Swap(tt.p, tt.o); got != tt.want {
			t.Fatalf("%s.Swap(%dx%d, %v) = %v, want %v",
				tt.policy.Name(), tt.p.TargetWidth, tt.p.TargetHeight, tt.o, got, tt.want)
		}
	}
}

func TestAxisSwapPolicyByName(t *testing.T) {
	for _, name := range []string{"", "mismatch", "portrait", "never"} {
		if _, err := AxisSwapPolicyByName(name); err != nil {
			t.Fatalf("AxisSwapPolicyByName(%q) error: %v", name, err)
		}
	}
	if _, err := AxisSwapPolicyByName("diagonal"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestUnplace_InvertsPlace(t *testing.T) {
	r := NewResolver(NewBuiltinRegistry(), ResolverConfig{})
	screens := []geometry.ScreenMetrics{
		{WidthPx: 1920, HeightPx: 1080, Density: 1, Orientation: geometry.OrientationLandscape},
		{WidthPx: 2560, HeightPx: 1440, Density: 1, Orientation: geometry.OrientationLandscape},
		{WidthPx: 1080, HeightPx: 2400, Density: 2.75, Orientation: geometry.OrientationPortrait},
	}
	for _, m := range screens {
		dragged := geometry.Placement{X: 400, Y: 250, Size: 120}
		saved := r.Unplace(poolProfile(), dragged, m)
		got := r.Place(saved, m)
		if abs(got.X-dragged.X) > 1 || abs(got.Y-dragged.Y) > 1 || abs(got.Size-dragged.Size) > 1 {
			t.Fatalf("%dx%d: Place(Unplace(%+v)) = %+v", m.WidthPx, m.HeightPx, dragged, got)
		}
	}
}

func TestUnplace_KeepsIdentityFields(t *testing.T) {
	r := NewResolver(NewBuiltinRegistry(), ResolverConfig{})
	p := poolProfile()
	p.Opacity = 0.3
	m := geometry.ScreenMetrics{WidthPx: 1920, HeightPx: 1080, Density: 1, Orientation: geometry.OrientationLandscape}

	got := r.Unplace(p, geometry.Placement{X: 10, Y: 20, Size: 90}, m)
	if got.ID != p.ID || got.Opacity != 0.3 {
		t.Fatalf("Unplace() changed identity fields: %+v", got)
	}
	if got.BasePosition != (geometry.Point{X: 10, Y: 20}) || got.BaseSize != 90 {
		t.Fatalf("Unplace() = %+v", got)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
