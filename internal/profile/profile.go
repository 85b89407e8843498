package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/1broseidon/overlayd/internal/geometry"
)

// Reference resolution a profile is authored against when none is given.
const (
	ReferenceWidth  = 1920
	ReferenceHeight = 1080
)

// Field defaults for newly created profiles.
const (
	DefaultOpacity     = 0.8
	DefaultSize        = 100
	DefaultX           = 0
	DefaultY           = 100
	DefaultColorARGB   = 0xFFFF0000
	DefaultRefreshRate = 60
)

// GeometryProfile describes where and how large the overlay should be for a
// target application, relative to the resolution it was authored on.
type GeometryProfile struct {
	ID                   string         `json:"id"`
	DisplayName          string         `json:"display_name"`
	TargetWidth          int            `json:"target_width"`
	TargetHeight         int            `json:"target_height"`
	BasePosition         geometry.Point `json:"base_position"`
	BaseSize             int            `json:"base_size"`
	Opacity              float64        `json:"opacity"`
	ColorARGB            uint32         `json:"color_argb"`
	RequiresElevatedMode bool           `json:"requires_elevated_mode"`
	RefreshRateHint      int            `json:"refresh_rate_hint"`
	CreatedAt            time.Time      `json:"created_at"`
	ModifiedAt           time.Time      `json:"modified_at"`
}

// New returns a profile with every field defaulted.
func New(id string) GeometryProfile {
	return GeometryProfile{
		ID:              id,
		DisplayName:     id,
		TargetWidth:     ReferenceWidth,
		TargetHeight:    ReferenceHeight,
		BasePosition:    geometry.Point{X: DefaultX, Y: DefaultY},
		BaseSize:        DefaultSize,
		Opacity:         DefaultOpacity,
		ColorARGB:       DefaultColorARGB,
		RefreshRateHint: DefaultRefreshRate,
	}
}

// Normalize clamps opacity into [0,1] and fills zero-valued dimensions.
func (p GeometryProfile) Normalize() GeometryProfile {
	p.ID = strings.TrimSpace(p.ID)
	if p.DisplayName == "" {
		p.DisplayName = p.ID
	}
	if p.TargetWidth <= 0 {
		p.TargetWidth = ReferenceWidth
	}
	if p.TargetHeight <= 0 {
		p.TargetHeight = ReferenceHeight
	}
	p.Opacity = ClampOpacity(p.Opacity)
	return p
}

// Validate checks the invariants a profile must satisfy before registration.
func (p GeometryProfile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("profile id is required")
	}
	if p.BaseSize <= 0 {
		return fmt.Errorf("profile %q: base size must be > 0 (got %d)", p.ID, p.BaseSize)
	}
	if p.TargetWidth < 0 || p.TargetHeight < 0 {
		return fmt.Errorf("profile %q: target resolution must not be negative", p.ID)
	}
	return nil
}

// Landscape reports whether the profile was authored for a landscape screen.
func (p GeometryProfile) Landscape() bool {
	return p.TargetWidth >= p.TargetHeight
}

// ClampOpacity limits v to [0,1].
func ClampOpacity(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
