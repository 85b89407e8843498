package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/monitor"
	"github.com/1broseidon/overlayd/internal/profile"
	"github.com/1broseidon/overlayd/internal/runtimepath"
)

// Config represents the overlayd configuration
type Config struct {
	LogLevel string `yaml:"log_level"`
	Display  string `yaml:"display,omitempty"`

	// Foreground detection
	PollIntervalMs   int      `yaml:"poll_interval_ms"`
	StableSamples    int      `yaml:"stable_samples"`
	IgnoredTargets   []string `yaml:"ignored_targets"`
	OnlyKnownTargets bool     `yaml:"only_known_targets"`

	// Overlay interaction
	DragThresholdPx  int    `yaml:"drag_threshold_px"`
	SurfaceTimeoutMs int    `yaml:"surface_timeout_ms"`
	ToggleHotkey     string `yaml:"toggle_hotkey"`
	SaveHotkey       string `yaml:"save_hotkey"`

	// Placement policy
	AxisSwap        string           `yaml:"axis_swap"`
	SizeMin         int              `yaml:"size_min"`
	SizeMax         int              `yaml:"size_max"`
	SafeArea        SafeArea         `yaml:"safe_area"`
	Cutout          *geometry.Insets `yaml:"cutout,omitempty"`
	DensityOverride float64          `yaml:"density_override,omitempty"`

	StoreDir string            `yaml:"store_dir,omitempty"`
	Targets  map[string]Target `yaml:"targets"`
}

// SafeArea overrides the safe-area policy constants.
type SafeArea struct {
	NavBarDp       float64 `yaml:"nav_bar_dp"`
	MinShortSidePx int     `yaml:"min_short_side_px"`
	MinLongSidePx  int     `yaml:"min_long_side_px"`
	MinUsableDp    float64 `yaml:"min_usable_dp"`
}

// Target is a geometry profile declared in YAML, keyed by window class.
type Target struct {
	DisplayName          string   `yaml:"display_name,omitempty"`
	TargetWidth          int      `yaml:"target_width,omitempty"`
	TargetHeight         int      `yaml:"target_height,omitempty"`
	X                    int      `yaml:"x"`
	Y                    int      `yaml:"y"`
	Size                 int      `yaml:"size"`
	Opacity              *float64 `yaml:"opacity,omitempty"`
	Color                string   `yaml:"color,omitempty"`
	RequiresElevatedMode bool     `yaml:"requires_elevated_mode,omitempty"`
	RefreshRateHint      int      `yaml:"refresh_rate_hint,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		PollIntervalMs:   int(monitor.DefaultPollInterval / time.Millisecond),
		StableSamples:    1,
		IgnoredTargets:   []string{"overlayd"},
		DragThresholdPx:  10,
		SurfaceTimeoutMs: 2000,
		ToggleHotkey:     "Mod4-Mod1-o",
		SaveHotkey:       "Mod4-Mod1-s",
		AxisSwap:         profile.SwapOnAspectMismatch.Name(),
		SizeMin:          profile.DefaultMinSize,
		SizeMax:          profile.DefaultMaxSize,
		SafeArea: SafeArea{
			NavBarDp:       geometry.DefaultNavBarDp,
			MinShortSidePx: geometry.DefaultMinShortSidePx,
			MinLongSidePx:  geometry.DefaultMinLongSidePx,
			MinUsableDp:    geometry.DefaultMinUsableDp,
		},
		Targets: map[string]Target{},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	if c.PollIntervalMs < int(monitor.MinInterval/time.Millisecond) {
		return &ValidationError{Path: "poll_interval_ms", Err: fmt.Errorf("poll_interval_ms must be >= %d", monitor.MinInterval/time.Millisecond)}
	}
	if c.StableSamples < 1 {
		return &ValidationError{Path: "stable_samples", Err: fmt.Errorf("stable_samples must be >= 1")}
	}
	for i, id := range c.IgnoredTargets {
		if strings.TrimSpace(id) == "" {
			return &ValidationError{Path: fmt.Sprintf("ignored_targets[%d]", i), Err: fmt.Errorf("ignored target must not be empty")}
		}
	}
	if c.DragThresholdPx < 1 {
		return &ValidationError{Path: "drag_threshold_px", Err: fmt.Errorf("drag_threshold_px must be >= 1")}
	}
	if c.SurfaceTimeoutMs < 1 {
		return &ValidationError{Path: "surface_timeout_ms", Err: fmt.Errorf("surface_timeout_ms must be >= 1")}
	}
	if _, err := profile.AxisSwapPolicyByName(c.AxisSwap); err != nil {
		return &ValidationError{Path: "axis_swap", Err: err}
	}
	if c.SizeMin < 1 {
		return &ValidationError{Path: "size_min", Err: fmt.Errorf("size_min must be >= 1")}
	}
	if c.SizeMax < c.SizeMin {
		return &ValidationError{Path: "size_max", Err: fmt.Errorf("size_max must be >= size_min (%d)", c.SizeMin)}
	}
	if c.SafeArea.MinShortSidePx < 0 || c.SafeArea.MinLongSidePx < 0 || c.SafeArea.MinUsableDp < 0 {
		return &ValidationError{Path: "safe_area", Err: fmt.Errorf("safe_area minimums must be >= 0")}
	}
	if c.Cutout != nil && (c.Cutout.Top < 0 || c.Cutout.Bottom < 0 || c.Cutout.Left < 0 || c.Cutout.Right < 0) {
		return &ValidationError{Path: "cutout", Err: fmt.Errorf("cutout values must be >= 0")}
	}
	if c.DensityOverride < 0 {
		return &ValidationError{Path: "density_override", Err: fmt.Errorf("density_override must be >= 0")}
	}
	for _, id := range c.TargetIDs() {
		t := c.Targets[id]
		path := "targets." + id
		if strings.TrimSpace(id) == "" {
			return &ValidationError{Path: "targets", Err: fmt.Errorf("targets contains an empty id")}
		}
		if t.Size <= 0 {
			return &ValidationError{Path: path + ".size", Err: fmt.Errorf("size must be > 0")}
		}
		if t.TargetWidth < 0 || t.TargetHeight < 0 {
			return &ValidationError{Path: path, Err: fmt.Errorf("target_width and target_height must be >= 0")}
		}
		if t.Opacity != nil && (*t.Opacity < 0 || *t.Opacity > 1) {
			return &ValidationError{Path: path + ".opacity", Err: fmt.Errorf("opacity must be between 0 and 1")}
		}
		if t.Color != "" {
			if _, err := ParseColor(t.Color); err != nil {
				return &ValidationError{Path: path + ".color", Err: err}
			}
		}
	}
	return nil
}

// PollInterval returns the foreground sampling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SurfaceTimeout returns the bound on each overlay window call.
func (c *Config) SurfaceTimeout() time.Duration {
	return time.Duration(c.SurfaceTimeoutMs) * time.Millisecond
}

// SlogLevel maps log_level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SafeAreaPolicy returns the configured safe-area policy.
func (c *Config) SafeAreaPolicy() geometry.SafeAreaPolicy {
	return geometry.SafeAreaPolicy{
		NavBarDp:       c.SafeArea.NavBarDp,
		MinShortSidePx: c.SafeArea.MinShortSidePx,
		MinLongSidePx:  c.SafeArea.MinLongSidePx,
		MinUsableDp:    c.SafeArea.MinUsableDp,
	}
}

// ResolverConfig returns the placement policy.
func (c *Config) ResolverConfig() (profile.ResolverConfig, error) {
	swap, err := profile.AxisSwapPolicyByName(c.AxisSwap)
	if err != nil {
		return profile.ResolverConfig{}, err
	}
	return profile.ResolverConfig{AxisSwap: swap, MinSize: c.SizeMin, MaxSize: c.SizeMax}, nil
}

// TargetIDs returns the configured target ids sorted.
func (c *Config) TargetIDs() []string {
	ids := make([]string, 0, len(c.Targets))
	for id := range c.Targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TargetProfiles converts the targets section into geometry profiles.
func (c *Config) TargetProfiles() ([]profile.GeometryProfile, error) {
	out := make([]profile.GeometryProfile, 0, len(c.Targets))
	for _, id := range c.TargetIDs() {
		t := c.Targets[id]
		p := profile.New(id)
		if t.DisplayName != "" {
			p.DisplayName = t.DisplayName
		}
		p.TargetWidth = t.TargetWidth
		p.TargetHeight = t.TargetHeight
		p.BasePosition = geometry.Point{X: t.X, Y: t.Y}
		p.BaseSize = t.Size
		if t.Opacity != nil {
			p.Opacity = *t.Opacity
		}
		if t.Color != "" {
			color, err := ParseColor(t.Color)
			if err != nil {
				return nil, &ValidationError{Path: "targets." + id + ".color", Err: err}
			}
			p.ColorARGB = color
		}
		p.RequiresElevatedMode = t.RequiresElevatedMode
		if t.RefreshRateHint > 0 {
			p.RefreshRateHint = t.RefreshRateHint
		}
		p = p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, &ValidationError{Path: "targets." + id, Err: err}
		}
		out = append(out, p)
	}
	return out, nil
}

// ResolvedStoreDir returns store_dir or the default data directory.
func (c *Config) ResolvedStoreDir() (string, error) {
	if strings.TrimSpace(c.StoreDir) != "" {
		return ExpandHome(c.StoreDir)
	}
	return runtimepath.DataDir()
}

// ParseColor accepts #RRGGBB, #AARRGGBB or 0xAARRGGBB. Six-digit colors are opaque.
func ParseColor(s string) (uint32, error) {
	v := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(v, "#"):
		v = v[1:]
	case strings.HasPrefix(v, "0x"), strings.HasPrefix(v, "0X"):
		v = v[2:]
	}
	if len(v) != 6 && len(v) != 8 {
		return 0, fmt.Errorf("invalid color %q (expected #RRGGBB or #AARRGGBB)", s)
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(v) == 6 {
		n |= 0xFF000000
	}
	return uint32(n), nil
}

// FormatColor renders an ARGB color as #AARRGGBB.
func FormatColor(argb uint32) string {
	return fmt.Sprintf("#%08X", argb)
}
