package mcp

import (
	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/store"
)

// ListProfilesInput is the input for the list_profiles tool.
type ListProfilesInput struct {
	IncludeBuiltin bool `json:"include_builtin,omitempty" jsonschema:"Also list built-in and config profiles that have no stored record"`
}

// ProfileInfo describes one known profile.
type ProfileInfo struct {
	Name                 string  `json:"name"`
	Source               string  `json:"source"`
	X                    int     `json:"x"`
	Y                    int     `json:"y"`
	Size                 int     `json:"size"`
	Opacity              float64 `json:"opacity"`
	Color                string  `json:"color"`
	TargetWidth          int     `json:"target_width"`
	TargetHeight         int     `json:"target_height"`
	RequiresElevatedMode bool    `json:"requires_elevated_mode"`
	RefreshRateHint      int     `json:"refresh_rate_hint"`
	ModifiedAt           int64   `json:"modified_at,omitempty"`
}

// ListProfilesOutput is the output for the list_profiles tool.
type ListProfilesOutput struct {
	Profiles []ProfileInfo `json:"profiles"`
}

// NameInput selects one stored profile.
type NameInput struct {
	Name string `json:"name" jsonschema:"Profile name, usually the target window class"`
}

// SaveProfileInput is the input for the save_profile tool. Omitted fields
// keep the stored value, or the default for a new profile.
type SaveProfileInput struct {
	Name                 string   `json:"name" jsonschema:"Profile name, usually the target window class"`
	X                    *int     `json:"x,omitempty" jsonschema:"Base X in reference pixels"`
	Y                    *int     `json:"y,omitempty" jsonschema:"Base Y in reference pixels"`
	Size                 *int     `json:"size,omitempty" jsonschema:"Base size in reference pixels (> 0)"`
	Opacity              *float64 `json:"opacity,omitempty" jsonschema:"Opacity between 0 and 1"`
	Color                string   `json:"color,omitempty" jsonschema:"Color as #RRGGBB or #AARRGGBB"`
	TargetWidth          *int     `json:"target_width,omitempty" jsonschema:"Reference width the position was authored against"`
	TargetHeight         *int     `json:"target_height,omitempty" jsonschema:"Reference height the position was authored against"`
	RequiresElevatedMode *bool    `json:"requires_elevated_mode,omitempty" jsonschema:"Consult the elevated executor when this profile becomes active"`
	RefreshRateHint      *int     `json:"refresh_rate_hint,omitempty" jsonschema:"Refresh rate hint in Hz"`
}

// DuplicateProfileInput is the input for the duplicate_profile tool.
type DuplicateProfileInput struct {
	Source string `json:"source" jsonschema:"Existing profile name"`
	Name   string `json:"name" jsonschema:"Name for the copy"`
}

// DeleteProfileOutput is the output for the delete_profile tool.
type DeleteProfileOutput struct {
	Deleted string `json:"deleted"`
}

// PathInput names a file for export.
type PathInput struct {
	Path string `json:"path" jsonschema:"File path"`
}

// ExportProfilesOutput is the output for the export_profiles tool.
type ExportProfilesOutput struct {
	Path     string `json:"path"`
	Profiles int    `json:"profiles"`
}

// ImportProfilesInput is the input for the import_profiles tool.
type ImportProfilesInput struct {
	Path      string `json:"path" jsonschema:"File written by export_profiles"`
	Overwrite bool   `json:"overwrite,omitempty" jsonschema:"Replace profiles that already exist (default: skip them)"`
}

// ImportProfilesOutput is the output for the import_profiles tool.
type ImportProfilesOutput struct {
	Added     int      `json:"added"`
	Replaced  int      `json:"replaced"`
	Skipped   int      `json:"skipped"`
	Malformed int      `json:"malformed"`
	Errors    []string `json:"errors,omitempty"`
}

// EmptyInput is used by tools without arguments.
type EmptyInput struct{}

// CleanupProfilesInput is the input for the cleanup_profiles tool.
type CleanupProfilesInput struct {
	OlderThanDays int `json:"older_than_days" jsonschema:"Remove profiles not modified in this many days (> 0)"`
}

// CleanupProfilesOutput is the output for the cleanup_profiles tool.
type CleanupProfilesOutput struct {
	Removed []string `json:"removed"`
}

// ResolvePlacementInput is the input for the resolve_placement tool.
type ResolvePlacementInput struct {
	Profile     string           `json:"profile" jsonschema:"Profile or target id; unknown ids fall back to the default profile"`
	Width       int              `json:"width" jsonschema:"Screen width in pixels"`
	Height      int              `json:"height" jsonschema:"Screen height in pixels"`
	Density     float64          `json:"density,omitempty" jsonschema:"Density relative to 96 dpi (default: 1)"`
	Orientation string           `json:"orientation,omitempty" jsonschema:"portrait, landscape, reverse-portrait or reverse-landscape (default: from width and height)"`
	Cutout      *geometry.Insets `json:"cutout,omitempty" jsonschema:"Reserved insets per edge in pixels"`
}

// ResolvePlacementOutput is the output for the resolve_placement tool.
type ResolvePlacementOutput = daemon.Preview

// StatsOutput is the output for the profile_stats tool.
type StatsOutput = store.Stats

// OverlayStatusOutput is the output for the overlay_status tool.
type OverlayStatusOutput struct {
	Running       bool               `json:"running"`
	Target        string             `json:"target,omitempty"`
	ProfileID     string             `json:"profile_id,omitempty"`
	Known         bool               `json:"known"`
	Visible       bool               `json:"visible"`
	Reason        string             `json:"reason,omitempty"`
	Placement     geometry.Placement `json:"placement"`
	Orientation   string             `json:"orientation,omitempty"`
	UptimeSeconds int64              `json:"uptime_seconds,omitempty"`
	Error         string             `json:"error,omitempty"`
}
