package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/profile"
	"github.com/1broseidon/overlayd/internal/store"
)

// Profile sources reported by list_profiles.
const (
	SourceStore   = "store"
	SourceConfig  = "config"
	SourceBuiltin = "builtin"
)

func recordInfo(r store.Record) ProfileInfo {
	p := r.Profile()
	info := profileInfo(p, SourceStore)
	info.ModifiedAt = r.ModifiedAt
	return info
}

func profileInfo(p profile.GeometryProfile, source string) ProfileInfo {
	return ProfileInfo{
		Name:                 p.ID,
		Source:               source,
		X:                    p.BasePosition.X,
		Y:                    p.BasePosition.Y,
		Size:                 p.BaseSize,
		Opacity:              p.Opacity,
		Color:                config.FormatColor(p.ColorARGB),
		TargetWidth:          p.TargetWidth,
		TargetHeight:         p.TargetHeight,
		RequiresElevatedMode: p.RequiresElevatedMode,
		RefreshRateHint:      p.RefreshRateHint,
	}
}

func (s *Server) handleListProfiles(_ context.Context, _ *mcpsdk.CallToolRequest, args ListProfilesInput) (*mcpsdk.CallToolResult, ListProfilesOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.store.List()
	out := ListProfilesOutput{Profiles: make([]ProfileInfo, 0, len(records))}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		out.Profiles = append(out.Profiles, recordInfo(r))
		seen[r.Name] = true
	}
	if !args.IncludeBuiltin {
		return nil, out, nil
	}

	targets, err := s.config.TargetProfiles()
	if err != nil {
		return nil, ListProfilesOutput{}, err
	}
	for _, p := range targets {
		if !seen[p.ID] {
			out.Profiles = append(out.Profiles, profileInfo(p, SourceConfig))
			seen[p.ID] = true
		}
	}
	builtins := profile.BuiltinProfiles()
	for _, id := range []string{profile.DefaultProfileID, profile.EightBallPoolID} {
		if !seen[id] {
			out.Profiles = append(out.Profiles, profileInfo(builtins[id], SourceBuiltin))
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetProfile(_ context.Context, _ *mcpsdk.CallToolRequest, args NameInput) (*mcpsdk.CallToolResult, ProfileInfo, error) {
	rec, err := s.store.Get(args.Name)
	if err != nil {
		return nil, ProfileInfo{}, err
	}
	return nil, recordInfo(rec), nil
}

func (s *Server) handleSaveProfile(_ context.Context, _ *mcpsdk.CallToolRequest, args SaveProfileInput) (*mcpsdk.CallToolResult, ProfileInfo, error) {
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return nil, ProfileInfo{}, fmt.Errorf("name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields := store.DefaultFields()
	if rec, err := s.store.Get(name); err == nil {
		fields = rec.Fields()
	}
	if err := applySaveInput(&fields, args); err != nil {
		return nil, ProfileInfo{}, err
	}

	rec, err := s.store.Save(name, fields)
	if err != nil {
		return nil, ProfileInfo{}, err
	}
	s.logger.Info("profile saved", "name", rec.Name, "x", rec.X, "y", rec.Y, "size", rec.Size)
	return nil, recordInfo(rec), nil
}

func applySaveInput(f *store.Fields, args SaveProfileInput) error {
	if args.X != nil {
		f.X = *args.X
	}
	if args.Y != nil {
		f.Y = *args.Y
	}
	if args.Size != nil {
		f.Size = *args.Size
	}
	if args.Opacity != nil {
		f.Opacity = *args.Opacity
	}
	if args.Color != "" {
		color, err := config.ParseColor(args.Color)
		if err != nil {
			return err
		}
		f.ColorARGB = color
	}
	if args.TargetWidth != nil {
		f.TargetWidth = *args.TargetWidth
	}
	if args.TargetHeight != nil {
		f.TargetHeight = *args.TargetHeight
	}
	if args.RequiresElevatedMode != nil {
		f.RequiresElevatedMode = *args.RequiresElevatedMode
	}
	if args.RefreshRateHint != nil {
		f.RefreshRateHint = *args.RefreshRateHint
	}
	return nil
}

func (s *Server) handleDeleteProfile(_ context.Context, _ *mcpsdk.CallToolRequest, args NameInput) (*mcpsdk.CallToolResult, DeleteProfileOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(args.Name); err != nil {
		return nil, DeleteProfileOutput{}, err
	}
	s.logger.Info("profile deleted", "name", args.Name)
	return nil, DeleteProfileOutput{Deleted: args.Name}, nil
}

func (s *Server) handleDuplicateProfile(_ context.Context, _ *mcpsdk.CallToolRequest, args DuplicateProfileInput) (*mcpsdk.CallToolResult, ProfileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Duplicate(args.Source, args.Name)
	if err != nil {
		return nil, ProfileInfo{}, err
	}
	return nil, recordInfo(rec), nil
}

func (s *Server) handleExportProfiles(_ context.Context, _ *mcpsdk.CallToolRequest, args PathInput) (*mcpsdk.CallToolResult, ExportProfilesOutput, error) {
	if strings.TrimSpace(args.Path) == "" {
		return nil, ExportProfilesOutput{}, fmt.Errorf("path is required")
	}
	if err := s.store.Export(args.Path); err != nil {
		return nil, ExportProfilesOutput{}, err
	}
	return nil, ExportProfilesOutput{Path: args.Path, Profiles: len(s.store.List())}, nil
}

func (s *Server) handleImportProfiles(_ context.Context, _ *mcpsdk.CallToolRequest, args ImportProfilesInput) (*mcpsdk.CallToolResult, ImportProfilesOutput, error) {
	if strings.TrimSpace(args.Path) == "" {
		return nil, ImportProfilesOutput{}, fmt.Errorf("path is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.store.Import(args.Path, args.Overwrite)
	if err != nil {
		return nil, ImportProfilesOutput{}, err
	}
	out := ImportProfilesOutput{
		Added:     res.Added,
		Replaced:  res.Replaced,
		Skipped:   res.Skipped,
		Malformed: res.Malformed,
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return nil, out, nil
}

func (s *Server) handleProfileStats(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StatsOutput, error) {
	return nil, s.store.Stats(), nil
}

func (s *Server) handleCleanupProfiles(_ context.Context, _ *mcpsdk.CallToolRequest, args CleanupProfilesInput) (*mcpsdk.CallToolResult, CleanupProfilesOutput, error) {
	if args.OlderThanDays <= 0 {
		return nil, CleanupProfilesOutput{}, fmt.Errorf("older_than_days must be > 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.store.Cleanup(time.Duration(args.OlderThanDays) * 24 * time.Hour)
	if err != nil {
		return nil, CleanupProfilesOutput{}, err
	}
	if removed == nil {
		removed = []string{}
	}
	s.logger.Info("profiles cleaned up", "removed", len(removed), "older_than_days", args.OlderThanDays)
	return nil, CleanupProfilesOutput{Removed: removed}, nil
}

func (s *Server) handleResolvePlacement(_ context.Context, _ *mcpsdk.CallToolRequest, args ResolvePlacementInput) (*mcpsdk.CallToolResult, ResolvePlacementOutput, error) {
	m, err := metricsFromInput(args)
	if err != nil {
		return nil, ResolvePlacementOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := daemon.NewRegistry(s.config, s.store)
	if err != nil {
		return nil, ResolvePlacementOutput{}, err
	}
	id := args.Profile
	if id == "" {
		id = profile.DefaultProfileID
	}
	preview, err := daemon.PreviewPlacement(s.config, reg, id, m, args.Cutout)
	if err != nil {
		return nil, ResolvePlacementOutput{}, err
	}
	return nil, preview, nil
}

func metricsFromInput(args ResolvePlacementInput) (geometry.ScreenMetrics, error) {
	if args.Width <= 0 || args.Height <= 0 {
		return geometry.ScreenMetrics{}, fmt.Errorf("width and height must be > 0 (got %dx%d)", args.Width, args.Height)
	}
	m := geometry.ScreenMetrics{
		WidthPx:     args.Width,
		HeightPx:    args.Height,
		Density:     args.Density,
		Orientation: geometry.OrientationFor(args.Width, args.Height),
	}
	if m.Density <= 0 {
		m.Density = 1
	}
	if args.Orientation != "" {
		o, err := geometry.ParseOrientation(args.Orientation)
		if err != nil {
			return geometry.ScreenMetrics{}, err
		}
		m.Orientation = o
	}
	return m, nil
}

func (s *Server) handleOverlayStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, OverlayStatusOutput, error) {
	st, err := s.daemon.Status()
	if err != nil {
		return nil, OverlayStatusOutput{Error: err.Error()}, nil
	}
	return nil, OverlayStatusOutput{
		Running:       true,
		Target:        st.Target,
		ProfileID:     st.ProfileID,
		Known:         st.Known,
		Visible:       st.Overlay.Visible,
		Reason:        st.Reason,
		Placement:     st.Placement,
		Orientation:   st.Metrics.Orientation.String(),
		UptimeSeconds: st.UptimeSeconds,
	}, nil
}
