package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/monitor"
	"github.com/1broseidon/overlayd/internal/overlay"
	"github.com/1broseidon/overlayd/internal/platform"
	"github.com/1broseidon/overlayd/internal/profile"
	"github.com/1broseidon/overlayd/internal/store"
)

// ErrNoCandidate is returned by SaveCandidate when no drag has been committed.
var ErrNoCandidate = errors.New("no dragged position to save")

// Reasons the overlay is held hidden.
const (
	ReasonUserHidden     = "hidden by user"
	ReasonUnknownTarget  = "target has no profile"
	ReasonScreenTooSmall = "screen unsuitable"
	ReasonNoMetrics      = "screen metrics unavailable"
)

// Options wires the daemon's collaborators.
type Options struct {
	Config   *config.Config
	Backend  platform.Backend
	Store    *store.Store
	Executor platform.ElevatedExecutor
	// Foreground replaces Backend as the foreground source when set.
	Foreground platform.ForegroundSource
	// LoadConfig re-reads configuration on Reload. Nil keeps the current config.
	LoadConfig func() (*config.Config, error)
	// ReconcileInterval is how often screen metrics are re-checked.
	ReconcileInterval time.Duration
	Logger            *slog.Logger
	Now               func() time.Time
}

// Status is a snapshot of what the daemon is doing.
type Status struct {
	Target        string                 `json:"target,omitempty"`
	ProfileID     string                 `json:"profile_id,omitempty"`
	Known         bool                   `json:"known"`
	Reason        string                 `json:"reason,omitempty"`
	Overlay       overlay.State          `json:"overlay"`
	Placement     geometry.Placement     `json:"placement"`
	Metrics       geometry.ScreenMetrics `json:"metrics"`
	Detection     monitor.DetectionState `json:"detection"`
	Profiles      int                    `json:"profiles"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
}

// ReloadResult summarizes a Reload.
type ReloadResult struct {
	Profiles int `json:"profiles"`
	Skipped  int `json:"skipped"`
}

// Daemon ties foreground detection, profile resolution and the overlay
// controller together.
type Daemon struct {
	backend   platform.Backend
	store     *store.Store
	executor  platform.ElevatedExecutor
	loadCfg   func() (*config.Config, error)
	logger    *slog.Logger
	now       func() time.Time
	reconcile time.Duration
	startedAt time.Time

	registry   *profile.Registry
	controller *overlay.Controller
	monitor    *monitor.Monitor

	// applyMu serializes placement changes from the monitor, hotkeys, IPC
	// and the reconciler.
	applyMu sync.Mutex

	mu         sync.Mutex
	cfg        *config.Config
	resolver   *profile.Resolver
	policy     geometry.SafeAreaPolicy
	target     string
	profileID  string
	known      bool
	reason     string
	suppressed bool
	placement  geometry.Placement
	metrics    geometry.ScreenMetrics // safe-area applied, as last resolved against
	rawMetrics geometry.ScreenMetrics
	rawCutout  *geometry.Insets
}

// New builds a daemon. The overlay controller starts immediately; foreground
// detection starts with Run.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("daemon config is nil")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("daemon backend is nil")
	}
	cfg := opts.Config

	d := &Daemon{
		backend:   opts.Backend,
		store:     opts.Store,
		executor:  opts.Executor,
		loadCfg:   opts.LoadConfig,
		logger:    opts.Logger,
		now:       opts.Now,
		reconcile: opts.ReconcileInterval,
		cfg:       cfg,
		policy:    cfg.SafeAreaPolicy(),
	}
	if d.executor == nil {
		d.executor = platform.RefusingExecutor{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.startedAt = d.now()

	registry, err := NewRegistry(cfg, opts.Store)
	if err != nil {
		return nil, err
	}
	resolverCfg, err := cfg.ResolverConfig()
	if err != nil {
		return nil, err
	}
	d.registry = registry
	d.resolver = profile.NewResolver(registry, resolverCfg)

	d.controller = overlay.New(overlay.Config{
		Surface:       opts.Backend,
		Initial:       geometry.Placement{Size: profile.DefaultMinSize},
		Opacity:       profile.DefaultOpacity,
		DragThreshold: cfg.DragThresholdPx,
		CallTimeout:   cfg.SurfaceTimeout(),
		Logger:        d.logger.With("component", "overlay"),
	})
	var source platform.ForegroundSource = opts.Backend
	if opts.Foreground != nil {
		source = opts.Foreground
	}
	d.monitor = monitor.New(source, monitor.Config{
		Interval:      cfg.PollInterval(),
		StableSamples: cfg.StableSamples,
		IgnoredIDs:    cfg.IgnoredTargets,
		OnTransition:  d.onTransition,
		Logger:        d.logger.With("component", "monitor"),
		Now:           d.now,
	})
	return d, nil
}

// Registry exposes the live profile registry.
func (d *Daemon) Registry() *profile.Registry { return d.registry }

// Run starts foreground detection and blocks until ctx is cancelled. On
// return the overlay is hidden and the controller closed.
func (d *Daemon) Run(ctx context.Context) error {
	handle, err := d.monitor.Start(ctx)
	if err != nil {
		return err
	}

	if id, ok := handle.Baseline(); ok {
		d.logger.Info("foreground at startup", "target", id)
		if err := d.apply(id); err != nil {
			d.logger.Warn("failed to place overlay", "target", id, "error", err)
		}
	}

	rec := NewReconciler(ReconcilerConfig{Interval: d.reconcile, Logger: d.logger}, d.checkMetrics)
	rec.Run(ctx)

	handle.Stop()
	if err := d.controller.Hide(); err != nil && !errors.Is(err, overlay.ErrClosed) {
		d.logger.Warn("failed to hide overlay on shutdown", "error", err)
	}
	d.controller.Close()
	return nil
}

func (d *Daemon) onTransition(tr monitor.Transition) {
	d.logger.Info("foreground changed", "from", tr.From, "to", tr.To)
	if err := d.apply(tr.To); err != nil {
		d.logger.Warn("failed to place overlay", "target", tr.To, "error", err)
	}
}

// apply resolves target's profile against the current screen and moves the
// overlay there, showing it unless something holds it hidden.
func (d *Daemon) apply(target string) error {
	d.applyMu.Lock()
	defer d.applyMu.Unlock()

	d.mu.Lock()
	cfg, resolver, policy, suppressed := d.cfg, d.resolver, d.policy, d.suppressed
	d.target = target
	d.mu.Unlock()

	p, known := d.registry.Lookup(target)
	if !known {
		p = d.registry.ResolveProfileFor(target)
	}
	d.setResolved(p.ID, known)

	if cfg.OnlyKnownTargets && !known {
		return d.holdHidden(ReasonUnknownTarget)
	}

	raw, cutout, err := d.backend.CurrentMetrics()
	if err != nil {
		_ = d.holdHidden(ReasonNoMetrics)
		return fmt.Errorf("failed to read screen metrics: %w", err)
	}
	if cfg.Cutout != nil {
		cutout = cfg.Cutout
	}
	if cfg.DensityOverride > 0 {
		raw.Density = cfg.DensityOverride
	}
	d.mu.Lock()
	d.rawMetrics, d.rawCutout = raw, cutout
	d.mu.Unlock()

	if !policy.IsSuitable(raw, cutout) {
		d.logger.Info("screen unsuitable for overlay", "width", raw.WidthPx, "height", raw.HeightPx, "density", raw.Density)
		return d.holdHidden(ReasonScreenTooSmall)
	}

	metrics := policy.WithSafeArea(raw, cutout)
	placement := resolver.Place(p, metrics)

	if err := d.controller.SetScreen(metrics.Bounds()); err != nil {
		return err
	}
	if err := d.controller.SetView(platform.View{Name: p.DisplayName, ColorARGB: p.ColorARGB}); err != nil {
		return err
	}
	u := overlay.UpdateFromPlacement(placement)
	opacity := p.Opacity
	u.Opacity = &opacity
	if err := d.controller.Update(u); err != nil {
		// Layout refusals keep the new state; the next show re-applies it.
		d.logger.Warn("overlay layout update failed", "error", err)
	}

	d.mu.Lock()
	d.placement, d.metrics = placement, metrics
	d.reason = ""
	if suppressed {
		d.reason = ReasonUserHidden
	}
	d.mu.Unlock()

	if p.RequiresElevatedMode {
		d.elevate(p)
	}

	d.logger.Debug("resolved placement", "target", target, "profile", p.ID, "known", known,
		"x", placement.X, "y", placement.Y, "size", placement.Size, "orientation", metrics.Orientation.String())

	if suppressed {
		return nil
	}
	return d.controller.Show()
}

func (d *Daemon) setResolved(profileID string, known bool) {
	d.mu.Lock()
	d.profileID, d.known = profileID, known
	d.mu.Unlock()
}

func (d *Daemon) holdHidden(reason string) error {
	d.mu.Lock()
	d.reason = reason
	d.mu.Unlock()
	return d.controller.Hide()
}

func (d *Daemon) elevate(p profile.GeometryProfile) {
	d.mu.Lock()
	timeout := d.cfg.SurfaceTimeout()
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	res, err := d.executor.Run(ctx, "overlay-elevate "+p.ID)
	switch {
	case errors.Is(err, platform.ErrElevatedUnavailable):
		d.logger.Debug("elevated mode unavailable", "profile", p.ID)
	case err != nil:
		d.logger.Warn("elevated command failed", "profile", p.ID, "error", err)
	default:
		d.logger.Info("elevated command ran", "profile", p.ID, "exit_code", res.ExitCode)
	}
}

// Show clears a user hide and shows the overlay for the current target, or
// for the default profile when nothing has been detected yet.
func (d *Daemon) Show() error {
	d.mu.Lock()
	d.suppressed = false
	target := d.target
	d.mu.Unlock()
	if target == "" {
		target = d.registry.DefaultID()
	}
	return d.apply(target)
}

// Hide hides the overlay until Show is called.
func (d *Daemon) Hide() error {
	d.mu.Lock()
	d.suppressed = true
	d.mu.Unlock()
	return d.holdHidden(ReasonUserHidden)
}

// ToggleOverlay flips between Show and Hide.
func (d *Daemon) ToggleOverlay() error {
	if d.controller.State().Visible {
		return d.Hide()
	}
	return d.Show()
}

// SavePosition stores the last dragged position into the current target's profile.
func (d *Daemon) SavePosition() error {
	rec, err := d.SaveCandidate("")
	if err != nil {
		return err
	}
	d.logger.Info("saved overlay position", "profile", rec.Name, "x", rec.X, "y", rec.Y, "size", rec.Size)
	return nil
}

// SaveCandidate converts the last committed drag back into profile
// coordinates and saves it under name. An empty name means the current
// target, or the default profile when nothing is detected.
func (d *Daemon) SaveCandidate(name string) (store.Record, error) {
	if d.store == nil {
		return store.Record{}, fmt.Errorf("no profile store configured")
	}
	candidate, ok := d.controller.SaveCandidate()
	if !ok {
		return store.Record{}, ErrNoCandidate
	}

	d.mu.Lock()
	target, metrics, resolver := d.target, d.metrics, d.resolver
	d.mu.Unlock()
	if metrics.WidthPx <= 0 || metrics.HeightPx <= 0 {
		return store.Record{}, fmt.Errorf("no screen metrics to convert the position against")
	}

	if name == "" {
		name = target
	}
	if name == "" {
		name = d.registry.DefaultID()
	}

	base, ok := d.registry.Lookup(name)
	if !ok {
		base = d.registry.ResolveProfileFor(target)
		base.ID = name
		base.DisplayName = name
	}
	saved := resolver.Unplace(base, candidate, metrics)

	rec, err := d.store.Save(name, store.RecordFromProfile(saved, d.now()).Fields())
	if err != nil {
		return store.Record{}, err
	}
	if err := d.registry.Add(rec.Profile()); err != nil {
		return rec, fmt.Errorf("saved %q but could not register it: %w", name, err)
	}
	return rec, nil
}

// Reload re-reads config and stored profiles and re-places the overlay.
// Poll interval, hotkeys and the drag threshold only change on restart.
func (d *Daemon) Reload() (ReloadResult, error) {
	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()

	if d.loadCfg != nil {
		next, err := d.loadCfg()
		if err != nil {
			return ReloadResult{}, fmt.Errorf("failed to reload config: %w", err)
		}
		cfg = next
	}
	resolverCfg, err := cfg.ResolverConfig()
	if err != nil {
		return ReloadResult{}, err
	}

	var result ReloadResult
	if d.store != nil {
		report, err := d.store.Reload()
		if err != nil {
			return ReloadResult{}, fmt.Errorf("failed to reload profiles: %w", err)
		}
		result.Skipped = report.Skipped
	}

	set, err := Catalog(cfg, d.store)
	if err != nil {
		return ReloadResult{}, err
	}
	if err := d.registry.Replace(set); err != nil {
		return ReloadResult{}, err
	}
	result.Profiles = d.registry.Len()

	d.mu.Lock()
	d.cfg = cfg
	d.resolver = profile.NewResolver(d.registry, resolverCfg)
	d.policy = cfg.SafeAreaPolicy()
	target := d.target
	d.mu.Unlock()

	d.logger.Info("reloaded", "profiles", result.Profiles, "skipped", result.Skipped)
	if target != "" {
		if err := d.apply(target); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Status returns a snapshot for STATUS requests.
func (d *Daemon) Status() Status {
	st := Status{
		Overlay:   d.controller.State(),
		Detection: d.monitor.State(),
		Profiles:  d.registry.Len(),
	}
	d.mu.Lock()
	st.Target = d.target
	st.ProfileID = d.profileID
	st.Known = d.known
	st.Reason = d.reason
	st.Placement = d.placement
	st.Metrics = d.metrics
	d.mu.Unlock()
	st.UptimeSeconds = int64(d.now().Sub(d.startedAt).Seconds())
	return st
}

// Inspect returns the interactive elements of the focused window.
func (d *Daemon) Inspect() ([]platform.Element, error) {
	elements, err := d.backend.VisitForeground(platform.DefaultVisitDepth)
	if err != nil {
		return nil, err
	}
	out := make([]platform.Element, 0, len(elements))
	for _, el := range elements {
		if el.Interactive {
			out = append(out, el)
		}
	}
	return out, nil
}

// OnPointer forwards overlay pointer input to the controller.
func (d *Daemon) OnPointer(ev platform.PointerEvent) {
	res, err := d.controller.OnPointerEvent(ev)
	if err != nil {
		d.logger.Warn("pointer event failed", "action", ev.Action.String(), "error", err)
		return
	}
	switch res.Kind {
	case overlay.ResultDragCommitted:
		d.logger.Info("overlay moved", "x", res.Position.X, "y", res.Position.Y)
	case overlay.ResultTap:
		d.logger.Debug("overlay tapped", "x", res.Position.X, "y", res.Position.Y)
	}
}

// checkMetrics re-places the overlay when the screen changed since the last
// placement, e.g. after a rotation or monitor switch.
func (d *Daemon) checkMetrics() {
	raw, cutout, err := d.backend.CurrentMetrics()
	if err != nil {
		d.logger.Debug("metrics check failed", "error", err)
		return
	}

	d.mu.Lock()
	cfg := d.cfg
	if cfg.Cutout != nil {
		cutout = cfg.Cutout
	}
	if cfg.DensityOverride > 0 {
		raw.Density = cfg.DensityOverride
	}
	changed := raw != d.rawMetrics || !sameInsets(cutout, d.rawCutout)
	target := d.target
	// apply may return before recording metrics, so record them here.
	d.rawMetrics, d.rawCutout = raw, cutout
	d.mu.Unlock()

	if !changed || target == "" {
		return
	}
	d.logger.Info("screen changed", "width", raw.WidthPx, "height", raw.HeightPx, "orientation", raw.Orientation.String())
	if err := d.apply(target); err != nil {
		d.logger.Warn("failed to re-place overlay", "target", target, "error", err)
	}
}

func sameInsets(a, b *geometry.Insets) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
