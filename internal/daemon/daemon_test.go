package daemon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/monitor"
	"github.com/1broseidon/overlayd/internal/platform"
	"github.com/1broseidon/overlayd/internal/profile"
	"github.com/1broseidon/overlayd/internal/store"
)

var (
	phone   = geometry.ScreenMetrics{WidthPx: 1080, HeightPx: 2400, Density: 2.75, Orientation: geometry.OrientationPortrait}
	desktop = geometry.ScreenMetrics{WidthPx: 1920, HeightPx: 1080, Density: 1, Orientation: geometry.OrientationLandscape}
)

type fakeBackend struct {
	mu         sync.Mutex
	foreground string
	metrics    geometry.ScreenMetrics
	cutout     *geometry.Insets
	metricsErr error
	elements   []platform.Element
	attached   bool
	attaches   int
	last       platform.LayoutParams
}

func (f *fakeBackend) Attach(_ platform.View, params platform.LayoutParams) (platform.SurfaceID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = true
	f.attaches++
	f.last = params
	return 1, nil
}

func (f *fakeBackend) Detach(platform.SurfaceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = false
	return nil
}

func (f *fakeBackend) UpdateLayout(_ platform.SurfaceID, params platform.LayoutParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = params
	return nil
}

func (f *fakeBackend) CurrentForegroundID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.foreground, f.foreground != ""
}

func (f *fakeBackend) CurrentMetrics() (geometry.ScreenMetrics, *geometry.Insets, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics, f.cutout, f.metricsErr
}

func (f *fakeBackend) VisitForeground(int) ([]platform.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elements, nil
}

func (f *fakeBackend) setMetrics(m geometry.ScreenMetrics) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = m
}

func (f *fakeBackend) setForeground(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.foreground = id
}

func (f *fakeBackend) snapshot() (attached bool, attaches int, last platform.LayoutParams) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached, f.attaches, f.last
}

type recordingExecutor struct {
	mu   sync.Mutex
	cmds []string
}

func (e *recordingExecutor) Run(_ context.Context, cmd string) (platform.ElevatedResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cmds = append(e.cmds, cmd)
	return platform.ElevatedResult{}, platform.ErrElevatedUnavailable
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDaemon(t *testing.T, cfg *config.Config, backend *fakeBackend, opts ...func(*Options)) (*Daemon, *store.Store) {
	t.Helper()
	st, err := store.Open(store.NewMemoryKV(), store.Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	o := Options{Config: cfg, Backend: backend, Store: st, Logger: quietLogger()}
	for _, fn := range opts {
		fn(&o)
	}
	d, err := New(o)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(d.controller.Close)
	return d, st
}

func TestApply_KnownTargetOnPhone(t *testing.T) {
	backend := &fakeBackend{metrics: phone}
	d, _ := newTestDaemon(t, config.DefaultConfig(), backend)

	if err := d.apply(profile.EightBallPoolID); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	attached, attaches, last := backend.snapshot()
	if !attached || attaches != 1 {
		t.Fatalf("attached=%v attaches=%d, want shown once", attached, attaches)
	}
	want := platform.LayoutParams{X: 666, Y: 112, Width: 108, Height: 108, Opacity: 0.6}
	if last != want {
		t.Fatalf("layout = %+v, want %+v", last, want)
	}

	st := d.Status()
	if st.Target != profile.EightBallPoolID || !st.Known || st.ProfileID != profile.EightBallPoolID {
		t.Fatalf("status = %+v", st)
	}
	if !st.Overlay.Visible || st.Reason != "" {
		t.Fatalf("overlay status = %+v reason %q", st.Overlay, st.Reason)
	}
}

func TestApply_UnknownTargetUsesDefaultUnlessOnlyKnown(t *testing.T) {
	backend := &fakeBackend{metrics: desktop}
	d, _ := newTestDaemon(t, config.DefaultConfig(), backend)

	if err := d.apply("org.example.Editor"); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if st := d.Status(); st.Known || st.ProfileID != profile.DefaultProfileID || !st.Overlay.Visible {
		t.Fatalf("status = %+v", st)
	}

	cfg := config.DefaultConfig()
	cfg.OnlyKnownTargets = true
	backend2 := &fakeBackend{metrics: desktop}
	d2, _ := newTestDaemon(t, cfg, backend2)
	if err := d2.apply(profile.EightBallPoolID); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if err := d2.apply("org.example.Editor"); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	st := d2.Status()
	if st.Overlay.Visible || st.Reason != ReasonUnknownTarget {
		t.Fatalf("expected hidden for unknown target, got %+v", st)
	}
	if attached, _, _ := backend2.snapshot(); attached {
		t.Fatalf("surface still attached")
	}
}

func TestApply_UnsuitableScreenHides(t *testing.T) {
	backend := &fakeBackend{metrics: geometry.ScreenMetrics{WidthPx: 800, HeightPx: 600, Density: 1, Orientation: geometry.OrientationLandscape}}
	d, _ := newTestDaemon(t, config.DefaultConfig(), backend)

	if err := d.apply(profile.EightBallPoolID); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if st := d.Status(); st.Overlay.Visible || st.Reason != ReasonScreenTooSmall {
		t.Fatalf("status = %+v", st)
	}
}

func TestApply_MetricsErrorIsReported(t *testing.T) {
	backend := &fakeBackend{metricsErr: errors.New("no display")}
	d, _ := newTestDaemon(t, config.DefaultConfig(), backend)

	if err := d.apply(profile.EightBallPoolID); err == nil {
		t.Fatalf("expected metrics error")
	}
	if st := d.Status(); st.Reason != ReasonNoMetrics {
		t.Fatalf("Reason = %q", st.Reason)
	}
}

func TestHideSuppressesUntilShow(t *testing.T) {
	backend := &fakeBackend{metrics: desktop}
	d, _ := newTestDaemon(t, config.DefaultConfig(), backend)

	if err := d.Hide(); err != nil {
		t.Fatalf("Hide() error: %v", err)
	}
	if err := d.apply(profile.EightBallPoolID); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if st := d.Status(); st.Overlay.Visible || st.Reason != ReasonUserHidden {
		t.Fatalf("expected user hide to hold, got %+v", st)
	}

	if err := d.ToggleOverlay(); err != nil {
		t.Fatalf("ToggleOverlay() error: %v", err)
	}
	if st := d.Status(); !st.Overlay.Visible || st.Target != profile.EightBallPoolID {
		t.Fatalf("expected toggle to show, got %+v", st)
	}
	if err := d.ToggleOverlay(); err != nil {
		t.Fatalf("ToggleOverlay() error: %v", err)
	}
	if st := d.Status(); st.Overlay.Visible {
		t.Fatalf("expected toggle to hide")
	}
}

func TestShow_BeforeDetectionUsesDefault(t *testing.T) {
	backend := &fakeBackend{metrics: desktop}
	d, _ := newTestDaemon(t, config.DefaultConfig(), backend)

	if err := d.Show(); err != nil {
		t.Fatalf("Show() error: %v", err)
	}
	_, _, last := backend.snapshot()
	if last.X != 200 || last.Y != 300 || last.Width != 70 {
		t.Fatalf("layout = %+v, want default profile placement", last)
	}
}

func TestSaveCandidate(t *testing.T) {
	backend := &fakeBackend{metrics: desktop}
	d, st := newTestDaemon(t, config.DefaultConfig(), backend)

	if err := d.apply("com.example.game"); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if _, err := d.SaveCandidate(""); !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}

	d.OnPointer(platform.PointerEvent{Action: platform.PointerDown, X: 210, Y: 310})
	d.OnPointer(platform.PointerEvent{Action: platform.PointerMove, X: 310, Y: 410})
	d.OnPointer(platform.PointerEvent{Action: platform.PointerUp, X: 310, Y: 410})

	rec, err := d.SaveCandidate("")
	if err != nil {
		t.Fatalf("SaveCandidate() error: %v", err)
	}
	if rec.Name != "com.example.game" || rec.X != 300 || rec.Y != 400 || rec.Size != 70 {
		t.Fatalf("saved record = %+v", rec)
	}
	if _, err := st.Get("com.example.game"); err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	p, ok := d.Registry().Lookup("com.example.game")
	if !ok || p.BasePosition != (geometry.Point{X: 300, Y: 400}) {
		t.Fatalf("registry not updated: %+v ok=%v", p, ok)
	}

	// The target now has a profile, so it resolves to the saved spot.
	if err := d.apply("com.example.game"); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if status := d.Status(); !status.Known || status.Placement.X != 300 || status.Placement.Y != 400 {
		t.Fatalf("status after save = %+v", status)
	}
}

func TestReload_AppliesConfigTargets(t *testing.T) {
	backend := &fakeBackend{metrics: desktop}
	next := config.DefaultConfig()
	next.Targets["com.example.game"] = config.Target{X: 40, Y: 50, Size: 90}

	d, _ := newTestDaemon(t, config.DefaultConfig(), backend, func(o *Options) {
		o.LoadConfig = func() (*config.Config, error) { return next, nil }
	})
	if err := d.apply("com.example.game"); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if d.Status().Known {
		t.Fatalf("target should be unknown before reload")
	}

	res, err := d.Reload()
	if err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if res.Profiles != 3 {
		t.Fatalf("Profiles = %d, want 3", res.Profiles)
	}
	st := d.Status()
	if !st.Known || st.Placement != (geometry.Placement{X: 40, Y: 50, Size: 90}) {
		t.Fatalf("status after reload = %+v", st)
	}
}

func TestReload_ConfigErrorKeepsState(t *testing.T) {
	backend := &fakeBackend{metrics: desktop}
	d, _ := newTestDaemon(t, config.DefaultConfig(), backend, func(o *Options) {
		o.LoadConfig = func() (*config.Config, error) { return nil, errors.New("bad yaml") }
	})
	if _, err := d.Reload(); err == nil {
		t.Fatalf("expected reload error")
	}
	if d.Registry().Len() != 2 {
		t.Fatalf("registry changed after failed reload: %d", d.Registry().Len())
	}
}

func TestInspect_ReturnsInteractiveOnly(t *testing.T) {
	backend := &fakeBackend{elements: []platform.Element{
		{Bounds: geometry.Rect{Width: 100, Height: 100}},
		{Bounds: geometry.Rect{X: 10, Y: 10, Width: 20, Height: 20}, Interactive: true},
	}}
	d, _ := newTestDaemon(t, config.DefaultConfig(), backend)

	got, err := d.Inspect()
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if len(got) != 1 || !got[0].Interactive || got[0].Bounds.X != 10 {
		t.Fatalf("Inspect() = %+v", got)
	}
}

func TestApply_ElevatedProfileConsultsExecutor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Targets["com.example.root"] = config.Target{Size: 80, RequiresElevatedMode: true}
	exec := &recordingExecutor{}
	backend := &fakeBackend{metrics: desktop}
	d, _ := newTestDaemon(t, cfg, backend, func(o *Options) { o.Executor = exec })

	if err := d.apply("com.example.root"); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if err := d.apply(profile.EightBallPoolID); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	exec.mu.Lock()
	defer exec.mu.Unlock()
	if len(exec.cmds) != 1 {
		t.Fatalf("executor calls = %v, want exactly one", exec.cmds)
	}
	if !d.Status().Overlay.Visible {
		t.Fatalf("refused elevation must not hide the overlay")
	}
}

func TestCheckMetrics_ReplacesOnRotation(t *testing.T) {
	backend := &fakeBackend{metrics: phone}
	d, _ := newTestDaemon(t, config.DefaultConfig(), backend)
	if err := d.apply(profile.EightBallPoolID); err != nil {
		t.Fatalf("apply() error: %v", err)
	}

	landscape := geometry.ScreenMetrics{WidthPx: 2400, HeightPx: 1080, Density: 2.75, Orientation: geometry.OrientationLandscape}
	backend.setMetrics(landscape)
	d.checkMetrics()

	st := d.Status()
	if st.Metrics.Orientation != geometry.OrientationLandscape {
		t.Fatalf("metrics not refreshed: %+v", st.Metrics)
	}
	// scale 1.25 x 1.0: (250, 300), size 70 * 1.0 * 2.75.
	if st.Placement != (geometry.Placement{X: 250, Y: 300, Size: 192}) {
		t.Fatalf("placement after rotation = %+v", st.Placement)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) count(sub string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), sub)
}

func TestCheckMetrics_UnknownTargetSettles(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OnlyKnownTargets = true
	backend := &fakeBackend{metrics: desktop}
	logs := &syncBuffer{}
	d, _ := newTestDaemon(t, cfg, backend, func(o *Options) {
		o.Logger = slog.New(slog.NewTextHandler(logs, nil))
	})

	if err := d.apply("org.example.Unknown"); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	for i := 0; i < 5; i++ {
		d.checkMetrics()
	}
	if n := logs.count("screen changed"); n > 1 {
		t.Fatalf("screen changed logged %d times with unchanged metrics", n)
	}

	backend.setMetrics(phone)
	d.checkMetrics()
	d.checkMetrics()
	if n := logs.count("screen changed"); n != 2 {
		t.Fatalf("screen changed logged %d times after one rotation, want 2", n)
	}
	if st := d.Status(); st.Overlay.Visible || st.Reason != ReasonUnknownTarget {
		t.Fatalf("expected hidden for unknown target, got %+v", st)
	}
}

func TestRun_AppliesBaselineAndTransitions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PollIntervalMs = 50
	backend := &fakeBackend{metrics: desktop, foreground: profile.EightBallPoolID}
	d, _ := newTestDaemon(t, cfg, backend, func(o *Options) { o.ReconcileInterval = 20 * time.Millisecond })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	waitFor(t, func() bool { return d.Status().Target == profile.EightBallPoolID && d.Status().Overlay.Visible })

	backend.setForeground("org.example.Editor")
	waitFor(t, func() bool { return d.Status().Target == "org.example.Editor" })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
	if attached, _, _ := backend.snapshot(); attached {
		t.Fatalf("overlay still attached after shutdown")
	}
}

func TestRun_ForegroundSourceOverridesBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PollIntervalMs = 5000
	backend := &fakeBackend{metrics: desktop, foreground: "org.example.Ignored"}
	push := monitor.NewPushSource()
	push.OnForegroundChanged(profile.EightBallPoolID)
	d, _ := newTestDaemon(t, cfg, backend, func(o *Options) { o.Foreground = push })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	waitFor(t, func() bool { return d.Status().Target == profile.EightBallPoolID })

	// The poll interval is far longer than waitFor's deadline, so only the
	// push wakeup can deliver this.
	push.OnForegroundChanged("org.example.Editor")
	waitFor(t, func() bool { return d.Status().Target == "org.example.Editor" })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
