package overlay

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/platform"
)

type fakeSurface struct {
	mu          sync.Mutex
	attaches    []platform.LayoutParams
	detaches    []platform.SurfaceID
	layouts     []platform.LayoutParams
	ops         []string
	attachErr   error
	layoutErr   error
	block       chan struct{}
	layoutBlock chan struct{}
	nextID      platform.SurfaceID
}

func (f *fakeSurface) Attach(_ platform.View, params platform.LayoutParams) (platform.SurfaceID, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "attach")
	f.attaches = append(f.attaches, params)
	if f.attachErr != nil {
		return 0, f.attachErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeSurface) Detach(id platform.SurfaceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "detach")
	f.detaches = append(f.detaches, id)
	return nil
}

func (f *fakeSurface) UpdateLayout(_ platform.SurfaceID, params platform.LayoutParams) error {
	f.mu.Lock()
	block := f.layoutBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "layout")
	f.layouts = append(f.layouts, params)
	return f.layoutErr
}

func (f *fakeSurface) counts() (attaches, detaches, layouts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attaches), len(f.detaches), len(f.layouts)
}

func (f *fakeSurface) lastLayout() platform.LayoutParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.layouts[len(f.layouts)-1]
}

var screen = geometry.Rect{Width: 1080, Height: 2400}

func newTestController(t *testing.T, surface *fakeSurface) *Controller {
	t.Helper()
	c := New(Config{
		Surface: surface,
		Screen:  screen,
		Initial: geometry.Placement{X: 100, Y: 200, Size: 80},
		Opacity: 0.6,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(c.Close)
	return c
}

func TestShow_TwiceAttachesOnce(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)

	if err := c.Show(); err != nil {
		t.Fatalf("Show() error: %v", err)
	}
	if err := c.Show(); err != nil {
		t.Fatalf("second Show() error: %v", err)
	}
	if err := c.ShowAt(geometry.Placement{X: 1, Y: 1, Size: 60}); err != nil {
		t.Fatalf("ShowAt() while shown error: %v", err)
	}

	if attaches, _, _ := surface.counts(); attaches != 1 {
		t.Fatalf("attach calls = %d, want 1", attaches)
	}
	st := c.State()
	if !st.Visible || st.Position != (geometry.Point{X: 100, Y: 200}) {
		t.Fatalf("State() = %+v", st)
	}
}

func TestShow_AttachFailureStaysHidden(t *testing.T) {
	surface := &fakeSurface{attachErr: errors.New("BadAccess")}
	c := newTestController(t, surface)

	err := c.Show()
	var perr *PermissionError
	if !errors.As(err, &perr) || perr.Op != "attach" {
		t.Fatalf("Show() error = %v, want *PermissionError(attach)", err)
	}
	if c.State().Visible {
		t.Fatal("overlay visible after refused attach")
	}

	surface.mu.Lock()
	surface.attachErr = nil
	surface.mu.Unlock()
	if err := c.Show(); err != nil {
		t.Fatalf("Show() after recovery error: %v", err)
	}
	if attaches, _, _ := surface.counts(); attaches != 2 {
		t.Fatalf("attach calls = %d, want 2 (no automatic retry)", attaches)
	}
}

func TestHide_IdempotentAndPreservesPlacement(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)

	if err := c.Hide(); err != nil {
		t.Fatalf("Hide() while hidden error: %v", err)
	}
	if err := c.ShowAt(geometry.Placement{X: 300, Y: 400, Size: 90}); err != nil {
		t.Fatalf("ShowAt() error: %v", err)
	}
	if err := c.Hide(); err != nil {
		t.Fatalf("Hide() error: %v", err)
	}
	if err := c.Hide(); err != nil {
		t.Fatalf("second Hide() error: %v", err)
	}
	if _, detaches, _ := surface.counts(); detaches != 1 {
		t.Fatalf("detach calls = %d, want 1", detaches)
	}

	if err := c.Show(); err != nil {
		t.Fatalf("Show() error: %v", err)
	}
	surface.mu.Lock()
	last := surface.attaches[len(surface.attaches)-1]
	surface.mu.Unlock()
	want := platform.LayoutParams{X: 300, Y: 400, Width: 90, Height: 90, Opacity: 0.6}
	if last != want {
		t.Fatalf("re-show params = %+v, want %+v", last, want)
	}
}

func TestUpdate_BufferedWhileHidden(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)

	opacity := 0.3
	if err := c.Update(Update{Opacity: &opacity}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if _, _, layouts := surface.counts(); layouts != 0 {
		t.Fatalf("layout calls while hidden = %d, want 0", layouts)
	}
	if err := c.Show(); err != nil {
		t.Fatalf("Show() error: %v", err)
	}
	surface.mu.Lock()
	got := surface.attaches[0]
	surface.mu.Unlock()
	want := platform.LayoutParams{X: 100, Y: 200, Width: 80, Height: 80, Opacity: 0.3}
	if got != want {
		t.Fatalf("attach params = %+v, want %+v", got, want)
	}
}

func TestUpdate_AppliesOnlySuppliedFields(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)
	if err := c.Show(); err != nil {
		t.Fatal(err)
	}

	size := 120
	if err := c.Update(Update{Size: &size}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	want := platform.LayoutParams{X: 100, Y: 200, Width: 120, Height: 120, Opacity: 0.6}
	if got := surface.lastLayout(); got != want {
		t.Fatalf("layout = %+v, want %+v", got, want)
	}

	over := 4.0
	if err := c.Update(Update{Opacity: &over}); err != nil {
		t.Fatal(err)
	}
	if got := c.State().Opacity; got != 1 {
		t.Fatalf("Opacity = %v, want clamped 1", got)
	}

	zero := 0
	if err := c.Update(Update{Size: &zero}); err == nil {
		t.Fatal("Update(size=0) accepted")
	}
}

func TestUpdate_LayoutFailureKeepsState(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)
	if err := c.Show(); err != nil {
		t.Fatal(err)
	}

	surface.mu.Lock()
	surface.layoutErr = errors.New("BadWindow")
	surface.mu.Unlock()

	pos := geometry.Point{X: 5, Y: 6}
	err := c.Update(Update{Position: &pos})
	var perr *PermissionError
	if !errors.As(err, &perr) || perr.Op != "update" {
		t.Fatalf("Update() error = %v, want *PermissionError(update)", err)
	}
	st := c.State()
	if !st.Visible || st.Position != pos {
		t.Fatalf("State() after failed layout = %+v, want visible at %+v", st, pos)
	}
}

func TestPointer_BelowThresholdIsTap(t *testing.T) {
	sequences := []struct {
		name  string
		moves []geometry.Point
	}{
		{"no movement", nil},
		{"jitter", []geometry.Point{{X: 503, Y: 497}, {X: 495, Y: 505}}},
		{"exactly threshold", []geometry.Point{{X: 510, Y: 510}, {X: 490, Y: 490}}},
	}

	for _, seq := range sequences {
		t.Run(seq.name, func(t *testing.T) {
			surface := &fakeSurface{}
			c := newTestController(t, surface)
			if err := c.Show(); err != nil {
				t.Fatal(err)
			}
			before := c.State().Position

			mustPointer(t, c, platform.PointerDown, 500, 500)
			for _, m := range seq.moves {
				mustPointer(t, c, platform.PointerMove, m.X, m.Y)
			}
			res := mustPointer(t, c, platform.PointerUp, 500, 500)

			if res.Kind != ResultTap {
				t.Fatalf("release kind = %v, want tap", res.Kind)
			}
			if res.Position != before || c.State().Position != before {
				t.Fatalf("position moved: %+v -> %+v", before, c.State().Position)
			}
			if _, _, layouts := surface.counts(); layouts != 0 {
				t.Fatalf("layout calls = %d, want 0", layouts)
			}
			if _, ok := c.SaveCandidate(); ok {
				t.Fatal("tap produced a save candidate")
			}
		})
	}
}

func TestPointer_DragFollowsAndCommits(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)
	if err := c.Show(); err != nil {
		t.Fatal(err)
	}

	mustPointer(t, c, platform.PointerDown, 140, 240)
	mustPointer(t, c, platform.PointerMove, 145, 240) // below threshold
	if c.State().DragInProgress {
		t.Fatal("drag started below threshold")
	}
	mustPointer(t, c, platform.PointerMove, 160, 290)
	st := c.State()
	if !st.DragInProgress || st.Position != (geometry.Point{X: 120, Y: 250}) {
		t.Fatalf("State() mid-drag = %+v", st)
	}
	mustPointer(t, c, platform.PointerMove, 170, 300)
	if _, _, layouts := surface.counts(); layouts != 2 {
		t.Fatalf("layout calls = %d, want one per move while dragging", layouts)
	}

	res := mustPointer(t, c, platform.PointerUp, 170, 300)
	if res.Kind != ResultDragCommitted || res.Position != (geometry.Point{X: 130, Y: 260}) {
		t.Fatalf("release = %+v", res)
	}
	cand, ok := c.SaveCandidate()
	if !ok || cand != (geometry.Placement{X: 130, Y: 260, Size: 80}) {
		t.Fatalf("SaveCandidate() = %+v, %v", cand, ok)
	}
	if c.State().DragInProgress {
		t.Fatal("still dragging after release")
	}
}

func TestPointer_DragClampedOnScreen(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)
	if err := c.Show(); err != nil {
		t.Fatal(err)
	}

	mustPointer(t, c, platform.PointerDown, 100, 200)
	mustPointer(t, c, platform.PointerMove, -5000, 9000)
	if got := c.State().Position; got != (geometry.Point{X: 0, Y: 2400 - 80}) {
		t.Fatalf("clamped position = %+v", got)
	}
	mustPointer(t, c, platform.PointerMove, 9000, -9000)
	if got := c.State().Position; got != (geometry.Point{X: 1080 - 80, Y: 0}) {
		t.Fatalf("clamped position = %+v", got)
	}
}

func TestPointer_IgnoredWhileHiddenAndWithoutPress(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)

	res := mustPointer(t, c, platform.PointerDown, 10, 10)
	if res.Kind != ResultNone {
		t.Fatalf("pointer while hidden = %+v", res)
	}
	if err := c.Show(); err != nil {
		t.Fatal(err)
	}
	if res := mustPointer(t, c, platform.PointerUp, 10, 10); res.Kind != ResultNone {
		t.Fatalf("release without press = %v, want none", res.Kind)
	}
}

func TestUpdate_PositionIgnoredDuringDrag(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)
	if err := c.Show(); err != nil {
		t.Fatal(err)
	}
	mustPointer(t, c, platform.PointerDown, 100, 200)
	mustPointer(t, c, platform.PointerMove, 150, 200)

	pos := geometry.Point{X: 900, Y: 900}
	size := 100
	if err := c.Update(Update{Position: &pos, Size: &size}); err != nil {
		t.Fatal(err)
	}
	st := c.State()
	if st.Position != (geometry.Point{X: 150, Y: 200}) || st.Size != 100 {
		t.Fatalf("State() = %+v, want drag position kept and size applied", st)
	}
}

func TestHide_CancelsDrag(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)
	if err := c.Show(); err != nil {
		t.Fatal(err)
	}
	mustPointer(t, c, platform.PointerDown, 100, 200)
	mustPointer(t, c, platform.PointerMove, 150, 200)
	if err := c.Hide(); err != nil {
		t.Fatal(err)
	}
	if c.State().DragInProgress {
		t.Fatal("drag survived Hide")
	}
}

func TestShow_AttachTimeout(t *testing.T) {
	block := make(chan struct{})
	surface := &fakeSurface{block: block}
	c := New(Config{
		Surface:     surface,
		Initial:     geometry.Placement{Size: 60},
		CallTimeout: 20 * time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer c.Close()

	err := c.Show()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Show() error = %v, want ErrTimeout", err)
	}
	if c.State().Visible {
		t.Fatal("overlay visible after timed out attach")
	}

	close(block)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, detaches, _ := surface.counts(); detaches == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("late attach was not detached")
}

func TestSurfaceCallsNeverOverlapAfterTimeout(t *testing.T) {
	surface := &fakeSurface{}
	c := New(Config{
		Surface:     surface,
		Initial:     geometry.Placement{Size: 60},
		CallTimeout: 20 * time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer c.Close()

	if err := c.Show(); err != nil {
		t.Fatalf("Show() error: %v", err)
	}
	block := make(chan struct{})
	surface.mu.Lock()
	surface.layoutBlock = block
	surface.mu.Unlock()

	size := 90
	if err := c.Update(Update{Size: &size}); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Update() error = %v, want ErrTimeout", err)
	}
	if err := c.Hide(); err != nil {
		t.Fatalf("Hide() error: %v", err)
	}
	if err := c.Show(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Show() with stalled layout error = %v, want ErrTimeout", err)
	}
	if attaches, _, _ := surface.counts(); attaches != 1 {
		t.Fatalf("attach calls while layout stalled = %d, want 1", attaches)
	}

	close(block)
	if err := c.Show(); err != nil {
		t.Fatalf("Show() after layout returned error: %v", err)
	}

	surface.mu.Lock()
	ops := append([]string(nil), surface.ops...)
	surface.mu.Unlock()
	if ops[len(ops)-1] != "attach" {
		t.Fatalf("surface calls = %v, want the late layout before the last attach", ops)
	}
}

func TestClose(t *testing.T) {
	surface := &fakeSurface{}
	c := New(Config{Surface: surface, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err := c.Show(); err != nil {
		t.Fatal(err)
	}
	c.Close()
	c.Close()

	if _, detaches, _ := surface.counts(); detaches != 1 {
		t.Fatalf("Close() detach calls = %d, want 1", detaches)
	}
	if err := c.Show(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Show() after Close error = %v, want ErrClosed", err)
	}
	if _, err := c.OnPointerEvent(platform.PointerEvent{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("OnPointerEvent() after Close error = %v, want ErrClosed", err)
	}
}

func TestConcurrentPointerAndUpdates(t *testing.T) {
	surface := &fakeSurface{}
	c := newTestController(t, surface)
	if err := c.Show(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = c.OnPointerEvent(platform.PointerEvent{Action: platform.PointerDown, X: 100, Y: 100})
			_, _ = c.OnPointerEvent(platform.PointerEvent{Action: platform.PointerMove, X: 100 + i, Y: 150})
			_, _ = c.OnPointerEvent(platform.PointerEvent{Action: platform.PointerUp, X: 100 + i, Y: 150})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			size := 50 + i
			_ = c.Update(Update{Size: &size})
		}
	}()
	wg.Wait()

	st := c.State()
	if !screen.Contains(st.Placement().Rect()) {
		t.Fatalf("overlay off screen after concurrent input: %+v", st)
	}
}

func mustPointer(t *testing.T, c *Controller, action platform.PointerAction, x, y int) PointerResult {
	t.Helper()
	res, err := c.OnPointerEvent(platform.PointerEvent{Action: action, X: x, Y: y})
	if err != nil {
		t.Fatalf("OnPointerEvent(%v) error: %v", action, err)
	}
	return res
}
