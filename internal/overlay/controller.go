package overlay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/platform"
	"github.com/1broseidon/overlayd/internal/profile"
)

// Defaults for Config fields left zero.
const (
	DefaultDragThreshold = 10
	DefaultCallTimeout   = 2 * time.Second
)

// Config holds configuration for the controller.
type Config struct {
	Surface platform.Surface
	View    platform.View
	// Screen bounds drag positions. An empty rect disables clamping.
	Screen        geometry.Rect
	Initial       geometry.Placement
	Opacity       float64
	DragThreshold int
	// CallTimeout bounds each surface call. Negative disables the bound.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

type command struct {
	fn    func()
	reply chan struct{}
}

// Controller owns the overlay. Every exported method is executed on a single
// owner goroutine, so pointer input and detection updates never interleave.
type Controller struct {
	cmds      chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Fields below are only touched by the owner goroutine.
	surface   platform.Surface
	view      platform.View
	screen    geometry.Rect
	threshold int
	timeout   time.Duration
	logger    *slog.Logger

	vis       Visibility
	handle    platform.SurfaceID
	pos       geometry.Point
	size      int
	opacity   float64
	drag      drag
	candidate *geometry.Placement
	// busy is closed when a timed-out surface call finally returns. No new
	// surface call starts before that.
	busy      <-chan struct{}
}

// New creates a controller and starts its owner goroutine. The overlay
// starts Hidden.
func New(cfg Config) *Controller {
	c := &Controller{
		cmds:      make(chan command),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		surface:   cfg.Surface,
		view:      cfg.View,
		screen:    cfg.Screen,
		threshold: cfg.DragThreshold,
		timeout:   cfg.CallTimeout,
		logger:    cfg.Logger,
		pos:       cfg.Initial.Position(),
		size:      cfg.Initial.Size,
		opacity:   profile.ClampOpacity(cfg.Opacity),
	}
	if c.threshold <= 0 {
		c.threshold = DefaultDragThreshold
	}
	if c.timeout == 0 {
		c.timeout = DefaultCallTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.size <= 0 {
		c.size = profile.DefaultMinSize
	}

	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case cmd := <-c.cmds:
			c.exec(cmd)
		case <-c.quit:
			c.hide()
			return
		}
	}
}

func (c *Controller) exec(cmd command) {
	defer close(cmd.reply)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("overlay command panic recovered", "error", r)
		}
	}()
	cmd.fn()
}

// do runs fn on the owner goroutine and waits for it to finish.
func (c *Controller) do(fn func()) error {
	reply := make(chan struct{})
	select {
	case c.cmds <- command{fn: fn, reply: reply}:
	case <-c.done:
		return ErrClosed
	case <-c.quit:
		return ErrClosed
	}
	<-reply
	return nil
}

// Close hides the overlay and stops the owner goroutine. It is idempotent.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
	<-c.done
}

// Show attaches the overlay at its buffered position. It is a no-op while
// Shown. On refusal the overlay stays Hidden and a *PermissionError is returned.
func (c *Controller) Show() error {
	var err error
	if cerr := c.do(func() { err = c.show() }); cerr != nil {
		return cerr
	}
	return err
}

// ShowAt buffers p and shows the overlay. While Shown it does nothing; use
// Update to move a visible overlay.
func (c *Controller) ShowAt(p geometry.Placement) error {
	var err error
	cerr := c.do(func() {
		if c.vis == Shown {
			return
		}
		c.pos = p.Position()
		if p.Size > 0 {
			c.size = p.Size
		}
		err = c.show()
	})
	if cerr != nil {
		return cerr
	}
	return err
}

// Hide detaches the overlay, keeping position and size for the next Show.
// It is a no-op while Hidden.
func (c *Controller) Hide() error {
	return c.do(c.hide)
}

// Update applies the supplied fields. While Shown the layout is re-applied
// immediately; a refused layout is logged and returned, but the new values
// are kept. While Hidden the values are buffered for the next Show.
func (c *Controller) Update(u Update) error {
	if u.Size != nil && *u.Size <= 0 {
		return fmt.Errorf("overlay size must be > 0 (got %d)", *u.Size)
	}
	var err error
	if cerr := c.do(func() { err = c.update(u) }); cerr != nil {
		return cerr
	}
	return err
}

// OnPointerEvent feeds pointer input to the drag state machine. Events are
// ignored while Hidden.
func (c *Controller) OnPointerEvent(ev platform.PointerEvent) (PointerResult, error) {
	var res PointerResult
	if cerr := c.do(func() { res = c.pointer(ev) }); cerr != nil {
		return PointerResult{}, cerr
	}
	return res, nil
}

// SetScreen changes the bounds drag positions are clamped to.
func (c *Controller) SetScreen(r geometry.Rect) error {
	return c.do(func() { c.screen = r })
}

// SetView changes what the next attach renders.
func (c *Controller) SetView(v platform.View) error {
	return c.do(func() { c.view = v })
}

// State returns a snapshot of the overlay.
func (c *Controller) State() State {
	var st State
	_ = c.do(func() { st = c.snapshot() })
	return st
}

// SaveCandidate returns the placement committed by the last drag, if any.
func (c *Controller) SaveCandidate() (geometry.Placement, bool) {
	var (
		p  geometry.Placement
		ok bool
	)
	_ = c.do(func() {
		if c.candidate != nil {
			p, ok = *c.candidate, true
		}
	})
	return p, ok
}

func (c *Controller) snapshot() State {
	return State{
		Visible:        c.vis == Shown,
		Position:       c.pos,
		Size:           c.size,
		Opacity:        c.opacity,
		DragInProgress: c.drag.phase == DragDragging,
	}
}

func (c *Controller) params() platform.LayoutParams {
	return platform.LayoutParams{
		X:       c.pos.X,
		Y:       c.pos.Y,
		Width:   c.size,
		Height:  c.size,
		Opacity: c.opacity,
	}
}

func (c *Controller) show() error {
	if c.vis == Shown {
		return nil
	}
	id, err := c.attach(c.view, c.params())
	if err != nil {
		c.logger.Warn("overlay attach refused", "error", err)
		return &PermissionError{Op: "attach", Err: err}
	}
	c.handle = id
	c.vis = Shown
	c.drag = drag{}
	c.logger.Info("overlay shown", "x", c.pos.X, "y", c.pos.Y, "size", c.size)
	return nil
}

func (c *Controller) hide() {
	if c.vis == Hidden {
		return
	}
	handle := c.handle
	if err := c.call(func() error { return c.surface.Detach(handle) }); err != nil {
		c.logger.Warn("overlay detach failed", "error", err)
	}
	c.vis = Hidden
	c.handle = 0
	c.drag = drag{}
	c.logger.Info("overlay hidden")
}

func (c *Controller) update(u Update) error {
	if u.Position != nil {
		if c.drag.phase == DragDragging {
			c.logger.Debug("position update ignored during drag")
		} else {
			c.pos = *u.Position
		}
	}
	if u.Size != nil {
		c.size = *u.Size
	}
	if u.Opacity != nil {
		c.opacity = profile.ClampOpacity(*u.Opacity)
	}
	c.pos = c.clampToScreen(c.pos.X, c.pos.Y)
	if c.vis != Shown {
		return nil
	}
	return c.relayout()
}

func (c *Controller) relayout() error {
	handle, params := c.handle, c.params()
	if err := c.call(func() error { return c.surface.UpdateLayout(handle, params) }); err != nil {
		c.logger.Warn("overlay layout update failed", "error", err)
		return &PermissionError{Op: "update", Err: err}
	}
	return nil
}

func (c *Controller) pointer(ev platform.PointerEvent) PointerResult {
	if c.vis != Shown {
		return PointerResult{}
	}
	at := geometry.Point{X: ev.X, Y: ev.Y}

	switch ev.Action {
	case platform.PointerDown:
		c.drag = drag{pressed: true, phase: DragIdle, anchor: c.pos, start: at}
		return PointerResult{Position: c.pos}

	case platform.PointerMove:
		if !c.drag.pressed {
			return PointerResult{Position: c.pos}
		}
		dx, dy := at.X-c.drag.start.X, at.Y-c.drag.start.Y
		if c.drag.phase == DragIdle && (abs(dx) > c.threshold || abs(dy) > c.threshold) {
			c.drag.phase = DragDragging
			c.logger.Debug("overlay drag started")
		}
		if c.drag.phase == DragDragging {
			c.pos = c.clampToScreen(c.drag.anchor.X+dx, c.drag.anchor.Y+dy)
			_ = c.relayout()
		}
		return PointerResult{Position: c.pos}

	case platform.PointerUp:
		if !c.drag.pressed {
			return PointerResult{Position: c.pos}
		}
		dragged := c.drag.phase == DragDragging
		c.drag = drag{}
		if !dragged {
			return PointerResult{Kind: ResultTap, Position: c.pos}
		}
		p := geometry.Placement{X: c.pos.X, Y: c.pos.Y, Size: c.size}
		c.candidate = &p
		c.logger.Info("overlay drag committed", "x", p.X, "y", p.Y)
		return PointerResult{Kind: ResultDragCommitted, Position: c.pos}
	}
	return PointerResult{Position: c.pos}
}

func (c *Controller) clampToScreen(x, y int) geometry.Point {
	if c.screen.Empty() {
		return geometry.Point{X: x, Y: y}
	}
	x, y = geometry.ClampOrigin(x, y, c.screen, c.size, c.size)
	return geometry.Point{X: x, Y: y}
}

// attach calls Surface.Attach under the call timeout. A surface that attaches
// after the caller gave up is detached again.
func (c *Controller) attach(view platform.View, params platform.LayoutParams) (platform.SurfaceID, error) {
	type result struct {
		id  platform.SurfaceID
		err error
	}
	if err := c.settle(); err != nil {
		return 0, fmt.Errorf("attach: %w", err)
	}
	if c.timeout < 0 {
		return c.surface.Attach(view, params)
	}

	var (
		mu        sync.Mutex
		abandoned bool
	)
	resc := make(chan result, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var res result
		defer func() {
			if r := recover(); r != nil {
				res = result{err: fmt.Errorf("surface panic: %v", r)}
			}
			mu.Lock()
			defer mu.Unlock()
			if abandoned {
				if res.err == nil {
					_ = c.surface.Detach(res.id)
				}
				return
			}
			resc <- res
		}()
		res.id, res.err = c.surface.Attach(view, params)
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case res := <-resc:
		return res.id, res.err
	case <-timer.C:
	}

	mu.Lock()
	defer mu.Unlock()
	select {
	case res := <-resc:
		return res.id, res.err
	default:
	}
	abandoned = true
	c.busy = done
	return 0, fmt.Errorf("attach: %w", ErrTimeout)
}

// call runs a surface call under the call timeout.
func (c *Controller) call(fn func() error) error {
	if err := c.settle(); err != nil {
		return err
	}
	if c.timeout < 0 {
		return fn()
	}
	errc := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("surface panic: %v", r)
			}
		}()
		errc <- fn()
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case err := <-errc:
		return err
	case <-timer.C:
		c.busy = done
		return ErrTimeout
	}
}

// settle waits for a previously abandoned surface call to return, bounded by
// the call timeout.
func (c *Controller) settle() error {
	if c.busy == nil {
		return nil
	}
	if c.timeout < 0 {
		<-c.busy
		c.busy = nil
		return nil
	}
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-c.busy:
		c.busy = nil
		return nil
	case <-timer.C:
		return fmt.Errorf("previous surface call still running: %w", ErrTimeout)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
