package x11

import (
	"fmt"
	"math"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
)

// OverlayClass is the WM_CLASS set on the overlay window.
const OverlayClass = "overlayd"

// ColorCrosshair is drawn over the overlay background.
const ColorCrosshair = 0xffffff

const crosshairThickness = 2

// PointerKind is a button-1 pointer transition on the overlay window.
type PointerKind int

const (
	PointerPress PointerKind = iota
	PointerMotion
	PointerRelease
)

// PointerFunc receives root-relative pointer coordinates.
type PointerFunc func(kind PointerKind, rootX, rootY int)

// Overlay is a single override-redirect window that is mapped and unmapped
// rather than recreated, so its event handlers are connected once.
type Overlay struct {
	conn *Connection
	win  xproto.Window
	gc   xproto.Gcontext

	mu     sync.Mutex
	width  int
	height int
	mapped bool
}

// NewOverlay creates the (unmapped) overlay window and routes button-1
// press, drag and release on it to onPointer.
func (c *Connection) NewOverlay(onPointer PointerFunc) (*Overlay, error) {
	conn := c.XUtil.Conn()
	screen := c.XUtil.Screen()

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return nil, err
	}

	eventMask := uint32(xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
		xproto.EventMaskButton1Motion | xproto.EventMaskExposure)
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		c.Root,
		0, 0,
		1, 1,
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		// Values follow mask bit order: back_pixel, override_redirect, event_mask.
		[]uint32{0, 1, eventMask},
	).Check()
	if err != nil {
		return nil, fmt.Errorf("create overlay window: %w", err)
	}

	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		xproto.DestroyWindow(conn, wid)
		return nil, err
	}
	err = xproto.CreateGCChecked(
		conn,
		gc,
		xproto.Drawable(wid),
		xproto.GcForeground|xproto.GcLineWidth|xproto.GcGraphicsExposures,
		[]uint32{ColorCrosshair, crosshairThickness, 0},
	).Check()
	if err != nil {
		xproto.DestroyWindow(conn, wid)
		return nil, fmt.Errorf("create overlay gc: %w", err)
	}

	// Focus sampling ignores this class by default.
	_ = icccm.WmClassSet(c.XUtil, wid, &icccm.WmClass{Instance: OverlayClass, Class: OverlayClass})

	o := &Overlay{conn: c, win: wid, gc: gc}

	if onPointer != nil {
		xevent.ButtonPressFun(func(_ *xgbutil.XUtil, ev xevent.ButtonPressEvent) {
			if ev.Detail == xproto.ButtonIndex1 {
				onPointer(PointerPress, int(ev.RootX), int(ev.RootY))
			}
		}).Connect(c.XUtil, wid)
		xevent.MotionNotifyFun(func(_ *xgbutil.XUtil, ev xevent.MotionNotifyEvent) {
			onPointer(PointerMotion, int(ev.RootX), int(ev.RootY))
		}).Connect(c.XUtil, wid)
		xevent.ButtonReleaseFun(func(_ *xgbutil.XUtil, ev xevent.ButtonReleaseEvent) {
			if ev.Detail == xproto.ButtonIndex1 {
				onPointer(PointerRelease, int(ev.RootX), int(ev.RootY))
			}
		}).Connect(c.XUtil, wid)
	}
	xevent.ExposeFun(func(_ *xgbutil.XUtil, ev xevent.ExposeEvent) {
		if ev.Count == 0 {
			o.draw()
		}
	}).Connect(c.XUtil, wid)

	return o, nil
}

// Window returns the overlay's X window id.
func (o *Overlay) Window() xproto.Window { return o.win }

// Mapped reports whether the overlay is currently shown.
func (o *Overlay) Mapped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mapped
}

// Show recolors, positions and maps the overlay above other windows.
func (o *Overlay) Show(x, y, width, height int, argb uint32, opacity float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mapped {
		return fmt.Errorf("overlay window already mapped")
	}

	conn := o.conn.XUtil.Conn()
	if err := xproto.ChangeWindowAttributesChecked(conn, o.win, xproto.CwBackPixel, []uint32{argb & 0xffffff}).Check(); err != nil {
		return err
	}
	if err := o.configure(x, y, width, height, alphaOpacity(argb, opacity)); err != nil {
		return err
	}
	if err := xproto.MapWindowChecked(conn, o.win).Check(); err != nil {
		return err
	}
	o.mapped = true
	return nil
}

// Move repositions a mapped overlay.
func (o *Overlay) Move(x, y, width, height int, argb uint32, opacity float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.mapped {
		return fmt.Errorf("overlay window not mapped")
	}
	if err := o.configure(x, y, width, height, alphaOpacity(argb, opacity)); err != nil {
		return err
	}
	// Regenerates Expose so the crosshair follows the new size.
	xproto.ClearArea(o.conn.XUtil.Conn(), true, o.win, 0, 0, 0, 0)
	return nil
}

// Hide unmaps the overlay. Hiding an unmapped overlay is a no-op.
func (o *Overlay) Hide() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.mapped {
		return nil
	}
	if err := xproto.UnmapWindowChecked(o.conn.XUtil.Conn(), o.win).Check(); err != nil {
		return err
	}
	o.mapped = false
	return nil
}

// Destroy releases the window and its handlers.
func (o *Overlay) Destroy() {
	conn := o.conn.XUtil.Conn()
	xevent.Detach(o.conn.XUtil, o.win)
	xproto.FreeGC(conn, o.gc)
	xproto.DestroyWindow(conn, o.win)
}

func (o *Overlay) configure(x, y, width, height int, opacity float64) error {
	width = max(width, 1)
	height = max(height, 1)
	err := xproto.ConfigureWindowChecked(
		o.conn.XUtil.Conn(),
		o.win,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight|xproto.ConfigWindowStackMode,
		[]uint32{
			uint32(x),
			uint32(y),
			uint32(width),
			uint32(height),
			xproto.StackModeAbove,
		},
	).Check()
	if err != nil {
		return err
	}
	o.width, o.height = width, height

	// Compositors read _NET_WM_WINDOW_OPACITY; without one it is ignored.
	return xprop.ChangeProp32(o.conn.XUtil, o.win, "_NET_WM_WINDOW_OPACITY", "CARDINAL", opacityCardinal(opacity))
}

func (o *Overlay) draw() {
	o.mu.Lock()
	w, h := o.width, o.height
	o.mu.Unlock()

	xproto.PolySegment(o.conn.XUtil.Conn(), xproto.Drawable(o.win), o.gc, crosshair(w, h))
}

// crosshair returns the two segments through the centre of a w×h window.
func crosshair(w, h int) []xproto.Segment {
	cx, cy := int16(w/2), int16(h/2)
	return []xproto.Segment{
		{X1: 0, Y1: cy, X2: int16(w - 1), Y2: cy},
		{X1: cx, Y1: 0, X2: cx, Y2: int16(h - 1)},
	}
}

// alphaOpacity folds the color's alpha channel into opacity.
func alphaOpacity(argb uint32, opacity float64) float64 {
	alpha := float64(argb>>24) / 255
	return math.Max(0, math.Min(1, opacity*alpha))
}

func opacityCardinal(opacity float64) uint {
	return uint(math.Round(opacity * 0xffffffff))
}
