//go:build linux

package platform

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/x11"
)

// LinuxBackend wraps an X11 connection behind the platform Backend interface.
// Coordinates it reports and accepts are relative to the monitor returned by
// the last CurrentMetrics call.
type LinuxBackend struct {
	conn            *x11.Connection
	overlay         *x11.Overlay
	densityOverride float64

	mu        sync.Mutex
	origin    geometry.Point
	color     uint32
	onPointer func(PointerEvent)
}

var _ Backend = (*LinuxBackend)(nil)

// LinuxOptions tunes the X11 backend.
type LinuxOptions struct {
	// DensityOverride replaces the density computed from the monitor's
	// physical size when > 0.
	DensityOverride float64
}

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection, opts LinuxOptions) (*LinuxBackend, error) {
	b := &LinuxBackend{conn: conn, densityOverride: opts.DensityOverride}
	overlay, err := conn.NewOverlay(b.dispatchPointer)
	if err != nil {
		return nil, err
	}
	b.overlay = overlay
	return b, nil
}

// NewLinuxBackendFromDisplay opens a fresh X11 connection to display.
func NewLinuxBackendFromDisplay(display string, opts LinuxOptions) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	b, err := NewLinuxBackend(conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// Disconnect destroys the overlay window and closes the X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b == nil || b.conn == nil {
		return
	}
	if b.overlay != nil {
		b.overlay.Destroy()
	}
	b.conn.Close()
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// Quit stops EventLoop.
func (b *LinuxBackend) Quit() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// SetPointerHandler routes overlay pointer events to fn.
func (b *LinuxBackend) SetPointerHandler(fn func(PointerEvent)) {
	b.mu.Lock()
	b.onPointer = fn
	b.mu.Unlock()
}

func (b *LinuxBackend) dispatchPointer(kind x11.PointerKind, rootX, rootY int) {
	b.mu.Lock()
	fn := b.onPointer
	origin := b.origin
	b.mu.Unlock()
	if fn == nil {
		return
	}

	ev := PointerEvent{X: rootX - origin.X, Y: rootY - origin.Y}
	switch kind {
	case x11.PointerPress:
		ev.Action = PointerDown
	case x11.PointerMotion:
		ev.Action = PointerMove
	case x11.PointerRelease:
		ev.Action = PointerUp
	default:
		return
	}
	fn(ev)
}

// CurrentForegroundID returns the WM_CLASS of the focused window.
func (b *LinuxBackend) CurrentForegroundID() (string, bool) {
	conn, err := b.connection()
	if err != nil {
		return "", false
	}
	return conn.ActiveWindowClass()
}

// WatchForeground calls fn with the focused window's class each time focus
// moves. fn receives "" when the new window has no class.
func (b *LinuxBackend) WatchForeground(fn func(id string)) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.WatchActiveWindow(fn)
}

// CurrentMetrics describes the active monitor. The cutout is the space
// reserved by docks and panels on that monitor.
func (b *LinuxBackend) CurrentMetrics() (geometry.ScreenMetrics, *geometry.Insets, error) {
	conn, err := b.connection()
	if err != nil {
		return geometry.ScreenMetrics{}, nil, err
	}
	mon, err := conn.GetActiveMonitor()
	if err != nil {
		return geometry.ScreenMetrics{}, nil, err
	}

	b.mu.Lock()
	b.origin = geometry.Point{X: mon.X, Y: mon.Y}
	b.mu.Unlock()

	return mon.Metrics(b.densityOverride), conn.DockInsets(*mon), nil
}

// Attach maps the overlay window. Only one surface can be attached at a time.
func (b *LinuxBackend) Attach(view View, params LayoutParams) (SurfaceID, error) {
	if b.overlay == nil {
		return 0, fmt.Errorf("x11 overlay window not created")
	}
	b.mu.Lock()
	origin := b.origin
	b.color = view.ColorARGB
	b.mu.Unlock()

	if err := b.overlay.Show(origin.X+params.X, origin.Y+params.Y, params.Width, params.Height, view.ColorARGB, params.Opacity); err != nil {
		return 0, err
	}
	return SurfaceID(b.overlay.Window()), nil
}

// Detach unmaps the overlay window.
func (b *LinuxBackend) Detach(id SurfaceID) error {
	if err := b.checkSurface(id); err != nil {
		return err
	}
	return b.overlay.Hide()
}

// UpdateLayout moves and resizes the attached overlay.
func (b *LinuxBackend) UpdateLayout(id SurfaceID, params LayoutParams) error {
	if err := b.checkSurface(id); err != nil {
		return err
	}
	b.mu.Lock()
	origin, color := b.origin, b.color
	b.mu.Unlock()
	return b.overlay.Move(origin.X+params.X, origin.Y+params.Y, params.Width, params.Height, color, params.Opacity)
}

// VisitForeground flattens the focused window's subtree.
func (b *LinuxBackend) VisitForeground(maxDepth int) ([]Element, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	wid, err := conn.GetActiveWindow()
	if err != nil {
		return nil, err
	}
	if wid == 0 {
		return nil, nil
	}
	nodes, err := conn.WalkTree(wid, maxDepth)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	origin := b.origin
	b.mu.Unlock()

	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		r := n.Bounds
		r.X -= origin.X
		r.Y -= origin.Y
		elements = append(elements, Element{Bounds: r, Interactive: n.Interactive})
	}
	return elements, nil
}

func (b *LinuxBackend) checkSurface(id SurfaceID) error {
	if b.overlay == nil || SurfaceID(b.overlay.Window()) != id {
		return fmt.Errorf("unknown surface %d", id)
	}
	return nil
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}
