package x11

import (
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/1broseidon/overlayd/internal/geometry"
)

// GetActiveWindow returns _NET_ACTIVE_WINDOW.
func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// WindowClass returns the WM_CLASS class of a window, or "" when unset.
func (c *Connection) WindowClass(windowID xproto.Window) string {
	wmClass, err := icccm.WmClassGet(c.XUtil, windowID)
	if err != nil {
		return ""
	}
	if class := strings.TrimSpace(wmClass.Class); class != "" {
		return class
	}
	return strings.TrimSpace(wmClass.Instance)
}

// ActiveWindowClass returns the class of the focused window. ok is false when
// no window has focus or it carries no class.
func (c *Connection) ActiveWindowClass() (string, bool) {
	wid, err := c.GetActiveWindow()
	if err != nil || wid == 0 {
		return "", false
	}
	class := c.WindowClass(wid)
	return class, class != ""
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}

	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_NORMAL" {
			return true
		}
		if t == "_NET_WM_WINDOW_TYPE_DESKTOP" ||
			t == "_NET_WM_WINDOW_TYPE_DOCK" ||
			t == "_NET_WM_WINDOW_TYPE_SPLASH" ||
			t == "_NET_WM_WINDOW_TYPE_NOTIFICATION" {
			return false
		}
	}

	return len(types) == 0
}

// WindowRect returns a window's geometry in root coordinates.
func (c *Connection) WindowRect(windowID xproto.Window) (geometry.Rect, bool) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return geometry.Rect{}, false
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return geometry.Rect{}, false
	}

	return geometry.Rect{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, true
}

// TreeNode is one viewable window found while walking a subtree.
type TreeNode struct {
	Bounds      geometry.Rect
	Interactive bool
	Depth       int
}

const inputEventMask = xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
	xproto.EventMaskKeyPress | xproto.EventMaskKeyRelease

// WalkTree flattens the viewable windows under top, breadth first, down to
// maxDepth levels. top itself is depth 0. A window is interactive when any
// client selected pointer or key input on it.
func (c *Connection) WalkTree(top xproto.Window, maxDepth int) ([]TreeNode, error) {
	conn := c.XUtil.Conn()
	type item struct {
		win   xproto.Window
		depth int
	}

	var nodes []TreeNode
	queue := []item{{win: top}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		attrs, err := xproto.GetWindowAttributes(conn, cur.win).Reply()
		if err != nil {
			if cur.win == top {
				return nil, err
			}
			continue
		}
		if attrs.MapState != xproto.MapStateViewable {
			continue
		}
		if rect, ok := c.WindowRect(cur.win); ok {
			nodes = append(nodes, TreeNode{
				Bounds:      rect,
				Interactive: attrs.AllEventMasks&inputEventMask != 0,
				Depth:       cur.depth,
			})
		}

		if cur.depth >= maxDepth {
			continue
		}
		tree, err := xproto.QueryTree(conn, cur.win).Reply()
		if err != nil {
			continue
		}
		for _, child := range tree.Children {
			queue = append(queue, item{win: child, depth: cur.depth + 1})
		}
	}
	return nodes, nil
}

// WatchActiveWindow calls fn with the focused window's class whenever the
// window manager updates _NET_ACTIVE_WINDOW. Handlers run on the event loop.
func (c *Connection) WatchActiveWindow(fn func(class string)) error {
	err := xproto.ChangeWindowAttributesChecked(c.XUtil.Conn(), c.Root,
		xproto.CwEventMask, []uint32{xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		return err
	}
	active, err := xprop.Atm(c.XUtil, "_NET_ACTIVE_WINDOW")
	if err != nil {
		return err
	}
	xevent.PropertyNotifyFun(func(_ *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		if ev.Atom != active {
			return
		}
		class, _ := c.ActiveWindowClass()
		fn(class)
	}).Connect(c.XUtil, c.Root)
	return nil
}
