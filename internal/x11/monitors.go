package x11

import (
	"fmt"
	"math"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/1broseidon/overlayd/internal/geometry"
)

// desktopDPI is the X11 reference resolution a density of 1.0 maps to.
const desktopDPI = 96.0

// Monitor represents a physical display
type Monitor struct {
	ID       int
	Name     string
	X        int
	Y        int
	Width    int
	Height   int
	Rotation uint16
	WidthMm  int
	HeightMm int
}

// Bounds returns the monitor rectangle in root coordinates.
func (m Monitor) Bounds() geometry.Rect {
	return geometry.Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height}
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		mon := Monitor{
			ID:       i,
			Name:     fmt.Sprintf("Monitor%d", i),
			X:        int(crtcInfo.X),
			Y:        int(crtcInfo.Y),
			Width:    int(crtcInfo.Width),
			Height:   int(crtcInfo.Height),
			Rotation: crtcInfo.Rotation,
		}
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			mon.Name = string(outputInfo.Name)
			mon.WidthMm = int(outputInfo.MmWidth)
			mon.HeightMm = int(outputInfo.MmHeight)
		}
		monitors = append(monitors, mon)
	}

	if len(monitors) == 0 {
		// No RandR outputs (Xvfb, nested servers): fall back to the core screen.
		screen := c.XUtil.Screen()
		monitors = append(monitors, Monitor{
			Name:     "screen0",
			Width:    int(screen.WidthInPixels),
			Height:   int(screen.HeightInPixels),
			Rotation: randr.RotationRotate0,
			WidthMm:  int(screen.WidthInMillimeters),
			HeightMm: int(screen.HeightInMillimeters),
		})
	}
	return monitors, nil
}

// GetActiveMonitor returns the monitor containing the focused window, falling
// back to the one under the pointer and then the first monitor.
func (c *Connection) GetActiveMonitor() (*Monitor, error) {
	monitors, err := c.GetMonitors()
	if err != nil {
		return nil, err
	}
	if len(monitors) == 0 {
		return nil, fmt.Errorf("no monitors found")
	}

	if activeWin, err := ewmh.ActiveWindowGet(c.XUtil); err == nil && activeWin != 0 {
		if mon := findMonitorForWindow(c, monitors, activeWin); mon != nil {
			return mon, nil
		}
	}
	if mon := findMonitorForPointer(c, monitors); mon != nil {
		return mon, nil
	}
	return &monitors[0], nil
}

// Metrics describes mon as screen metrics relative to its own origin. The
// density is derived from the physical size unless densityOverride is set.
func (m Monitor) Metrics(densityOverride float64) geometry.ScreenMetrics {
	density := densityOverride
	if density <= 0 {
		density = densityFor(m.Width, m.WidthMm)
	}
	return geometry.ScreenMetrics{
		WidthPx:     m.Width,
		HeightPx:    m.Height,
		Density:     density,
		Orientation: orientationFor(m.Width, m.Height, m.Rotation),
	}
}

func densityFor(px, mm int) float64 {
	if px <= 0 || mm <= 0 {
		return 1
	}
	dpi := float64(px) / (float64(mm) / 25.4)
	return math.Round(dpi/desktopDPI*100) / 100
}

func orientationFor(width, height int, rotation uint16) geometry.Orientation {
	o := geometry.OrientationFor(width, height)
	if rotation&(randr.RotationRotate180|randr.RotationRotate270) == 0 {
		return o
	}
	if o.Portrait() {
		return geometry.OrientationReversePortrait
	}
	return geometry.OrientationReverseLandscape
}

// DockInsets returns the edges of mon reserved by panels and docks, or nil
// when nothing is reserved.
func (c *Connection) DockInsets(mon Monitor) *geometry.Insets {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return nil
	}
	rootWidth := int(rootGeom.Width)
	rootHeight := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil
	}

	var insets geometry.Insets
	for _, windowID := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
		if err != nil {
			continue
		}

		isDock := false
		for _, t := range types {
			if t == "_NET_WM_WINDOW_TYPE_DOCK" {
				isDock = true
				break
			}
		}
		if !isDock {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, windowID); err == nil {
			accumulateStruts(mon.Bounds(), rootWidth, rootHeight, sp, &insets)
			continue
		}

		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.XUtil, windowID); err == nil {
			accumulateStruts(mon.Bounds(), rootWidth, rootHeight, fullStrut(s, rootWidth, rootHeight), &insets)
		}
	}

	if insets.Zero() {
		return nil
	}
	return &insets
}

func fullStrut(s *ewmh.WmStrut, rootWidth, rootHeight int) *ewmh.WmStrutPartial {
	return &ewmh.WmStrutPartial{
		Left:         s.Left,
		Right:        s.Right,
		Top:          s.Top,
		Bottom:       s.Bottom,
		LeftStartY:   0,
		LeftEndY:     uint(rootHeight - 1),
		RightStartY:  0,
		RightEndY:    uint(rootHeight - 1),
		TopStartX:    0,
		TopEndX:      uint(rootWidth - 1),
		BottomStartX: 0,
		BottomEndX:   uint(rootWidth - 1),
	}
}

func accumulateStruts(mon geometry.Rect, rootWidth, rootHeight int, sp *ewmh.WmStrutPartial, acc *geometry.Insets) {
	// Top strut: y=[0,Top), x=[TopStartX,TopEndX]
	if sp.Top > 0 {
		r := geometry.Rect{X: int(sp.TopStartX), Y: 0, Width: int(sp.TopEndX) - int(sp.TopStartX) + 1, Height: int(sp.Top)}
		acc.Top = max(acc.Top, mon.Intersect(r).Height)
	}

	// Bottom strut: y=[rootHeight-Bottom,rootHeight), x=[BottomStartX,BottomEndX]
	if sp.Bottom > 0 {
		r := geometry.Rect{X: int(sp.BottomStartX), Y: rootHeight - int(sp.Bottom), Width: int(sp.BottomEndX) - int(sp.BottomStartX) + 1, Height: int(sp.Bottom)}
		acc.Bottom = max(acc.Bottom, mon.Intersect(r).Height)
	}

	// Left strut: x=[0,Left), y=[LeftStartY,LeftEndY]
	if sp.Left > 0 {
		r := geometry.Rect{X: 0, Y: int(sp.LeftStartY), Width: int(sp.Left), Height: int(sp.LeftEndY) - int(sp.LeftStartY) + 1}
		acc.Left = max(acc.Left, mon.Intersect(r).Width)
	}

	// Right strut: x=[rootWidth-Right,rootWidth), y=[RightStartY,RightEndY]
	if sp.Right > 0 {
		r := geometry.Rect{X: rootWidth - int(sp.Right), Y: int(sp.RightStartY), Width: int(sp.Right), Height: int(sp.RightEndY) - int(sp.RightStartY) + 1}
		acc.Right = max(acc.Right, mon.Intersect(r).Width)
	}
}

func findMonitorForWindow(c *Connection, monitors []Monitor, windowID xproto.Window) *Monitor {
	rect, ok := c.WindowRect(windowID)
	if !ok {
		return nil
	}
	return monitorAt(monitors, rect.X+rect.Width/2, rect.Y+rect.Height/2)
}

func findMonitorForPointer(c *Connection, monitors []Monitor) *Monitor {
	pointer, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil
	}
	return monitorAt(monitors, int(pointer.RootX), int(pointer.RootY))
}

func monitorAt(monitors []Monitor, x, y int) *Monitor {
	for i := range monitors {
		mon := &monitors[i]
		if x >= mon.X && x < mon.X+mon.Width && y >= mon.Y && y < mon.Y+mon.Height {
			return mon
		}
	}
	return nil
}
