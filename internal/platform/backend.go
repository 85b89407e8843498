package platform

import (
	"context"
	"errors"

	"github.com/1broseidon/overlayd/internal/geometry"
)

// SurfaceID is a platform-neutral handle for an attached overlay surface.
type SurfaceID uint32

// View describes what the overlay surface renders.
type View struct {
	Name      string
	ColorARGB uint32
}

// LayoutParams positions and styles an attached surface.
type LayoutParams struct {
	X       int
	Y       int
	Width   int
	Height  int
	Opacity float64
}

// PointerAction is the kind of pointer event delivered to the overlay.
type PointerAction int

const (
	PointerDown PointerAction = iota
	PointerMove
	PointerUp
)

func (a PointerAction) String() string {
	switch a {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	default:
		return "unknown"
	}
}

// PointerEvent carries root-relative pointer coordinates.
type PointerEvent struct {
	Action PointerAction
	X      int
	Y      int
}

// Surface attaches, moves and detaches the overlay window.
type Surface interface {
	Attach(view View, params LayoutParams) (SurfaceID, error)
	Detach(id SurfaceID) error
	UpdateLayout(id SurfaceID, params LayoutParams) error
}

// ForegroundSource reports the identifier of the focused application.
// ok is false when nothing identifiable has focus.
type ForegroundSource interface {
	CurrentForegroundID() (id string, ok bool)
}

// MetricsSource reports the screen the overlay lives on. cutout is nil when
// the host has no inset information.
type MetricsSource interface {
	CurrentMetrics() (metrics geometry.ScreenMetrics, cutout *geometry.Insets, err error)
}

// KV is durable key/value storage.
type KV interface {
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
}

// Element is one node from a flattened UI tree.
type Element struct {
	Bounds      geometry.Rect `json:"bounds"`
	Interactive bool          `json:"interactive"`
}

// DefaultVisitDepth bounds UI tree walks.
const DefaultVisitDepth = 10

// TreeVisitor flattens the UI tree under the focused application.
type TreeVisitor interface {
	VisitForeground(maxDepth int) ([]Element, error)
}

// ElevatedResult is the outcome of a privileged command.
type ElevatedResult struct {
	ExitCode int
	Output   string
}

// ElevatedExecutor runs privileged commands on behalf of elevated-mode profiles.
type ElevatedExecutor interface {
	Run(ctx context.Context, cmd string) (ElevatedResult, error)
}

// ErrElevatedUnavailable is returned by executors that cannot run privileged commands.
var ErrElevatedUnavailable = errors.New("elevated execution unavailable")

// RefusingExecutor is the ElevatedExecutor used when no privileged path is configured.
type RefusingExecutor struct{}

var _ ElevatedExecutor = RefusingExecutor{}

func (RefusingExecutor) Run(context.Context, string) (ElevatedResult, error) {
	return ElevatedResult{ExitCode: -1}, ErrElevatedUnavailable
}

// Backend is the full set of host capabilities the daemon needs.
type Backend interface {
	Surface
	ForegroundSource
	MetricsSource
	TreeVisitor
}
