package overlay

import (
	"errors"
	"fmt"

	"github.com/1broseidon/overlayd/internal/geometry"
)

// Visibility is the controller's top-level state.
type Visibility int

const (
	// Hidden means no surface is attached.
	Hidden Visibility = iota
	// Shown means the surface is attached and laid out.
	Shown
)

// String returns the string representation of the visibility
func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "hidden"
	case Shown:
		return "shown"
	default:
		return "unknown"
	}
}

// DragPhase is the pointer sub-state while Shown.
type DragPhase int

const (
	// DragIdle covers both "no pointer down" and "pointer down, threshold not exceeded".
	DragIdle DragPhase = iota
	// DragDragging means the threshold was exceeded and the overlay follows the pointer.
	DragDragging
)

// String returns the string representation of the phase
func (p DragPhase) String() string {
	switch p {
	case DragIdle:
		return "idle"
	case DragDragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// State is a snapshot of the overlay.
type State struct {
	Visible        bool           `json:"visible"`
	Position       geometry.Point `json:"position"`
	Size           int            `json:"size"`
	Opacity        float64        `json:"opacity"`
	DragInProgress bool           `json:"drag_in_progress"`
}

// Placement returns the overlay square.
func (s State) Placement() geometry.Placement {
	return geometry.Placement{X: s.Position.X, Y: s.Position.Y, Size: s.Size}
}

// Update carries the fields to change. Nil fields are left alone.
type Update struct {
	Position *geometry.Point
	Size     *int
	Opacity  *float64
}

// UpdateFromPlacement returns an update moving and resizing to p.
func UpdateFromPlacement(p geometry.Placement) Update {
	pos := p.Position()
	size := p.Size
	return Update{Position: &pos, Size: &size}
}

// ResultKind classifies the outcome of a pointer event.
type ResultKind int

const (
	ResultNone ResultKind = iota
	// ResultTap is a press and release that never exceeded the drag threshold.
	ResultTap
	// ResultDragCommitted is the release that ends a drag.
	ResultDragCommitted
)

func (k ResultKind) String() string {
	switch k {
	case ResultNone:
		return "none"
	case ResultTap:
		return "tap"
	case ResultDragCommitted:
		return "drag-committed"
	default:
		return "unknown"
	}
}

// PointerResult reports what a pointer event did.
type PointerResult struct {
	Kind     ResultKind
	Position geometry.Point
}

// drag tracks one press-move-release sequence.
type drag struct {
	pressed bool
	phase   DragPhase
	anchor  geometry.Point // overlay position at press
	start   geometry.Point // pointer position at press
}

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("overlay controller closed")
	// ErrTimeout is wrapped when a surface call does not return in time.
	ErrTimeout = errors.New("surface call timed out")
)

// PermissionError reports that the windowing system refused an attach or
// layout call.
type PermissionError struct {
	Op  string
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("overlay %s refused: %v", e.Op, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }
