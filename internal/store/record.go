package store

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/profile"
)

// FormatVersion is written into persisted and exported record sets.
const FormatVersion = 1

// Record is the persisted form of a named profile. Timestamps are epoch
// milliseconds. A zero target resolution means the reference resolution.
type Record struct {
	ID                   string  `json:"id,omitempty"`
	Name                 string  `json:"name"`
	Opacity              float64 `json:"opacity"`
	Size                 int     `json:"size"`
	X                    int     `json:"x"`
	Y                    int     `json:"y"`
	ColorARGB            uint32  `json:"colorARGB"`
	RequiresElevatedMode bool    `json:"requiresElevatedMode"`
	RefreshRateHint      int     `json:"refreshRateHint"`
	TargetWidth          int     `json:"targetWidth,omitempty"`
	TargetHeight         int     `json:"targetHeight,omitempty"`
	CreatedAt            int64   `json:"createdAt"`
	ModifiedAt           int64   `json:"modifiedAt"`
}

// Fields are the user-editable values of a record.
type Fields struct {
	Opacity              float64
	Size                 int
	X                    int
	Y                    int
	ColorARGB            uint32
	RequiresElevatedMode bool
	RefreshRateHint      int
	TargetWidth          int
	TargetHeight         int
}

// DefaultFields returns the values a new profile starts with.
func DefaultFields() Fields {
	return Fields{
		Opacity:         profile.DefaultOpacity,
		Size:            profile.DefaultSize,
		X:               profile.DefaultX,
		Y:               profile.DefaultY,
		ColorARGB:       profile.DefaultColorARGB,
		RefreshRateHint: profile.DefaultRefreshRate,
	}
}

// Fields returns the editable values of r.
func (r Record) Fields() Fields {
	return Fields{
		Opacity:              r.Opacity,
		Size:                 r.Size,
		X:                    r.X,
		Y:                    r.Y,
		ColorARGB:            r.ColorARGB,
		RequiresElevatedMode: r.RequiresElevatedMode,
		RefreshRateHint:      r.RefreshRateHint,
		TargetWidth:          r.TargetWidth,
		TargetHeight:         r.TargetHeight,
	}
}

func (r *Record) apply(f Fields) {
	r.Opacity = profile.ClampOpacity(f.Opacity)
	r.Size = f.Size
	r.X = f.X
	r.Y = f.Y
	r.ColorARGB = f.ColorARGB
	r.RequiresElevatedMode = f.RequiresElevatedMode
	r.RefreshRateHint = f.RefreshRateHint
	r.TargetWidth = max(f.TargetWidth, 0)
	r.TargetHeight = max(f.TargetHeight, 0)
}

// Profile converts r to a geometry profile keyed by its name.
func (r Record) Profile() profile.GeometryProfile {
	p := profile.GeometryProfile{
		ID:                   r.Name,
		DisplayName:          r.Name,
		TargetWidth:          r.TargetWidth,
		TargetHeight:         r.TargetHeight,
		BasePosition:         geometry.Point{X: r.X, Y: r.Y},
		BaseSize:             r.Size,
		Opacity:              r.Opacity,
		ColorARGB:            r.ColorARGB,
		RequiresElevatedMode: r.RequiresElevatedMode,
		RefreshRateHint:      r.RefreshRateHint,
		CreatedAt:            time.UnixMilli(r.CreatedAt),
		ModifiedAt:           time.UnixMilli(r.ModifiedAt),
	}
	return p.Normalize()
}

// RecordFromProfile converts a geometry profile into a new record.
func RecordFromProfile(p profile.GeometryProfile, now time.Time) Record {
	r := Record{
		ID:   uuid.NewString(),
		Name: p.ID,
	}
	r.apply(Fields{
		Opacity:              p.Opacity,
		Size:                 p.BaseSize,
		X:                    p.BasePosition.X,
		Y:                    p.BasePosition.Y,
		ColorARGB:            p.ColorARGB,
		RequiresElevatedMode: p.RequiresElevatedMode,
		RefreshRateHint:      p.RefreshRateHint,
		TargetWidth:          p.TargetWidth,
		TargetHeight:         p.TargetHeight,
	})
	r.CreatedAt = now.UnixMilli()
	r.ModifiedAt = r.CreatedAt
	return r
}

func validateFields(name string, f Fields) *ConfigurationError {
	if strings.TrimSpace(name) == "" {
		return &ConfigurationError{Index: -1, Reason: "name is required"}
	}
	if f.Size <= 0 {
		return &ConfigurationError{Name: name, Index: -1, Reason: "size must be > 0"}
	}
	if math.IsNaN(f.Opacity) {
		return &ConfigurationError{Name: name, Index: -1, Reason: "opacity is not a number"}
	}
	return nil
}

// envelope is the persisted and exported container for a record set.
type envelope struct {
	FormatVersion int               `json:"formatVersion"`
	ExportedAt    int64             `json:"exportedAt,omitempty"`
	Profiles      []json.RawMessage `json:"profiles"`
}

// wireRecord accepts the current field names plus the older camelCase
// spellings (positionX, rootMode, createdTime, ...). Color may arrive as a
// signed 32-bit value.
type wireRecord struct {
	ID                   string   `json:"id"`
	Name                 *string  `json:"name"`
	Opacity              *float64 `json:"opacity"`
	Size                 *int     `json:"size"`
	X                    *int     `json:"x"`
	Y                    *int     `json:"y"`
	ColorARGB            *int64   `json:"colorARGB"`
	RequiresElevatedMode *bool    `json:"requiresElevatedMode"`
	RefreshRateHint      *int     `json:"refreshRateHint"`
	TargetWidth          int      `json:"targetWidth"`
	TargetHeight         int      `json:"targetHeight"`
	CreatedAt            *int64   `json:"createdAt"`
	ModifiedAt           *int64   `json:"modifiedAt"`

	PositionX    *int   `json:"positionX"`
	PositionY    *int   `json:"positionY"`
	Color        *int64 `json:"color"`
	RootMode     *bool  `json:"rootMode"`
	RefreshRate  *int   `json:"refreshRate"`
	CreatedTime  *int64 `json:"createdTime"`
	ModifiedTime *int64 `json:"modifiedTime"`
}

// decodeRecord parses one persisted record. now fills missing timestamps.
func decodeRecord(raw json.RawMessage, index int, now time.Time) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return Record{}, &ConfigurationError{Index: index, Reason: "cannot decode record", Err: err}
	}
	if w.Name == nil || strings.TrimSpace(*w.Name) == "" {
		return Record{}, &ConfigurationError{Index: index, Reason: "name is required"}
	}
	name := strings.TrimSpace(*w.Name)

	d := DefaultFields()
	f := Fields{
		Opacity:              pick(w.Opacity, nil, d.Opacity),
		Size:                 pick(w.Size, nil, d.Size),
		X:                    pick(w.X, w.PositionX, d.X),
		Y:                    pick(w.Y, w.PositionY, d.Y),
		ColorARGB:            uint32(pick(w.ColorARGB, w.Color, int64(d.ColorARGB))),
		RequiresElevatedMode: pick(w.RequiresElevatedMode, w.RootMode, false),
		RefreshRateHint:      pick(w.RefreshRateHint, w.RefreshRate, d.RefreshRateHint),
		TargetWidth:          w.TargetWidth,
		TargetHeight:         w.TargetHeight,
	}
	if cerr := validateFields(name, f); cerr != nil {
		cerr.Index = index
		return Record{}, cerr
	}

	r := Record{ID: w.ID, Name: name}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.apply(f)
	r.CreatedAt = pick(w.CreatedAt, w.CreatedTime, now.UnixMilli())
	r.ModifiedAt = pick(w.ModifiedAt, w.ModifiedTime, r.CreatedAt)
	return r, nil
}

func pick[T any](primary, legacy *T, fallback T) T {
	if primary != nil {
		return *primary
	}
	if legacy != nil {
		return *legacy
	}
	return fallback
}
