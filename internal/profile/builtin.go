package profile

import "github.com/1broseidon/overlayd/internal/geometry"

// DefaultProfileID names the fallback profile. The store protects a record
// with the same name from deletion.
const DefaultProfileID = "Default"

// EightBallPoolID is the window class of the one target shipped with a tuned profile.
const EightBallPoolID = "com.miniclip.eightballpool"

// BuiltinDefault returns the profile used when nothing else matches.
func BuiltinDefault() GeometryProfile {
	p := New(DefaultProfileID)
	p.DisplayName = "Default"
	p.BasePosition = geometry.Point{X: 200, Y: 300}
	p.BaseSize = 70
	p.Opacity = 0.6
	return p
}

// BuiltinProfiles returns the profiles that are always registered.
// Users can override any of them by id in config or the store.
func BuiltinProfiles() map[string]GeometryProfile {
	pool := BuiltinDefault()
	pool.ID = EightBallPoolID
	pool.DisplayName = "8 Ball Pool"

	return map[string]GeometryProfile{
		DefaultProfileID: BuiltinDefault(),
		EightBallPoolID:  pool,
	}
}
