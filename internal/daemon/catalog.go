package daemon

import (
	"fmt"
	"sort"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/profile"
	"github.com/1broseidon/overlayd/internal/store"
)

// Catalog layers the known profiles: built-ins, then config targets, then
// stored records. A later layer replaces an earlier one with the same id.
// st may be nil.
func Catalog(cfg *config.Config, st *store.Store) ([]profile.GeometryProfile, error) {
	byID := make(map[string]profile.GeometryProfile)
	for id, p := range profile.BuiltinProfiles() {
		byID[id] = p
	}

	targets, err := cfg.TargetProfiles()
	if err != nil {
		return nil, err
	}
	for _, p := range targets {
		byID[p.ID] = p
	}

	if st != nil {
		for _, p := range st.Profiles() {
			byID[p.ID] = p
		}
	}

	out := make([]profile.GeometryProfile, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NewRegistry builds a registry from Catalog.
func NewRegistry(cfg *config.Config, st *store.Store) (*profile.Registry, error) {
	set, err := Catalog(cfg, st)
	if err != nil {
		return nil, err
	}
	def := profile.BuiltinDefault()
	for _, p := range set {
		if p.ID == profile.DefaultProfileID {
			def = p
		}
	}
	reg, err := profile.NewRegistry(def)
	if err != nil {
		return nil, err
	}
	if err := reg.Replace(set); err != nil {
		return nil, fmt.Errorf("invalid profile catalog: %w", err)
	}
	return reg, nil
}

// Preview is what a profile resolves to on a given screen.
type Preview struct {
	ProfileID string                 `json:"profile_id"`
	Known     bool                   `json:"known"`
	Suitable  bool                   `json:"suitable"`
	Metrics   geometry.ScreenMetrics `json:"metrics"`
	Placement geometry.Placement     `json:"placement"`
}

// PreviewPlacement resolves id against m the way the daemon would, without
// touching the overlay. Config cutout and density overrides apply. An
// unsuitable screen still gets a placement so callers can show where it
// would land.
func PreviewPlacement(cfg *config.Config, reg *profile.Registry, id string, m geometry.ScreenMetrics, cutout *geometry.Insets) (Preview, error) {
	resolverCfg, err := cfg.ResolverConfig()
	if err != nil {
		return Preview{}, err
	}
	if cfg.Cutout != nil {
		cutout = cfg.Cutout
	}
	if cfg.DensityOverride > 0 {
		m.Density = cfg.DensityOverride
	}

	p, known := reg.Lookup(id)
	if !known {
		p = reg.ResolveProfileFor(id)
	}
	policy := cfg.SafeAreaPolicy()
	metrics := policy.WithSafeArea(m, cutout)
	return Preview{
		ProfileID: p.ID,
		Known:     known,
		Suitable:  policy.IsSuitable(m, cutout),
		Metrics:   metrics,
		Placement: profile.NewResolver(reg, resolverCfg).Place(p, metrics),
	}, nil
}
