package monitor

import "time"

// DetectionState is the monitor's view of the foreground target.
// It starts Lost: Present is false until a stable identifier is seen.
type DetectionState struct {
	CurrentTargetID string    `json:"current_target_id,omitempty"`
	Present         bool      `json:"present"`
	LastChangeAt    time.Time `json:"last_change_at"`
	SampleCount     uint64    `json:"sample_count"`
}

// Lost reports whether no target has been acquired yet.
func (s DetectionState) Lost() bool {
	return !s.Present
}

// Transition is emitted when the foreground target changes.
type Transition struct {
	From string    `json:"from,omitempty"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// tracker debounces raw samples into transitions.
type tracker struct {
	state     DetectionState
	stable    int
	ignored   map[string]bool
	candidate string
	seen      int
}

func newTracker(stableSamples int, ignored []string) *tracker {
	if stableSamples < 1 {
		stableSamples = 1
	}
	t := &tracker{stable: stableSamples, ignored: make(map[string]bool, len(ignored))}
	for _, id := range ignored {
		t.ignored[id] = true
	}
	return t
}

// observe records one sample. It returns a transition when a non-null id that
// differs from the current target has been seen stable times in a row.
// Null and ignored samples are counted but never transition and never reset
// a pending candidate.
func (t *tracker) observe(id string, ok bool, now time.Time) (Transition, bool) {
	t.state.SampleCount++

	if !ok || id == "" || t.ignored[id] {
		return Transition{}, false
	}

	if t.state.Present && id == t.state.CurrentTargetID {
		t.candidate, t.seen = "", 0
		return Transition{}, false
	}

	if id != t.candidate {
		t.candidate, t.seen = id, 0
	}
	t.seen++
	if t.seen < t.stable {
		return Transition{}, false
	}

	tr := Transition{From: t.state.CurrentTargetID, To: id, At: now}
	t.state.CurrentTargetID = id
	t.state.Present = true
	t.state.LastChangeAt = now
	t.candidate, t.seen = "", 0
	return tr, true
}

// adopt sets the current target without producing a transition.
func (t *tracker) adopt(id string, ok bool, now time.Time) bool {
	t.state.SampleCount++
	if !ok || id == "" || t.ignored[id] {
		return false
	}
	t.state.CurrentTargetID = id
	t.state.Present = true
	t.state.LastChangeAt = now
	return true
}
