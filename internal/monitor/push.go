package monitor

import (
	"sync"

	"github.com/1broseidon/overlayd/internal/platform"
)

// PushSource adapts callback-style foreground notifications to the pull
// contract. It keeps only the latest value and wakes the monitor on change.
type PushSource struct {
	mu     sync.Mutex
	id     string
	ok     bool
	notify chan struct{}
}

var _ platform.ForegroundSource = (*PushSource)(nil)

func NewPushSource() *PushSource {
	return &PushSource{notify: make(chan struct{}, 1)}
}

// OnForegroundChanged records the newly focused id. An empty id means nothing
// identifiable has focus.
func (p *PushSource) OnForegroundChanged(id string) {
	p.mu.Lock()
	p.id, p.ok = id, id != ""
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *PushSource) CurrentForegroundID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id, p.ok
}

// Notify fires after OnForegroundChanged. Bursts collapse into one wakeup.
func (p *PushSource) Notify() <-chan struct{} {
	return p.notify
}
