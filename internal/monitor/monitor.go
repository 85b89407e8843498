package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/overlayd/internal/platform"
)

const (
	// MinInterval is the shortest time between two samples. Faster poll
	// intervals are raised to it and push notifications are coalesced to it.
	MinInterval = 50 * time.Millisecond
	// DefaultPollInterval is used when Config.Interval is zero.
	DefaultPollInterval = time.Second
)

// ErrRunning is returned by Start while a previous handle is still active.
var ErrRunning = errors.New("monitor already running")

// Config holds configuration for the monitor.
type Config struct {
	Interval      time.Duration
	StableSamples int
	// IgnoredIDs are treated like empty samples, e.g. the overlay's own window class.
	IgnoredIDs []string
	// OnTransition is called on the monitor goroutine. It must not call Stop.
	OnTransition func(Transition)
	Logger       *slog.Logger
	Now          func() time.Time
}

// notifier is implemented by sources that can wake the monitor early.
type notifier interface {
	Notify() <-chan struct{}
}

// Monitor samples a foreground source and emits de-duplicated transitions.
type Monitor struct {
	source   platform.ForegroundSource
	interval time.Duration
	stable   int
	ignored  []string
	onChange func(Transition)
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	state   DetectionState
	running *Handle
}

// New creates a monitor over source.
func New(source platform.ForegroundSource, cfg Config) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	m := &Monitor{
		source:   source,
		interval: interval,
		stable:   cfg.StableSamples,
		ignored:  append([]string(nil), cfg.IgnoredIDs...),
		onChange: cfg.OnTransition,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Interval returns the effective sampling interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// State returns a snapshot of the detection state.
func (m *Monitor) State() DetectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Handle controls one running observation started by Start.
type Handle struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	baseline    string
	hasBaseline bool
}

// Baseline returns the target adopted when observation started, if any.
func (h *Handle) Baseline() (string, bool) {
	return h.baseline, h.hasBaseline
}

// Stop halts observation and waits for the monitor goroutine to exit. No
// transition is delivered after Stop returns. It is safe to call repeatedly.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
	})
	<-h.done
}

// Done is closed once the monitor goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start takes a baseline sample, then observes the source until ctx is
// cancelled or Stop is called. A present baseline becomes the current target
// without emitting a transition.
func (m *Monitor) Start(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	if m.running != nil {
		m.mu.Unlock()
		return nil, ErrRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	m.running = h
	m.mu.Unlock()

	t := newTracker(m.stable, m.ignored)
	id, ok := m.sample()
	if t.adopt(id, ok, m.now()) {
		h.baseline, h.hasBaseline = id, true
	}
	m.mu.Lock()
	m.state = t.state
	m.mu.Unlock()

	m.logger.Info("monitor started", "interval", m.interval, "baseline", h.baseline)
	go m.run(loopCtx, h, t)
	return h, nil
}

func (m *Monitor) run(ctx context.Context, h *Handle, t *tracker) {
	defer func() {
		m.mu.Lock()
		if m.running == h {
			m.running = nil
		}
		m.mu.Unlock()
		close(h.done)
		m.logger.Info("monitor stopped")
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var wake <-chan struct{}
	if n, ok := m.source.(notifier); ok {
		wake = n.Notify()
	}

	last := m.now()
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-pending:
			pending = nil
		case <-wake:
			if elapsed := m.now().Sub(last); elapsed < MinInterval {
				if pending == nil {
					pending = time.After(MinInterval - elapsed)
				}
				continue
			}
		}

		// Stop may have raced the wakeup.
		if ctx.Err() != nil {
			return
		}
		last = m.now()
		m.step(ctx, t, last)
	}
}

func (m *Monitor) step(ctx context.Context, t *tracker, now time.Time) {
	id, ok := m.sample()

	m.mu.Lock()
	tr, changed := t.observe(id, ok, now)
	m.state = t.state
	m.mu.Unlock()

	if !changed || ctx.Err() != nil {
		return
	}
	m.logger.Info("foreground target changed", "from", tr.From, "to", tr.To)
	m.deliver(tr)
}

func (m *Monitor) sample() (id string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("foreground source panic recovered", "error", r)
			id, ok = "", false
		}
	}()
	return m.source.CurrentForegroundID()
}

func (m *Monitor) deliver(tr Transition) {
	if m.onChange == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("transition handler panic recovered", "error", r, "to", tr.To)
		}
	}()
	m.onChange(tr)
}
