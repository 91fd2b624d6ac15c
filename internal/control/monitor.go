package control

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/rig"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StatusSource reports the rig's experiment state. *rig.Client satisfies it.
type StatusSource interface {
	ControlStatus(ctx context.Context) (*rig.ControlStatus, error)
}

// Snapshot is the monitor's published state.
type Snapshot struct {
	View      View      `json:"view"`
	Known     bool      `json:"known"`
	Reachable bool      `json:"reachable"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// Monitor polls the control status and notifies listeners when the state
// code changes.
type Monitor struct {
	source   StatusSource
	interval time.Duration
	retry    time.Duration
	logger   Logger

	mu        sync.RWMutex
	machine   Machine
	reachable bool
	lastErr   string
	checkedAt time.Time
	listeners []func(View)
}

// NewMonitor creates a monitor polling source at the cadence in cfg.
func NewMonitor(source StatusSource, cfg config.ControlConfig) *Monitor {
	return &Monitor{
		source:   source,
		interval: config.Millis(cfg.Interval),
		retry:    config.Millis(cfg.RetryInterval),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// OnChange registers a listener called after every state change.
// Listeners run on the monitor goroutine.
func (m *Monitor) OnChange(fn func(View)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Run polls until ctx is cancelled: every interval after a good poll,
// every retry interval after a failed one.
func (m *Monitor) Run(ctx context.Context) {
	for {
		wait := m.interval
		if _, err := m.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = m.retry
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Poll fetches the status once and applies it. It reports whether the
// state changed.
func (m *Monitor) Poll(ctx context.Context) (bool, error) {
	st, err := m.source.ControlStatus(ctx)

	m.mu.Lock()
	m.checkedAt = time.Now().UTC()
	if err != nil {
		wasReachable := m.reachable || m.lastErr == ""
		m.reachable = false
		m.lastErr = err.Error()
		m.mu.Unlock()

		if wasReachable {
			m.logger.Warn("control status unavailable", "error", err)
		} else {
			m.logger.Debug("control status still unavailable", "error", err)
		}
		return false, err
	}

	m.reachable = true
	m.lastErr = ""
	view, changed := m.machine.Apply(*st)
	listeners := m.listeners
	m.mu.Unlock()

	if !changed {
		return false, nil
	}

	if view.Unhandled {
		m.logger.Warn("unhandled control state", "state", string(view.State), "code", int(view.Code))
	} else {
		m.logger.Info("control state changed", "state", string(view.State), "experiment", view.Experiment)
	}
	for _, fn := range listeners {
		fn(view)
	}
	return true, nil
}

// Snapshot returns the current view and connectivity.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	view, known := m.machine.Current()
	return Snapshot{
		View:      view,
		Known:     known,
		Reachable: m.reachable,
		LastError: m.lastErr,
		CheckedAt: m.checkedAt,
	}
}
