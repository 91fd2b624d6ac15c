// Package errorlog mirrors the rig's error log for the console.
package errorlog

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
)

// FailureText replaces the log text while the rig cannot be reached.
const FailureText = "Failed to retrieve the error log."

// Logger defines the logging interface used by the panel.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Source fetches the log text. *rig.Client satisfies it.
type Source interface {
	ErrorLog(ctx context.Context) (string, error)
}

// Snapshot is the panel's current content.
type Snapshot struct {
	Text      string    `json:"text"`
	Failed    bool      `json:"failed"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Panel polls the rig's error log and notifies listeners when the text
// changes.
type Panel struct {
	source   Source
	interval time.Duration
	retry    time.Duration
	logger   Logger

	mu       sync.RWMutex
	snap     Snapshot
	onChange func(Snapshot)
}

// New creates a panel polling at the cadence in cfg.
func New(source Source, cfg config.ErrorLogConfig) *Panel {
	return &Panel{
		source:   source,
		interval: config.Millis(cfg.Interval),
		retry:    config.Millis(cfg.RetryInterval),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the panel.
func (p *Panel) SetLogger(logger Logger) {
	p.logger = logger
}

// OnChange registers the change listener. It runs on the polling goroutine.
func (p *Panel) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Run polls until ctx is cancelled.
func (p *Panel) Run(ctx context.Context) {
	for {
		wait := p.interval
		if err := p.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = p.retry
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

// Refresh fetches the log once. On failure the text is replaced by
// FailureText so a stale log is never shown as current.
func (p *Panel) Refresh(ctx context.Context) error {
	text, err := p.source.ErrorLog(ctx)
	next := Snapshot{Text: text, UpdatedAt: time.Now().UTC()}
	if err != nil {
		next = Snapshot{Text: FailureText, Failed: true, UpdatedAt: next.UpdatedAt}
	}

	p.mu.Lock()
	changed := next.Text != p.snap.Text || next.Failed != p.snap.Failed
	p.snap = next
	fn := p.onChange
	p.mu.Unlock()

	if err != nil {
		p.logger.Debug("error log unavailable", "error", err)
	}
	if changed && fn != nil {
		fn(next)
	}
	return err
}

// Snapshot returns the current content.
func (p *Panel) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}
