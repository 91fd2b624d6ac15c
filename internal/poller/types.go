package poller

import (
	"context"
	"time"

	"github.com/nerrad567/rigdash/internal/chart"
	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/rig"
	"github.com/nerrad567/rigdash/internal/series"
)

// Fetcher retrieves device data from the rig. *rig.Client satisfies it.
type Fetcher interface {
	Data(ctx context.Context, kind rig.Kind, id int, rng rig.Range) (*rig.Data, error)
}

// SampleSink receives samples newly appended to a series.
// Sinks are called from the poller goroutine after the redraw; their
// errors are logged and never stop the session.
type SampleSink interface {
	WriteSamples(ctx context.Context, dev device.Device, samples []series.Sample) error
}

// AxisSelection is what the user picked to plot. A nil X plots every Y
// device against rig time; otherwise each Y is bucket-merged against X.
// Start and End bound the first request; negative values are relative to
// the rig's current time.
type AxisSelection struct {
	X     *device.Ref  `json:"x,omitempty"`
	Y     []device.Ref `json:"y"`
	Start *float64     `json:"start_time,omitempty"`
	End   *float64     `json:"end_time,omitempty"`
}

// refs returns every device that must be fetched, X first, without repeats.
func (s AxisSelection) refs() []device.Ref {
	out := make([]device.Ref, 0, len(s.Y)+1)
	seen := make(map[device.Ref]bool, len(s.Y)+1)
	add := func(r device.Ref) {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	if s.X != nil {
		add(*s.X)
	}
	for _, r := range s.Y {
		add(r)
	}
	return out
}

// Session states.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"
)

// Status describes the current or most recent plot session.
type Status struct {
	SessionID   string    `json:"session_id,omitempty"`
	State       string    `json:"state"`
	Message     string    `json:"message,omitempty"`
	Rounds      int       `json:"rounds"`
	CurrentTime float64   `json:"current_time"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	RenderError string    `json:"render_error,omitempty"`
}

// Snapshot is the latest plot as last drawn.
type Snapshot struct {
	Status    Status             `json:"status"`
	Selection *AxisSelection     `json:"selection,omitempty"`
	Series    []chart.PlotSeries `json:"series"`
}
