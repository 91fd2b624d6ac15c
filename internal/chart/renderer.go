package chart

import (
	"errors"
	"time"

	"github.com/nerrad567/rigdash/internal/series"
)

// PlotSeries is one named line on a plot. Points are (x, y) pairs: for a
// time plot x is the rig time in seconds, for an XY plot it is the
// dependent device's value.
type PlotSeries struct {
	Name   string        `json:"name"`
	Points []series.Pair `json:"points"`
}

// Renderer draws a full set of plot series, replacing whatever it drew last.
type Renderer interface {
	Render(plots []PlotSeries) error
}

// AxisNamer is implemented by renderers that label their axes.
type AxisNamer interface {
	SetAxes(x, y string)
}

// Multi fans a render out to several renderers. Every renderer is called;
// their errors are joined.
type Multi []Renderer

// Render implements Renderer.
func (m Multi) Render(plots []PlotSeries) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(plots); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetAxes forwards axis names to every member that accepts them.
func (m Multi) SetAxes(x, y string) {
	for _, r := range m {
		if n, ok := r.(AxisNamer); ok {
			n.SetAxes(x, y)
		}
	}
}

// Broadcaster publishes a payload to subscribers of a channel.
// The WebSocket hub satisfies it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Update is the payload HubRenderer broadcasts.
type Update struct {
	Series     []PlotSeries `json:"series"`
	RenderedAt time.Time    `json:"rendered_at"`
}

// HubRenderer pushes each render to live clients instead of drawing it.
type HubRenderer struct {
	hub     Broadcaster
	channel string
	now     func() time.Time
}

// NewHubRenderer creates a renderer that broadcasts on channel.
func NewHubRenderer(hub Broadcaster, channel string) *HubRenderer {
	return &HubRenderer{hub: hub, channel: channel, now: time.Now}
}

// Render implements Renderer. It never fails.
func (r *HubRenderer) Render(plots []PlotSeries) error {
	r.hub.Broadcast(r.channel, Update{
		Series:     plots,
		RenderedAt: r.now().UTC(),
	})
	return nil
}
