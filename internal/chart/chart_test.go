package chart

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/series"
)

func testConfig() config.ChartConfig {
	return config.ChartConfig{Width: 320, Height: 200, Title: "test"}
}

func ramp(n int) []series.Pair {
	out := make([]series.Pair, n)
	for i := range out {
		out[i] = series.Pair{X: float64(i), Y: float64(i * i)}
	}
	return out
}

func TestImageRenderer_PNGAndSVG(t *testing.T) {
	r := NewImageRenderer(testConfig())
	r.SetAxes("time (s)", "strain")

	err := r.Render([]PlotSeries{
		{Name: "strain0", Points: ramp(10)},
		{Name: "strain1", Points: ramp(5)},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	var png bytes.Buffer
	if err := r.WritePNG(&png); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}
	if !bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")) {
		t.Errorf("WritePNG() did not produce a PNG")
	}

	var svg bytes.Buffer
	if err := r.WriteSVG(&svg); err != nil {
		t.Fatalf("WriteSVG() error = %v", err)
	}
	if !strings.Contains(svg.String(), "<svg") {
		t.Errorf("WriteSVG() output is not SVG")
	}
}

func TestImageRenderer_ReusesHandle(t *testing.T) {
	r := NewImageRenderer(testConfig())
	if err := r.Render([]PlotSeries{{Name: "a", Points: ramp(3)}}); err != nil {
		t.Fatal(err)
	}
	first := r.graph
	if err := r.Render([]PlotSeries{{Name: "a", Points: ramp(6)}}); err != nil {
		t.Fatal(err)
	}
	if r.graph != first {
		t.Error("second render replaced the chart handle")
	}
	if r.Renders() != 2 {
		t.Errorf("Renders() = %d, want 2", r.Renders())
	}
}

func TestImageRenderer_NaNIsRenderError(t *testing.T) {
	r := NewImageRenderer(testConfig())
	if err := r.Render([]PlotSeries{{Name: "ok", Points: ramp(4)}}); err != nil {
		t.Fatal(err)
	}

	err := r.Render([]PlotSeries{{Name: "bad", Points: []series.Pair{{X: 0, Y: 1}, {X: 1, Y: math.NaN()}}}})
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("Render(NaN) error = %v, want ErrInvalidValue", err)
	}

	// The previous image survives.
	var buf bytes.Buffer
	if err := r.WritePNG(&buf); err != nil {
		t.Errorf("WritePNG() after failed render error = %v", err)
	}
}

func TestImageRenderer_Degenerate(t *testing.T) {
	tests := []struct {
		name    string
		plots   []PlotSeries
		wantImg bool
	}{
		{"no series", nil, false},
		{"empty series", []PlotSeries{{Name: "e"}}, false},
		{"single point", []PlotSeries{{Name: "p", Points: []series.Pair{{X: 5, Y: 2}}}}, true},
		{"flat line", []PlotSeries{{Name: "f", Points: []series.Pair{{X: 0, Y: 3}, {X: 1, Y: 3}}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewImageRenderer(testConfig())
			if err := r.Render(tt.plots); err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			err := r.WritePNG(&bytes.Buffer{})
			if tt.wantImg && err != nil {
				t.Errorf("WritePNG() error = %v", err)
			}
			if !tt.wantImg && !errors.Is(err, ErrNoImage) {
				t.Errorf("WritePNG() error = %v, want ErrNoImage", err)
			}
		})
	}
}

type recordingHub struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (h *recordingHub) Broadcast(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels = append(h.channels, channel)
	h.payloads = append(h.payloads, payload)
}

func TestHubRenderer(t *testing.T) {
	hub := &recordingHub{}
	r := NewHubRenderer(hub, "plot.updated")

	plots := []PlotSeries{{Name: "a", Points: ramp(2)}}
	if err := r.Render(plots); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(hub.channels) != 1 || hub.channels[0] != "plot.updated" {
		t.Fatalf("channels = %v", hub.channels)
	}
	u, ok := hub.payloads[0].(Update)
	if !ok {
		t.Fatalf("payload type = %T", hub.payloads[0])
	}
	if len(u.Series) != 1 || u.Series[0].Name != "a" || u.RenderedAt.IsZero() {
		t.Errorf("payload = %+v", u)
	}
}

type failingRenderer struct{ err error }

func (f failingRenderer) Render([]PlotSeries) error { return f.err }

func TestMulti(t *testing.T) {
	hub := &recordingHub{}
	boom := errors.New("boom")
	m := Multi{failingRenderer{err: boom}, NewHubRenderer(hub, "c")}

	err := m.Render(nil)
	if !errors.Is(err, boom) {
		t.Errorf("Multi.Render() error = %v, want boom", err)
	}
	if len(hub.channels) != 1 {
		t.Error("a failing member stopped later renderers")
	}

	img := NewImageRenderer(testConfig())
	Multi{img}.SetAxes("x", "y")
	if img.xName != "x" || img.yName != "y" {
		t.Errorf("SetAxes not forwarded: %q/%q", img.xName, img.yName)
	}
}
