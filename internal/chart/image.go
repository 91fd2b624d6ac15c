package chart

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"

	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
)

// ImageRenderer draws plots with go-chart. The chart handle is created on
// the first render and updated in place afterwards; the latest PNG is kept
// so HTTP readers never trigger a redraw.
type ImageRenderer struct {
	mu      sync.Mutex
	cfg     config.ChartConfig
	xName   string
	yName   string
	graph   *gochart.Chart
	png     []byte
	renders int
}

// NewImageRenderer creates an image renderer sized from cfg.
func NewImageRenderer(cfg config.ChartConfig) *ImageRenderer {
	return &ImageRenderer{cfg: cfg, xName: "time (s)"}
}

// SetAxes implements AxisNamer.
func (r *ImageRenderer) SetAxes(x, y string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.xName, r.yName = x, y
}

// Render implements Renderer. Series without points are left out; a NaN or
// infinite point fails the whole render with ErrInvalidValue and keeps the
// previous image.
func (r *ImageRenderer) Render(plots []PlotSeries) error {
	drawn, bounds, err := toChartSeries(plots)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.graph == nil {
		r.graph = &gochart.Chart{
			Title:  r.cfg.Title,
			Width:  r.cfg.Width,
			Height: r.cfg.Height,
		}
	}
	g := r.graph
	g.XAxis = gochart.XAxis{Name: r.xName, Range: bounds.xRange()}
	g.YAxis = gochart.YAxis{Name: r.yName, Range: bounds.yRange()}
	g.Series = drawn
	g.Elements = nil
	if len(drawn) > 1 {
		g.Elements = []gochart.Renderable{gochart.Legend(g)}
	}
	r.renders++

	if len(drawn) == 0 {
		r.png = nil
		return nil
	}

	var buf bytes.Buffer
	if err := g.Render(gochart.PNG, &buf); err != nil {
		return fmt.Errorf("chart: rendering png: %w", err)
	}
	r.png = buf.Bytes()
	return nil
}

// WritePNG writes the most recent image.
func (r *ImageRenderer) WritePNG(w io.Writer) error {
	r.mu.Lock()
	img := r.png
	r.mu.Unlock()

	if img == nil {
		return ErrNoImage
	}
	_, err := w.Write(img)
	return err
}

// WriteSVG redraws the current chart handle as SVG.
func (r *ImageRenderer) WriteSVG(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.graph == nil || len(r.graph.Series) == 0 {
		return ErrNoImage
	}
	if err := r.graph.Render(gochart.SVG, w); err != nil {
		return fmt.Errorf("chart: rendering svg: %w", err)
	}
	return nil
}

// Renders returns how many times Render has been called successfully
// past validation.
func (r *ImageRenderer) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// extent tracks the data bounds across all series.
type extent struct {
	minX, maxX, minY, maxY float64
	empty                  bool
}

// xRange pins the axis when every x is equal; go-chart refuses a zero delta.
func (e extent) xRange() gochart.Range {
	if e.empty || e.minX != e.maxX {
		return nil
	}
	return &gochart.ContinuousRange{Min: e.minX - 1, Max: e.maxX + 1}
}

func (e extent) yRange() gochart.Range {
	if e.empty || e.minY != e.maxY {
		return nil
	}
	return &gochart.ContinuousRange{Min: e.minY - 1, Max: e.maxY + 1}
}

func toChartSeries(plots []PlotSeries) ([]gochart.Series, extent, error) {
	ext := extent{
		minX: math.Inf(1), maxX: math.Inf(-1),
		minY: math.Inf(1), maxY: math.Inf(-1),
		empty: true,
	}
	out := make([]gochart.Series, 0, len(plots))

	for i, p := range plots {
		if len(p.Points) == 0 {
			continue
		}
		xs := make([]float64, 0, len(p.Points)+1)
		ys := make([]float64, 0, len(p.Points)+1)
		for j, pt := range p.Points {
			if !finite(pt.X) || !finite(pt.Y) {
				return nil, ext, fmt.Errorf("%w: series %q point %d", ErrInvalidValue, p.Name, j)
			}
			xs = append(xs, pt.X)
			ys = append(ys, pt.Y)
			ext.minX, ext.maxX = math.Min(ext.minX, pt.X), math.Max(ext.maxX, pt.X)
			ext.minY, ext.maxY = math.Min(ext.minY, pt.Y), math.Max(ext.maxY, pt.Y)
		}
		ext.empty = false

		// go-chart needs two points per line.
		if len(xs) == 1 {
			xs = append(xs, xs[0])
			ys = append(ys, ys[0])
		}

		out = append(out, gochart.ContinuousSeries{
			Name: p.Name,
			Style: gochart.Style{
				StrokeColor: gochart.GetDefaultColor(i),
				StrokeWidth: 1.5,
			},
			XValues: xs,
			YValues: ys,
		})
	}
	return out, ext, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
