package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/rigdash/internal/chart"
	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/rig"
	"github.com/nerrad567/rigdash/internal/series"
)

// Overview keeps a small, always-on graph of the strain gauges: the last
// few seconds of each sensor, thinned to a fixed number of points.
// Unlike a plot session it never stops on a failed refresh.
type Overview struct {
	fetcher  Fetcher
	renderer chart.Renderer
	ids      []int
	interval time.Duration
	lookback float64
	points   int
	logger   Logger

	mu     sync.Mutex
	latest []chart.PlotSeries
}

// NewOverview creates an overview of the sensors listed in cfg.
func NewOverview(fetcher Fetcher, renderer chart.Renderer, cfg config.OverviewConfig) *Overview {
	return &Overview{
		fetcher:  fetcher,
		renderer: renderer,
		ids:      cfg.SensorIDs,
		interval: config.Millis(cfg.Interval),
		lookback: cfg.Lookback,
		points:   cfg.Points,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the overview.
func (o *Overview) SetLogger(logger Logger) {
	o.logger = logger
}

// Run refreshes on every interval until ctx is cancelled.
func (o *Overview) Run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		if err := o.Refresh(ctx); err != nil && ctx.Err() == nil {
			o.logger.Debug("overview refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh fetches and redraws once.
func (o *Overview) Refresh(ctx context.Context) error {
	plots := make([]chart.PlotSeries, len(o.ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range o.ids {
		g.Go(func() error {
			data, err := o.fetcher.Data(gctx, rig.KindSensor, id, rig.Since(-o.lookback))
			if err != nil {
				return fmt.Errorf("fetching sensor/%d: %w", id, err)
			}
			thin := series.Decimate(data.Samples, o.points)
			pts := make([]series.Pair, len(thin))
			for j, s := range thin {
				pts[j] = series.Pair{X: s.T, Y: s.V}
			}
			name := data.Name
			if name == "" {
				name = fmt.Sprintf("sensor %d", id)
			}
			plots[i] = chart.PlotSeries{Name: name, Points: pts}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	o.mu.Lock()
	o.latest = plots
	o.mu.Unlock()

	return o.renderer.Render(plots)
}

// Latest returns the series from the last successful refresh.
func (o *Overview) Latest() []chart.PlotSeries {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest
}
