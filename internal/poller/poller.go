package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/rigdash/internal/chart"
	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/rig"
	"github.com/nerrad567/rigdash/internal/series"
)

// Logger defines the logging interface used by the poller.
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

// Poller runs one plot session at a time. Each round fetches every selected
// device concurrently, joins, appends the new samples, redraws, and only then
// schedules the next round.
type Poller struct {
	fetcher  Fetcher
	registry *device.Registry
	renderer chart.Renderer
	interval time.Duration
	window   float64
	logger   Logger

	// drawMu serializes drawing with axis changes so a session that lost
	// the renderer to a newer one never draws over it.
	drawMu sync.Mutex

	mu       sync.Mutex
	current  *session
	status   Status
	snapshot Snapshot
	sinks    []SampleSink
	onStatus func(Status)
}

// session is the state of one Start..Stop lifetime. Series are only touched
// by the session goroutine.
type session struct {
	id        string
	selection AxisSelection
	devices   map[device.Ref]device.Device
	series    map[device.Ref]*series.Series
	running   bool
	stop      chan struct{}
	done      chan struct{}
}

// New creates a poller. Devices are resolved through reg; every redraw goes
// to renderer.
func New(fetcher Fetcher, reg *device.Registry, renderer chart.Renderer, cfg config.PollerConfig) *Poller {
	return &Poller{
		fetcher:  fetcher,
		registry: reg,
		renderer: renderer,
		interval: config.Millis(cfg.Interval),
		window:   cfg.StoreWindow,
		logger:   noopLogger{},
		status:   Status{State: StateIdle},
	}
}

// SetLogger sets the logger for the poller.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

// AddSink registers a sink for newly appended samples.
func (p *Poller) AddSink(s SampleSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// OnStatus registers a callback invoked after every status change.
// It runs on the poller goroutine and must not block.
func (p *Poller) OnStatus(fn func(Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStatus = fn
}

// Start validates the selection and begins a new session. ctx bounds the
// whole session; Stop does not cancel it.
func (p *Poller) Start(ctx context.Context, sel AxisSelection) (Status, error) {
	if len(sel.Y) == 0 {
		return Status{}, ErrEmptySelection
	}

	s := &session{
		id:        uuid.NewString(),
		selection: sel,
		devices:   make(map[device.Ref]device.Device),
		series:    make(map[device.Ref]*series.Series),
		running:   true,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, ref := range sel.refs() {
		d, err := p.registry.Lookup(ref)
		if err != nil {
			return Status{}, err
		}
		s.devices[ref] = d
		s.series[ref] = series.New()
	}

	p.drawMu.Lock()
	p.mu.Lock()
	if p.current != nil && p.current.running {
		p.mu.Unlock()
		p.drawMu.Unlock()
		return Status{}, ErrAlreadyRunning
	}
	p.current = s
	p.status = Status{
		SessionID: s.id,
		State:     StateRunning,
		StartedAt: time.Now().UTC(),
	}
	p.snapshot = Snapshot{Selection: &s.selection}
	st := p.status
	p.mu.Unlock()

	if n, ok := p.renderer.(chart.AxisNamer); ok {
		n.SetAxes(axisNames(s))
	}
	p.drawMu.Unlock()

	p.logger.Info("plot session started", "session_id", s.id, "devices", len(s.devices))
	p.notify(st)

	go p.loop(ctx, s)
	return st, nil
}

// Stop ends the current session after its in-flight round. That round still
// completes and redraws once; no further round is scheduled.
func (p *Poller) Stop() Status {
	p.mu.Lock()
	s := p.current
	if s == nil || !s.running {
		st := p.status
		p.mu.Unlock()
		return st
	}
	s.running = false
	close(s.stop)
	p.status.State = StateStopping
	st := p.status
	p.mu.Unlock()

	p.logger.Info("plot session stopping", "session_id", s.id)
	p.notify(st)
	return st
}

// Done returns a channel closed when the current session's goroutine exits.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return p.current.done
}

// Status returns the current session status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Snapshot returns the latest drawn plot.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.snapshot
	snap.Status = p.status
	return snap
}

func (p *Poller) loop(ctx context.Context, s *session) {
	defer close(s.done)

	for first := true; ; first = false {
		if err := p.round(ctx, s, first); err != nil {
			if ctx.Err() != nil {
				p.halt(s)
				p.finish(s, "service shutting down")
				return
			}
			p.failStop(s, err)
			return
		}

		if !p.isRunning(s) {
			p.finish(s, "")
			return
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.halt(s)
			p.finish(s, "service shutting down")
			return
		case <-s.stop:
			timer.Stop()
			p.finish(s, "")
			return
		case <-timer.C:
		}
	}
}

type fetchResult struct {
	ref  device.Ref
	data *rig.Data
}

// round fetches every selected device, joins, appends and redraws.
// A fetch error aborts the round before anything is appended or drawn.
func (p *Poller) round(ctx context.Context, s *session, first bool) error {
	refs := s.selection.refs()
	results := make([]fetchResult, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		rng := p.rangeFor(s, ref, first)
		g.Go(func() error {
			data, err := p.fetcher.Data(gctx, ref.Kind, ref.ID, rng)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", ref, err)
			}
			results[i] = fetchResult{ref: ref, data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var now float64
	fresh := make(map[device.Ref][]series.Sample, len(results))
	for _, r := range results {
		ser := s.series[r.ref]
		held := ser.Len()
		if ser.Append(r.data.Samples...) > 0 {
			fresh[r.ref] = ser.Tail(held)
		}
		if p.window > 0 {
			ser.KeepWindow(p.window)
		}
		now = max(now, r.data.RunningTime)
	}

	plots := p.plots(s)
	drawn, renderErr := p.draw(s, plots)
	if renderErr != nil {
		p.logger.Warn("plot render failed", "session_id", s.id, "error", renderErr)
	}

	p.mu.Lock()
	if drawn && p.current == s {
		p.status.Rounds++
		p.status.CurrentTime = max(p.status.CurrentTime, now)
		p.status.RenderError = ""
		if renderErr != nil {
			p.status.RenderError = renderErr.Error()
		}
		p.snapshot.Series = plots
	}
	sinks := p.sinks
	p.mu.Unlock()

	for ref, samples := range fresh {
		for _, sink := range sinks {
			if err := sink.WriteSamples(ctx, s.devices[ref], samples); err != nil {
				p.logger.Warn("sample sink failed", "device", ref.String(), "error", err)
			}
		}
	}
	return nil
}

// draw renders plots unless a newer session has taken over the renderer.
func (p *Poller) draw(s *session, plots []chart.PlotSeries) (bool, error) {
	p.drawMu.Lock()
	defer p.drawMu.Unlock()

	p.mu.Lock()
	current := p.current == s
	p.mu.Unlock()
	if !current {
		p.logger.Debug("skipping redraw of replaced session", "session_id", s.id)
		return false, nil
	}
	return true, p.renderer.Render(plots)
}

// rangeFor picks the request range. The first round uses the selection;
// open-ended sessions then continue from the last sample held.
func (p *Poller) rangeFor(s *session, ref device.Ref, first bool) rig.Range {
	if first || s.selection.End != nil {
		return rig.Range{Start: s.selection.Start, End: s.selection.End}
	}
	if last, ok := s.series[ref].Last(); ok {
		return rig.Since(last.T)
	}
	return rig.Range{Start: s.selection.Start}
}

// plots builds the drawable series: value against time when no X device is
// selected, otherwise each Y merged against X.
func (p *Poller) plots(s *session) []chart.PlotSeries {
	sel := s.selection
	out := make([]chart.PlotSeries, 0, len(sel.Y))

	if sel.X == nil {
		for _, ref := range sel.Y {
			samples := s.series[ref].Samples()
			pts := make([]series.Pair, len(samples))
			for i, smp := range samples {
				pts[i] = series.Pair{X: smp.T, Y: smp.V}
			}
			out = append(out, chart.PlotSeries{Name: s.devices[ref].Name, Points: pts})
		}
		return out
	}

	dependent := s.series[*sel.X].Samples()
	for _, ref := range sel.Y {
		out = append(out, chart.PlotSeries{
			Name:   s.devices[ref].Name,
			Points: series.Merge(dependent, s.series[ref].Samples()),
		})
	}
	return out
}

func axisNames(s *session) (x, y string) {
	x = "time (s)"
	if s.selection.X != nil {
		x = s.devices[*s.selection.X].Name
	}
	if len(s.selection.Y) == 1 {
		return x, s.devices[s.selection.Y[0]].Name
	}
	return x, "value"
}

func (p *Poller) isRunning(s *session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return s.running
}

func (p *Poller) halt(s *session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.running {
		s.running = false
		close(s.stop)
	}
}

// failStop ends the session after a failed round without redrawing.
func (p *Poller) failStop(s *session, err error) {
	p.halt(s)
	p.logger.Error("plot session stopped", "session_id", s.id, "error", err)
	p.finish(s, err.Error())
}

func (p *Poller) finish(s *session, message string) {
	p.mu.Lock()
	if p.current != s {
		p.mu.Unlock()
		return
	}
	p.status.State = StateStopped
	p.status.Message = message
	st := p.status
	p.mu.Unlock()

	p.logger.Info("plot session ended", "session_id", s.id, "rounds", st.Rounds)
	p.notify(st)
}

func (p *Poller) notify(st Status) {
	p.mu.Lock()
	fn := p.onStatus
	p.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
