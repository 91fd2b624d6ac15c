package pintest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/rig"
)

// Logger defines the logging interface used by the tester.
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

// PinClient issues raw pin requests. *rig.Client satisfies it.
type PinClient interface {
	Pin(ctx context.Context, req rig.PinRequest) (string, error)
}

// Reading is the latest value seen on an input pin.
type Reading struct {
	Pin   Pin       `json:"pin"`
	Text  string    `json:"text"`
	Value int       `json:"value"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// PinState is one exported pin as listed by the tester.
type PinState struct {
	Pin      Pin      `json:"pin"`
	Watching bool     `json:"watching"`
	Active   bool     `json:"active"`
	Last     *Reading `json:"last,omitempty"`
}

// Tester drives the rig's pin test module and remembers which pins this
// console exported.
type Tester struct {
	client  PinClient
	refresh time.Duration
	idle    time.Duration
	logger  Logger

	mu       sync.Mutex
	exported map[Pin]bool
	watchers map[Pin]*Watcher
}

// New creates a tester with the refresh cadence in cfg.
func New(client PinClient, cfg config.PinTestConfig) *Tester {
	return &Tester{
		client:   client,
		refresh:  config.Millis(cfg.RefreshRate),
		idle:     config.Millis(cfg.IdleRefreshRate),
		logger:   noopLogger{},
		exported: make(map[Pin]bool),
		watchers: make(map[Pin]*Watcher),
	}
}

// SetLogger sets the logger for the tester.
func (t *Tester) SetLogger(logger Logger) {
	t.logger = logger
}

// Export exports p. A pin the rig already holds is reported as
// AlreadyExported rather than as an error.
func (t *Tester) Export(ctx context.Context, p Pin) (ExportResult, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	fam := p.family()
	_, err := t.client.Pin(ctx, rig.PinRequest{Type: fam.Type, Num: fam.Num, Export: 1})

	result := Exported
	switch {
	case rig.HasStatus(err, rig.StatusAlreadyExists):
		result = AlreadyExported
	case err != nil:
		return 0, fmt.Errorf("exporting %s: %w", p, err)
	}

	t.mu.Lock()
	t.exported[fam] = true
	t.mu.Unlock()

	t.logger.Info("pin exported", "pin", p.String(), "result", result.String())
	return result, nil
}

// Unexport releases p and stops any watcher on it.
func (t *Tester) Unexport(ctx context.Context, p Pin) (ExportResult, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	fam := p.family()

	t.mu.Lock()
	w := t.watchers[fam]
	delete(t.watchers, fam)
	delete(t.exported, fam)
	t.mu.Unlock()
	if w != nil {
		w.Stop()
	}

	if _, err := t.client.Pin(ctx, rig.PinRequest{Type: fam.Type, Num: fam.Num, Export: -1}); err != nil {
		return 0, fmt.Errorf("unexporting %s: %w", p, err)
	}
	t.logger.Info("pin unexported", "pin", p.String())
	return Unexported, nil
}

// Read samples an input: a GPI level or a raw ADC value.
func (t *Tester) Read(ctx context.Context, p Pin) (Reading, error) {
	if err := p.Validate(); err != nil {
		return Reading{}, err
	}
	var parse func(string) (int, error)
	switch p.Type {
	case rig.PinGPI:
		parse = parseGPIO
	case rig.PinADC:
		parse = parseADC
	default:
		return Reading{}, fmt.Errorf("%w: read %s", ErrWrongType, p)
	}

	text, err := t.client.Pin(ctx, rig.PinRequest{Type: p.Type, Num: p.Num})
	if err != nil {
		return Reading{}, fmt.Errorf("reading %s: %w", p, err)
	}
	v, err := parse(text)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Pin: p, Text: text, Value: v, At: time.Now().UTC()}, nil
}

// WriteGPIO drives GPIO num high or low and returns the rig's reply.
func (t *Tester) WriteGPIO(ctx context.Context, num int, on bool) (string, error) {
	p := Pin{Type: rig.PinGPO, Num: num}
	if err := p.Validate(); err != nil {
		return "", err
	}
	text, err := t.client.Pin(ctx, rig.PinRequest{Type: rig.PinGPO, Num: num, Set: &on})
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", p, err)
	}
	return text, nil
}

// SetPWM starts PWM channel num with s after validating it.
func (t *Tester) SetPWM(ctx context.Context, num int, s PWMSettings) (string, error) {
	p := Pin{Type: rig.PinPWM, Num: num}
	if err := p.Validate(); err != nil {
		return "", err
	}
	if err := s.Validate(); err != nil {
		return "", err
	}
	on := true
	text, err := t.client.Pin(ctx, rig.PinRequest{
		Type:     rig.PinPWM,
		Num:      num,
		Set:      &on,
		Freq:     s.Freq,
		Duty:     s.Duty,
		Polarity: s.Polarity,
	})
	if err != nil {
		return "", fmt.Errorf("setting %s: %w", p, err)
	}
	return text, nil
}

// StopPWM stops PWM channel num.
func (t *Tester) StopPWM(ctx context.Context, num int) (string, error) {
	p := Pin{Type: rig.PinPWM, Num: num}
	if err := p.Validate(); err != nil {
		return "", err
	}
	off := false
	text, err := t.client.Pin(ctx, rig.PinRequest{Type: rig.PinPWM, Num: num, Set: &off})
	if err != nil {
		return "", fmt.Errorf("stopping %s: %w", p, err)
	}
	return text, nil
}

// Watch starts refreshing an input pin in the background and returns its
// watcher. An existing watcher on the pin is returned as is. fn, if not
// nil, is called with every reading.
func (t *Tester) Watch(ctx context.Context, p Pin, fn func(Reading)) (*Watcher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Type != rig.PinGPI && p.Type != rig.PinADC {
		return nil, fmt.Errorf("%w: watch %s", ErrWrongType, p)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.watchers[p.family()]; ok {
		return w, nil
	}
	w := newWatcher(t, p, fn)
	t.watchers[p.family()] = w
	go w.run(ctx)
	return w, nil
}

// Watcher returns the watcher on p, if any.
func (t *Tester) Watcher(p Pin) (*Watcher, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.watchers[p.family()]
	return w, ok
}

// Pins lists the pins exported through this tester.
func (t *Tester) Pins() []PinState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PinState, 0, len(t.exported))
	for p := range t.exported {
		st := PinState{Pin: p}
		if w, ok := t.watchers[p]; ok {
			st.Watching = true
			st.Active = w.Active()
			if r, ok := w.Last(); ok {
				st.Last = &r
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pin.Type != out[j].Pin.Type {
			return out[i].Pin.Type < out[j].Pin.Type
		}
		return out[i].Pin.Num < out[j].Pin.Num
	})
	return out
}

// Close stops every watcher.
func (t *Tester) Close() {
	t.mu.Lock()
	ws := make([]*Watcher, 0, len(t.watchers))
	for p, w := range t.watchers {
		ws = append(ws, w)
		delete(t.watchers, p)
	}
	t.mu.Unlock()
	for _, w := range ws {
		w.Stop()
	}
}

// parseGPIO extracts the level from "GPIO5 reads 1".
func parseGPIO(text string) (int, error) {
	_, after, ok := strings.Cut(text, " reads ")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedReply, text)
	}
	v, err := strconv.Atoi(strings.TrimSpace(after))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedReply, text)
	}
	return v, nil
}

func parseADC(text string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedReply, text)
	}
	return v, nil
}

// Watcher refreshes one input pin: every refresh interval while active,
// every idle interval while paused (for example while a GPIO is driven
// as an output).
type Watcher struct {
	tester *Tester
	pin    Pin
	fn     func(Reading)

	mu     sync.Mutex
	active bool
	last   Reading
	seen   bool
	reads  int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newWatcher(t *Tester, p Pin, fn func(Reading)) *Watcher {
	return &Watcher{
		tester: t,
		pin:    p,
		fn:     fn,
		active: true,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		wait := w.tester.idle
		if w.Active() {
			wait = w.tester.refresh
			w.refresh(ctx)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-w.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	r, err := w.tester.Read(ctx, w.pin)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r = Reading{Pin: w.pin, Text: "fail", Error: err.Error(), At: time.Now().UTC()}
		w.tester.logger.Debug("pin read failed", "pin", w.pin.String(), "error", err)
	}

	w.mu.Lock()
	// A reading that lands after SetActive(false) is discarded.
	if !w.active {
		w.mu.Unlock()
		return
	}
	w.last, w.seen = r, true
	w.reads++
	w.mu.Unlock()

	if w.fn != nil {
		w.fn(r)
	}
}

// SetActive pauses or resumes refreshing. Pausing clears the last reading.
func (w *Watcher) SetActive(active bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = active
	if !active {
		w.last, w.seen = Reading{}, false
	}
}

// Active reports whether the watcher is refreshing.
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Last returns the latest reading.
func (w *Watcher) Last() (Reading, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.seen
}

// Reads returns how many readings have been recorded.
func (w *Watcher) Reads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reads
}

// Stop ends the watcher and waits for its goroutine.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}
