package device

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/nerrad567/rigdash/internal/rig"
)

// Logger defines the logging interface used by the Registry.
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

// Identifier is the subset of the rig client used by discovery.
type Identifier interface {
	Identify(ctx context.Context) (*rig.Identity, error)
}

// Registry is the in-memory catalogue of rig sensors and actuators.
//
// Entries are added by Discover and never removed. A device that disappears
// from a later identify reply stays selectable; its data requests will fail
// with an API error instead.
//
// All public methods are thread-safe.
type Registry struct {
	cache   map[Ref]Device
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cache:  make(map[Ref]Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Discover identifies the rig and registers every sensor and actuator it
// reports. On failure the registry is left exactly as it was and the error
// wraps ErrDiscoveryFailed together with the underlying rig error.
func (r *Registry) Discover(ctx context.Context, src Identifier) (*DiscoveryResult, error) {
	id, err := src.Identify(ctx)
	if err != nil {
		r.logger.Error("device discovery failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}

	sensors, err := parseNames(rig.KindSensor, id.Sensors)
	if err != nil {
		return nil, err
	}
	actuators, err := parseNames(rig.KindActuator, id.Actuators)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	added := 0
	for _, list := range [][]Device{sensors, actuators} {
		for _, d := range list {
			if _, ok := r.cache[d.Ref()]; !ok {
				added++
			}
			r.cache[d.Ref()] = d
		}
	}
	total := len(r.cache)
	r.cacheMu.Unlock()

	r.logger.Info("devices discovered",
		"sensors", len(sensors),
		"actuators", len(actuators),
		"added", added,
		"total", total,
	)

	return &DiscoveryResult{
		Sensors:     sensors,
		Actuators:   actuators,
		RunningTime: id.RunningTime,
	}, nil
}

// parseNames converts an identify name map ({"0": "strain0"}) into devices
// sorted by id.
func parseNames(kind rig.Kind, names map[string]string) ([]Device, error) {
	out := make([]Device, 0, len(names))
	for key, name := range names {
		n, err := strconv.Atoi(key)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s id %q: %w", ErrDiscoveryFailed, kind, key, rig.ErrMalformed)
		}
		out = append(out, Device{ID: n, Name: name, Kind: kind})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Lookup returns the device registered under ref.
// Returns ErrDeviceNotFound if it is unknown.
func (r *Registry) Lookup(ref Ref) (Device, error) {
	r.cacheMu.RLock()
	d, ok := r.cache[ref]
	r.cacheMu.RUnlock()
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, ref)
	}
	return d, nil
}

// List returns every device, sensors first, each group ordered by id.
func (r *Registry) List() []Device {
	r.cacheMu.RLock()
	out := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		out = append(out, d)
	}
	r.cacheMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == rig.KindSensor
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListByKind returns the devices of one kind ordered by id.
func (r *Registry) ListByKind(kind rig.Kind) []Device {
	all := r.List()
	out := make([]Device, 0, len(all))
	for _, d := range all {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// GetStats returns device counts by kind.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	s := Stats{Total: len(r.cache)}
	for ref := range r.cache {
		switch ref.Kind {
		case rig.KindSensor:
			s.Sensors++
		case rig.KindActuator:
			s.Actuators++
		}
	}
	return s
}
