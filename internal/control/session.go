package control

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/rigdash/internal/rig"
)

// Controller is the subset of the rig client that drives an experiment.
type Controller interface {
	AcquireControl(ctx context.Context, name string, force bool) (*rig.ControlStatus, error)
	SetActuator(ctx context.Context, key string, id int, value float64) (*rig.ControlStatus, error)
	ReleaseControl(ctx context.Context, key string) error
	EmergencyStop(ctx context.Context) (*rig.ControlStatus, error)
}

// Session holds this console's control key. Calls are sequential: Acquire
// returns once the key is known, and every later call uses it.
type Session struct {
	ctl    Controller
	logger Logger

	mu  sync.Mutex
	key string
}

// NewSession creates a session with no key.
func NewSession(ctl Controller) *Session {
	return &Session{ctl: ctl, logger: noopLogger{}}
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	s.logger = logger
}

// Acquire starts an experiment named name and keeps the returned key.
// force takes control from another holder.
func (s *Session) Acquire(ctx context.Context, name string, force bool) (*rig.ControlStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != "" && !force {
		return nil, ErrSessionHeld
	}
	st, err := s.ctl.AcquireControl(ctx, name, force)
	if err != nil {
		return nil, fmt.Errorf("acquiring control: %w", err)
	}
	s.key = st.Key
	s.logger.Info("control acquired", "experiment", name, "forced", force)
	return st, nil
}

// Set writes value to actuator id.
func (s *Session) Set(ctx context.Context, id int, value float64) (*rig.ControlStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == "" {
		return nil, ErrNoSession
	}
	st, err := s.ctl.SetActuator(ctx, s.key, id, value)
	if err != nil {
		return nil, fmt.Errorf("setting actuator %d: %w", id, err)
	}
	return st, nil
}

// Release ends the session. The key is dropped even if the rig refuses,
// since a refused key is no longer usable.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == "" {
		return ErrNoSession
	}
	key := s.key
	s.key = ""
	if err := s.ctl.ReleaseControl(ctx, key); err != nil {
		return fmt.Errorf("releasing control: %w", err)
	}
	s.logger.Info("control released")
	return nil
}

// EmergencyStop stops the experiment. It needs no key and works whether or
// not this console holds one.
func (s *Session) EmergencyStop(ctx context.Context) (*rig.ControlStatus, error) {
	st, err := s.ctl.EmergencyStop(ctx)
	if err != nil {
		return nil, fmt.Errorf("emergency stop: %w", err)
	}
	s.logger.Warn("emergency stop issued")
	return st, nil
}

// Held reports whether a key is held.
func (s *Session) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key != ""
}
