package rig

import (
	"github.com/nerrad567/rigdash/internal/series"
)

// Kind distinguishes the two data-producing device families.
type Kind string

const (
	KindSensor   Kind = "sensor"
	KindActuator Kind = "actuator"
)

// Module returns the API module that serves data for the kind.
func (k Kind) Module() string {
	if k == KindActuator {
		return "actuators"
	}
	return "sensors"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSensor || k == KindActuator
}

// envelope is the part shared by every JSON reply.
type envelope struct {
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
}

func (e envelope) err() error {
	if e.Status < 0 {
		return &APIError{Status: e.Status, Description: e.Description}
	}
	return nil
}

// Identity is the reply to the identify module.
type Identity struct {
	Description  string            `json:"description"`
	BuildDate    string            `json:"build_date"`
	APIVersion   int               `json:"api_version"`
	Sensors      map[string]string `json:"sensors"`
	Actuators    map[string]string `json:"actuators"`
	RunningTime  float64           `json:"running_time"`
	LoggedIn     bool              `json:"logged_in"`
	FriendlyName string            `json:"friendly_name"`
}

// Range bounds a data request. Nil fields are omitted so the rig applies its
// own defaults (start of experiment, current time). Negative values are
// relative to the rig's current time.
type Range struct {
	Start *float64
	End   *float64
}

// Since returns a range starting at t with an open end.
func Since(t float64) Range {
	return Range{Start: &t}
}

// Data is the reply to a sensors or actuators request.
type Data struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	RunningTime float64         `json:"running_time"`
	Samples     []series.Sample `json:"data"`
}

// ControlState is the experiment state code reported by the rig.
type ControlState int

const (
	StateStart     ControlState = 0
	StatePause     ControlState = 1
	StateResume    ControlState = 2
	StateStop      ControlState = 3
	StateEmergency ControlState = 4
)

// ControlStatus is the reply to the control module.
type ControlStatus struct {
	Key            string       `json:"key,omitempty"`
	StateID        ControlState `json:"control_state_id"`
	ExperimentName string       `json:"control_experiment_name"`
	UserName       string       `json:"control_user_name"`
	Description    string       `json:"description,omitempty"`
}

// PinType selects which pin family a pin request addresses.
type PinType string

const (
	PinGPI PinType = "gpi"
	PinGPO PinType = "gpo"
	PinPWM PinType = "pwm"
	PinADC PinType = "adc"
)
