package control

import (
	"fmt"

	"github.com/nerrad567/rigdash/internal/rig"
)

// State is the display state derived from the rig's control_state_id.
type State string

const (
	StateStart     State = "start"
	StatePause     State = "pause"
	StateResume    State = "resume"
	StateStop      State = "stop"
	StateEmergency State = "emergency"
	StateUnknown   State = "unknown"
)

// View is what the dashboard shows for a control state.
type View struct {
	State      State            `json:"state"`
	Code       rig.ControlState `json:"code"`
	Text       string           `json:"text"`
	Running    bool             `json:"running"`
	Failed     bool             `json:"failed"`
	Unhandled  bool             `json:"unhandled,omitempty"`
	Experiment string           `json:"experiment,omitempty"`
	User       string           `json:"user,omitempty"`

	// Widget visibility.
	ShowStop     bool `json:"show_stop"`
	ShowPressure bool `json:"show_pressure"`
	ShowStart    bool `json:"show_start"`
}

// transition describes how one rig state is displayed.
type transition struct {
	state     State
	format    string // receives experiment name and user name
	running   bool
	failed    bool
	unhandled bool
}

// transitions maps every recognised rig code to its display.
// Codes missing from the table render as StateUnknown: flagged failed and
// treated as not running, so the start controls stay reachable.
var transitions = map[rig.ControlState]transition{
	rig.StateStart: {
		state:   StateStart,
		format:  "Experiment started - '%s' by %s",
		running: true,
	},
	rig.StatePause: {
		state:   StatePause,
		format:  "Experiment paused - '%s' by %s",
		running: true,
	},
	rig.StateResume: {
		state:     StateResume,
		format:    "Unhandled state: resume",
		unhandled: true,
	},
	rig.StateStop: {
		state:  StateStop,
		format: "No experiment running.",
	},
	rig.StateEmergency: {
		state:   StateEmergency,
		format:  "Emergency mode - '%s' by %s",
		running: true,
		failed:  true,
	},
}

// ViewFor renders a control status.
func ViewFor(st rig.ControlStatus) View {
	t, ok := transitions[st.StateID]
	if !ok {
		return View{
			State:      StateUnknown,
			Code:       st.StateID,
			Text:       fmt.Sprintf("Unknown mode: %d", st.StateID),
			Failed:     true,
			ShowStart:  true,
			Experiment: st.ExperimentName,
			User:       st.UserName,
		}
	}

	text := t.format
	if t.running {
		text = fmt.Sprintf(t.format, st.ExperimentName, st.UserName)
	}

	v := View{
		State:      t.state,
		Code:       st.StateID,
		Text:       text,
		Running:    t.running,
		Failed:     t.failed,
		Unhandled:  t.unhandled,
		Experiment: st.ExperimentName,
		User:       st.UserName,
	}
	switch {
	case t.running:
		v.ShowStop, v.ShowPressure = true, true
	case t.state == StateStop:
		v.ShowStart = true
	}
	return v
}

// Machine tracks the last applied state code.
// The zero value has no state; the first Apply always reports a change.
type Machine struct {
	known bool
	code  rig.ControlState
	view  View
}

// Apply moves to the state in st. It reports changed only when the code
// differs from the last one applied; an identical status leaves the machine
// and its view untouched.
func (m *Machine) Apply(st rig.ControlStatus) (View, bool) {
	if m.known && st.StateID == m.code {
		return m.view, false
	}
	m.known = true
	m.code = st.StateID
	m.view = ViewFor(st)
	return m.view, true
}

// Current returns the last view and whether any state has been applied.
func (m *Machine) Current() (View, bool) {
	return m.view, m.known
}
