// Package rigtest provides an in-process fake of the rig API for tests.
package rigtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"

	"github.com/nerrad567/rigdash/internal/rig"
	"github.com/nerrad567/rigdash/internal/series"
)

// Failure modes for FailModule.
const (
	FailNone      = 0
	FailHTTP      = 1 // respond 500
	FailStatus    = 2 // respond with status -1
	FailMalformed = 3 // respond with non-JSON garbage
)

// Server is a fake rig. Zero configuration serves an idle rig with no devices.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	sensors     map[int]string
	actuators   map[int]string
	data        map[string][]series.Sample
	runningTime float64
	status      rig.ControlStatus
	key         string
	exported    map[string]bool
	levels      map[int]bool
	adc         map[int]int
	errorLog    string
	failures    map[string]int
	requests    map[string]int
	queries     map[string]url.Values
	hold        chan struct{}
	held        chan struct{}
}

// New starts a fake rig and registers its shutdown with t.Cleanup.
func New(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		sensors:   map[int]string{},
		actuators: map[int]string{},
		data:      map[string][]series.Sample{},
		status:    rig.ControlStatus{StateID: rig.StateStop},
		exported:  map[string]bool{},
		levels:    map[int]bool{},
		adc:       map[int]int{},
		failures:  map[string]int{},
		requests:  map[string]int{},
		queries:   map[string]url.Values{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/identify", s.handleIdentify)
	mux.HandleFunc("/api/sensors", s.handleData(rig.KindSensor))
	mux.HandleFunc("/api/actuators", s.handleData(rig.KindActuator))
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/api/pin", s.handlePin)
	mux.HandleFunc("/api/errorlog", s.handleErrorLog)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to rig.NewWithHTTPClient.
func (s *Server) BaseURL() string {
	return s.URL + "/api/"
}

// AddSensor registers a sensor name.
func (s *Server) AddSensor(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors[id] = name
}

// AddActuator registers an actuator name.
func (s *Server) AddActuator(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actuators[id] = name
}

// SetData replaces the full sample history of a device.
func (s *Server) SetData(kind rig.Kind, id int, samples []series.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[dataKey(kind, id)] = samples
	if n := len(samples); n > 0 && samples[n-1].T > s.runningTime {
		s.runningTime = samples[n-1].T
	}
}

// SetRunningTime sets the experiment clock reported in replies.
func (s *Server) SetRunningTime(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runningTime = t
}

// SetState sets the experiment state reported by the control module.
func (s *Server) SetState(state rig.ControlState, experiment, user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.StateID = state
	s.status.ExperimentName = experiment
	s.status.UserName = user
}

// SetErrorLog sets the error log text.
func (s *Server) SetErrorLog(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorLog = text
}

// SetADC sets the raw reading of an ADC channel.
func (s *Server) SetADC(num, raw int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adc[num] = raw
}

// FailModule makes every request to module fail in the given way.
func (s *Server) FailModule(module string, mode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[module] = mode
}

// Requests returns how many requests module has received.
func (s *Server) Requests(module string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[module]
}

// LastQuery returns the query parameters of the latest request to module.
func (s *Server) LastQuery(module string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[module]
}

// Key returns the control key currently issued, if any.
func (s *Server) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// HoldData blocks sensor and actuator requests until ReleaseData is called.
// The returned channel receives once per request that reaches the hold.
func (s *Server) HoldData() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = make(chan struct{})
	s.held = make(chan struct{}, 64)
	return s.held
}

// ReleaseData unblocks requests parked by HoldData.
func (s *Server) ReleaseData() {
	s.mu.Lock()
	hold := s.hold
	s.hold = nil
	s.mu.Unlock()
	if hold != nil {
		close(hold)
	}
}

func dataKey(kind rig.Kind, id int) string {
	return fmt.Sprintf("%s/%d", kind, id)
}

// begin counts the request and applies any injected failure.
// It returns false when the response has already been written.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, module string) bool {
	s.mu.Lock()
	s.requests[module]++
	s.queries[module] = r.URL.Query()
	mode := s.failures[module]
	s.mu.Unlock()

	switch mode {
	case FailHTTP:
		http.Error(w, "rig down", http.StatusInternalServerError)
		return false
	case FailStatus:
		writeJSON(w, map[string]any{"status": rig.StatusError, "description": "injected failure"})
		return false
	case FailMalformed:
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{not json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck // test server
}

func writeText(w http.ResponseWriter, format string, args ...any) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, format, args...)
}

func reject(w http.ResponseWriter, status int, description string) {
	writeJSON(w, map[string]any{"status": status, "description": description})
}

func names(m map[int]string) map[string]string {
	out := make(map[string]string, len(m))
	for id, name := range m {
		out[strconv.Itoa(id)] = name
	}
	return out
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "identify") {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	reply := map[string]any{
		"status":        rig.StatusOK,
		"description":   "fake rig",
		"api_version":   0,
		"running_time":  s.runningTime,
		"logged_in":     true,
		"friendly_name": "tester",
	}
	if r.URL.Query().Get("sensors") != "" {
		reply["sensors"] = names(s.sensors)
	}
	if r.URL.Query().Get("actuators") != "" {
		reply["actuators"] = names(s.actuators)
	}
	writeJSON(w, reply)
}

func (s *Server) handleData(kind rig.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.begin(w, r, kind.Module()) {
			return
		}

		s.mu.Lock()
		hold, held := s.hold, s.held
		s.mu.Unlock()
		if hold != nil {
			held <- struct{}{}
			<-hold
		}

		q := r.URL.Query()
		id, err := strconv.Atoi(q.Get("id"))
		if err != nil {
			reject(w, rig.StatusError, "Invalid id")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		var registered bool
		var name string
		if kind == rig.KindSensor {
			name, registered = s.sensors[id]
		} else {
			name, registered = s.actuators[id]
		}
		if !registered {
			reject(w, rig.StatusError, "Invalid "+string(kind)+" id")
			return
		}

		start, end := 0.0, s.runningTime
		if v, err := strconv.ParseFloat(q.Get("start_time"), 64); err == nil {
			start = v
			if start < 0 {
				start += s.runningTime
			}
		}
		if v, err := strconv.ParseFloat(q.Get("end_time"), 64); err == nil {
			end = v
			if end < 0 {
				end += s.runningTime
			}
		}

		out := make([]series.Sample, 0)
		for _, smp := range s.data[dataKey(kind, id)] {
			if smp.T >= start && smp.T <= end {
				out = append(out, smp)
			}
		}

		if q.Get("format") == "tsv" {
			w.Header().Set("Content-Type", "text/plain")
			for _, smp := range out {
				fmt.Fprintf(w, "%f\t%f\n", smp.T, smp.V)
			}
			return
		}

		writeJSON(w, map[string]any{
			"status":       rig.StatusOK,
			"id":           id,
			"name":         name,
			"running_time": s.runningTime,
			"data":         out,
		})
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "control") {
		return
	}
	q := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	reply := func(extra map[string]any) {
		out := map[string]any{
			"status":                  rig.StatusOK,
			"control_state_id":        s.status.StateID,
			"control_experiment_name": s.status.ExperimentName,
			"control_user_name":       s.status.UserName,
		}
		for k, v := range extra {
			out[k] = v
		}
		writeJSON(w, out)
	}

	switch q.Get("action") {
	case "identify":
		reply(nil)
	case "start":
		if s.key != "" && q.Get("force") == "" {
			reject(w, rig.StatusUnauthorized, "Another user already has control")
			return
		}
		s.key = fmt.Sprintf("key-%d", s.requests["control"])
		if name := q.Get("name"); name != "" {
			s.status.ExperimentName = name
		}
		reply(map[string]any{"key": s.key})
	case "stop":
		s.status.StateID = rig.StateStop
		reply(map[string]any{"description": "stopped!"})
	case "end", "set":
		if s.key == "" || q.Get("key") != s.key {
			reject(w, rig.StatusUnauthorized, "Invalid key specified.")
			return
		}
		if q.Get("action") == "end" {
			s.key = ""
			reply(nil)
			return
		}
		reply(map[string]any{"description": "actuated!"})
	default:
		reject(w, rig.StatusError, "Unknown action")
	}
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "pin") {
		return
	}
	q := r.URL.Query()
	typ := q.Get("type")
	num, err := strconv.Atoi(q.Get("num"))
	if err != nil {
		reject(w, rig.StatusError, "Invalid pin number")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	family := typ
	if typ == "gpi" || typ == "gpo" {
		family = "gpio"
	}
	key := fmt.Sprintf("%s:%d", family, num)

	if exp := q.Get("export"); exp != "" {
		switch exp {
		case "1":
			if s.exported[key] {
				reject(w, rig.StatusAlreadyExists, "Pin already exported")
				return
			}
			s.exported[key] = true
		case "-1":
			delete(s.exported, key)
		default:
			reject(w, rig.StatusError, "Invalid export value")
			return
		}
		writeJSON(w, map[string]any{"status": rig.StatusOK, "description": "Pin (un)export OK!"})
		return
	}

	if !s.exported[key] {
		reject(w, rig.StatusError, "Pin not exported")
		return
	}

	switch typ {
	case "gpi":
		level := 0
		if s.levels[num] {
			level = 1
		}
		writeText(w, "GPIO%d reads %d\n", num, level)
	case "gpo":
		on := q.Get("set") == "1"
		s.levels[num] = on
		level := 0
		if on {
			level = 1
		}
		writeText(w, "GPIO%d set to %d\n", num, level)
	case "adc":
		writeText(w, "%d\n", s.adc[num])
	case "pwm":
		if q.Get("set") == "1" {
			writeText(w, "PWM%d set to freq %s duty %s polarity %s", num, q.Get("freq"), q.Get("duty"), q.Get("pol"))
			return
		}
		writeText(w, "PWM%d stopped", num)
	default:
		reject(w, rig.StatusError, "Invalid pin type")
	}
}

func (s *Server) handleErrorLog(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r, "errorlog") {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeText(w, "%s", s.errorLog)
}
