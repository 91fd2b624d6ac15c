package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rigdash/internal/pintest"
	"github.com/nerrad567/rigdash/internal/rig"
)

// pinSetRequest drives an output. GPO uses On; PWM uses On to start or stop
// the channel and Freq, Duty and Polarity while starting it.
type pinSetRequest struct {
	On       *bool   `json:"on"`
	Freq     float64 `json:"freq"`
	Duty     float64 `json:"duty"`
	Polarity bool    `json:"pol"`
}

type pinWatchRequest struct {
	Active bool `json:"active"`
}

// handleListPins lists pins exported through this console and the pins
// available for testing.
func (s *Server) handleListPins(w http.ResponseWriter, _ *http.Request) {
	if s.pins == nil {
		writeUnavailable(w, "pin testing")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pins": s.pins.Pins(),
		"available": map[string][]int{
			"gpio": pintest.GPIOPins,
			"pwm":  pintest.PWMChannels,
			"adc":  pintest.ADCChannels,
		},
	})
}

func (s *Server) handleExportPin(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pinFromPath(w, r)
	if !ok {
		return
	}
	result, err := s.pins.Export(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pin": p, "result": result})
}

func (s *Server) handleUnexportPin(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pinFromPath(w, r)
	if !ok {
		return
	}
	result, err := s.pins.Unexport(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pin": p, "result": result})
}

// handleReadPin samples an input once.
func (s *Server) handleReadPin(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pinFromPath(w, r)
	if !ok {
		return
	}
	reading, err := s.pins.Read(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleSetPin(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pinFromPath(w, r)
	if !ok {
		return
	}
	var req pinSetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.On == nil {
		writeBadRequest(w, "on is required")
		return
	}

	var (
		text string
		err  error
	)
	switch p.Type {
	case rig.PinGPO:
		text, err = s.pins.WriteGPIO(r.Context(), p.Num, *req.On)
	case rig.PinPWM:
		if *req.On {
			text, err = s.pins.SetPWM(r.Context(), p.Num, pintest.PWMSettings{
				Freq:     req.Freq,
				Duty:     req.Duty,
				Polarity: req.Polarity,
			})
		} else {
			text, err = s.pins.StopPWM(r.Context(), p.Num)
		}
	default:
		writeBadRequest(w, "pin "+p.String()+" is an input")
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pin": p, "reply": text})
}

// handleWatchPin starts, pauses or resumes background refresh of an input.
// Readings are broadcast on the pins channel. Watchers run under the server
// context and end with it or on unexport.
func (s *Server) handleWatchPin(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pinFromPath(w, r)
	if !ok {
		return
	}
	var req pinWatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if !req.Active {
		if watcher, found := s.pins.Watcher(p); found {
			watcher.SetActive(false)
		}
		writeJSON(w, http.StatusOK, map[string]any{"pin": p, "active": false})
		return
	}

	watcher, err := s.pins.Watch(s.ctx, p, func(reading pintest.Reading) {
		s.hub.Broadcast(ChannelPins, reading)
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	watcher.SetActive(true)
	writeJSON(w, http.StatusOK, map[string]any{"pin": p, "active": true})
}

// pinFromPath reads and validates the {type}/{num} path parameters.
func (s *Server) pinFromPath(w http.ResponseWriter, r *http.Request) (pintest.Pin, bool) {
	if s.pins == nil {
		writeUnavailable(w, "pin testing")
		return pintest.Pin{}, false
	}
	num, err := strconv.Atoi(chi.URLParam(r, "num"))
	if err != nil {
		writeBadRequest(w, "pin number must be an integer")
		return pintest.Pin{}, false
	}
	p := pintest.Pin{Type: rig.PinType(chi.URLParam(r, "type")), Num: num}
	if err := p.Validate(); err != nil {
		s.writeDomainError(w, err)
		return pintest.Pin{}, false
	}
	return p, true
}
