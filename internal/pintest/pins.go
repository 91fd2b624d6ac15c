package pintest

import (
	"fmt"
	"slices"

	"github.com/nerrad567/rigdash/internal/rig"
)

// GPIOPins are the header GPIOs the rig allows for testing.
var GPIOPins = []int{
	4, 5, 8, 9, 10, 11, 14, 15, 26, 27, 30, 31, 44, 45,
	46, 47, 48, 49, 60, 61, 65, 66, 67, 68, 69, 70, 71, 72,
	73, 74, 75, 76, 77, 78, 79, 80, 81, 86, 87, 88, 89, 112, 115,
}

// PWMChannels are the PWM outputs.
var PWMChannels = []int{0, 1, 2, 3, 4, 5, 6, 7}

// ADCChannels are the analogue inputs.
var ADCChannels = []int{0, 1, 2, 3, 4, 5, 6, 7}

// Pin addresses one testable pin.
type Pin struct {
	Type rig.PinType `json:"type"`
	Num  int         `json:"num"`
}

// String formats the pin as "type/num".
func (p Pin) String() string {
	return fmt.Sprintf("%s/%d", p.Type, p.Num)
}

// family is the export namespace. GPI and GPO share one sysfs GPIO.
func (p Pin) family() Pin {
	if p.Type == rig.PinGPO {
		return Pin{Type: rig.PinGPI, Num: p.Num}
	}
	return p
}

// Validate checks the pin against the known lists.
func (p Pin) Validate() error {
	var known []int
	switch p.Type {
	case rig.PinGPI, rig.PinGPO:
		known = GPIOPins
	case rig.PinPWM:
		known = PWMChannels
	case rig.PinADC:
		known = ADCChannels
	default:
		return fmt.Errorf("%w: type %q", ErrUnknownPin, p.Type)
	}
	if !slices.Contains(known, p.Num) {
		return fmt.Errorf("%w: %s", ErrUnknownPin, p)
	}
	return nil
}

// ExportResult is the outcome of an export or unexport request.
type ExportResult int

const (
	// Exported means the pin was exported by this request.
	Exported ExportResult = iota

	// AlreadyExported means the rig reported the pin as exported before
	// the request. The pin is usable.
	AlreadyExported

	// Unexported means the pin was released.
	Unexported
)

func (r ExportResult) String() string {
	switch r {
	case Exported:
		return "exported"
	case AlreadyExported:
		return "already_exported"
	case Unexported:
		return "unexported"
	}
	return "unknown"
}

// MarshalText encodes the result by name.
func (r ExportResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// PWMSettings are the parameters of a running PWM channel.
type PWMSettings struct {
	Freq     float64 `json:"freq"`
	Duty     float64 `json:"duty"`
	Polarity bool    `json:"pol"`
}

// Validate requires a positive frequency and a duty cycle in [0, 1].
func (s PWMSettings) Validate() error {
	if !(s.Freq > 0) {
		return fmt.Errorf("%w: frequency must be positive", ErrInvalidInput)
	}
	if !(s.Duty >= 0 && s.Duty <= 1) {
		return fmt.Errorf("%w: duty cycle must be between 0 and 1", ErrInvalidInput)
	}
	return nil
}
