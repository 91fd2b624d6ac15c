package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/rigdash/internal/rig"
)

// Device is one selectable data source on the rig.
// Devices are immutable once registered.
type Device struct {
	ID   int      `json:"id"`
	Name string   `json:"name"`
	Kind rig.Kind `json:"kind"`
}

// Ref returns the reference that identifies the device.
func (d Device) Ref() Ref {
	return Ref{Kind: d.Kind, ID: d.ID}
}

// Ref identifies a device by kind and numeric id.
// It encodes as the string "kind/id" in JSON.
type Ref struct {
	Kind rig.Kind
	ID   int
}

// String formats the ref as "kind/id", e.g. "sensor/3".
func (r Ref) String() string {
	return string(r.Kind) + "/" + strconv.Itoa(r.ID)
}

// MarshalText encodes the ref as "kind/id".
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes "kind/id".
func (r *Ref) UnmarshalText(b []byte) error {
	ref, err := ParseRef(string(b))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// ParseRef parses "kind/id".
func ParseRef(s string) (Ref, error) {
	kind, id, ok := strings.Cut(s, "/")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	ref := Ref{Kind: rig.Kind(kind), ID: n}
	if !ref.Kind.Valid() {
		return Ref{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRef, kind)
	}
	return ref, nil
}

// DiscoveryResult is what Discover learned from the rig.
type DiscoveryResult struct {
	Sensors     []Device `json:"sensors"`
	Actuators   []Device `json:"actuators"`
	RunningTime float64  `json:"running_time"`
}

// Stats summarises registry contents.
type Stats struct {
	Total     int `json:"total"`
	Sensors   int `json:"sensors"`
	Actuators int `json:"actuators"`
}
