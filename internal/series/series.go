package series

import (
	"encoding/json"
	"fmt"
	"math"
)

// Sample is one (time, value) observation. Time is seconds since the rig's
// experiment clock started. On the wire a sample is the pair [t, v].
type Sample struct {
	T float64
	V float64
}

// MarshalJSON encodes the sample as [t, v].
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{s.T, s.V})
}

// UnmarshalJSON decodes a [t, v] pair.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSample, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: want 2 elements, got %d", ErrMalformedSample, len(pair))
	}
	s.T, s.V = pair[0], pair[1]
	return nil
}

// Series is an append-only sequence of samples for one device.
// Timestamps are strictly increasing.
//
// A Series is not safe for concurrent mutation; the poller owns it and
// publishes copies via Samples.
type Series struct {
	samples []Sample
}

// New returns an empty series.
func New() *Series {
	return &Series{}
}

// Append adds each sample whose time is strictly greater than the last stored
// time. Duplicates and out-of-order samples are dropped silently, so a poll
// that overlaps the previous one only contributes new data.
//
// It returns the number of samples appended.
func (s *Series) Append(samples ...Sample) int {
	added := 0
	for _, smp := range samples {
		if n := len(s.samples); n > 0 && !(smp.T > s.samples[n-1].T) {
			continue
		}
		if math.IsNaN(smp.T) {
			continue
		}
		s.samples = append(s.samples, smp)
		added++
	}
	return added
}

// Len returns the number of stored samples.
func (s *Series) Len() int {
	return len(s.samples)
}

// Last returns the newest sample and false when the series is empty.
func (s *Series) Last() (Sample, bool) {
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Samples returns a copy of the stored samples.
func (s *Series) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Tail returns a copy of the samples appended after the first n.
func (s *Series) Tail(n int) []Sample {
	if n >= len(s.samples) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make([]Sample, len(s.samples)-n)
	copy(out, s.samples[n:])
	return out
}

// PruneBefore drops every sample with T < cutoff and returns how many were removed.
func (s *Series) PruneBefore(cutoff float64) int {
	i := 0
	for i < len(s.samples) && s.samples[i].T < cutoff {
		i++
	}
	if i == 0 {
		return 0
	}
	s.samples = append(s.samples[:0], s.samples[i:]...)
	return i
}

// KeepWindow keeps only samples within window seconds of the newest one.
// A non-positive window keeps everything.
func (s *Series) KeepWindow(window float64) int {
	last, ok := s.Last()
	if !ok || window <= 0 {
		return 0
	}
	return s.PruneBefore(last.T - window)
}

// Reset discards all samples.
func (s *Series) Reset() {
	s.samples = s.samples[:0]
}
