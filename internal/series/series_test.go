package series

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func samples(pairs ...[2]float64) []Sample {
	out := make([]Sample, len(pairs))
	for i, p := range pairs {
		out[i] = Sample{T: p[0], V: p[1]}
	}
	return out
}

func TestAppend_KeepsStrictlyIncreasingTimes(t *testing.T) {
	s := New()

	if got := s.Append(samples([2]float64{1, 10}, [2]float64{2, 20})...); got != 2 {
		t.Fatalf("first Append() = %d, want 2", got)
	}

	// Overlapping poll: 2 is a duplicate, 1.5 is out of order, 3 is new.
	got := s.Append(samples([2]float64{2, 99}, [2]float64{1.5, 99}, [2]float64{3, 30})...)
	if got != 1 {
		t.Errorf("overlapping Append() = %d, want 1", got)
	}

	want := samples([2]float64{1, 10}, [2]float64{2, 20}, [2]float64{3, 30})
	if !reflect.DeepEqual(s.Samples(), want) {
		t.Errorf("Samples() = %v, want %v", s.Samples(), want)
	}
}

func TestAppend_AllOlderIsNoop(t *testing.T) {
	s := New()
	s.Append(Sample{T: 10, V: 1})

	if got := s.Append(samples([2]float64{1, 0}, [2]float64{5, 0}, [2]float64{10, 0})...); got != 0 {
		t.Errorf("Append() = %d, want 0", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestAppend_Monotonic(t *testing.T) {
	s := New()
	input := samples(
		[2]float64{3, 0}, [2]float64{1, 0}, [2]float64{4, 0}, [2]float64{1, 0},
		[2]float64{5, 0}, [2]float64{9, 0}, [2]float64{2, 0}, [2]float64{6, 0},
	)
	for _, smp := range input {
		s.Append(smp)
	}

	got := s.Samples()
	for i := 1; i < len(got); i++ {
		if !(got[i].T > got[i-1].T) {
			t.Fatalf("samples not strictly increasing at %d: %v", i, got)
		}
	}
	if len(got) != 4 { // 3, 4, 5, 9
		t.Errorf("kept %d samples, want 4: %v", len(got), got)
	}
}

func TestSamples_ReturnsCopy(t *testing.T) {
	s := New()
	s.Append(Sample{T: 1, V: 1})
	out := s.Samples()
	out[0].V = 42

	if last, _ := s.Last(); last.V != 1 {
		t.Errorf("mutating Samples() result changed the series")
	}
}

func TestTail(t *testing.T) {
	s := New()
	s.Append(samples([2]float64{1, 1}, [2]float64{2, 2}, [2]float64{3, 3})...)

	if got := s.Tail(1); !reflect.DeepEqual(got, samples([2]float64{2, 2}, [2]float64{3, 3})) {
		t.Errorf("Tail(1) = %v", got)
	}
	if got := s.Tail(3); got != nil {
		t.Errorf("Tail(3) = %v, want nil", got)
	}
}

func TestKeepWindow(t *testing.T) {
	s := New()
	s.Append(samples([2]float64{0, 0}, [2]float64{5, 0}, [2]float64{10, 0}, [2]float64{15, 0})...)

	if removed := s.KeepWindow(6); removed != 2 {
		t.Errorf("KeepWindow(6) removed %d, want 2", removed)
	}
	if got := s.Samples(); !reflect.DeepEqual(got, samples([2]float64{10, 0}, [2]float64{15, 0})) {
		t.Errorf("after KeepWindow: %v", got)
	}

	// Appends still respect the last time after pruning.
	if got := s.Append(Sample{T: 12}); got != 0 {
		t.Errorf("Append older than last after prune = %d, want 0", got)
	}
	if removed := s.KeepWindow(0); removed != 0 {
		t.Errorf("KeepWindow(0) removed %d, want 0", removed)
	}
}

func TestSampleJSON(t *testing.T) {
	var got []Sample
	if err := json.Unmarshal([]byte(`[[0.5, 1.25], [1, -3]]`), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, samples([2]float64{0.5, 1.25}, [2]float64{1, -3})) {
		t.Errorf("decoded %v", got)
	}

	data, err := json.Marshal(Sample{T: 2, V: 4.5})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "[2,4.5]" {
		t.Errorf("Marshal = %s, want [2,4.5]", data)
	}
}

func TestSampleJSON_Malformed(t *testing.T) {
	for _, input := range []string{`[1]`, `[1,2,3]`, `{"t":1}`, `["a","b"]`} {
		var s Sample
		err := json.Unmarshal([]byte(input), &s)
		if !errors.Is(err, ErrMalformedSample) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrMalformedSample", input, err)
		}
	}
}
